package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// Registration bridge outcomes.
const (
	// OutcomeLogin: an account already exists; log it in.
	OutcomeLogin = "login"
	// OutcomeNoAccount: no account and the user wasn't signing up; show
	// the "no account found, would you like to register" page. No record
	// is created.
	OutcomeNoAccount = "no_account"
	// OutcomeConfirm: a confirmation record was created; proceed to the
	// registration form.
	OutcomeConfirm = "confirm"
	// OutcomeSignupPage: the realm requires an invitation the caller
	// doesn't hold; show the generic signup page without granting access.
	OutcomeSignupPage = "signup_page"
)

const confirmationTTL = 24 * time.Hour

var (
	ErrConfirmationInvalid = errors.New("confirmation is invalid, used or expired")
	ErrEmailNotAllowed     = errors.New("email not allowed in this realm")
	ErrRealmDeactivated    = errors.New("realm is deactivated")
)

// Decision is the registration bridge's verdict for one federated identity.
type Decision struct {
	Outcome      string
	User         *models.User
	Confirmation *models.Confirmation
}

// RegistrationBridge decides what happens when a federated login resolves
// to an email with no existing account: auto-register, require an
// invitation, or show a manual signup path.
type RegistrationBridge struct {
	store   *store.Store
	metrics core.Recorder
	now     func() time.Time
}

func NewRegistrationBridge(s *store.Store, recorder core.Recorder) *RegistrationBridge {
	return &RegistrationBridge{
		store:   s,
		metrics: recorder,
		now:     time.Now,
	}
}

// WithClock overrides the time source for expiry tests.
func (b *RegistrationBridge) WithClock(now func() time.Time) *RegistrationBridge {
	b.now = now
	return b
}

// Decide applies the decision table for (email, realm, is_signup,
// invite-required, multiuse key).
func (b *RegistrationBridge) Decide(
	ctx context.Context,
	email, fullName, authSource string,
	realm *models.Realm,
	isSignup bool,
	multiuseKey string,
) (*Decision, error) {
	// A deactivated realm admits nobody, existing account or not.
	if !realm.Active {
		return nil, ErrRealmDeactivated
	}

	// Existing account always wins, regardless of the signup flag.
	user, err := b.store.GetUserByEmail(realm.ID, email)
	if err == nil {
		b.metrics.RecordRegistration(OutcomeLogin)
		return &Decision{Outcome: OutcomeLogin, User: user}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if !isSignup {
		b.metrics.RecordRegistration(OutcomeNoAccount)
		return &Decision{Outcome: OutcomeNoAccount}, nil
	}

	if err := realm.EmailAllowed(email); err != nil {
		return nil, errors.Join(ErrEmailNotAllowed, err)
	}

	var invite *models.MultiuseInvite
	if realm.InviteRequired {
		if multiuseKey == "" {
			b.metrics.RecordRegistration(OutcomeSignupPage)
			return &Decision{Outcome: OutcomeSignupPage}, nil
		}
		invite, err = b.store.GetMultiuseInvite(multiuseKey)
		if err != nil || invite.RealmID != realm.ID {
			b.metrics.RecordRegistration(OutcomeSignupPage)
			return &Decision{Outcome: OutcomeSignupPage}, nil
		}
	}

	confirmation := &models.Confirmation{
		Key:        uuid.New().String(),
		Email:      email,
		RealmID:    realm.ID,
		FullName:   fullName,
		AuthSource: authSource,
		ExpiresAt:  b.now().Add(confirmationTTL),
	}
	if invite != nil {
		confirmation.MultiuseInviteID = &invite.ID
	}
	if err := b.store.CreateConfirmation(confirmation); err != nil {
		return nil, err
	}
	b.metrics.RecordRegistration(OutcomeConfirm)
	return &Decision{Outcome: OutcomeConfirm, Confirmation: confirmation}, nil
}

// Complete consumes a confirmation record and creates the user. The email
// is the confirmation's verified email, immutable; callers supply only the
// remaining form fields. Password is empty for federated/SSO signups.
func (b *RegistrationBridge) Complete(
	ctx context.Context,
	users *UserService,
	key, fullName, password string,
) (*models.User, error) {
	confirmation, err := b.store.ConsumeConfirmation(key, b.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConfirmationUsed) {
			return nil, ErrConfirmationInvalid
		}
		return nil, err
	}

	// The realm may have been deactivated between Decide and Complete.
	if !confirmation.Realm.Active {
		return nil, ErrRealmDeactivated
	}

	if confirmation.PasswordRequired() && password == "" {
		return nil, errors.New("password required for this signup")
	}
	if !confirmation.PasswordRequired() {
		// Federated signups never set a password through this form.
		password = ""
	}
	if fullName == "" {
		fullName = confirmation.FullName
	}

	user, err := users.Create(ctx, &confirmation.Realm,
		confirmation.Email, fullName, password, confirmation.AuthSource)
	if err != nil {
		return nil, err
	}

	if confirmation.MultiuseInvite != nil {
		// Stream grants from the invite. Subscription mechanics live in
		// the messaging core; here we record the grant.
		log.Printf("[Register] User %s inherits invite streams %v",
			user.Email, confirmation.MultiuseInvite.StreamList())
	}
	return user, nil
}
