package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// ErrMembershipDenied means the provider-side organization/team gate
// rejected the account. Logged distinctly from "no verified email"; both
// redirect to the generic failure page.
var ErrMembershipDenied = errors.New("provider membership requirement not satisfied")

// ProviderUser is the provider's view of the authenticated account.
type ProviderUser struct {
	Login     string
	FullName  string
	AvatarURL string
}

// ProviderClient is the federated-provider capability: exchange a code for
// a token, fetch user info, fetch the verified email list, and optionally
// gate on organization/team membership. Endpoint URLs are provider
// configuration, not part of this contract.
type ProviderClient interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchUser(ctx context.Context, token *oauth2.Token) (*ProviderUser, error)
	FetchEmails(ctx context.Context, token *oauth2.Token) ([]ProviderEmail, error)
	// CheckMembership returns ErrMembershipDenied when the account is
	// outside the configured organization/team; nil when no gate is
	// configured.
	CheckMembership(ctx context.Context, token *oauth2.Token, login string) error
}

// FederatedBackend performs the local-resolution stage of the federated
// pipeline. The protocol stages (redirect, callback, token exchange, email
// selection) happen in the HTTP layer via ProviderClient; by the time this
// backend runs, the email has been provider-verified.
type FederatedBackend struct {
	store    *store.Store
	provider string
}

func NewFederatedBackend(s *store.Store, provider string) *FederatedBackend {
	return &FederatedBackend{store: s, provider: provider}
}

func (b *FederatedBackend) Name() string           { return b.provider }
func (b *FederatedBackend) Configured() bool       { return true }
func (b *FederatedBackend) AllowsAutoSignup() bool { return true }
func (b *FederatedBackend) RealmBound() bool       { return true }

func (b *FederatedBackend) Authenticate(
	ctx context.Context,
	creds Credentials,
	realm *models.Realm,
) *Result {
	if realm == nil {
		return Failure("federated login requires a realm")
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" {
		return Failure("no verified email")
	}

	user, err := b.store.GetUserByEmail(realm.ID, email)
	if errors.Is(err, store.ErrNotFound) {
		// No local account: the registration bridge decides whether to
		// auto-register, require an invitation, or show manual signup.
		return Pending(email, creds.FullName)
	}
	if err != nil {
		return Failure("user lookup failed")
	}
	return Success(user)
}

// Compile-time checks: every backend satisfies the capability contract.
var (
	_ Backend = (*PasswordBackend)(nil)
	_ Backend = (*DirectoryBackend)(nil)
	_ Backend = (*TrustedHeaderBackend)(nil)
	_ Backend = (*FederatedBackend)(nil)
	_ Backend = (*AssertionBackend)(nil)
	_ Backend = (*DevBackend)(nil)
)

// KnownProvider reports whether name is a federated provider backend.
func KnownProvider(name string) bool {
	return name == core.BackendGitHub
}
