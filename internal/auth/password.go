package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// PasswordBackend validates a (username-or-email, password, realm) triple
// against stored credentials. It fails closed: every failure mode returns
// the same generic result, never an error and never a hint about which
// check failed.
type PasswordBackend struct {
	store *store.Store
}

func NewPasswordBackend(s *store.Store) *PasswordBackend {
	return &PasswordBackend{store: s}
}

func (b *PasswordBackend) Name() string           { return core.BackendPassword }
func (b *PasswordBackend) Configured() bool       { return true }
func (b *PasswordBackend) AllowsAutoSignup() bool { return false }
func (b *PasswordBackend) RealmBound() bool       { return true }

func (b *PasswordBackend) Authenticate(
	ctx context.Context,
	creds Credentials,
	realm *models.Realm,
) *Result {
	if realm == nil {
		return Failure("password login requires a realm")
	}

	email := strings.ToLower(strings.TrimSpace(creds.Username))
	if email == "" || creds.Password == "" {
		return Failure("empty credential")
	}

	user, err := b.store.GetUserByEmail(realm.ID, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			// Storage faults also fail closed.
			return Failure("user lookup failed")
		}
		return Failure("user not found")
	}

	// Federated-only accounts have no password hash and can never pass.
	if user.PasswordHash == "" {
		return Failure("no password set")
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(creds.Password),
	); err != nil {
		return Failure("password mismatch")
	}

	return Success(user)
}
