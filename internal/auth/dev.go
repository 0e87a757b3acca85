package auth

import (
	"context"
	"strings"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// DevBackend resolves an identity by email with no secret at all. It exists
// for local development and test fixtures and reports itself unconfigured
// in production, so the gate refuses it there regardless of realm settings.
type DevBackend struct {
	store      *store.Store
	production bool
}

func NewDevBackend(s *store.Store, production bool) *DevBackend {
	return &DevBackend{store: s, production: production}
}

func (b *DevBackend) Name() string           { return core.BackendDev }
func (b *DevBackend) Configured() bool       { return !b.production }
func (b *DevBackend) AllowsAutoSignup() bool { return false }
func (b *DevBackend) RealmBound() bool       { return true }

func (b *DevBackend) Authenticate(
	ctx context.Context,
	creds Credentials,
	realm *models.Realm,
) *Result {
	if realm == nil {
		return Failure("dev login requires a realm")
	}
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(creds.Username))
	}
	if email == "" {
		return Failure("empty identity")
	}
	user, err := b.store.GetUserByEmail(realm.ID, email)
	if err != nil {
		return Failure("user not found")
	}
	return Success(user)
}
