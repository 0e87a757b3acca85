package auth

import (
	"context"
	"strings"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

// TrustedHeaderBackend trusts an identity string asserted by an upstream
// reverse proxy that already authenticated the user. No secret is verified
// here; deployments must guarantee the header cannot be client-supplied.
type TrustedHeaderBackend struct {
	store        *store.Store
	appendDomain string
}

// NewTrustedHeaderBackend builds the backend. appendDomain, when set, turns
// bare usernames from the proxy into emails.
func NewTrustedHeaderBackend(s *store.Store, appendDomain string) *TrustedHeaderBackend {
	return &TrustedHeaderBackend{store: s, appendDomain: appendDomain}
}

func (b *TrustedHeaderBackend) Name() string           { return core.BackendTrustedHeader }
func (b *TrustedHeaderBackend) Configured() bool       { return true }
func (b *TrustedHeaderBackend) AllowsAutoSignup() bool { return false }
func (b *TrustedHeaderBackend) RealmBound() bool       { return true }

func (b *TrustedHeaderBackend) Authenticate(
	ctx context.Context,
	creds Credentials,
	realm *models.Realm,
) *Result {
	if realm == nil {
		return Failure("remote-user login requires a realm")
	}
	identity := strings.TrimSpace(creds.RemoteUser)
	if identity == "" {
		return Failure("no remote user asserted")
	}
	email := strings.ToLower(identity)
	if !strings.Contains(email, "@") && b.appendDomain != "" {
		email = email + "@" + b.appendDomain
	}
	user, err := b.store.GetUserByEmail(realm.ID, email)
	if err != nil {
		return Failure("user not found")
	}
	return Success(user)
}
