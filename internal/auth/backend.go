package auth

import (
	"context"

	"github.com/go-realmgate/realmgate/internal/models"
)

// Credentials carries one authentication attempt's inputs. Each backend
// reads only the fields its protocol uses. The struct is ephemeral and
// never persisted or logged.
type Credentials struct {
	// Username is a username or email address (password, directory).
	Username string
	// Password is the secret for password verification or directory bind.
	Password string
	// RemoteUser is the externally asserted identity from a trusted
	// reverse proxy.
	RemoteUser string
	// Token is a signed assertion (JWT).
	Token string
	// Email is a provider-verified address (federated, dev).
	Email string
	// FullName is a provider-asserted display name (federated).
	FullName string
}

// Backend is the contract every authentication mechanism implements. The
// set of backends is fixed at compile time and selected by configuration at
// process start; there is no dynamic registration.
//
// Authenticate performs protocol-specific verification only. Policy (is the
// backend enabled here, is the user/realm active, does the realm match) is
// the PolicyGate's job; backends are always invoked through it.
type Backend interface {
	// Name returns the canonical backend name (core.Backend* constants).
	Name() string

	// Configured reports whether the backend has the deployment
	// configuration it needs to operate at all.
	Configured() bool

	// AllowsAutoSignup reports whether the backend may just-in-time
	// provision accounts for identities it verifies.
	AllowsAutoSignup() bool

	// RealmBound reports whether the credential's realm must exactly
	// match the resolved user's realm. The directory backend returns
	// false: its realm argument is a hint, and domain-to-realm mapping
	// may legitimately rebind the login.
	RealmBound() bool

	// Authenticate resolves the credentials within (or hinted by) realm.
	// It never returns Go errors for ordinary failures; those collapse
	// into Failure results. Configuration errors come back as
	// ConfigError results and must not be swallowed.
	Authenticate(ctx context.Context, creds Credentials, realm *models.Realm) *Result
}
