package auth

import (
	"context"
	"sync"

	"github.com/go-realmgate/realmgate/internal/models"
)

// PolicyGate is the realm-scoped arbitration layer every backend resolution
// passes through. Rules apply in order and short-circuit to a generic
// failure on first violation, so a deactivated user, a disabled backend and
// a wrong realm are indistinguishable at the boundary.
type PolicyGate struct {
	mu      sync.RWMutex
	enabled map[string]bool
}

// NewPolicyGate builds a gate with the server-wide enabled-backend list.
func NewPolicyGate(enabledBackends []string) *PolicyGate {
	g := &PolicyGate{}
	g.Reload(enabledBackends)
	return g
}

// Reload replaces the server-wide enabled-backend set. This is the explicit
// invalidation path; there is no implicit cached-set side channel.
func (g *PolicyGate) Reload(enabledBackends []string) {
	set := make(map[string]bool, len(enabledBackends))
	for _, name := range enabledBackends {
		set[name] = true
	}
	g.mu.Lock()
	g.enabled = set
	g.mu.Unlock()
}

// ServerEnabled reports whether the backend is in the server-wide list.
func (g *PolicyGate) ServerEnabled(backend string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled[backend]
}

// BackendEnabled reports whether the backend is enabled server-wide and,
// when a realm is known, in that realm's authentication-method set.
func (g *PolicyGate) BackendEnabled(backend string, realm *models.Realm) bool {
	if !g.ServerEnabled(backend) {
		return false
	}
	if realm != nil && !realm.MethodEnabled(backend) {
		return false
	}
	return true
}

// Permits applies the post-resolution policy rules to a resolved user.
func (g *PolicyGate) Permits(realm *models.Realm, backend Backend, user *models.User) bool {
	if user == nil {
		return false
	}
	if !g.BackendEnabled(backend.Name(), realm) {
		return false
	}
	if !user.Active || !user.Realm.Active {
		return false
	}
	if backend.RealmBound() && realm != nil && user.RealmID != realm.ID {
		// A realm mismatch is a failure, not a fallback search.
		return false
	}
	return true
}

// Authenticate wraps a backend's raw resolution with the policy rules.
// The pre-check runs before the backend touches the credential at all, so a
// disabled backend does no protocol work. No credential material is logged
// here or anywhere below.
func (g *PolicyGate) Authenticate(
	ctx context.Context,
	backend Backend,
	creds Credentials,
	realm *models.Realm,
) *Result {
	if !backend.Configured() {
		return Failure("backend not configured")
	}
	if !g.BackendEnabled(backend.Name(), realm) {
		return Failure("backend disabled")
	}

	result := backend.Authenticate(ctx, creds, realm)
	if result == nil {
		return Failure("no result")
	}
	if result.Err != nil {
		// Config errors propagate to operators untouched.
		return result
	}
	if result.NeedsRegistration() {
		// A verified identity with no local account heads to the
		// registration bridge, which has no user to gate yet. A
		// deactivated realm stops it here like any other login.
		if realm != nil && !realm.Active {
			return Failure("realm deactivated")
		}
		return result
	}
	if !g.Permits(realmForCheck(realm, result.User), backend, result.User) {
		return Failure("policy denied")
	}
	return result
}

// realmForCheck keeps the original hint for realm-bound backends but lets a
// directory login that rebound to the email's owning realm be checked
// against that realm.
func realmForCheck(hint *models.Realm, user *models.User) *models.Realm {
	if hint != nil {
		return hint
	}
	if user != nil {
		return &user.Realm
	}
	return nil
}
