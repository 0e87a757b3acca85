package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
	"github.com/go-realmgate/realmgate/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	s, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestRealm(t *testing.T, s *store.Store, subdomain string, methods ...string) *models.Realm {
	if len(methods) == 0 {
		methods = []string{core.BackendPassword}
	}
	realm := &models.Realm{
		Subdomain:        subdomain,
		Name:             subdomain,
		Active:           true,
		EmailRestriction: models.EmailRestrictionOpen,
	}
	realm.SetMethods(methods)
	require.NoError(t, s.CreateRealm(realm))
	return realm
}

func createTestUser(t *testing.T, s *store.Store, realm *models.Realm, email string) *models.User {
	user := &models.User{
		ID:      uuid.New().String(),
		RealmID: realm.ID,
		Email:   email,
		Active:  true,
	}
	require.NoError(t, s.CreateUser(user))
	user.Realm = *realm
	return user
}

// fakeBackend returns a canned result and records whether it was invoked.
type fakeBackend struct {
	name       string
	configured bool
	realmBound bool
	result     *Result
	called     bool
}

func (f *fakeBackend) Name() string           { return f.name }
func (f *fakeBackend) Configured() bool       { return f.configured }
func (f *fakeBackend) AllowsAutoSignup() bool { return false }
func (f *fakeBackend) RealmBound() bool       { return f.realmBound }

func (f *fakeBackend) Authenticate(ctx context.Context, creds Credentials, realm *models.Realm) *Result {
	f.called = true
	return f.result
}

func TestGateRejectsServerDisabledBackend(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme", core.BackendPassword, core.BackendDev)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	gate := NewPolicyGate([]string{core.BackendPassword})
	backend := &fakeBackend{
		name:       core.BackendDev,
		configured: true,
		realmBound: true,
		result:     Success(user),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.False(t, result.Ok())
	assert.False(t, backend.called, "disabled backend must do no work")
}

func TestGateRejectsRealmDisabledBackend(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme", core.BackendPassword)
	user := createTestUser(t, s, realm, "hamlet@acme.com")

	// Enabled server-wide but absent from the realm's method set.
	gate := NewPolicyGate([]string{core.BackendPassword, core.BackendDev})
	backend := &fakeBackend{
		name:       core.BackendDev,
		configured: true,
		realmBound: true,
		result:     Success(user),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.False(t, result.Ok())
	assert.False(t, backend.called)
}

func TestGateRejectsUnconfiguredBackend(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme")

	gate := NewPolicyGate([]string{core.BackendPassword})
	backend := &fakeBackend{name: core.BackendPassword, configured: false}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.False(t, result.Ok())
	assert.False(t, backend.called)
}

func TestGateRejectsDeactivatedUser(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme")
	user := createTestUser(t, s, realm, "hamlet@acme.com")
	user.Active = false

	gate := NewPolicyGate([]string{core.BackendPassword})
	backend := &fakeBackend{
		name:       core.BackendPassword,
		configured: true,
		realmBound: true,
		result:     Success(user),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.False(t, result.Ok())
	assert.True(t, backend.called)
}

func TestGateRejectsDeactivatedRealm(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme")
	user := createTestUser(t, s, realm, "hamlet@acme.com")
	realm.Active = false
	user.Realm.Active = false

	gate := NewPolicyGate([]string{core.BackendPassword})
	backend := &fakeBackend{
		name:       core.BackendPassword,
		configured: true,
		realmBound: true,
		result:     Success(user),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.False(t, result.Ok())
}

func TestGateRejectsRealmMismatchForBoundBackend(t *testing.T) {
	s := setupTestStore(t)
	realmA := createTestRealm(t, s, "alpha")
	realmB := createTestRealm(t, s, "beta")
	user := createTestUser(t, s, realmA, "hamlet@alpha.com")

	gate := NewPolicyGate([]string{core.BackendPassword})
	backend := &fakeBackend{
		name:       core.BackendPassword,
		configured: true,
		realmBound: true,
		result:     Success(user),
	}

	// Valid credentials presented on the wrong subdomain: failure, not a
	// fallback search across realms.
	result := gate.Authenticate(context.Background(), backend, Credentials{}, realmB)
	assert.False(t, result.Ok())
}

func TestGateAllowsCrossRealmForUnboundBackend(t *testing.T) {
	s := setupTestStore(t)
	realmA := createTestRealm(t, s, "alpha", core.BackendDirectory)
	createTestRealm(t, s, "beta", core.BackendDirectory)
	user := createTestUser(t, s, realmA, "hamlet@alpha.com")

	gate := NewPolicyGate([]string{core.BackendDirectory})
	backend := &fakeBackend{
		name:       core.BackendDirectory,
		configured: true,
		realmBound: false,
		result:     Success(user),
	}

	// The directory backend may rebind to the email's owning realm; the
	// gate checks policy against the realm the user actually landed in.
	result := gate.Authenticate(context.Background(), backend, Credentials{}, nil)
	assert.True(t, result.Ok())
	assert.Equal(t, user.ID, result.User.ID)
}

func TestGatePassesThroughConfigErrors(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme", core.BackendJWT)

	gate := NewPolicyGate([]string{core.BackendJWT})
	backend := &fakeBackend{
		name:       core.BackendJWT,
		configured: true,
		realmBound: true,
		result:     ConfigError(ErrNoKeyForSubdomain),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	require.NotNil(t, result.Err)
	assert.True(t, errors.Is(result.Err, ErrConfiguration))
}

func TestGatePassesThroughPendingRegistration(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme", core.BackendGitHub)

	gate := NewPolicyGate([]string{core.BackendGitHub})
	backend := &fakeBackend{
		name:       core.BackendGitHub,
		configured: true,
		realmBound: true,
		result:     Pending("newbie@acme.com", "New Person"),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.True(t, result.NeedsRegistration())
	assert.Equal(t, "newbie@acme.com", result.PendingEmail)
}

func TestGateRejectsPendingRegistrationOnDeactivatedRealm(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme", core.BackendGitHub)
	require.NoError(t, s.SetRealmActive(realm.ID, false))
	realm, err := s.GetRealmBySubdomain("acme")
	require.NoError(t, err)

	gate := NewPolicyGate([]string{core.BackendGitHub})
	backend := &fakeBackend{
		name:       core.BackendGitHub,
		configured: true,
		realmBound: true,
		result:     Pending("newbie@acme.com", "New Person"),
	}

	result := gate.Authenticate(context.Background(), backend, Credentials{}, realm)
	assert.False(t, result.NeedsRegistration(),
		"a deactivated realm admits no new identities")
	assert.False(t, result.Ok())
	assert.Nil(t, result.Err)
}

func TestGateReload(t *testing.T) {
	gate := NewPolicyGate([]string{core.BackendPassword})
	assert.True(t, gate.ServerEnabled(core.BackendPassword))
	assert.False(t, gate.ServerEnabled(core.BackendDev))

	gate.Reload([]string{core.BackendDev})
	assert.False(t, gate.ServerEnabled(core.BackendPassword))
	assert.True(t, gate.ServerEnabled(core.BackendDev))
}
