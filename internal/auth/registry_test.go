package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/metrics"
)

// recordingRecorder captures auth-attempt observations; everything else is
// inherited no-op behavior.
type recordingRecorder struct {
	*metrics.NoopMetrics
	attempts []string
}

func (r *recordingRecorder) RecordAuthAttempt(backend, outcome string, d time.Duration) {
	r.attempts = append(r.attempts, backend+"/"+outcome)
}

func TestRegistryRecordsAuthAttempts(t *testing.T) {
	s := setupTestStore(t)
	realm := createTestRealm(t, s, "acme", core.BackendPassword)
	user := createTestUser(t, s, realm, "hamlet@acme.com")
	setUserPassword(t, s, user, "hunter2-but-long")

	recorder := &recordingRecorder{NoopMetrics: metrics.NewNoopMetrics()}
	registry := NewRegistry(NewPolicyGate([]string{core.BackendPassword}), recorder)
	registry.Register(NewPasswordBackend(s))

	ctx := context.Background()

	result := registry.Authenticate(ctx, core.BackendPassword, Credentials{
		Username: "hamlet@acme.com", Password: "hunter2-but-long",
	}, realm)
	require.True(t, result.Ok())

	result = registry.Authenticate(ctx, core.BackendPassword, Credentials{
		Username: "hamlet@acme.com", Password: "wrong",
	}, realm)
	require.False(t, result.Ok())

	registry.Authenticate(ctx, "nonexistent", Credentials{}, realm)

	assert.Equal(t, []string{
		core.BackendPassword + "/success",
		core.BackendPassword + "/failure",
		"nonexistent/failure",
	}, recorder.attempts)
}
