package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-realmgate/realmgate/internal/core"
	"github.com/go-realmgate/realmgate/internal/models"
)

// Registry holds the fixed set of constructed backends behind the policy
// gate. Backends are registered once at process start; lookups never
// instantiate anything.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	gate     *PolicyGate
	metrics  core.Recorder
}

func NewRegistry(gate *PolicyGate, recorder core.Recorder) *Registry {
	return &Registry{
		backends: make(map[string]Backend),
		gate:     gate,
		metrics:  recorder,
	}
}

// Register adds a constructed backend. Later registrations for the same
// name replace earlier ones (used by tests).
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	r.backends[b.Name()] = b
	r.mu.Unlock()
}

// Get returns the named backend.
func (r *Registry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Gate exposes the policy gate for callers that need pre-checks only.
func (r *Registry) Gate() *PolicyGate {
	return r.gate
}

// Names returns the registered backend names, sorted for stable output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnabledFor reports, per registered backend, whether it is usable for the
// given realm (server-wide AND realm-level AND configured). A nil realm
// reports server-wide state only.
func (r *Registry) EnabledFor(realm *models.Realm) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.backends))
	for name, b := range r.backends {
		out[name] = b.Configured() && r.gate.BackendEnabled(name, realm)
	}
	return out
}

// Authenticate routes an attempt to the named backend through the gate.
// An unknown backend name is indistinguishable from any other failure.
// Every attempt is recorded, whatever its outcome.
func (r *Registry) Authenticate(
	ctx context.Context,
	name string,
	creds Credentials,
	realm *models.Realm,
) *Result {
	b, ok := r.Get(name)
	if !ok {
		r.metrics.RecordAuthAttempt(name, "failure", 0)
		return Failure("unknown backend")
	}
	start := time.Now()
	result := r.gate.Authenticate(ctx, b, creds, realm)
	r.metrics.RecordAuthAttempt(name, attemptOutcome(result), time.Since(start))
	return result
}

// attemptOutcome folds the tri-state result into a metric label.
func attemptOutcome(result *Result) string {
	switch {
	case result.Ok():
		return "success"
	case result.Err != nil:
		return "config_error"
	case result.NeedsRegistration():
		return "pending"
	default:
		return "failure"
	}
}
