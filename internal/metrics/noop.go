package metrics

import (
	"time"

	"github.com/go-realmgate/realmgate/internal/core"
)

// Ensure NoopMetrics implements Recorder interface at compile time
var _ core.Recorder = (*NoopMetrics)(nil)

// NoopMetrics is a no-op Recorder used when metrics are disabled.
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-op metrics recorder.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthAttempt(backend, outcome string, duration time.Duration) {}
func (n *NoopMetrics) RecordProviderCall(provider, operation string, d time.Duration)    {}
func (n *NoopMetrics) RecordHandoffIssued()                                              {}
func (n *NoopMetrics) RecordHandoffConsumed(result string)                               {}
func (n *NoopMetrics) RecordDirectorySync(result string)                                 {}
func (n *NoopMetrics) RecordAvatarUpload()                                               {}
func (n *NoopMetrics) RecordRegistration(outcome string)                                 {}
func (n *NoopMetrics) RecordHTTPRequest(method, path, status string, d time.Duration)    {}
