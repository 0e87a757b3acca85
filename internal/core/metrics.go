package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authentication
	RecordAuthAttempt(backend, outcome string, duration time.Duration)
	RecordProviderCall(provider, operation string, duration time.Duration)

	// Cross-subdomain handoff
	RecordHandoffIssued()
	RecordHandoffConsumed(result string)

	// Directory synchronization
	RecordDirectorySync(result string)
	RecordAvatarUpload()

	// Registration
	RecordRegistration(outcome string)

	// HTTP
	RecordHTTPRequest(method, path, status string, duration time.Duration)
}
