package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-realmgate/realmgate/internal/core"
)

// Ensure Metrics implements Recorder interface at compile time
var _ core.Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	// Authentication
	AuthAttemptsTotal    *prometheus.CounterVec
	AuthAttemptDuration  *prometheus.HistogramVec
	ProviderCallDuration *prometheus.HistogramVec

	// Cross-subdomain handoff
	HandoffIssuedTotal   prometheus.Counter
	HandoffConsumedTotal *prometheus.CounterVec

	// Directory sync
	DirectorySyncsTotal *prometheus.CounterVec
	AvatarUploadsTotal  prometheus.Counter

	// Registration
	RegistrationsTotal *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on the enabled flag. When disabled it
// returns NoopMetrics (zero overhead). Uses sync.Once so Prometheus
// collectors are only registered once per process.
func Init(enabled bool) core.Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = newMetrics()
	})
	return defaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		AuthAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "realmgate_auth_attempts_total",
			Help: "Authentication attempts by backend and outcome",
		}, []string{"backend", "outcome"}),
		AuthAttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "realmgate_auth_attempt_duration_seconds",
			Help:    "Authentication attempt duration by backend",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		ProviderCallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "realmgate_provider_call_duration_seconds",
			Help:    "Outbound identity-provider call duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		HandoffIssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "realmgate_handoff_tokens_issued_total",
			Help: "Cross-subdomain handoff tokens issued",
		}),
		HandoffConsumedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "realmgate_handoff_tokens_consumed_total",
			Help: "Handoff token consumption attempts by result",
		}, []string{"result"}),
		DirectorySyncsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "realmgate_directory_syncs_total",
			Help: "Directory attribute sync passes by result",
		}, []string{"result"}),
		AvatarUploadsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "realmgate_avatar_uploads_total",
			Help: "Avatar images uploaded by directory sync",
		}),
		RegistrationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "realmgate_registrations_total",
			Help: "Registration bridge decisions by outcome",
		}, []string{"outcome"}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "realmgate_http_requests_total",
			Help: "HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "realmgate_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

func (m *Metrics) RecordAuthAttempt(backend, outcome string, duration time.Duration) {
	m.AuthAttemptsTotal.WithLabelValues(backend, outcome).Inc()
	m.AuthAttemptDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

func (m *Metrics) RecordProviderCall(provider, operation string, duration time.Duration) {
	m.ProviderCallDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordHandoffIssued() {
	m.HandoffIssuedTotal.Inc()
}

func (m *Metrics) RecordHandoffConsumed(result string) {
	m.HandoffConsumedTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordDirectorySync(result string) {
	m.DirectorySyncsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordAvatarUpload() {
	m.AvatarUploadsTotal.Inc()
}

func (m *Metrics) RecordRegistration(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
