package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the showstopper service.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	sessionsCreatedTotal  prometheus.Counter
	activeSessions        prometheus.Gauge
	transitionsTotal      *prometheus.CounterVec
	driftCorrectionsTotal prometheus.Counter
	playbackFailuresTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showstopper_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showstopper_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sessionsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showstopper_sessions_created_total",
		Help: "Total number of showcase sessions mounted",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "showstopper_active_sessions",
		Help: "Number of mounted showcase sessions",
	})
	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "showstopper_transitions_total",
		Help: "Playback state transitions by target state",
	}, []string{"to"})
	driftCorrectionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "showstopper_drift_corrections_total",
		Help: "Hard seeks issued by the sync loop",
	})
	playbackFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "showstopper_playback_failures_total",
		Help: "Sessions that entered the error state, by cause",
	}, []string{"kind"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sessionsCreatedTotal,
		activeSessions,
		transitionsTotal,
		driftCorrectionsTotal,
		playbackFailuresTotal,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		sessionsCreatedTotal:  sessionsCreatedTotal,
		activeSessions:        activeSessions,
		transitionsTotal:      transitionsTotal,
		driftCorrectionsTotal: driftCorrectionsTotal,
		playbackFailuresTotal: playbackFailuresTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSessionsCreated increments the sessions created counter.
func (m *Metrics) IncSessionsCreated() {
	m.sessionsCreatedTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncTransition counts a transition into state to.
func (m *Metrics) IncTransition(to string) {
	m.transitionsTotal.WithLabelValues(to).Inc()
}

// IncDriftCorrections increments the drift corrections counter.
func (m *Metrics) IncDriftCorrections() {
	m.driftCorrectionsTotal.Inc()
}

// IncPlaybackFailure counts a session failure; kind is "load" or "start".
func (m *Metrics) IncPlaybackFailure(kind string) {
	m.playbackFailuresTotal.WithLabelValues(kind).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
