// Package metrics provides Prometheus metrics for the quiz sync service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Event flow metrics
	eventsPublished prometheus.Counter
	eventsReceived  prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsDropped   prometheus.Counter
	publishLatency  prometheus.Histogram

	// Game engine metrics
	answersAccepted prometheus.Counter
	answersRejected *prometheus.CounterVec
	questionsClosed prometheus.Counter
	scoreUpdates    prometheus.Counter

	// Session metrics
	activeSessions  prometheus.Gauge
	activePlayers   prometheus.Gauge
	dispatchLatency prometheus.Histogram
	dispatchDrops   prometheus.Counter

	// Relay metrics
	relaysConnected prometheus.Gauge
	relayReconnects prometheus.Counter
	publishFailures prometheus.Counter
	subscribeActive prometheus.Gauge

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "quizsync",
		subsystem:        "game",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.eventsPublished = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_published_total",
		Help: "Events successfully published to at least one relay.",
	})
	m.eventsReceived = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_received_total",
		Help: "Distinct events delivered to subscription handlers.",
	})
	m.eventsDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_duplicate_total",
		Help: "Events suppressed by the subscription dedup cache.",
	})
	m.eventsDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_dropped_total",
		Help: "Events dropped because their content was malformed.",
	})
	m.publishLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "publish_latency_ms",
		Help:    "Latency until the first relay acknowledged a publish.",
		Buckets: m.histogramBuckets,
	})

	m.answersAccepted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "answers_accepted_total",
		Help: "Answer submissions accepted by the scoring engine.",
	})
	m.answersRejected = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "answers_rejected_total",
		Help: "Answer submissions rejected, labeled by reason.",
	}, []string{"reason"})
	m.questionsClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "questions_closed_total",
		Help: "Questions closed across all sessions.",
	})
	m.scoreUpdates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "score_updates_total",
		Help: "Score update events published.",
	})

	m.activeSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_sessions",
		Help: "Sessions currently hosted by this process.",
	})
	m.activePlayers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_players",
		Help: "Players joined across all active sessions.",
	})
	m.dispatchLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "dispatch_latency_ms",
		Help:    "Time a command spent in a session dispatch queue.",
		Buckets: m.histogramBuckets,
	})
	m.dispatchDrops = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "dispatch_drops_total",
		Help: "Commands dropped because a session queue was full.",
	})

	m.relaysConnected = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "relays_connected",
		Help: "Relay connections currently established.",
	})
	m.relayReconnects = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "relay_reconnects_total",
		Help: "Relay reconnection attempts.",
	})
	m.publishFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "publish_failures_total",
		Help: "Publishes that failed on every configured relay.",
	})
	m.subscribeActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "subscriptions_active",
		Help: "Standing subscriptions currently open.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests served, labeled by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration, labeled by endpoint and method.",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method"})
}

// Handler returns an http.Handler serving the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// RecordEventPublished increments the published events counter.
func RecordEventPublished() {
	globalManager.eventsPublished.Inc()
}

// RecordEventReceived increments the received events counter.
func RecordEventReceived() {
	globalManager.eventsReceived.Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventDropped increments the dropped events counter.
func RecordEventDropped() {
	globalManager.eventsDropped.Inc()
}

// RecordPublishLatency records first-ack publish latency in milliseconds.
func RecordPublishLatency(ms float64) {
	globalManager.publishLatency.Observe(ms)
}

// RecordAnswerAccepted increments the accepted answers counter.
func RecordAnswerAccepted() {
	globalManager.answersAccepted.Inc()
}

// RecordAnswerRejected increments the rejected answers counter for a reason.
func RecordAnswerRejected(reason string) {
	globalManager.answersRejected.WithLabelValues(reason).Inc()
}

// RecordQuestionClosed increments the closed questions counter.
func RecordQuestionClosed() {
	globalManager.questionsClosed.Inc()
}

// RecordScoreUpdate increments the published score updates counter.
func RecordScoreUpdate() {
	globalManager.scoreUpdates.Inc()
}

// UpdateActiveSessions sets the active sessions gauge.
func UpdateActiveSessions(n int) {
	globalManager.activeSessions.Set(float64(n))
}

// UpdateActivePlayers sets the active players gauge.
func UpdateActivePlayers(n int) {
	globalManager.activePlayers.Set(float64(n))
}

// RecordDispatchLatency records queue-to-dispatch latency in milliseconds.
func RecordDispatchLatency(ms float64) {
	globalManager.dispatchLatency.Observe(ms)
}

// RecordDispatchDrop increments the dropped commands counter.
func RecordDispatchDrop() {
	globalManager.dispatchDrops.Inc()
}

// UpdateRelaysConnected sets the connected relays gauge.
func UpdateRelaysConnected(n int) {
	globalManager.relaysConnected.Set(float64(n))
}

// RecordRelayReconnect increments the relay reconnect counter.
func RecordRelayReconnect() {
	globalManager.relayReconnects.Inc()
}

// RecordPublishFailure increments the all-relays-failed publish counter.
func RecordPublishFailure() {
	globalManager.publishFailures.Inc()
}

// UpdateActiveSubscriptions sets the open subscriptions gauge.
func UpdateActiveSubscriptions(n int) {
	globalManager.subscribeActive.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	globalManager.httpDuration.WithLabelValues(endpoint, method).Observe(ms)
}
