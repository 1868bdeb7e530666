package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Protocol metrics
	MessagesDispatched *prometheus.CounterVec
	MessagesDropped    *prometheus.CounterVec
	ChunkedDeliveries  prometheus.Counter
	ChunksDelivered    prometheus.Counter
	AcksDelivered      prometheus.Counter

	// Loader metrics
	LoadsStarted  prometheus.Counter
	LoadRetries   prometheus.Counter
	LoadersActive prometheus.Gauge

	// Session metrics
	SessionsActive prometheus.Gauge
	WSConnections  prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector. Register with the default
// registerer exactly once per process.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a metrics collector bound to a custom
// registry. Useful in tests to avoid duplicate registration panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		MessagesDispatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_messages_dispatched_total",
				Help: "Protocol messages moved through the bridge",
			},
			[]string{"direction"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_messages_dropped_total",
				Help: "Protocol messages dropped without processing",
			},
			[]string{"reason"},
		),
		ChunkedDeliveries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_chunked_deliveries_total",
				Help: "Outbound payloads large enough to require chunking",
			},
		),
		ChunksDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_chunks_delivered_total",
				Help: "Individual chunks delivered to the frontend",
			},
		),
		AcksDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_acks_delivered_total",
				Help: "Embedder message acks delivered to the frontend",
			},
		),

		LoadsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_resource_loads_started_total",
				Help: "Network resource load jobs started",
			},
		),
		LoadRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_resource_load_retries_total",
				Help: "Resource load retries after resource exhaustion",
			},
		),
		LoadersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_resource_loaders_active",
				Help: "Resource load jobs currently in flight",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_sessions_active",
				Help: "Inspector sessions currently attached",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_ws_connections",
				Help: "Active WebSocket connections",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "bridge_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
