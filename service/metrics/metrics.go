package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal        *prometheus.CounterVec
	solanaRPCCallDuration      *prometheus.HistogramVec
	solanaRPCRateLimitWait     *prometheus.HistogramVec
	solanaRPCSignaturesPerCall *prometheus.HistogramVec

	// Classification and aggregation Metrics
	activitiesClassifiedTotal *prometheus.CounterVec
	aggregationsTotal         *prometheus.CounterVec
	aggregationDuration       *prometheus.HistogramVec
	metadataFetchesTotal      *prometheus.CounterVec

	// Workflow Metrics
	refreshWorkflowDuration        *prometheus.HistogramVec
	refreshWorkflowExecutionsTotal *prometheus.CounterVec
	refreshActivityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections prometheus.Gauge
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_rate_limit_wait_seconds",
				Help:    "Time spent waiting on the client-side RPC rate limiter",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"endpoint"},
		),
		solanaRPCSignaturesPerCall: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_call",
				Help:    "Number of signatures fetched per GetSignaturesForAddress call",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50},
			},
			[]string{"endpoint"},
		),

		activitiesClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_activities_classified_total",
				Help: "Total number of transactions classified, by activity kind",
			},
			[]string{"kind"},
		),
		aggregationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_aggregations_total",
				Help: "Total number of aggregator calls by operation and result source (chain, empty, default)",
			},
			[]string{"operation", "source"},
		),
		aggregationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketplace_aggregation_duration_seconds",
				Help:    "Duration of aggregator calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		metadataFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketplace_metadata_fetches_total",
				Help: "Total number of NFT metadata resolutions by outcome",
			},
			[]string{"status"},
		),

		refreshWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refresh_workflow_duration_seconds",
				Help:    "Duration of market refresh workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		refreshWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refresh_workflow_executions_total",
				Help: "Total number of market refresh workflow executions",
			},
			[]string{"status"},
		),
		refreshActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refresh_activity_duration_seconds",
				Help:    "Duration of market refresh activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"event_type"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitWait records time spent blocked on the RPC rate limiter.
func (m *Metrics) RecordRateLimitWait(endpoint string, seconds float64) {
	m.solanaRPCRateLimitWait.WithLabelValues(endpoint).Observe(seconds)
}

// RecordRPCSignaturesPerCall records the number of signatures fetched.
func (m *Metrics) RecordRPCSignaturesPerCall(endpoint string, count float64) {
	m.solanaRPCSignaturesPerCall.WithLabelValues(endpoint).Observe(count)
}

// Classification and aggregation metric helpers

// RecordClassification records one classified transaction.
func (m *Metrics) RecordClassification(kind string) {
	m.activitiesClassifiedTotal.WithLabelValues(kind).Inc()
}

// RecordAggregation records an aggregator call and where its result came from.
func (m *Metrics) RecordAggregation(operation, source string, duration float64) {
	m.aggregationsTotal.WithLabelValues(operation, source).Inc()
	m.aggregationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordMetadataFetch records a metadata resolution outcome ("success", "fallback").
func (m *Metrics) RecordMetadataFetch(status string) {
	m.metadataFetchesTotal.WithLabelValues(status).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	m.refreshWorkflowDuration.WithLabelValues(status).Observe(duration)
	m.refreshWorkflowExecutionsTotal.WithLabelValues(status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64) {
	m.refreshActivityDuration.WithLabelValues(activity).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(delta float64) {
	m.sseActiveConnections.Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(eventType string) {
	m.sseEventsSent.WithLabelValues(eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
