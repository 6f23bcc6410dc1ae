package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stock_analyst"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Analysis metrics
	AnalysisRequestsTotal    *prometheus.CounterVec
	AnalysisDuration         *prometheus.HistogramVec
	AnalysisErrorsTotal      *prometheus.CounterVec
	RecommendationActions    *prometheus.CounterVec
	RecommendationConfidence *prometheus.HistogramVec
	ComparisonsTotal         *prometheus.CounterVec

	// AI usage metrics
	AITokensTotal  *prometheus.CounterVec
	AICostUSDTotal *prometheus.CounterVec

	// Snapshot and cache metrics
	SnapshotRequestsTotal *prometheus.CounterVec
	CacheOperationsTotal  *prometheus.CounterVec
	GatewayWaitDuration   *prometheus.HistogramVec

	// External API metrics
	ExternalAPIRequestsTotal *prometheus.CounterVec
	ExternalAPIErrorsTotal   *prometheus.CounterVec
	ExternalAPIDuration      *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPResponseSize     *prometheus.HistogramVec
	HTTPRateLimitedTotal *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// confidenceBuckets are histogram buckets for model confidence (0 to 1)
var confidenceBuckets = []float64{0, .1, .2, .3, .4, .5, .6, .7, .8, .9, 1}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// Analysis metrics
		AnalysisRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "requests_total",
				Help:      "Total number of analysis requests by cache outcome",
			},
			[]string{"market", "cache_status"},
		),
		AnalysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "duration_seconds",
				Help:      "Duration of analysis generation in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"market", "status"},
		),
		AnalysisErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analysis",
				Name:      "errors_total",
				Help:      "Total number of analysis errors",
			},
			[]string{"market", "error_type"},
		),
		RecommendationActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "recommendation",
				Name:      "actions_total",
				Help:      "Total number of generated recommendations by action",
			},
			[]string{"action"},
		),
		RecommendationConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "recommendation",
				Name:      "confidence",
				Help:      "Distribution of recommendation confidence scores",
				Buckets:   confidenceBuckets,
			},
			[]string{"action"},
		),
		ComparisonsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "comparison",
				Name:      "runs_total",
				Help:      "Total number of comparisons by narrative outcome",
			},
			[]string{"narrative"},
		),

		// AI usage metrics
		AITokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "tokens_total",
				Help:      "Total number of model tokens consumed",
			},
			[]string{"model", "kind"},
		),
		AICostUSDTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ai",
				Name:      "cost_usd_total",
				Help:      "Accumulated model cost in US dollars",
			},
			[]string{"model"},
		),

		// Snapshot and cache metrics
		SnapshotRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "snapshot",
				Name:      "requests_total",
				Help:      "Total number of snapshot requests by cache outcome",
			},
			[]string{"market", "cache_status"},
		),
		CacheOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "operations_total",
				Help:      "Total number of cache operations",
			},
			[]string{"prefix", "operation", "status"},
		),
		GatewayWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "slot_wait_seconds",
				Help:      "Time spent waiting for the upstream call slot",
				Buckets:   defaultBuckets,
			},
			[]string{"service"},
		),

		// External API metrics
		ExternalAPIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "requests_total",
				Help:      "Total number of external API requests",
			},
			[]string{"service", "operation"},
		),
		ExternalAPIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "errors_total",
				Help:      "Total number of external API errors",
			},
			[]string{"service", "operation", "error_type"},
		),
		ExternalAPIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "external_api",
				Name:      "duration_seconds",
				Help:      "Duration of external API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service", "operation"},
		),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),
		HTTPRateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
			[]string{"path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// SetMetrics replaces the global metrics instance (useful for testing)
func SetMetrics(m *Metrics) {
	globalMetrics = m
}

// RecordAnalysisRequest records an analysis request and whether it was served from cache
func (m *Metrics) RecordAnalysisRequest(market, cacheStatus string) {
	m.AnalysisRequestsTotal.WithLabelValues(market, cacheStatus).Inc()
}

// RecordAnalysisDuration records the duration of an analysis generation
func (m *Metrics) RecordAnalysisDuration(market, status string, duration time.Duration) {
	m.AnalysisDuration.WithLabelValues(market, status).Observe(duration.Seconds())
}

// RecordAnalysisError records an analysis error
func (m *Metrics) RecordAnalysisError(market, errorType string) {
	m.AnalysisErrorsTotal.WithLabelValues(market, errorType).Inc()
}

// RecordRecommendation records a generated recommendation
func (m *Metrics) RecordRecommendation(action string, confidence float64) {
	m.RecommendationActions.WithLabelValues(action).Inc()
	m.RecommendationConfidence.WithLabelValues(action).Observe(confidence)
}

// RecordComparison records a comparison run
func (m *Metrics) RecordComparison(narrative string) {
	m.ComparisonsTotal.WithLabelValues(narrative).Inc()
}

// RecordTokenUsage records model token consumption and cost
func (m *Metrics) RecordTokenUsage(model string, promptTokens, completionTokens int64, costUSD float64) {
	m.AITokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	m.AITokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	m.AICostUSDTotal.WithLabelValues(model).Add(costUSD)
}

// RecordSnapshotRequest records a snapshot request and its cache outcome
func (m *Metrics) RecordSnapshotRequest(market, cacheStatus string) {
	m.SnapshotRequestsTotal.WithLabelValues(market, cacheStatus).Inc()
}

// RecordCacheOperation records a cache operation outcome
func (m *Metrics) RecordCacheOperation(prefix, operation, status string) {
	m.CacheOperationsTotal.WithLabelValues(prefix, operation, status).Inc()
}

// RecordGatewayWait records time spent waiting for the upstream slot
func (m *Metrics) RecordGatewayWait(service string, duration time.Duration) {
	m.GatewayWaitDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordExternalAPIRequest records an external API request
func (m *Metrics) RecordExternalAPIRequest(service, operation string) {
	m.ExternalAPIRequestsTotal.WithLabelValues(service, operation).Inc()
}

// RecordExternalAPIError records an external API error
func (m *Metrics) RecordExternalAPIError(service, operation, errorType string) {
	m.ExternalAPIErrorsTotal.WithLabelValues(service, operation, errorType).Inc()
}

// RecordExternalAPIDuration records the duration of an external API call
func (m *Metrics) RecordExternalAPIDuration(service, operation string, duration time.Duration) {
	m.ExternalAPIDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// RecordRateLimited records a request rejected by the rate limiter
func (m *Metrics) RecordRateLimited(path string) {
	m.HTTPRateLimitedTotal.WithLabelValues(path).Inc()
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveAnalysis records the analysis duration and status
func (t *Timer) ObserveAnalysis(market, status string) {
	t.metrics.RecordAnalysisDuration(market, status, time.Since(t.start))
}

// ObserveExternalAPI records the external API duration
func (t *Timer) ObserveExternalAPI(service, operation string) {
	t.metrics.RecordExternalAPIDuration(service, operation, time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// ObserveGatewayWait records time spent waiting for the upstream slot
func (t *Timer) ObserveGatewayWait(service string) {
	t.metrics.RecordGatewayWait(service, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
