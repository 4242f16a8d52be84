package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinypic_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinypic_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Search session metrics
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinypic_sessions_total",
			Help: "Total number of size-fit sessions",
		},
		[]string{"outcome"}, // fit, best_effort, error, cancelled
	)

	SessionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinypic_session_duration_seconds",
			Help:    "Size-fit session duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	EncodeCalls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tinypic_session_encode_calls",
			Help:    "Encoder probes per session",
			Buckets: []float64{5, 10, 20, 40, 60, 80, 100, 120},
		},
	)

	SearchRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tinypic_session_rounds",
			Help:    "Dimension refinement rounds per session",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 10, 12},
		},
	)

	FallbackActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinypic_fallback_activations_total",
			Help: "Sessions that returned a best-effort over-budget result",
		},
	)

	OutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinypic_output_bytes",
			Help:    "Session input/output bytes",
			Buckets: []float64{1024, 10240, 102400, 512000, 1048576, 5242880, 10485760},
		},
		[]string{"direction"}, // input, output
	)

	// Queue/Pool metrics
	WorkerPoolQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tinypic_worker_pool_queue_size",
			Help: "Current number of jobs in worker pool queue",
		},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tinypic_worker_pool_active_jobs",
			Help: "Current number of active size-fit jobs",
		},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinypic_rate_limit_exceeded_total",
			Help: "Total number of requests rejected due to rate limiting",
		},
		[]string{"ip_prefix"}, // First octet for privacy
	)

	// Concurrency metrics
	ConcurrentRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tinypic_concurrent_requests",
			Help: "Current number of concurrent requests being processed",
		},
	)

	ConcurrencyLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tinypic_concurrency_limit_exceeded_total",
			Help: "Total number of requests rejected due to concurrency limit",
		},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordSession records one completed size-fit session.
func RecordSession(outcome, format string, duration float64, encodeCalls, rounds, inputBytes, outputBytes int) {
	SessionsTotal.WithLabelValues(outcome).Inc()
	SessionDuration.WithLabelValues(format).Observe(duration)
	EncodeCalls.Observe(float64(encodeCalls))
	SearchRounds.Observe(float64(rounds))
	OutputBytes.WithLabelValues("input").Observe(float64(inputBytes))
	OutputBytes.WithLabelValues("output").Observe(float64(outputBytes))
	if outcome == "best_effort" {
		FallbackActivations.Inc()
	}
}

// UpdateWorkerPoolMetrics updates worker pool gauges.
func UpdateWorkerPoolMetrics(queueSize, activeJobs int) {
	WorkerPoolQueueSize.Set(float64(queueSize))
	WorkerPoolActiveJobs.Set(float64(activeJobs))
}

// RecordRateLimitExceeded records a rate limit rejection.
func RecordRateLimitExceeded(ipPrefix string) {
	RateLimitExceeded.WithLabelValues(ipPrefix).Inc()
}

// UpdateConcurrency updates the concurrent request gauge.
func UpdateConcurrency(count int) {
	ConcurrentRequests.Set(float64(count))
}

// RecordConcurrencyLimitExceeded records a concurrency limit rejection.
func RecordConcurrencyLimitExceeded() {
	ConcurrencyLimitExceeded.Inc()
}
