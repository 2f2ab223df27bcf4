// Package metrics provides centralized Prometheus metrics for the worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operational HTTP metrics cover the worker's own /metrics and /health endpoints.
var (
	// HTTPRequestsTotal counts requests to the operational endpoints
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to operational endpoints",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures operational request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Feed metrics track source fetching
var (
	// FeedItemsFetchedTotal counts items read from each source
	FeedItemsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_fetched_total",
			Help: "Total number of items read from feed sources",
		},
		[]string{"source"},
	)

	// FeedFetchDuration measures time to fetch and parse one source
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Time taken to fetch and parse a feed source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source"},
	)

	// FeedFetchErrors counts failed source fetches
	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of failed feed fetches",
		},
		[]string{"source", "error_type"},
	)
)

// Item and tracker metrics
var (
	// ItemsRejectedTotal counts items without an id or publish time
	ItemsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_rejected_total",
			Help: "Total number of malformed feed items rejected by the tracker",
		},
		[]string{"reason"},
	)

	// ItemsNewTotal counts fresh unseen items selected for a digest
	ItemsNewTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_items_new_total",
			Help: "Total number of fresh, previously unseen items",
		},
	)

	// ItemsNotifiedTotal counts items delivered in a digest
	ItemsNotifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_notified_total",
			Help: "Total number of items delivered in digests",
		},
		[]string{"presentation"}, // surfaced, skipped
	)

	// TrackerSize is the number of seen records currently held
	TrackerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dedup_tracker_size",
			Help: "Number of seen-item records held in memory",
		},
	)

	// TrackerEvictionsTotal counts records evicted after the retention horizon
	TrackerEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dedup_tracker_evictions_total",
			Help: "Total number of seen-item records evicted",
		},
	)
)

// Enrichment metrics
var (
	// ContentFetchAttemptsTotal counts content fetch attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	// ContentFetchDuration measures time to fetch article content
	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// ContentFetchSize measures fetched content size in bytes
	ContentFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_size_bytes",
			Help:    "Fetched article content size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 2, 18),
		},
	)

	// AnnotationsTotal counts annotation outcomes
	AnnotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "annotations_total",
			Help: "Total number of annotation attempts by outcome",
		},
		[]string{"outcome"}, // surfaced, suppressed, failed
	)

	// AnnotationDuration measures time spent generating one annotation
	AnnotationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "annotation_duration_seconds",
			Help:    "Time taken to generate an annotation",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	// CircuitBreakerState reports breaker state: 0 closed, 1 half-open, 2 open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// RateLimitWaitSeconds measures time outbound notifiers waited for a token
	RateLimitWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notifier_rate_limit_wait_seconds",
			Help:    "Time spent waiting for the outbound rate limiter in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"channel"},
	)
)

// RecordHTTPRequest records a request to an operational endpoint.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
