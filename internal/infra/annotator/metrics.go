package annotator

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder records provider-level annotation metrics.
// Outcome counters (surfaced, suppressed, failed) live in the poll service;
// this interface covers what only the provider call can see.
//
// For testing with mocks:
//
//	type recordingMetrics struct{ fallbacks int }
//
//	func (m *recordingMetrics) RecordFormatFallback(string) { m.fallbacks++ }
type MetricsRecorder interface {
	// RecordRequest records one provider round trip and its status.
	RecordRequest(provider, status string, duration time.Duration)

	// RecordTokens records prompt and completion token usage.
	RecordTokens(provider string, input, output int64)

	// RecordTextLength records the rune length of a generated suggestion.
	RecordTextLength(length int)

	// RecordFormatFallback counts completions that ignored the JSON format.
	RecordFormatFallback(provider string)
}

// PrometheusMetrics implements MetricsRecorder using Prometheus metrics.
type PrometheusMetrics struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	tokens         *prometheus.CounterVec
	textLength     prometheus.Histogram
	fallbacks      *prometheus.CounterVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// register registers c, returning the already registered collector on a
// duplicate so tests and multiple providers can share the same series.
func register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// NewPrometheusMetrics returns the process-wide recorder, registering the
// collectors on first use.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			requests: register(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "annotator_requests_total",
				Help: "Total number of annotation provider requests",
			}, []string{"provider", "status"})),
			requestLatency: register(prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "annotator_request_duration_seconds",
				Help:    "Annotation provider round trip duration",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			}, []string{"provider"})),
			tokens: register(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "annotator_tokens_total",
				Help: "Tokens consumed by annotation requests",
			}, []string{"provider", "kind"})),
			textLength: register(prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "annotation_text_length_characters",
				Help:    "Distribution of suggestion lengths in characters (Unicode runes)",
				Buckets: []float64{50, 100, 200, 300, 500, 800, 1200, 2000},
			})),
			fallbacks: register(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "annotation_format_fallback_total",
				Help: "Completions that were not valid annotation JSON and were kept as plain text",
			}, []string{"provider"})),
		}
	})
	return prometheusMetricsInstance
}

// RecordRequest implements MetricsRecorder.RecordRequest
func (p *PrometheusMetrics) RecordRequest(provider, status string, duration time.Duration) {
	p.requests.WithLabelValues(provider, status).Inc()
	p.requestLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTokens implements MetricsRecorder.RecordTokens
func (p *PrometheusMetrics) RecordTokens(provider string, input, output int64) {
	p.tokens.WithLabelValues(provider, "input").Add(float64(input))
	p.tokens.WithLabelValues(provider, "output").Add(float64(output))
}

// RecordTextLength implements MetricsRecorder.RecordTextLength
func (p *PrometheusMetrics) RecordTextLength(length int) {
	p.textLength.Observe(float64(length))
}

// RecordFormatFallback implements MetricsRecorder.RecordFormatFallback
func (p *PrometheusMetrics) RecordFormatFallback(provider string) {
	p.fallbacks.WithLabelValues(provider).Inc()
}
