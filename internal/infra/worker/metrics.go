package worker

import (
	"feed-digest/internal/observability/slo"
	"feed-digest/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPanic   = "panic"
)

// WorkerMetrics provides Prometheus metrics for the worker component.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// scheduler metrics for polling cycles.
//
// Worker-specific metrics:
//   - worker_cycle_runs_total: Total cycle runs by status (success/failure/panic)
//   - worker_cycle_duration_seconds: Duration histogram of cycle execution
//   - worker_cycle_last_success_timestamp: Unix timestamp of last successful cycle
//   - worker_cycles_in_flight: Cycles currently running (above 1 means overlap)
//
// Example usage:
//
//	metrics := NewWorkerMetrics(prometheus.DefaultRegisterer)
//	metrics.RecordLoadTimestamp()
//
//	start := time.Now()
//	_, err := svc.RunCycle(ctx)
//	metrics.RecordCycle(statusOf(err), time.Since(start).Seconds())
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CycleRunsTotal counts polling cycles.
	// Labels: status (success, failure, panic)
	CycleRunsTotal *prometheus.CounterVec

	// CycleDurationSeconds measures cycle duration.
	// Buckets: 0.5s to roughly 8.5 minutes
	CycleDurationSeconds prometheus.Histogram

	// CycleLastSuccessTimestamp records when the last cycle succeeded.
	CycleLastSuccessTimestamp prometheus.Gauge

	// CyclesInFlight is the number of cycles running right now.
	CyclesInFlight prometheus.Gauge

	// SLO tracks success ratio and latency percentiles over recent cycles.
	SLO *slo.Window
}

// NewWorkerMetrics creates worker metrics registered with reg.
// A nil reg uses the Prometheus default registerer.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker", reg),

		CycleRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cycle_runs_total",
			Help: "Total number of polling cycles by status",
		}, []string{"status"}),

		CycleDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cycle_duration_seconds",
			Help:    "Duration of polling cycles in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 11),
		}),

		CycleLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful polling cycle",
		}),

		CyclesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cycles_in_flight",
			Help: "Number of polling cycles currently running",
		}),

		SLO: slo.NewWindow(slo.DefaultWindowSize, reg),
	}
}

// RecordCycle records a finished cycle. A successful cycle also updates the
// last-success timestamp.
func (m *WorkerMetrics) RecordCycle(status string, seconds float64) {
	m.CycleRunsTotal.WithLabelValues(status).Inc()
	m.CycleDurationSeconds.Observe(seconds)
	if status == StatusSuccess {
		m.CycleLastSuccessTimestamp.SetToCurrentTime()
	}
	m.SLO.Record(status == StatusSuccess, seconds)
}

// CycleStarted increments the in-flight gauge.
func (m *WorkerMetrics) CycleStarted() {
	m.CyclesInFlight.Inc()
}

// CycleFinished decrements the in-flight gauge.
func (m *WorkerMetrics) CycleFinished() {
	m.CyclesInFlight.Dec()
}
