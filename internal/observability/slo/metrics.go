// Package slo tracks service level indicators for polling cycles over a
// rolling window of recent runs and exports them as Prometheus gauges.
package slo

import (
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets for the worker. Exposed as constants so alert rules and
// dashboards can reference the same numbers.
const (
	// CycleSuccessSLO is the target share of cycles that deliver (or have nothing to deliver).
	CycleSuccessSLO = 0.99

	// CycleLatencyP95SLO is the target 95th percentile cycle duration in seconds.
	CycleLatencyP95SLO = 60.0

	// CycleLatencyP99SLO is the target 99th percentile cycle duration in seconds.
	CycleLatencyP99SLO = 180.0

	// DefaultWindowSize is the number of recent cycles the indicators are computed over.
	// At the default five minute interval this is a little over eight hours.
	DefaultWindowSize = 100
)

// Window keeps the outcome of the most recent cycles in a ring buffer.
// It is safe for concurrent use.
type Window struct {
	mu        sync.Mutex
	size      int
	next      int
	filled    bool
	succeeded []bool
	durations []float64

	availability prometheus.Gauge
	errorRate    prometheus.Gauge
	latencyP95   prometheus.Gauge
	latencyP99   prometheus.Gauge
}

// NewWindow creates a window over the last size cycles with gauges
// registered on reg. A nil reg uses the Prometheus default registerer.
func NewWindow(size int, reg prometheus.Registerer) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Window{
		size:      size,
		succeeded: make([]bool, size),
		durations: make([]float64, size),

		availability: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slo_cycle_success_ratio",
			Help: "Share of recent polling cycles that succeeded (0-1), target: 0.99",
		}),
		errorRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slo_cycle_error_ratio",
			Help: "Share of recent polling cycles that failed (0-1)",
		}),
		latencyP95: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slo_cycle_latency_p95_seconds",
			Help: "p95 duration of recent polling cycles in seconds, target: 60",
		}),
		latencyP99: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slo_cycle_latency_p99_seconds",
			Help: "p99 duration of recent polling cycles in seconds, target: 180",
		}),
	}
}

// Record adds one cycle outcome and refreshes every gauge.
func (w *Window) Record(success bool, seconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.succeeded[w.next] = success
	w.durations[w.next] = seconds
	w.next = (w.next + 1) % w.size
	if w.next == 0 {
		w.filled = true
	}

	snap := w.snapshotLocked()
	w.availability.Set(snap.Availability)
	w.errorRate.Set(1 - snap.Availability)
	w.latencyP95.Set(snap.LatencyP95)
	w.latencyP99.Set(snap.LatencyP99)
}

// Snapshot is the computed indicator set for the current window.
type Snapshot struct {
	Cycles       int
	Availability float64
	LatencyP95   float64
	LatencyP99   float64
}

// Snapshot returns the current indicators. An empty window reports full
// availability and zero latency.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Window) snapshotLocked() Snapshot {
	n := w.next
	if w.filled {
		n = w.size
	}
	if n == 0 {
		return Snapshot{Availability: 1}
	}

	ok := 0
	for _, s := range w.succeeded[:n] {
		if s {
			ok++
		}
	}
	sorted := slices.Clone(w.durations[:n])
	slices.Sort(sorted)

	return Snapshot{
		Cycles:       n,
		Availability: float64(ok) / float64(n),
		LatencyP95:   percentile(sorted, 0.95),
		LatencyP99:   percentile(sorted, 0.99),
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	rank := int(float64(len(sorted))*p+0.999999) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}
