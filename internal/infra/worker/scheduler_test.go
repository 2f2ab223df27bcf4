package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"feed-digest/internal/usecase/poll"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	calls atomic.Int32
	run   func(ctx context.Context) (*poll.CycleStats, error)
}

func (r *stubRunner) RunCycle(ctx context.Context) (*poll.CycleStats, error) {
	r.calls.Add(1)
	if r.run != nil {
		return r.run(ctx)
	}
	return &poll.CycleStats{CycleID: "c1"}, nil
}

func newTestScheduler(t *testing.T, runner CycleRunner) (*Scheduler, *WorkerMetrics, *HealthServer) {
	t.Helper()
	metrics := NewWorkerMetrics(prometheus.NewRegistry())
	health := NewHealthServer(":0", discardLogger())
	s, err := NewScheduler(runner, SchedulerConfig{Interval: time.Minute, CycleTimeout: time.Second}, metrics, health, discardLogger())
	require.NoError(t, err)
	return s, metrics, health
}

func TestNewScheduler_Validation(t *testing.T) {
	runner := &stubRunner{}

	_, err := NewScheduler(nil, SchedulerConfig{Interval: time.Minute, CycleTimeout: time.Second}, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewScheduler(runner, SchedulerConfig{Interval: 30 * time.Second, CycleTimeout: time.Second}, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewScheduler(runner, SchedulerConfig{Interval: time.Minute}, nil, nil, nil)
	assert.Error(t, err)

	s, err := NewScheduler(runner, SchedulerConfig{Interval: 5 * time.Minute, CycleTimeout: time.Minute}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "@every 5m0s", s.Spec())
}

func TestScheduler_RunOnce_Success(t *testing.T) {
	runner := &stubRunner{}
	s, metrics, health := newTestScheduler(t, runner)

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CyclesInFlight))

	last := health.lastCycleStatus()
	require.NotNil(t, last)
	assert.True(t, last.OK)
}

func TestScheduler_RunOnce_Failure(t *testing.T) {
	runner := &stubRunner{run: func(context.Context) (*poll.CycleStats, error) {
		return &poll.CycleStats{}, poll.ErrDispatchFailed
	}}
	s, metrics, health := newTestScheduler(t, runner)

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, poll.ErrDispatchFailed)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues(StatusFailure)))

	last := health.lastCycleStatus()
	require.NotNil(t, last)
	assert.False(t, last.OK)
	assert.NotEmpty(t, last.Error)
}

func TestScheduler_RunOnce_RecoversPanic(t *testing.T) {
	runner := &stubRunner{run: func(context.Context) (*poll.CycleStats, error) {
		panic("boom")
	}}
	s, metrics, _ := newTestScheduler(t, runner)

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrCyclePanicked)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CycleRunsTotal.WithLabelValues(StatusPanic)))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.CyclesInFlight))
}

func TestScheduler_RunOnce_AppliesTimeout(t *testing.T) {
	runner := &stubRunner{run: func(ctx context.Context) (*poll.CycleStats, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return nil, errors.New("no deadline")
		}
		if time.Until(deadline) > time.Second {
			return nil, errors.New("deadline too far")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	metrics := NewWorkerMetrics(prometheus.NewRegistry())
	s, err := NewScheduler(runner, SchedulerConfig{Interval: time.Minute, CycleTimeout: 20 * time.Millisecond}, metrics, nil, discardLogger())
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_StartRunsImmediately(t *testing.T) {
	runner := &stubRunner{}
	s, _, health := newTestScheduler(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	assert.True(t, health.IsReady())

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	<-s.Stop().Done()
	assert.False(t, health.IsReady())
}

func TestScheduler_StopWaitsForInitialCycle(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	runner := &stubRunner{run: func(ctx context.Context) (*poll.CycleStats, error) {
		close(started)
		<-release
		return &poll.CycleStats{CycleID: "first"}, nil
	}}
	s, _, _ := newTestScheduler(t, runner)

	require.NoError(t, s.Start(context.Background()))
	<-started

	stopped := s.Stop()
	select {
	case <-stopped.Done():
		t.Fatal("Stop finished while the initial cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not finish after the initial cycle returned")
	}
}
