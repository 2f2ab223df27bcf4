package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"feed-digest/internal/pkg/config"
	"feed-digest/internal/usecase/poll"
	"feed-digest/internal/utils/redact"

	"github.com/robfig/cron/v3"
)

// CycleRunner runs one polling cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*poll.CycleStats, error)
}

// ErrCyclePanicked is returned by RunOnce when the cycle panicked.
var ErrCyclePanicked = errors.New("poll cycle panicked")

// SchedulerConfig controls how often cycles run and how long each may take.
type SchedulerConfig struct {
	// Interval between cycle starts. Cycles are not skipped when the previous
	// one is still running.
	Interval time.Duration

	// CycleTimeout bounds a single cycle.
	CycleTimeout time.Duration
}

// Scheduler fires polling cycles on a fixed period using cron.
type Scheduler struct {
	cron    *cron.Cron
	runner  CycleRunner
	cfg     SchedulerConfig
	metrics *WorkerMetrics
	health  *HealthServer
	logger  *slog.Logger

	// initial tracks the cycle Start runs outside cron.
	initial sync.WaitGroup
}

// NewScheduler creates a scheduler. metrics and health may be nil.
func NewScheduler(runner CycleRunner, cfg SchedulerConfig, metrics *WorkerMetrics, health *HealthServer, logger *slog.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("worker: cycle runner is required")
	}
	if cfg.Interval < time.Minute {
		return nil, fmt.Errorf("worker: interval must be at least one minute, got %s", cfg.Interval)
	}
	if cfg.CycleTimeout <= 0 {
		return nil, fmt.Errorf("worker: cycle timeout must be positive, got %s", cfg.CycleTimeout)
	}
	if err := config.ValidateSchedule(everySpec(cfg.Interval)); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		cfg:     cfg,
		metrics: metrics,
		health:  health,
		logger:  logger,
	}, nil
}

// Spec returns the cron expression the scheduler registers.
func (s *Scheduler) Spec() string {
	return everySpec(s.cfg.Interval)
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}

// Start runs one cycle immediately, then one every Interval. Cycles derive
// their context from ctx, so canceling ctx aborts in-flight cycles.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.Spec(), func() {
		_ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		_ = s.RunOnce(ctx)
	}()
	s.cron.Start()

	if s.health != nil {
		s.health.SetReady(true)
	}
	s.logger.Info("scheduler started",
		slog.String("schedule", s.Spec()),
		slog.Duration("cycle_timeout", s.cfg.CycleTimeout))
	return nil
}

// Stop prevents further cycles from being scheduled and marks the worker not
// ready. The returned context is done once running cron jobs and the initial
// cycle have returned.
func (s *Scheduler) Stop() context.Context {
	if s.health != nil {
		s.health.SetReady(false)
	}
	s.logger.Info("scheduler stopping")

	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		cancel()
	}()
	return ctx
}

// RunOnce runs a single cycle with the configured timeout. A panic inside the
// cycle is recovered and reported as ErrCyclePanicked.
func (s *Scheduler) RunOnce(parent context.Context) (err error) {
	start := time.Now()
	status := StatusSuccess

	if s.metrics != nil {
		s.metrics.CycleStarted()
	}

	defer func() {
		if r := recover(); r != nil {
			status = StatusPanic
			err = fmt.Errorf("%w: %v", ErrCyclePanicked, r)
			s.logger.Error("poll cycle panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
		if s.metrics != nil {
			s.metrics.CycleFinished()
			s.metrics.RecordCycle(status, time.Since(start).Seconds())
		}
		if s.health != nil {
			s.health.RecordCycle(time.Now(), err)
		}
	}()

	ctx, cancel := context.WithTimeout(parent, s.cfg.CycleTimeout)
	defer cancel()

	stats, err := s.runner.RunCycle(ctx)
	if err != nil {
		status = StatusFailure
		s.logger.Error("poll cycle failed", slog.String("error", redact.Error(err)))
		return err
	}

	if stats != nil {
		s.logger.Debug("poll cycle finished",
			slog.String("cycle_id", stats.CycleID),
			slog.Int("notified", stats.Notified),
			slog.Duration("duration", stats.Duration))
	}
	return nil
}
