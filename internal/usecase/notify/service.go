package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/observability/tracing"
	"feed-digest/internal/utils/redact"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Circuit breaker constants
const (
	circuitBreakerThreshold = 5                // Number of consecutive failures before opening
	circuitBreakerTimeout   = 5 * time.Minute  // Duration to keep circuit breaker open
	defaultChannelTimeout   = 60 * time.Second // Timeout for one channel delivery
)

// Service dispatches digests to multiple channels.
type Service interface {
	// Dispatch delivers the digest to every enabled channel concurrently and
	// waits for all of them. It returns nil when every required channel
	// accepted the digest and at least one channel succeeded; otherwise the
	// joined channel errors. Failures of best-effort channels are logged and
	// counted but do not fail the dispatch, so a webhook outage does not cause
	// the email digest to be sent again next cycle.
	Dispatch(ctx context.Context, digest *entity.Digest) error

	// GetChannelHealth returns the health status of all notification channels.
	//
	// This method provides visibility into circuit breaker states for monitoring
	// and health check endpoints. The returned data is safe for concurrent access.
	GetChannelHealth() []ChannelHealthStatus
}

// ChannelHealthStatus represents the health status of a notification channel.
type ChannelHealthStatus struct {
	Name               string     // Channel name (e.g., "email", "slack")
	Enabled            bool       // Whether the channel is enabled
	CircuitBreakerOpen bool       // Whether the circuit breaker is currently open
	DisabledUntil      *time.Time // Time until circuit breaker remains open (nil if closed)
}

// Option configures the service.
type Option func(*service)

// WithChannelTimeout bounds each channel delivery.
func WithChannelTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.channelTimeout = d
		}
	}
}

// WithBestEffort marks the named channels as best-effort: their failures are
// logged and recorded but do not decide whether the digest was delivered.
func WithBestEffort(names ...string) Option {
	return func(s *service) {
		for _, name := range names {
			s.bestEffort[name] = struct{}{}
		}
	}
}

// WithClock overrides the clock used by the circuit breakers.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// service is the concrete implementation of Service interface.
type service struct {
	channels       []Channel
	channelHealth  map[string]*channelHealth // Circuit breaker state per channel
	bestEffort     map[string]struct{}
	channelTimeout time.Duration
	now            func() time.Time
}

// channelHealth tracks circuit breaker state for a channel
type channelHealth struct {
	consecutiveFailures int        // Number of consecutive failures
	disabledUntil       time.Time  // Time until circuit breaker is open
	mu                  sync.Mutex // Protects this struct's fields
}

// NewService creates a new notification service with the given channels.
func NewService(channels []Channel, opts ...Option) Service {
	svc := &service{
		channels:       channels,
		channelHealth:  make(map[string]*channelHealth, len(channels)),
		bestEffort:     make(map[string]struct{}),
		channelTimeout: defaultChannelTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	enabled := 0
	for _, ch := range channels {
		svc.channelHealth[ch.Name()] = &channelHealth{}
		if ch.IsEnabled() {
			enabled++
		}
	}
	SetChannelsEnabled(float64(enabled))

	return svc
}

// Dispatch implements Service.Dispatch.
func (s *service) Dispatch(ctx context.Context, digest *entity.Digest) (err error) {
	if digest == nil || len(digest.Entries) == 0 {
		return ErrEmptyDigest
	}

	var enabled []Channel
	for _, ch := range s.channels {
		if ch.IsEnabled() {
			enabled = append(enabled, ch)
		}
	}
	if len(enabled) == 0 {
		return ErrNoChannelsEnabled
	}

	ctx, span := tracing.StartSpan(ctx, "notify.dispatch",
		attribute.String("digest.id", digest.ID),
		attribute.Int("digest.entries", len(digest.Entries)),
		attribute.Int("channels", len(enabled)))
	defer func() { tracing.EndSpan(span, err) }()

	logging.FromContext(ctx).Info("dispatching digest",
		slog.String("digest_id", digest.ID),
		slog.Int("entries", len(digest.Entries)),
		slog.Int("enabled_channels", len(enabled)))

	errs := make([]error, len(enabled))
	var g errgroup.Group
	for i, ch := range enabled {
		g.Go(func() error {
			errs[i] = s.deliver(ctx, ch, digest)
			return nil
		})
	}
	_ = g.Wait()

	return s.outcome(ctx, enabled, errs)
}

// outcome folds per-channel results into the dispatch result. Best-effort
// failures are dropped unless no channel succeeded at all.
func (s *service) outcome(ctx context.Context, enabled []Channel, errs []error) error {
	var required []error
	succeeded := 0
	for i, ch := range enabled {
		if errs[i] == nil {
			succeeded++
			continue
		}
		if _, ok := s.bestEffort[ch.Name()]; ok {
			logging.FromContext(ctx).Warn("best-effort channel failed, digest still counts as delivered",
				slog.String("channel", ch.Name()),
				slog.String("error", redact.Error(errs[i])))
			continue
		}
		required = append(required, errs[i])
	}
	if succeeded == 0 {
		return errors.Join(errs...)
	}
	return errors.Join(required...)
}

// deliver sends the digest to one channel, guarding it with the channel's
// circuit breaker, a timeout and panic recovery.
func (s *service) deliver(ctx context.Context, channel Channel, digest *entity.Digest) (err error) {
	logger := logging.FromContext(ctx).With(
		slog.String("channel", channel.Name()),
		slog.String("digest_id", digest.ID))

	IncrementActiveDeliveries()
	defer DecrementActiveDeliveries()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in notification channel",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			err = fmt.Errorf("%s: %w: %v", channel.Name(), ErrChannelPanicked, r)
			s.recordOutcome(logger, channel.Name(), err)
		}
	}()

	health := s.getChannelHealth(channel.Name())
	health.mu.Lock()
	disabledUntil := health.disabledUntil
	health.mu.Unlock()
	if s.now().Before(disabledUntil) {
		logger.Warn("channel temporarily disabled due to circuit breaker",
			slog.Time("disabled_until", disabledUntil))
		RecordDropped(channel.Name(), "circuit_open")
		return fmt.Errorf("%s: %w", channel.Name(), ErrCircuitBreakerOpen)
	}

	ctx, cancel := context.WithTimeout(ctx, s.channelTimeout)
	defer cancel()

	startTime := time.Now()
	RecordDispatch(channel.Name())

	sendErr := channel.Send(ctx, digest)
	duration := time.Since(startTime)

	s.recordOutcome(logger, channel.Name(), sendErr)

	if sendErr != nil {
		RecordFailure(channel.Name(), duration)
		logger.Warn("channel delivery failed",
			slog.Duration("send_duration", duration),
			slog.String("error", redact.Error(sendErr)))
		return fmt.Errorf("%s: %w", channel.Name(), sendErr)
	}

	RecordSuccess(channel.Name(), duration)
	logger.Info("channel delivery succeeded",
		slog.Duration("send_duration", duration))
	return nil
}

// recordOutcome updates the consecutive-failure breaker of a channel.
func (s *service) recordOutcome(logger *slog.Logger, name string, err error) {
	health := s.getChannelHealth(name)
	health.mu.Lock()
	defer health.mu.Unlock()

	if err == nil {
		health.consecutiveFailures = 0
		return
	}

	health.consecutiveFailures++
	if health.consecutiveFailures >= circuitBreakerThreshold {
		health.disabledUntil = s.now().Add(circuitBreakerTimeout)
		health.consecutiveFailures = 0
		logger.Error("circuit breaker opened for channel",
			slog.Time("disabled_until", health.disabledUntil))
		RecordCircuitBreakerOpen(name)
	}
}

// getChannelHealth returns circuit breaker state for a channel
func (s *service) getChannelHealth(channelName string) *channelHealth {
	return s.channelHealth[channelName]
}

// GetChannelHealth implements Service.GetChannelHealth.
func (s *service) GetChannelHealth() []ChannelHealthStatus {
	statuses := make([]ChannelHealthStatus, 0, len(s.channels))
	now := s.now()

	for _, ch := range s.channels {
		health := s.channelHealth[ch.Name()]

		health.mu.Lock()
		var disabledUntil *time.Time
		circuitBreakerOpen := false
		if now.Before(health.disabledUntil) {
			circuitBreakerOpen = true
			until := health.disabledUntil
			disabledUntil = &until
		}
		health.mu.Unlock()

		statuses = append(statuses, ChannelHealthStatus{
			Name:               ch.Name(),
			Enabled:            ch.IsEnabled(),
			CircuitBreakerOpen: circuitBreakerOpen,
			DisabledUntil:      disabledUntil,
		})
	}

	return statuses
}
