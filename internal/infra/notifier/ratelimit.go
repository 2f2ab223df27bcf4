package notifier

import (
	"context"
	"time"

	"feed-digest/internal/observability/metrics"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket in front of one outbound destination.
type RateLimiter struct {
	channel string
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter for channel allowing requestsPerSecond
// sustained with the given burst.
//
// Example:
//
//	limiter := NewRateLimiter("discord", 0.5, 3)  // 30 req/min, burst of 3
func NewRateLimiter(channel string, requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		channel: channel,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow blocks until a token is available or the context is done.
// Time spent waiting is exported per channel.
func (r *RateLimiter) Allow(ctx context.Context) error {
	start := time.Now()
	err := r.limiter.Wait(ctx)
	metrics.RecordRateLimitWait(r.channel, time.Since(start))
	return err
}

// Limit returns the sustained rate in requests per second.
func (r *RateLimiter) Limit() float64 {
	return float64(r.limiter.Limit())
}

// Burst returns the bucket size.
func (r *RateLimiter) Burst() int {
	return r.limiter.Burst()
}
