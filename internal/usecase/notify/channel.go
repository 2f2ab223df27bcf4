// Package notify dispatches digests across every configured delivery channel.
// It adds per-channel circuit breakers, timeouts and metrics on top of the
// infrastructure notifiers, and reports a digest as delivered only when every
// required channel accepted it.
package notify

import (
	"context"

	"feed-digest/internal/domain/entity"
)

// Channel represents a digest delivery channel (email, Slack, Discord).
// Each channel implementation handles its own rate limiting, retries, and
// error handling.
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
//
// Context Handling:
//   - Implementations must respect context cancellation and timeout
type Channel interface {
	// Name returns the lowercase channel identifier used for logging,
	// metrics labels and the health endpoint.
	Name() string

	// IsEnabled returns true if this channel is enabled via configuration.
	// Disabled channels are skipped and do not count toward delivery.
	IsEnabled() bool

	// Send delivers the digest to this channel.
	//
	// Returns:
	//   - ErrChannelDisabled: if called on a disabled channel
	//   - ErrEmptyDigest: if the digest is nil or has no entries
	//   - Network/API errors: wrapped with context
	Send(ctx context.Context, digest *entity.Digest) error
}

// notifierChannel adapts an infrastructure notifier to Channel.
type notifierChannel struct {
	name     string
	enabled  bool
	notifier interface {
		NotifyDigest(ctx context.Context, digest *entity.Digest) error
	}
}

func (c *notifierChannel) Name() string {
	return c.name
}

func (c *notifierChannel) IsEnabled() bool {
	return c.enabled
}

func (c *notifierChannel) Send(ctx context.Context, digest *entity.Digest) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if digest == nil || len(digest.Entries) == 0 {
		return ErrEmptyDigest
	}
	return c.notifier.NotifyDigest(ctx, digest)
}
