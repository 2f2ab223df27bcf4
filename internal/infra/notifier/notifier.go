// Package notifier delivers digests to the outside world.
// It defines the Notifier interface so that the mail provider and the optional
// chat webhooks can be used interchangeably through dependency injection.
//
// The package includes a Resend email notifier, Slack and Discord webhook
// notifiers and a no-op notifier for disabled channels.
package notifier

import (
	"context"

	"feed-digest/internal/domain/entity"
)

// Notifier sends one digest to one destination.
// Implementations handle rate limiting, retries, and error logging internally.
type Notifier interface {
	// NotifyDigest delivers the digest. A nil error means the destination
	// accepted it; callers treat anything else as not delivered.
	//
	// Implementations should:
	//   - Apply rate limiting to prevent API abuse
	//   - Retry transient failures with exponential backoff
	//   - Log all attempts with the digest id for debugging
	//   - Respect context cancellation
	NotifyDigest(ctx context.Context, digest *entity.Digest) error
}
