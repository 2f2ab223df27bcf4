package notifier

import (
	"context"

	"feed-digest/internal/domain/entity"
)

// NoOpNotifier is a no-operation implementation of the Notifier interface.
// It stands in for disabled channels so callers never hold a nil Notifier.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier instance.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyDigest does nothing and returns nil immediately.
func (n *NoOpNotifier) NotifyDigest(ctx context.Context, digest *entity.Digest) error {
	return nil
}
