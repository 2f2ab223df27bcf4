package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrChannelDisabled indicates that Send() was called on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrEmptyDigest indicates the digest is nil or carries no entries.
	ErrEmptyDigest = errors.New("digest has no entries")

	// ErrNoChannelsEnabled indicates there was nowhere to deliver the digest.
	ErrNoChannelsEnabled = errors.New("no notification channels enabled")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and deliveries are being rejected to prevent continuous failures.
	// The circuit breaker will automatically close after the timeout period.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")

	// ErrChannelPanicked indicates the channel implementation panicked during Send.
	ErrChannelPanicked = errors.New("channel panicked")
)
