package notify

import "feed-digest/internal/infra/notifier"

// EmailChannel delivers digests by email through the Resend notifier.
type EmailChannel struct {
	notifierChannel
}

// NewEmailChannel creates the email channel. A disabled config yields a
// channel backed by a no-op notifier.
func NewEmailChannel(config notifier.EmailConfig) *EmailChannel {
	var n notifier.Notifier = notifier.NewNoOpNotifier()
	if config.Enabled {
		n = notifier.NewEmailNotifier(config)
	}
	return NewEmailChannelWithNotifier(n, config.Enabled)
}

// NewEmailChannelWithNotifier creates an email channel around any notifier.
func NewEmailChannelWithNotifier(n notifier.Notifier, enabled bool) *EmailChannel {
	return &EmailChannel{notifierChannel{name: "email", enabled: enabled, notifier: n}}
}
