package notify

import "feed-digest/internal/infra/notifier"

// SlackChannel implements the Channel interface for Slack notifications.
// It wraps the SlackNotifier from the infrastructure layer.
type SlackChannel struct {
	notifierChannel
}

// NewSlackChannel creates a new Slack channel with the specified configuration.
//
// If Slack notifications are disabled (config.Enabled = false), a NoOpNotifier
// is used instead so the Channel contract always holds.
func NewSlackChannel(config notifier.SlackConfig) *SlackChannel {
	var n notifier.Notifier = notifier.NewNoOpNotifier()
	if config.Enabled {
		n = notifier.NewSlackNotifier(config)
	}
	return &SlackChannel{notifierChannel{name: "slack", enabled: config.Enabled, notifier: n}}
}
