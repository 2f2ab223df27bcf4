package notify

import "feed-digest/internal/infra/notifier"

// DiscordChannel implements the Channel interface for Discord notifications.
// It wraps the DiscordNotifier from the infrastructure layer.
type DiscordChannel struct {
	notifierChannel
}

// NewDiscordChannel creates a new Discord channel with the specified configuration.
//
// If Discord notifications are disabled (config.Enabled = false), a NoOpNotifier
// is used instead so the Channel contract always holds.
func NewDiscordChannel(config notifier.DiscordConfig) *DiscordChannel {
	var n notifier.Notifier = notifier.NewNoOpNotifier()
	if config.Enabled {
		n = notifier.NewDiscordNotifier(config)
	}
	return &DiscordChannel{notifierChannel{name: "discord", enabled: config.Enabled, notifier: n}}
}
