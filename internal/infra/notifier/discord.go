package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/utils/text"
)

// DiscordConfig contains configuration for Discord webhook notifications.
type DiscordConfig struct {
	// Enabled indicates whether Discord notifications are enabled
	Enabled bool

	// WebhookURL is the Discord webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Discord API calls
	Timeout time.Duration
}

// DiscordNotifier sends digests to Discord via webhook.
type DiscordNotifier struct {
	config      DiscordConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	retry       retryPolicy
}

// NewDiscordNotifier creates a new DiscordNotifier with the specified configuration.
//
// The notifier is initialized with:
//   - HTTP client with configured timeout
//   - Rate limiter set to 0.5 requests/second with burst of 3
//     (Discord Webhook limit: 30 requests per minute = 0.5 req/s)
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter("discord", 0.5, 3),
		retry:       defaultRetryPolicy(),
	}
}

// DiscordWebhookPayload represents the JSON payload sent to Discord webhook.
type DiscordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds"`
}

// DiscordEmbed represents a Discord embed message.
type DiscordEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url,omitempty"`
	Color       int                `json:"color"`
	Footer      DiscordEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp,omitempty"`
}

// DiscordEmbedFooter represents the footer of a Discord embed.
type DiscordEmbedFooter struct {
	Text string `json:"text"`
}

const (
	// Discord limits
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	maxContentLength     = 2000
	maxDiscordEmbeds     = 10
	truncationSuffix     = "..."

	discordExcerptLength = 500

	// Discord blue color (#5865F2)
	discordBlueColor = 5793266
)

// buildEmbedPayload creates a Discord webhook payload for a digest.
//
// The payload includes:
//   - Content: digest headline plus counts of entries left out or skipped
//   - One embed per surfaced entry (at most 10): title, link, excerpt,
//     annotation, source footer and publication timestamp
func (d *DiscordNotifier) buildEmbedPayload(digest *entity.Digest) DiscordWebhookPayload {
	var embeds []DiscordEmbed
	skipped := 0
	for _, e := range digest.Entries {
		if e.Skipped {
			skipped++
			continue
		}
		if len(embeds) == maxDiscordEmbeds {
			continue
		}
		embeds = append(embeds, discordEmbed(e))
	}

	content := []string{"**" + digestSubject(digest, "") + "**"}
	if surfaced := digest.SurfacedCount(); surfaced > len(embeds) {
		content = append(content, fmt.Sprintf("%d more not shown", surfaced-len(embeds)))
	}
	if skipped > 0 {
		content = append(content, fmt.Sprintf("%d skipped", skipped))
	}

	return DiscordWebhookPayload{
		Content: text.Truncate(strings.Join(content, " · "), maxContentLength, truncationSuffix),
		Embeds:  embeds,
	}
}

func discordEmbed(e entity.DigestEntry) DiscordEmbed {
	view := buildEntryView(e, discordExcerptLength)

	description := view.Excerpt
	if view.Annotation != "" {
		if description != "" {
			description += "\n\n"
		}
		description += "> " + strings.ReplaceAll(view.Annotation, "\n", "\n> ")
	}

	embed := DiscordEmbed{
		Title:       text.Truncate(view.Title, maxTitleLength, truncationSuffix),
		Description: text.Truncate(description, maxDescriptionLength, truncationSuffix),
		URL:         view.Link,
		Color:       discordBlueColor,
		Footer:      DiscordEmbedFooter{Text: view.Source},
	}
	if !e.Item.PublishedAt.IsZero() {
		embed.Timestamp = e.Item.PublishedAt.UTC().Format(time.RFC3339)
	}
	return embed
}

// NotifyDigest sends the digest to Discord.
// This method implements the Notifier interface.
func (d *DiscordNotifier) NotifyDigest(ctx context.Context, digest *entity.Digest) error {
	if err := d.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	payload := d.buildEmbedPayload(digest)
	return sendWithRetry(ctx, "discord", digest, d.retry, func(ctx context.Context) error {
		return postJSON(ctx, d.httpClient, "Discord", d.config.WebhookURL, payload)
	})
}
