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

// SlackConfig contains configuration for Slack webhook notifications.
type SlackConfig struct {
	// Enabled indicates whether Slack notifications are enabled
	Enabled bool

	// WebhookURL is the Slack Incoming Webhook URL (includes authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackNotifier sends digests to Slack via Incoming Webhook.
type SlackNotifier struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
	retry       retryPolicy
}

// NewSlackNotifier creates a new SlackNotifier with the specified configuration.
//
// The notifier is initialized with:
//   - HTTP client with configured timeout
//   - Rate limiter set to 1 request/second with burst of 1
//     (Slack Webhook limit: 1 message per second)
func NewSlackNotifier(config SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter("slack", 1.0, 1),
		retry:       defaultRetryPolicy(),
	}
}

// SlackWebhookPayload represents the JSON payload sent to Slack webhook using Block Kit.
type SlackWebhookPayload struct {
	Text   string       `json:"text"`   // Fallback text (required)
	Blocks []SlackBlock `json:"blocks"` // Rich formatting blocks
}

// SlackBlock represents a Slack Block Kit block.
type SlackBlock struct {
	Type     string            `json:"type"`               // "header", "section", "context", "divider"
	Text     *SlackTextObject  `json:"text,omitempty"`     // Text content (for header/section)
	Elements []SlackTextObject `json:"elements,omitempty"` // Elements (for context)
}

// SlackTextObject represents a text object in Slack Block Kit.
type SlackTextObject struct {
	Type string `json:"type"` // "mrkdwn" or "plain_text"
	Text string `json:"text"` // Actual text content
}

const (
	// Slack Block Kit limits
	maxSectionTextLength = 3000
	maxHeaderTextLength  = 150
	maxFallbackLength    = 150

	// A message holds at most 50 blocks; each entry takes two.
	maxSlackEntries = 20

	slackExcerptLength    = 300
	slackTruncationSuffix = "..."
)

// buildBlockKitPayload creates a Slack webhook payload for a digest.
//
// The payload includes:
//   - Text: fallback text ("N new items")
//   - Header Block: digest headline
//   - Per entry: a section with the linked title, excerpt and annotation, and a
//     context line with source and publication time
//   - A trailing context block listing how many entries were left out or skipped
func (s *SlackNotifier) buildBlockKitPayload(digest *entity.Digest) SlackWebhookPayload {
	headline := digestSubject(digest, "")

	blocks := []SlackBlock{{
		Type: "header",
		Text: &SlackTextObject{Type: "plain_text", Text: text.Truncate(headline, maxHeaderTextLength, slackTruncationSuffix)},
	}}

	shown, skipped := 0, 0
	for _, e := range digest.Entries {
		if e.Skipped {
			skipped++
			continue
		}
		if shown == maxSlackEntries {
			continue
		}
		shown++
		blocks = append(blocks, slackEntrySection(e), slackEntryContext(e))
	}

	var footer []string
	if surfaced := digest.SurfacedCount(); surfaced > shown {
		footer = append(footer, fmt.Sprintf("%d more not shown", surfaced-shown))
	}
	if skipped > 0 {
		footer = append(footer, fmt.Sprintf("%d skipped", skipped))
	}
	if len(footer) > 0 {
		blocks = append(blocks, SlackBlock{Type: "divider"}, SlackBlock{
			Type:     "context",
			Elements: []SlackTextObject{{Type: "mrkdwn", Text: strings.Join(footer, " • ")}},
		})
	}

	return SlackWebhookPayload{
		Text:   text.Truncate(headline, maxFallbackLength, slackTruncationSuffix),
		Blocks: blocks,
	}
}

func slackEntrySection(e entity.DigestEntry) SlackBlock {
	view := buildEntryView(e, slackExcerptLength)

	// Format: *<url|title>*\n\nexcerpt\n\n> annotation
	var b strings.Builder
	if view.Link != "" {
		fmt.Fprintf(&b, "*<%s|%s>*", view.Link, escapeSlack(view.Title))
	} else {
		fmt.Fprintf(&b, "*%s*", escapeSlack(view.Title))
	}
	if view.Excerpt != "" {
		b.WriteString("\n\n")
		b.WriteString(escapeSlack(view.Excerpt))
	}
	if view.Annotation != "" {
		b.WriteString("\n\n> ")
		b.WriteString(strings.ReplaceAll(escapeSlack(view.Annotation), "\n", "\n> "))
	}

	return SlackBlock{
		Type: "section",
		Text: &SlackTextObject{
			Type: "mrkdwn",
			Text: text.Truncate(b.String(), maxSectionTextLength, slackTruncationSuffix),
		},
	}
}

func slackEntryContext(e entity.DigestEntry) SlackBlock {
	contextText := e.Item.SourceName
	if !e.Item.PublishedAt.IsZero() {
		contextText = fmt.Sprintf("%s • %s", e.Item.SourceName, e.Item.PublishedAt.UTC().Format(time.RFC3339))
	}
	return SlackBlock{
		Type:     "context",
		Elements: []SlackTextObject{{Type: "mrkdwn", Text: contextText}},
	}
}

// escapeSlack escapes the three control characters of Slack mrkdwn.
func escapeSlack(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// NotifyDigest sends the digest to Slack.
// This method implements the Notifier interface.
func (s *SlackNotifier) NotifyDigest(ctx context.Context, digest *entity.Digest) error {
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	payload := s.buildBlockKitPayload(digest)
	return sendWithRetry(ctx, "slack", digest, s.retry, func(ctx context.Context) error {
		return postJSON(ctx, s.httpClient, "Slack", s.config.WebhookURL, payload)
	})
}
