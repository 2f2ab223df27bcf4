// Package annotator generates optional reply suggestions for feed items.
// It includes adapters for Claude (Anthropic) and OpenAI with retry and circuit
// breaker protection, and a NoOp used when annotation is disabled.
package annotator

import (
	"context"
	"fmt"
	"log/slog"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/resilience/retry"
	"feed-digest/internal/utils/text"
)

// Annotator is satisfied by every provider in this package.
type Annotator interface {
	Annotate(ctx context.Context, item entity.FeedItem, body string) (*entity.Annotation, error)
}

// New selects the implementation for cfg.Provider once at startup.
func New(cfg Config) (Annotator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid annotator configuration: %w", err)
	}

	switch cfg.Provider {
	case ProviderClaude:
		return NewClaude(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return NewNoOp(), nil
	}
}

// completion is what a provider round trip returns before parsing.
type completion struct {
	text         string
	inputTokens  int64
	outputTokens int64
}

// finish parses a completion and records the provider metrics.
func finish(logger *slog.Logger, metrics MetricsRecorder, provider string, item entity.FeedItem, c completion) *entity.Annotation {
	metrics.RecordTokens(provider, c.inputTokens, c.outputTokens)

	ann, structured := parseAnnotation(c.text)
	if !structured {
		metrics.RecordFormatFallback(provider)
		logger.Warn("annotation was not valid JSON, keeping it as plain text",
			slog.String("provider", provider),
			slog.String("id", item.ID))
	}
	if ann != nil && ann.Text != "" {
		metrics.RecordTextLength(text.CountRunes(ann.Text))
	}
	return ann
}

// classify marks provider errors whose HTTP status is transient.
func classify(err error, status int) error {
	if status != 0 && retry.IsRetryableStatus(status) {
		return retry.Retryable(err)
	}
	return err
}
