package annotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/resilience/circuitbreaker"
	"feed-digest/internal/resilience/retry"
)

const providerClaude = "claude"

// Claude annotates items with Anthropic's Claude API.
// It includes circuit breaker and retry logic for improved reliability.
type Claude struct {
	client          anthropic.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          Config
	metricsRecorder MetricsRecorder
}

// NewClaude creates a Claude annotator. The SDK's own retries are disabled
// so retry.WithBackoff is the only retry layer.
func NewClaude(config Config) *Claude {
	if config.Model == "" {
		config.Model = DefaultClaudeModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	slog.Info("initialized Claude annotator",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &Claude{
		client:          anthropic.NewClient(opts...),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:     retry.AIAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusMetrics(),
	}
}

// Annotate asks Claude whether the item is worth surfacing and for a reply
// suggestion.
func (c *Claude) Annotate(ctx context.Context, item entity.FeedItem, body string) (*entity.Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result completion

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		res, err := circuitbreaker.Do(c.circuitBreaker, func() (completion, error) {
			return c.doAnnotate(ctx, item, body)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrOpenState) {
				logging.FromContext(ctx).Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "claude-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: %w", err)
			}
			return err
		}
		result = res
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("claude annotate failed: %w", retryErr)
	}

	return finish(logging.FromContext(ctx), c.metricsRecorder, providerClaude, item, result), nil
}

// doAnnotate performs one API call without retry or circuit breaker.
func (c *Claude) doAnnotate(ctx context.Context, item entity.FeedItem, body string) (completion, error) {
	requestID := uuid.NewString()
	logger := logging.FromContext(ctx).With(
		slog.String("request_id", requestID),
		slog.String("provider", providerClaude),
		slog.String("id", item.ID))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt(c.config.Prompt)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(userPrompt(item, body, c.config.MaxInputChars)),
			),
		},
	})
	duration := time.Since(start)

	if err != nil {
		var apiErr *anthropic.Error
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		c.metricsRecorder.RecordRequest(providerClaude, "error", duration)
		logger.Warn("claude request failed",
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return completion{}, classify(fmt.Errorf("claude api error: %w", err), status)
	}
	c.metricsRecorder.RecordRequest(providerClaude, "success", duration)

	var parts []string
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	if len(parts) == 0 {
		return completion{}, errors.New("claude api returned no text content")
	}

	logger.Debug("claude annotation received",
		slog.Duration("duration", duration),
		slog.Int64("input_tokens", message.Usage.InputTokens),
		slog.Int64("output_tokens", message.Usage.OutputTokens))

	return completion{
		text:         strings.Join(parts, "\n"),
		inputTokens:  message.Usage.InputTokens,
		outputTokens: message.Usage.OutputTokens,
	}, nil
}
