package annotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/resilience/circuitbreaker"
	"feed-digest/internal/resilience/retry"
)

const providerOpenAI = "openai"

// OpenAI annotates items with OpenAI's chat completion API.
// It includes circuit breaker and retry logic for improved reliability.
type OpenAI struct {
	client          *openai.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          Config
	metricsRecorder MetricsRecorder
}

// NewOpenAI creates an OpenAI annotator.
func NewOpenAI(config Config) *OpenAI {
	if config.Model == "" {
		config.Model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = config.BaseURL
	}

	slog.Info("initialized OpenAI annotator",
		slog.String("model", config.Model),
		slog.Int("max_tokens", config.MaxTokens))

	return &OpenAI{
		client:          openai.NewClientWithConfig(clientCfg),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:     retry.AIAPIConfig(),
		config:          config,
		metricsRecorder: NewPrometheusMetrics(),
	}
}

// Annotate asks the model whether the item is worth surfacing and for a
// reply suggestion.
func (o *OpenAI) Annotate(ctx context.Context, item entity.FeedItem, body string) (*entity.Annotation, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	var result completion

	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		res, err := circuitbreaker.Do(o.circuitBreaker, func() (completion, error) {
			return o.doAnnotate(ctx, item, body)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrOpenState) {
				logging.FromContext(ctx).Warn("openai api circuit breaker open, request rejected",
					slog.String("service", "openai-api"),
					slog.String("state", o.circuitBreaker.State().String()))
				return fmt.Errorf("openai api unavailable: %w", err)
			}
			return err
		}
		result = res
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai annotate failed: %w", retryErr)
	}

	return finish(logging.FromContext(ctx), o.metricsRecorder, providerOpenAI, item, result), nil
}

// doAnnotate performs one API call without retry or circuit breaker.
func (o *OpenAI) doAnnotate(ctx context.Context, item entity.FeedItem, body string) (completion, error) {
	logger := logging.FromContext(ctx).With(
		slog.String("provider", providerOpenAI),
		slog.String("id", item.ID))

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(o.config.Prompt)},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(item, body, o.config.MaxInputChars)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	duration := time.Since(start)

	if err != nil {
		status := openAIStatus(err)
		o.metricsRecorder.RecordRequest(providerOpenAI, "error", duration)
		logger.Warn("openai request failed",
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return completion{}, classify(fmt.Errorf("openai api error: %w", err), status)
	}
	o.metricsRecorder.RecordRequest(providerOpenAI, "success", duration)

	// Validate response structure (safety check to prevent panic on array access)
	if len(resp.Choices) == 0 {
		return completion{}, errors.New("openai api returned no choices")
	}

	logger.Debug("openai annotation received",
		slog.Duration("duration", duration),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))

	return completion{
		text:         resp.Choices[0].Message.Content,
		inputTokens:  int64(resp.Usage.PromptTokens),
		outputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

// openAIStatus extracts the HTTP status from go-openai errors, or 0.
func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
