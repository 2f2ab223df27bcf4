package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/utils/redact"
)

// Common webhook error types used by Discord and Slack notifiers

// RateLimitError represents a 429 rate limit error from a webhook service.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string // Optional custom message
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// ClientError represents a 4xx client error from a webhook service.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// ServerError represents a 5xx server error from a webhook service.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// is429Error checks if the error is a rate limit error and extracts retry_after.
func is429Error(err error) (*RateLimitError, bool) {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr, true
	}
	return nil, false
}

// isRetryableError checks if the error is worth retrying (5xx server errors, network errors).
// Client errors (4xx) are not retryable except for rate limits (429).
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return false
	}

	// Rate limit errors are handled separately
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return false
	}

	// Network errors are retryable
	return true
}

// webhookErrorResponse covers the retry hint both Slack and Discord may send.
type webhookErrorResponse struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"` // In seconds
}

// extractRetryAfter extracts the retry_after duration from a 429 response.
// It tries the JSON body first, then the Retry-After header, then 5s.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var hint webhookErrorResponse
	if err := json.Unmarshal(body, &hint); err == nil && hint.RetryAfter > 0 {
		return time.Duration(hint.RetryAfter * float64(time.Second))
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// postJSON posts payload to a webhook and classifies the response.
//
// Error types:
//   - 429: *RateLimitError with the retry hint
//   - 4xx (non-429): *ClientError (non-retryable)
//   - 5xx: *ServerError (retryable)
//   - Network error: wrapped transport error (retryable)
func postJSON(ctx context.Context, client *http.Client, service, webhookURL string, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %s", redact.Error(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		// *url.Error embeds the webhook URL, which carries the token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    service + " rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error: %s", service, string(body)),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error: %s", service, string(body)),
		}
	default:
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}
}

// retryPolicy bounds the webhook retry loop.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration

	// maxRateLimitWait caps how long a 429 hint may make us sleep.
	maxRateLimitWait time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:      2,
		baseDelay:        5 * time.Second,
		maxRateLimitWait: 30 * time.Second,
	}
}

// sendWithRetry runs send until it succeeds, fails permanently or the attempts run out.
//
// Retry strategy:
//   - 429 errors: sleep for the retry hint (capped), then retry
//   - Server errors (5xx) and network errors: linear backoff (base, 2*base)
//   - Client errors (4xx): no retry
func sendWithRetry(ctx context.Context, service string, digest *entity.Digest, policy retryPolicy, send func(context.Context) error) error {
	logger := logging.FromContext(ctx).With(
		slog.String("channel", service),
		slog.String("digest_id", digest.ID))

	var lastErr error
	for attempt := 1; attempt <= policy.maxAttempts; attempt++ {
		err := send(ctx)
		if err == nil {
			logger.Info("digest delivered",
				slog.Int("entries", len(digest.Entries)),
				slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			wait := rateLimitErr.RetryAfter
			if policy.maxRateLimitWait > 0 && wait > policy.maxRateLimitWait {
				wait = policy.maxRateLimitWait
			}
			logger.Warn("rate limit hit, backing off",
				slog.Duration("retry_after", wait),
				slog.Int("attempt", attempt))
			if attempt == policy.maxAttempts {
				break
			}
			if err := sleepCtx(ctx, wait); err != nil {
				return fmt.Errorf("context canceled during rate limit backoff: %w", err)
			}
			continue
		}

		if !isRetryableError(err) {
			logger.Error("digest delivery failed with non-retryable error",
				slog.String("error", redact.Error(err)),
				slog.Int("attempt", attempt))
			return err
		}

		if attempt < policy.maxAttempts {
			delay := policy.baseDelay * time.Duration(attempt)
			logger.Warn("digest delivery failed, retrying",
				slog.String("error", redact.Error(err)),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			if err := sleepCtx(ctx, delay); err != nil {
				return fmt.Errorf("context canceled during retry backoff: %w", err)
			}
		}
	}

	logger.Error("digest delivery failed after all retries",
		slog.String("error", redact.Error(lastErr)),
		slog.Int("max_attempts", policy.maxAttempts))

	return fmt.Errorf("%s notification failed after %d attempts: %w", service, policy.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
