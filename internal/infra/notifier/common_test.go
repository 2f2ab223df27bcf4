package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-digest/internal/domain/entity"
)

func TestErrorTypes(t *testing.T) {
	assert.Equal(t, "rate limit exceeded (retry after 3s)", (&RateLimitError{RetryAfter: 3 * time.Second}).Error())
	assert.Equal(t, "Slack rate limit exceeded (retry after 1s)", (&RateLimitError{RetryAfter: time.Second, Message: "Slack rate limit exceeded"}).Error())
	assert.Equal(t, "bad", (&ClientError{StatusCode: 400, Message: "bad"}).Error())
	assert.Equal(t, "down", (&ServerError{StatusCode: 503, Message: "down"}).Error())
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "server error", err: &ServerError{StatusCode: 500}, want: true},
		{name: "wrapped server error", err: fmt.Errorf("x: %w", &ServerError{StatusCode: 502}), want: true},
		{name: "client error", err: &ClientError{StatusCode: 400}, want: false},
		{name: "rate limit", err: &RateLimitError{}, want: false},
		{name: "network error", err: errors.New("connection reset"), want: true},
		{name: "context canceled", err: fmt.Errorf("x: %w", context.Canceled), want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestExtractRetryAfter(t *testing.T) {
	header := func(v string) *http.Response {
		resp := &http.Response{Header: http.Header{}}
		if v != "" {
			resp.Header.Set("Retry-After", v)
		}
		return resp
	}

	assert.Equal(t, 2500*time.Millisecond, extractRetryAfter(header(""), []byte(`{"retry_after":2.5}`)))
	assert.Equal(t, 7*time.Second, extractRetryAfter(header("7"), []byte("not json")))
	assert.Equal(t, 5*time.Second, extractRetryAfter(header("soon"), nil))
	assert.Equal(t, 5*time.Second, extractRetryAfter(header(""), []byte(`{"retry_after":0}`)))
}

func TestSendWithRetry(t *testing.T) {
	digest := &entity.Digest{ID: "d1"}

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := sendWithRetry(context.Background(), "test", digest, fastRetry(), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("wraps last error", func(t *testing.T) {
		calls := 0
		err := sendWithRetry(context.Background(), "test", digest, fastRetry(), func(context.Context) error {
			calls++
			return &ServerError{StatusCode: 500, Message: "boom"}
		})
		assert.EqualError(t, err, "test notification failed after 2 attempts: boom")
		assert.Equal(t, 2, calls)
	})

	t.Run("canceled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		policy := retryPolicy{maxAttempts: 3, baseDelay: time.Hour}

		err := sendWithRetry(ctx, "test", digest, policy, func(context.Context) error {
			cancel()
			return errors.New("network down")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNoOpNotifier(t *testing.T) {
	assert.NoError(t, NewNoOpNotifier().NotifyDigest(context.Background(), nil))
	assert.NoError(t, NewNoOpNotifier().NotifyDigest(context.Background(), sampleDigest()))
}
