package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-digest/internal/observability/metrics"
)

func testConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

func TestNew(t *testing.T) {
	cb := New(testConfig("test-circuit"))

	require.NotNil(t, cb)
	assert.Equal(t, "test-circuit", cb.Name())
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.False(t, cb.IsOpen())
}

func TestCircuitBreaker_Execute(t *testing.T) {
	cb := New(testConfig("test-execute"))

	result, err := cb.Execute(func() (interface{}, error) {
		return "success", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result)

	testErr := errors.New("test error")
	_, err = cb.Execute(func() (interface{}, error) {
		return nil, testErr
	})
	assert.ErrorIs(t, err, testErr)
}

func TestDo(t *testing.T) {
	cb := New(testConfig("test-do"))

	n, err := Do(cb, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	testErr := errors.New("boom")
	s, err := Do(cb, func() (string, error) { return "", testErr })
	assert.ErrorIs(t, err, testErr)
	assert.Empty(t, s)

	var nilErr error
	got, err := Do(cb, func() (error, error) { return nilErr, nil })
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cfg := testConfig("test-trips")
	cfg.Timeout = time.Second
	cb := New(cfg)

	testErr := errors.New("test error")

	// 4 failures, 1 success, then 1 failure: 5/6 failures over the minimum.
	for i := 0; i < 4; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return nil, testErr })
		assert.ErrorIs(t, err, testErr)
	}
	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	_, err = cb.Execute(func() (interface{}, error) { return nil, testErr })
	assert.ErrorIs(t, err, testErr)

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.True(t, cb.IsOpen())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-trips")))

	_, err = cb.Execute(func() (interface{}, error) {
		t.Error("function should not be called when circuit is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpenState)
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	cfg := testConfig("test-half-open")
	cfg.MaxRequests = 2
	cfg.Timeout = 100 * time.Millisecond
	cb := New(cfg)

	testErr := errors.New("test error")
	for i := 0; i < 6; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(150 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) { return "success", nil })
	assert.NoError(t, err)
	assert.NotEqual(t, gobreaker.StateOpen, cb.State())
}

func TestCircuitBreaker_MinRequests(t *testing.T) {
	cb := New(testConfig("test-min"))

	testErr := errors.New("test error")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}

	assert.Equal(t, gobreaker.StateClosed, cb.State(), "below MinRequests the breaker must stay closed")
}

func TestConfigs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
	}{
		{name: "default", cfg: DefaultConfig("custom"), wantName: "custom"},
		{name: "claude", cfg: ClaudeAPIConfig(), wantName: "claude-api"},
		{name: "openai", cfg: OpenAIAPIConfig(), wantName: "openai-api"},
		{name: "feed", cfg: FeedFetchConfig(), wantName: "feed-fetch"},
		{name: "content", cfg: ContentFetchConfig(), wantName: "content-fetch"},
		{name: "email", cfg: EmailConfig(), wantName: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantName, tt.cfg.Name)
			assert.Positive(t, tt.cfg.MaxRequests)
			assert.Positive(t, tt.cfg.Timeout)
			assert.Greater(t, tt.cfg.FailureThreshold, 0.0)
			assert.LessOrEqual(t, tt.cfg.FailureThreshold, 1.0)
			assert.Positive(t, tt.cfg.MinRequests)
		})
	}
}
