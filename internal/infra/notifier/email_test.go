package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/resilience/retry"
)

type fakeSender struct {
	mu       sync.Mutex
	requests []*resend.SendEmailRequest
	errs     []error
}

func (f *fakeSender) SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, params)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &resend.SendEmailResponse{Id: "msg-123"}, nil
}

func (f *fakeSender) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestEmailNotifier(sender EmailSender) *EmailNotifier {
	n := NewEmailNotifierWithSender(EmailConfig{
		Enabled:       true,
		APIKey:        "re_test_key_123456",
		From:          "Digest <digest@example.com>",
		To:            []string{"me@example.com", "team@example.com"},
		SubjectPrefix: "[feed-digest]",
		Timeout:       5 * time.Second,
	}, sender)
	n.retryConfig = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	return n
}

func TestEmailNotifier_NotifyDigest(t *testing.T) {
	sender := &fakeSender{}
	n := newTestEmailNotifier(sender)

	require.NoError(t, n.NotifyDigest(context.Background(), sampleDigest()))

	require.Equal(t, 1, sender.calls())
	req := sender.requests[0]
	assert.Equal(t, "Digest <digest@example.com>", req.From)
	assert.Equal(t, []string{"me@example.com", "team@example.com"}, req.To)
	assert.Equal(t, "[feed-digest] 3 new items from 2 feeds", req.Subject)
	assert.Contains(t, req.Html, "Go 1.26 released")
	assert.Contains(t, req.Text, "Go 1.26 released")
	assert.Equal(t, "digest-1", req.Headers["X-Entity-Ref-ID"])
}

func TestEmailNotifier_RetriesProviderErrors(t *testing.T) {
	sender := &fakeSender{errs: []error{errors.New("[ERROR]: internal"), nil}}
	n := newTestEmailNotifier(sender)

	require.NoError(t, n.NotifyDigest(context.Background(), sampleDigest()))
	assert.Equal(t, 2, sender.calls())
}

func TestEmailNotifier_FailsAfterRetries(t *testing.T) {
	boom := errors.New("[ERROR]: unavailable")
	sender := &fakeSender{errs: []error{boom, boom, boom}}
	n := newTestEmailNotifier(sender)

	err := n.NotifyDigest(context.Background(), sampleDigest())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, sender.calls())
}

func TestEmailNotifier_EmptyDigest(t *testing.T) {
	sender := &fakeSender{}
	n := newTestEmailNotifier(sender)

	assert.Error(t, n.NotifyDigest(context.Background(), &entity.Digest{ID: "empty"}))
	assert.Error(t, n.NotifyDigest(context.Background(), nil))
	assert.Zero(t, sender.calls())
}

func TestEmailNotifier_CanceledContext(t *testing.T) {
	sender := &fakeSender{}
	n := newTestEmailNotifier(sender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, n.NotifyDigest(ctx, sampleDigest()))
}

func TestNewEmailNotifier_DefaultTimeout(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{APIKey: "re_x", From: "a@example.com", To: []string{"b@example.com"}})

	assert.Equal(t, 30*time.Second, n.config.Timeout)
	assert.NotNil(t, n.sender)
}
