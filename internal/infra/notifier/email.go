package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/resilience/circuitbreaker"
	"feed-digest/internal/resilience/retry"

	"github.com/resend/resend-go/v2"
)

// EmailConfig contains configuration for the Resend email notifier.
type EmailConfig struct {
	// Enabled indicates whether the email channel is enabled
	Enabled bool

	// APIKey is the Resend API key
	APIKey string

	// From is the sender, optionally with a display name ("Digest <bot@example.com>")
	From string

	// To lists the recipients
	To []string

	// SubjectPrefix is prepended to every subject line
	SubjectPrefix string

	// Timeout bounds one send, retries included
	Timeout time.Duration
}

// EmailSender is the subset of the Resend emails service the notifier uses.
type EmailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// EmailNotifier sends each digest as one email through Resend.
type EmailNotifier struct {
	config      EmailConfig
	sender      EmailSender
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// NewEmailNotifier creates an EmailNotifier backed by the Resend API.
//
// The notifier is initialized with:
//   - Rate limiter at 2 requests/second (Resend's default team limit)
//   - Circuit breaker around the provider
//   - Exponential backoff for transient provider failures
func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	client := resend.NewClient(config.APIKey)
	return NewEmailNotifierWithSender(config, client.Emails)
}

// NewEmailNotifierWithSender creates an EmailNotifier with a custom sender.
func NewEmailNotifierWithSender(config EmailConfig, sender EmailSender) *EmailNotifier {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &EmailNotifier{
		config:      config,
		sender:      sender,
		rateLimiter: NewRateLimiter("email", 2.0, 1),
		breaker:     circuitbreaker.New(circuitbreaker.EmailConfig()),
		retryConfig: retry.EmailConfig(),
	}
}

// NotifyDigest renders the digest and sends it to every configured recipient
// in a single request.
func (e *EmailNotifier) NotifyDigest(ctx context.Context, digest *entity.Digest) error {
	if digest == nil || len(digest.Entries) == 0 {
		return errors.New("email: empty digest")
	}
	logger := logging.FromContext(ctx)

	rendered, err := RenderDigest(digest, RenderOptions{SubjectPrefix: e.config.SubjectPrefix})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	if err := e.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	req := &resend.SendEmailRequest{
		From:    e.config.From,
		To:      e.config.To,
		Subject: rendered.Subject,
		Html:    rendered.HTML,
		Text:    rendered.Text,
		Headers: map[string]string{"X-Entity-Ref-ID": digest.ID},
	}

	var messageID string
	err = retry.WithBackoff(ctx, e.retryConfig, func() error {
		resp, err := circuitbreaker.Do(e.breaker, func() (*resend.SendEmailResponse, error) {
			return e.sender.SendWithContext(ctx, req)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
				return err
			}
			// The SDK does not expose status codes, so every provider error is treated as transient.
			return retry.Retryable(err)
		}
		if resp != nil {
			messageID = resp.Id
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send digest email: %w", err)
	}

	logger.Info("digest email sent",
		slog.String("digest_id", digest.ID),
		slog.String("message_id", messageID),
		slog.Int("recipients", len(e.config.To)),
		slog.Int("entries", len(digest.Entries)))
	return nil
}
