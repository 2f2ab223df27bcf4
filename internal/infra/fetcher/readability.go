package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"feed-digest/internal/observability/logging"
	"feed-digest/internal/resilience/circuitbreaker"
	"feed-digest/internal/resilience/retry"
	"feed-digest/internal/utils/text"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/semaphore"
)

// ReadabilityFetcher implements poll.ContentFetcher using the Mozilla
// Readability algorithm (go-shiori/go-readability).
//
// Features:
//   - SSRF prevention at validation and dial time
//   - Circuit breaker for fault tolerance
//   - Size limiting while reading
//   - Redirect validation
//   - A process-wide cap on concurrent fetches
//
// Thread safety: ReadabilityFetcher is safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	resolver       *net.Resolver
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         ContentFetchConfig
	slots          *semaphore.Weighted
}

// NewReadabilityFetcher creates a fetcher for the given configuration.
//
// Example:
//
//	cfg := DefaultConfig()
//	f := NewReadabilityFetcher(cfg)
//	content, err := f.FetchContent(ctx, "https://example.com/article")
func NewReadabilityFetcher(config ContentFetchConfig) *ReadabilityFetcher {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Parallelism < 1 {
		config.Parallelism = 1
	}

	fetcher := &ReadabilityFetcher{
		resolver:       net.DefaultResolver,
		circuitBreaker: circuitbreaker.New(circuitbreaker.ContentFetchConfig()),
		config:         config,
		slots:          semaphore.NewWeighted(int64(config.Parallelism)),
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if config.DenyPrivateIPs {
		dialer.Control = dialControl
	}

	fetcher.client = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > fetcher.config.MaxRedirects {
				return fmt.Errorf("%w: more than %d", ErrTooManyRedirects, fetcher.config.MaxRedirects)
			}
			if err := validateURL(req.Context(), fetcher.resolver, req.URL.String(), fetcher.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	return fetcher
}

// FetchContent fetches the page behind urlStr and returns its readable text
// with whitespace collapsed. Callers fall back to the feed body on any error.
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(ctx, f.resolver, urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	if err := f.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer f.slots.Release(1)

	content, err := circuitbreaker.Do(f.circuitBreaker, func() (string, error) {
		return f.doFetch(ctx, urlStr)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			logging.FromContext(ctx).Warn("content fetch circuit breaker open, request rejected",
				slog.String("service", "content-fetch"),
				slog.String("url", urlStr))
		}
		return "", err
	}
	return content, nil
}

// doFetch performs the HTTP request and extraction without the breaker.
func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: request exceeded %v", ErrTimeout, f.config.Timeout)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return "", urlErr.Err
		}
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return "", fmt.Errorf("%w: exceeds limit %d bytes", ErrBodyTooLarge, f.config.MaxBodySize)
	}

	// The final URL after redirects resolves relative links in the article.
	pageURL := resp.Request.URL
	if pageURL == nil {
		pageURL, _ = url.Parse(urlStr)
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReadabilityFailed, err)
	}

	content := text.CollapseWhitespace(article.TextContent)
	if content == "" {
		content = text.StripHTML(article.Content)
	}
	if content == "" {
		return "", fmt.Errorf("%w: no readable content found", ErrReadabilityFailed)
	}

	return content, nil
}
