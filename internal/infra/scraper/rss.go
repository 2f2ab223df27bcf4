// Package scraper provides implementations for fetching RSS/Atom feeds.
// It uses the gofeed library to parse feed content with reliability patterns.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/resilience/circuitbreaker"
	"feed-digest/internal/resilience/retry"
	"feed-digest/internal/utils/text"

	"github.com/mmcdole/gofeed"
)

const (
	// DefaultUserAgent is sent with every feed request.
	DefaultUserAgent = "FeedDigestBot/1.0"

	// DefaultMaxFeedBytes caps the size of a feed document.
	DefaultMaxFeedBytes int64 = 10 * 1024 * 1024
)

// ErrFeedTooLarge is returned when a feed document exceeds the size cap.
var ErrFeedTooLarge = errors.New("feed document exceeds size limit")

// RSSFetcher implements poll.FeedFetcher using the gofeed library.
// It includes retry logic and one circuit breaker per source, so a broken
// source never trips the breaker of a healthy one.
type RSSFetcher struct {
	client      *http.Client
	retryConfig retry.Config
	breakerCfg  func(source string) circuitbreaker.Config
	userAgent   string
	maxBytes    int64

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
}

// Option configures an RSSFetcher.
type Option func(*RSSFetcher)

// WithRetryConfig overrides the feed fetch retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(f *RSSFetcher) { f.retryConfig = cfg }
}

// WithBreakerConfig overrides the per-source circuit breaker settings.
func WithBreakerConfig(cfg func(source string) circuitbreaker.Config) Option {
	return func(f *RSSFetcher) {
		if cfg != nil {
			f.breakerCfg = cfg
		}
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(f *RSSFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxFeedBytes overrides DefaultMaxFeedBytes.
func WithMaxFeedBytes(n int64) Option {
	return func(f *RSSFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewRSSFetcher creates a new RSSFetcher with the given HTTP client.
// It automatically configures circuit breaker and retry logic.
func NewRSSFetcher(client *http.Client, opts ...Option) *RSSFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	f := &RSSFetcher{
		client:      client,
		retryConfig: retry.FeedFetchConfig(),
		breakerCfg:  defaultBreakerConfig,
		userAgent:   DefaultUserAgent,
		maxBytes:    DefaultMaxFeedBytes,
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves and parses the RSS/Atom feed of src.
// Items are returned in feed order and tagged with the source name. Items
// without an identifier or publish time are passed through unchanged so the
// caller can count and reject them.
func (f *RSSFetcher) Fetch(ctx context.Context, src entity.Source) ([]entity.FeedItem, error) {
	var items []entity.FeedItem
	cb := f.breaker(src.Name)

	// Wrap with retry logic
	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		// Execute through circuit breaker
		result, err := circuitbreaker.Do(cb, func() ([]entity.FeedItem, error) {
			return f.doFetch(ctx, src)
		})
		if err != nil {
			if errors.Is(err, circuitbreaker.ErrOpenState) {
				logging.FromContext(ctx).Warn("feed fetch circuit breaker open, request rejected",
					slog.String("service", "feed-fetch"),
					slog.String("source", src.Name),
					slog.String("state", cb.State().String()))
			}
			return err
		}

		items = result
		return nil
	})

	if retryErr != nil {
		return nil, fmt.Errorf("fetch feed %q: %w", src.Name, retryErr)
	}

	return items, nil
}

func defaultBreakerConfig(source string) circuitbreaker.Config {
	cfg := circuitbreaker.FeedFetchConfig()
	cfg.Name = cfg.Name + ":" + source
	return cfg
}

// breaker returns the circuit breaker of a source, creating it on first use.
func (f *RSSFetcher) breaker(source string) *circuitbreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	cb, ok := f.breakers[source]
	if !ok {
		cb = circuitbreaker.New(f.breakerCfg(source))
		f.breakers[source] = cb
	}
	return cb
}

// doFetch performs the actual feed fetch without retry or circuit breaker.
func (f *RSSFetcher) doFetch(ctx context.Context, src entity.Source) ([]entity.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, ErrFeedTooLarge
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]entity.FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		items = append(items, toFeedItem(it, src.Name))
	}

	return items, nil
}

// toFeedItem maps a parsed entry. The identifier is the GUID when present,
// otherwise the link. The publish time prefers the published date and falls
// back to the updated date; neither present leaves it zero.
func toFeedItem(it *gofeed.Item, sourceName string) entity.FeedItem {
	link := strings.TrimSpace(it.Link)

	id := strings.TrimSpace(it.GUID)
	if id == "" {
		id = link
	}

	var publishedAt time.Time
	switch {
	case it.PublishedParsed != nil:
		publishedAt = it.PublishedParsed.UTC()
	case it.UpdatedParsed != nil:
		publishedAt = it.UpdatedParsed.UTC()
	}

	return entity.FeedItem{
		ID:          id,
		Title:       text.CollapseWhitespace(it.Title),
		Link:        link,
		PublishedAt: publishedAt,
		SourceName:  sourceName,
		Summary:     text.StripHTML(it.Description),
		Content:     text.StripHTML(it.Content),
	}
}
