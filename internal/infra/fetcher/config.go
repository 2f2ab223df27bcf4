package fetcher

import (
	"errors"
	"fmt"
	"time"
)

// DefaultUserAgent identifies the worker to article hosts.
const DefaultUserAgent = "FeedDigestBot/1.0"

// ContentFetchConfig controls full-article extraction.
//
// Security settings:
//   - DenyPrivateIPs: blocks private, loopback and link-local targets, redirects included
//   - MaxBodySize: caps the bytes read from a response
//   - MaxRedirects: caps the redirect chain
//   - Timeout: bounds a single request
type ContentFetchConfig struct {
	// Enabled controls whether content fetching is used at all.
	// When false the worker keeps the feed body for every item.
	Enabled bool

	// Threshold is the feed body length (in characters) below which the
	// article is fetched. 0 means never fetch.
	Threshold int

	// Timeout is the maximum duration for a single HTTP request.
	Timeout time.Duration

	// Parallelism caps concurrent fetches across all cycles.
	Parallelism int

	// MaxBodySize is the maximum HTTP response body size in bytes.
	// It is enforced while reading, not from Content-Length.
	MaxBodySize int64

	// MaxRedirects is the maximum number of HTTP redirects to follow.
	MaxRedirects int

	// DenyPrivateIPs rejects URLs that resolve to private addresses.
	// Should always be true in production.
	DenyPrivateIPs bool

	// UserAgent is sent with every request. Empty means DefaultUserAgent.
	UserAgent string
}

// DefaultConfig returns the default configuration for content fetching.
func DefaultConfig() ContentFetchConfig {
	return ContentFetchConfig{
		Enabled:        true,
		Threshold:      1500,
		Timeout:        10 * time.Second,
		Parallelism:    10,
		MaxBodySize:    10 * 1024 * 1024, // 10MB
		MaxRedirects:   5,
		DenyPrivateIPs: true,
		UserAgent:      DefaultUserAgent,
	}
}

// Validate reports every invalid field at once.
//
// Validation rules:
//   - Threshold: >= 0
//   - Timeout: 1s..2m
//   - Parallelism: 1..50
//   - MaxBodySize: 1KB..100MB
//   - MaxRedirects: 0..10
func (c *ContentFetchConfig) Validate() error {
	var errs []error

	if c.Threshold < 0 {
		errs = append(errs, fmt.Errorf("threshold must be non-negative, got %d", c.Threshold))
	}

	if c.Timeout < time.Second || c.Timeout > 2*time.Minute {
		errs = append(errs, fmt.Errorf("timeout must be between 1s and 2m, got %v", c.Timeout))
	}

	if c.Parallelism < 1 || c.Parallelism > 50 {
		errs = append(errs, fmt.Errorf("parallelism must be between 1 and 50, got %d", c.Parallelism))
	}

	minBodySize := int64(1024)              // 1KB
	maxBodySize := int64(100 * 1024 * 1024) // 100MB
	if c.MaxBodySize < minBodySize || c.MaxBodySize > maxBodySize {
		errs = append(errs, fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBodySize, maxBodySize, c.MaxBodySize))
	}

	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		errs = append(errs, fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects))
	}

	return errors.Join(errs...)
}
