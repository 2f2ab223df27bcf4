// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as FeedItem, Source and Digest,
// along with their validation rules and domain-specific errors.
package entity

import "time"

// FeedItem represents a single entry read from a feed source.
// Items are read-only to the polling core; enrichment produces a DigestEntry instead.
type FeedItem struct {
	// ID is the feed-provided GUID, falling back to the item link.
	ID string

	Title string
	Link  string

	// PublishedAt is zero when the feed did not carry a parseable timestamp.
	PublishedAt time.Time

	SourceName string

	// Summary is the plain-text description from the feed (may be empty).
	Summary string

	// Content is the raw body from the feed, when the feed carries one.
	Content string
}

// Body returns the best text the feed itself provides for the item.
func (i FeedItem) Body() string {
	if i.Content != "" {
		return i.Content
	}
	return i.Summary
}

// Validate checks that the item carries the fields the dedup tracker relies on.
func (i FeedItem) Validate() error {
	if i.ID == "" {
		return &ValidationError{Field: "id", Message: "item identifier is required"}
	}
	if i.PublishedAt.IsZero() {
		return &ValidationError{Field: "published_at", Message: "publish time is required"}
	}
	return nil
}
