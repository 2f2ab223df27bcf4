package poll

import (
	"context"

	"feed-digest/internal/domain/entity"
)

// FeedFetcher reads the current items of one configured source.
type FeedFetcher interface {
	Fetch(ctx context.Context, src entity.Source) ([]entity.FeedItem, error)
}

// ContentFetcher extracts the full article text behind a link.
// Implementations must never be required: a nil ContentFetcher disables enrichment.
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Annotator generates an optional reply suggestion for an item.
// A nil annotation with a nil error means "nothing to add".
type Annotator interface {
	Annotate(ctx context.Context, item entity.FeedItem, body string) (*entity.Annotation, error)
}

// Notifier delivers a digest. A nil error means every enabled channel accepted it.
type Notifier interface {
	Dispatch(ctx context.Context, digest *entity.Digest) error
}
