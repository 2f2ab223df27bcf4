package annotator

import (
	"context"

	"feed-digest/internal/domain/entity"
)

// NoOp is the annotator used when no provider is configured.
// It never adds an annotation, so every item is surfaced as-is.
type NoOp struct{}

// NewNoOp creates a new NoOp annotator.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Annotate always returns nil, nil.
func (n *NoOp) Annotate(_ context.Context, _ entity.FeedItem, _ string) (*entity.Annotation, error) {
	return nil, nil
}
