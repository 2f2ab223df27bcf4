package poll

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/observability/metrics"
	"feed-digest/internal/utils/text"

	"golang.org/x/sync/errgroup"
)

const defaultSkipReason = "annotation judged the item not worth surfacing"

// enrichAll builds one digest entry per item, in input order. Enrichment runs
// with bounded concurrency and per-item failures only degrade that entry.
func (s *Service) enrichAll(ctx context.Context, items []entity.FeedItem, stats *CycleStats) []entity.DigestEntry {
	entries := make([]entity.DigestEntry, len(items))
	var failures int64

	var g errgroup.Group
	g.SetLimit(s.cfg.EnrichParallelism)

	for i, item := range items {
		g.Go(func() error {
			entry, failed := s.safeEnrich(ctx, item)
			entries[i] = entry
			if failed {
				atomic.AddInt64(&failures, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.EnrichErrors = int(failures)
	return entries
}

// safeEnrich runs enrich and degrades the entry to the feed body without an
// annotation if any enrichment step panics.
func (s *Service) safeEnrich(ctx context.Context, item entity.FeedItem) (entry entity.DigestEntry, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("panic while enriching item, surfacing feed body",
				slog.String("id", item.ID),
				slog.String("link", item.Link),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			entry = entity.DigestEntry{Item: item, Body: item.Body()}
			degraded = true
		}
	}()
	return s.enrich(ctx, item)
}

// enrich never fails; the boolean reports whether any enrichment step degraded.
func (s *Service) enrich(ctx context.Context, item entity.FeedItem) (entry entity.DigestEntry, degraded bool) {
	logger := logging.FromContext(ctx)

	body, fetchFailed := s.enhanceContent(ctx, item)
	entry = entity.DigestEntry{Item: item, Body: body}

	if s.annotator == nil {
		return entry, fetchFailed
	}

	annotateStart := time.Now()
	ann, err := s.annotator.Annotate(ctx, item, body)
	duration := time.Since(annotateStart)
	if err != nil {
		logger.Warn("annotation failed, surfacing without annotation",
			slog.String("id", item.ID),
			slog.String("link", item.Link),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		metrics.RecordAnnotation("failed", duration)
		return entry, true
	}
	if ann == nil {
		return entry, fetchFailed
	}

	entry.Annotation = ann
	if ann.ShouldSurface {
		metrics.RecordAnnotation("surfaced", duration)
	} else {
		entry.Skipped = true
		entry.SkipReason = ann.Reason
		if entry.SkipReason == "" {
			entry.SkipReason = defaultSkipReason
		}
		metrics.RecordAnnotation("suppressed", duration)
		logger.Debug("annotation suppressed item",
			slog.String("id", item.ID),
			slog.String("reason", entry.SkipReason))
	}
	return entry, fetchFailed
}

// enhanceContent returns the full article text when the feed body is shorter
// than the threshold and extraction produced something longer. Any failure
// falls back to the feed body.
func (s *Service) enhanceContent(ctx context.Context, item entity.FeedItem) (string, bool) {
	logger := logging.FromContext(ctx)
	feedBody := item.Body()

	if s.content == nil || item.Link == "" {
		return feedBody, false
	}

	feedLength := text.CountRunes(feedBody)
	if feedLength >= s.cfg.ContentThreshold {
		logger.Debug("feed body sufficient, skipping fetch",
			slog.String("link", item.Link),
			slog.Int("feed_length", feedLength),
			slog.Int("threshold", s.cfg.ContentThreshold))
		metrics.RecordContentFetchSkipped()
		return feedBody, false
	}

	fetchStart := time.Now()
	fullContent, err := s.content.FetchContent(ctx, item.Link)
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		logger.Warn("content fetch failed, using feed body",
			slog.String("link", item.Link),
			slog.Duration("fetch_duration", fetchDuration),
			slog.Any("error", err))
		metrics.RecordContentFetchFailed(fetchDuration)
		return feedBody, true
	}

	fetchedLength := text.CountRunes(fullContent)
	metrics.RecordContentFetchSuccess(fetchDuration, len(fullContent))

	// Extraction sometimes returns a teaser shorter than the feed itself.
	if fetchedLength > feedLength {
		return fullContent, false
	}
	logger.Debug("fetched content shorter than feed body, keeping feed body",
		slog.String("link", item.Link),
		slog.Int("feed_length", feedLength),
		slog.Int("fetched_length", fetchedLength))
	return feedBody, false
}
