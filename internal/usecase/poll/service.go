package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"feed-digest/internal/domain/entity"
	"feed-digest/internal/observability/logging"
	"feed-digest/internal/observability/metrics"
	"feed-digest/internal/observability/tracing"
	"feed-digest/internal/usecase/dedup"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Config holds the tunables of a polling cycle.
type Config struct {
	// FreshnessWindow is how far back from now an item may have been published.
	FreshnessWindow time.Duration

	// SourceTimeout bounds each individual source fetch.
	SourceTimeout time.Duration

	// EnrichParallelism bounds concurrent per-item enrichment.
	EnrichParallelism int

	// ContentThreshold is the body length (in characters) below which the
	// full article is fetched.
	ContentThreshold int
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow:   15 * time.Minute,
		SourceTimeout:     30 * time.Second,
		EnrichParallelism: 5,
		ContentThreshold:  1500,
	}
}

// CycleStats summarises one polling cycle.
type CycleStats struct {
	CycleID       string
	Sources       int
	FailedSources int
	Fetched       int
	Malformed     int
	Duplicates    int
	New           int
	Notified      int
	Skipped       int
	EnrichErrors  int
	Evicted       int
	Tracked       int
	Delivered     bool
	Duration      time.Duration
}

// Service orchestrates polling cycles. It is safe to run cycles concurrently;
// the tracker is the only shared state.
type Service struct {
	cfg       Config
	sources   []entity.Source
	tracker   *dedup.Tracker
	feeds     FeedFetcher
	content   ContentFetcher
	annotator Annotator
	notifier  Notifier
	now       func() time.Time
}

// NewService wires a polling service.
// content may be nil to disable full-article enrichment; annotator may be nil
// to disable annotation.
func NewService(
	cfg Config,
	sources []entity.Source,
	tracker *dedup.Tracker,
	feeds FeedFetcher,
	content ContentFetcher,
	annotator Annotator,
	notifier Notifier,
) (*Service, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if tracker == nil || feeds == nil || notifier == nil {
		return nil, errors.New("poll: tracker, feed fetcher and notifier are required")
	}
	if cfg.EnrichParallelism <= 0 {
		cfg.EnrichParallelism = DefaultConfig().EnrichParallelism
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultConfig().SourceTimeout
	}

	return &Service{
		cfg:       cfg,
		sources:   sources,
		tracker:   tracker,
		feeds:     feeds,
		content:   content,
		annotator: annotator,
		notifier:  notifier,
		now:       time.Now,
	}, nil
}

// Sources returns the configured sources.
func (s *Service) Sources() []entity.Source {
	return s.sources
}

// RunCycle performs one fetch, filter, enrich, dispatch and mark pass.
//
// Per-source fetch failures, malformed items and enrichment failures never
// fail the cycle. A dispatch failure returns an error wrapping
// ErrDispatchFailed and leaves every item unmarked so it is offered again.
// Stale seen records are evicted on every path.
func (s *Service) RunCycle(ctx context.Context) (stats *CycleStats, err error) {
	start := time.Now()
	cycleID := uuid.NewString()
	logger := logging.WithCycleID(logging.FromContext(ctx), cycleID)
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.StartSpan(ctx, "poll.cycle", attribute.String("cycle.id", cycleID))

	stats = &CycleStats{CycleID: cycleID, Sources: len(s.sources)}

	defer func() {
		stats.Evicted = s.tracker.EvictStale()
		stats.Tracked = s.tracker.Size()
		stats.Duration = time.Since(start)

		metrics.RecordTrackerEvictions(stats.Evicted)
		metrics.UpdateTrackerSize(stats.Tracked)

		span.SetAttributes(
			attribute.Int("cycle.new", stats.New),
			attribute.Bool("cycle.delivered", stats.Delivered),
		)
		tracing.EndSpan(span, err)
		s.logSummary(logger, stats, err)
	}()

	logger.Info("poll cycle started", slog.Int("sources", len(s.sources)))

	items := s.fetchAll(ctx, stats)
	fresh := s.selectNew(ctx, items, stats)
	stats.New = len(fresh)
	metrics.RecordItemsNew(stats.New)

	if len(fresh) == 0 {
		return stats, nil
	}

	digest := &entity.Digest{
		ID:          cycleID,
		GeneratedAt: s.now(),
		Entries:     s.enrichAll(ctx, fresh, stats),
	}
	stats.Skipped = digest.SkippedCount()

	if dispatchErr := s.notifier.Dispatch(ctx, digest); dispatchErr != nil {
		return stats, fmt.Errorf("%w: %w", ErrDispatchFailed, dispatchErr)
	}

	// Suppressed entries were delivered too, so they are marked like the rest.
	s.tracker.MarkSeen(digest.ItemIDs()...)
	stats.Delivered = true
	stats.Notified = len(digest.Entries)
	metrics.RecordItemsNotified(digest.SurfacedCount(), digest.SkippedCount())

	return stats, nil
}

// fetchAll fetches every source concurrently. A failing source is logged and
// excluded; it never cancels the others.
func (s *Service) fetchAll(ctx context.Context, stats *CycleStats) []entity.FeedItem {
	logger := logging.FromContext(ctx)
	results := make([][]entity.FeedItem, len(s.sources))

	var (
		mu     sync.Mutex
		failed int
		g      errgroup.Group
	)

	for i, src := range s.sources {
		g.Go(func() error {
			srcCtx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout)
			defer cancel()

			srcCtx, span := tracing.StartSpan(srcCtx, "poll.fetch_source",
				attribute.String("source.name", src.Name))

			fetchStart := time.Now()
			items, err := s.fetchSource(srcCtx, src)
			duration := time.Since(fetchStart)
			tracing.EndSpan(span, err)

			if err != nil {
				logger.Warn("failed to fetch feed",
					slog.String("source", src.Name),
					slog.String("url", src.URL),
					slog.Duration("duration", duration),
					slog.Any("error", err))
				metrics.RecordFeedFetchError(src.Name, fetchErrorType(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			metrics.RecordFeedFetch(src.Name, duration, len(items))
			logger.Debug("feed fetched",
				slog.String("source", src.Name),
				slog.Int("items", len(items)),
				slog.Duration("duration", duration))

			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	stats.FailedSources = failed

	var all []entity.FeedItem
	for _, items := range results {
		all = append(all, items...)
	}
	stats.Fetched = len(all)
	return all
}

// fetchSource calls the feed fetcher, turning a panic into an error so one
// broken source is treated like any other failed source.
func (s *Service) fetchSource(ctx context.Context, src entity.Source) (items []entity.FeedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("panic while fetching feed",
				slog.String("source", src.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			items, err = nil, fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return s.feeds.Fetch(ctx, src)
}

// selectNew keeps the items the tracker reports as new. Malformed items are
// logged and dropped; an id seen twice in one cycle keeps its first occurrence.
func (s *Service) selectNew(ctx context.Context, items []entity.FeedItem, stats *CycleStats) []entity.FeedItem {
	logger := logging.FromContext(ctx)
	fresh := make([]entity.FeedItem, 0)
	inCycle := make(map[string]struct{})

	for _, item := range items {
		isNew, err := s.tracker.IsNew(item, s.cfg.FreshnessWindow)
		if err != nil {
			stats.Malformed++
			metrics.RecordItemRejected(rejectReason(err))
			logger.Warn("rejecting malformed feed item",
				slog.String("source", item.SourceName),
				slog.String("title", item.Title),
				slog.String("link", item.Link),
				slog.Any("error", err))
			continue
		}
		if !isNew {
			continue
		}
		if _, dup := inCycle[item.ID]; dup {
			stats.Duplicates++
			logger.Debug("dropping duplicate item within cycle",
				slog.String("id", item.ID),
				slog.String("source", item.SourceName))
			continue
		}
		inCycle[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}

func (s *Service) logSummary(logger *slog.Logger, stats *CycleStats, err error) {
	attrs := []any{
		slog.Int("sources_ok", stats.Sources-stats.FailedSources),
		slog.Int("sources_failed", stats.FailedSources),
		slog.Int("fetched", stats.Fetched),
		slog.Int("malformed", stats.Malformed),
		slog.Int("new", stats.New),
		slog.Int("notified", stats.Notified),
		slog.Int("skipped", stats.Skipped),
		slog.Int("enrich_errors", stats.EnrichErrors),
		slog.Int("evicted", stats.Evicted),
		slog.Int("tracked", stats.Tracked),
		slog.Duration("duration", stats.Duration),
	}
	if err != nil {
		logger.Error("poll cycle failed", append(attrs, slog.Any("error", err))...)
		return
	}
	if stats.Sources > 0 && stats.FailedSources == stats.Sources {
		logger.Warn("poll cycle completed but every source failed", attrs...)
		return
	}
	logger.Info("poll cycle completed", attrs...)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, dedup.ErrMissingID):
		return "missing_id"
	case errors.Is(err, dedup.ErrMissingPublishedAt):
		return "missing_published_at"
	default:
		return "invalid"
	}
}

func fetchErrorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrPanicked):
		return "panic"
	default:
		return "fetch_failed"
	}
}
