package dedup

import (
	"log/slog"
	"sync"
	"time"

	"feed-digest/internal/domain/entity"
)

// DefaultRetention is how long a seen record is kept before eviction.
// It only bounds memory; it is unrelated to the freshness window.
const DefaultRetention = time.Hour

// Tracker remembers which item identifiers were delivered and when.
//
// An identifier is recorded only after the digest containing it was
// dispatched successfully, so a failed dispatch leaves the item eligible
// for the next cycle. Tracker is safe for concurrent use by overlapping cycles.
type Tracker struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithRetention overrides DefaultRetention. Non-positive values are ignored.
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithLogger sets the logger used for eviction reports.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		seen:      make(map[string]time.Time),
		retention: DefaultRetention,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsNew reports whether the item is fresh and has not been delivered yet.
// Items without an identifier or publish time are rejected with an error.
// IsNew never records anything.
func (t *Tracker) IsNew(item entity.FeedItem, window time.Duration) (bool, error) {
	if item.ID == "" {
		return false, ErrMissingID
	}
	if item.PublishedAt.IsZero() {
		return false, ErrMissingPublishedAt
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !IsFresh(item.PublishedAt, t.now(), window) {
		return false, nil
	}
	_, seen := t.seen[item.ID]
	return !seen, nil
}

// MarkSeen records the identifiers as delivered now. Re-marking refreshes the timestamp.
func (t *Tracker) MarkSeen(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, id := range ids {
		if id == "" {
			continue
		}
		t.seen[id] = now
	}
}

// EvictStale removes records older than the retention horizon and returns how many were removed.
func (t *Tracker) EvictStale() int {
	t.mu.Lock()
	now := t.now()
	removed := 0
	for id, markedAt := range t.seen {
		if now.Sub(markedAt) > t.retention {
			delete(t.seen, id)
			removed++
		}
	}
	remaining := len(t.seen)
	t.mu.Unlock()

	if removed > 0 {
		t.logger.Debug("evicted stale seen records",
			slog.Int("evicted", removed),
			slog.Int("remaining", remaining),
			slog.Duration("retention", t.retention))
	}
	return removed
}

// Size returns the number of tracked records.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}

// Retention returns the configured retention horizon.
func (t *Tracker) Retention() time.Duration {
	return t.retention
}
