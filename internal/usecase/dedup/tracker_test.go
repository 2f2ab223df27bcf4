package dedup

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"feed-digest/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func item(id string, publishedAt time.Time) entity.FeedItem {
	return entity.FeedItem{ID: id, Title: "title " + id, Link: "https://example.com/" + id, PublishedAt: publishedAt}
}

func TestTracker_IsNew(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now))
	tr.MarkSeen("seen")

	tests := []struct {
		name    string
		item    entity.FeedItem
		want    bool
		wantErr error
	}{
		{name: "fresh and unseen", item: item("a1", t0.Add(-2*time.Minute)), want: true},
		{name: "fresh but seen", item: item("seen", t0.Add(-time.Minute)), want: false},
		{name: "stale and unseen", item: item("old", t0.Add(-time.Hour)), want: false},
		{name: "future dated", item: item("future", t0.Add(10*time.Minute)), want: false},
		{name: "missing id", item: item("", t0), wantErr: ErrMissingID},
		{name: "missing publish time", item: item("nopub", time.Time{}), wantErr: ErrMissingPublishedAt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.IsNew(tt.item, 5*time.Minute)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, got, "malformed items must fail closed")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTracker_IsNewHasNoSideEffect(t *testing.T) {
	tr := NewTracker(WithClock(newFakeClock(t0).Now))
	it := item("a1", t0.Add(-time.Minute))

	for i := 0; i < 3; i++ {
		got, err := tr.IsNew(it, 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, 0, tr.Size())
}

func TestTracker_SeenRegardlessOfFreshness(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now))
	it := item("a1", t0.Add(-time.Minute))

	tr.MarkSeen(it.ID)

	for _, window := range []time.Duration{time.Minute, 15 * time.Minute, 24 * time.Hour} {
		got, err := tr.IsNew(it, window)
		require.NoError(t, err)
		assert.False(t, got, "window=%v", window)
	}
}

func TestTracker_NotifyOnceScenario(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now))
	a1 := item("a1", t0.Add(-2*time.Minute))

	first, err := tr.IsNew(a1, 5*time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	tr.MarkSeen(a1.ID)
	clock.Advance(30 * time.Second)

	second, err := tr.IsNew(a1, 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestTracker_MarkSeenIdempotent(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now))

	tr.MarkSeen("a1", "a1", "b1", "")
	assert.Equal(t, 2, tr.Size(), "duplicates and empty ids are not stored twice")

	clock.Advance(50 * time.Minute)
	tr.MarkSeen("a1")
	clock.Advance(20 * time.Minute)

	assert.Equal(t, 1, tr.EvictStale(), "re-marked a1 keeps its refreshed timestamp")
	assert.Equal(t, 1, tr.Size())
}

func TestTracker_EvictStale(t *testing.T) {
	tests := []struct {
		name        string
		elapsed     time.Duration
		wantEvicted int
	}{
		{name: "59 minutes keeps the record", elapsed: 59 * time.Minute, wantEvicted: 0},
		{name: "exactly one hour keeps the record", elapsed: time.Hour, wantEvicted: 0},
		{name: "61 minutes evicts the record", elapsed: 61 * time.Minute, wantEvicted: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(t0)
			tr := NewTracker(WithClock(clock.Now))
			tr.MarkSeen("a1")

			clock.Advance(tt.elapsed)

			assert.Equal(t, tt.wantEvicted, tr.EvictStale())
			assert.Equal(t, 1-tt.wantEvicted, tr.Size())
		})
	}
}

func TestTracker_EvictStaleLeavesYoungRecords(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		tr.MarkSeen(fmt.Sprintf("old-%d", i))
	}
	clock.Advance(40 * time.Minute)
	for i := 0; i < 5; i++ {
		tr.MarkSeen(fmt.Sprintf("young-%d", i))
	}
	clock.Advance(25 * time.Minute)

	assert.Equal(t, 10, tr.EvictStale())
	assert.Equal(t, 5, tr.Size())

	// An evicted id is eligible again if it is still fresh.
	got, err := tr.IsNew(item("old-0", clock.Now().Add(-time.Minute)), 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestTracker_EvictStaleEmpty(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, 0, tr.EvictStale())
}

func TestTracker_WithRetention(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now), WithRetention(10*time.Minute))
	assert.Equal(t, 10*time.Minute, tr.Retention())

	tr.MarkSeen("a1")
	clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, tr.EvictStale())

	ignored := NewTracker(WithRetention(0))
	assert.Equal(t, DefaultRetention, ignored.Retention())
}

func TestTracker_ConcurrentUse(t *testing.T) {
	clock := newFakeClock(t0)
	tr := NewTracker(WithClock(clock.Now))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("g%d-%d", g, i)
				_, _ = tr.IsNew(item(id, t0), 5*time.Minute)
				tr.MarkSeen(id)
				if i%50 == 0 {
					tr.EvictStale()
					_ = tr.Size()
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8*200, tr.Size())
}
