// Package dedup decides which feed items are eligible for notification.
//
// It combines a pure freshness check on the publish time with a time-bounded
// in-memory record of items that were already delivered.
package dedup

import "time"

// IsFresh reports whether an item published at publishedAt falls inside the
// freshness window measured backward from now.
//
// Future-dated items (negative age) are never fresh, so feeds whose clocks run
// ahead of the worker do not trigger early notifications. A zero publishedAt is
// treated as unparseable and is not fresh either.
func IsFresh(publishedAt, now time.Time, window time.Duration) bool {
	if publishedAt.IsZero() || window < 0 {
		return false
	}
	age := now.Sub(publishedAt)
	return age >= 0 && age <= window
}

// WindowFromMinutes converts a configured window in whole minutes.
func WindowFromMinutes(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}
