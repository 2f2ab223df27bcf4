package metrics

import "time"

// RecordFeedFetch records a successful fetch of one source.
func RecordFeedFetch(source string, duration time.Duration, items int) {
	FeedFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	FeedItemsFetchedTotal.WithLabelValues(source).Add(float64(items))
}

// RecordFeedFetchError records a failed fetch. errorType is e.g. "timeout" or "fetch_failed".
func RecordFeedFetchError(source, errorType string) {
	FeedFetchErrors.WithLabelValues(source, errorType).Inc()
}

// RecordItemRejected records a malformed item dropped by the tracker.
func RecordItemRejected(reason string) {
	ItemsRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordItemsNew adds the number of new items selected in a cycle.
func RecordItemsNew(count int) {
	if count > 0 {
		ItemsNewTotal.Add(float64(count))
	}
}

// RecordItemsNotified records the entries of a delivered digest.
func RecordItemsNotified(surfaced, skipped int) {
	ItemsNotifiedTotal.WithLabelValues("surfaced").Add(float64(surfaced))
	ItemsNotifiedTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// UpdateTrackerSize sets the current number of seen records.
func UpdateTrackerSize(size int) {
	TrackerSize.Set(float64(size))
}

// RecordTrackerEvictions adds evicted records.
func RecordTrackerEvictions(count int) {
	if count > 0 {
		TrackerEvictionsTotal.Add(float64(count))
	}
}

// RecordContentFetchSuccess records a successful content fetch operation.
// This tracks both the duration and size of fetched content.
//
// Example:
//
//	start := time.Now()
//	content, err := fetcher.FetchContent(ctx, url)
//	if err == nil {
//	    RecordContentFetchSuccess(time.Since(start), len(content))
//	}
func RecordContentFetchSuccess(duration time.Duration, size int) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
	ContentFetchSize.Observe(float64(size))
}

// RecordContentFetchFailed records a failed content fetch operation.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a fetch skipped because the feed body
// already met the threshold.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}

// RecordAnnotation records the outcome and latency of one annotation call.
// Outcome should be "surfaced", "suppressed" or "failed".
func RecordAnnotation(outcome string, duration time.Duration) {
	AnnotationsTotal.WithLabelValues(outcome).Inc()
	AnnotationDuration.Observe(duration.Seconds())
}

// SetCircuitBreakerState exports the numeric state of a named breaker.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimitWait records how long a notifier waited for its limiter.
func RecordRateLimitWait(channel string, wait time.Duration) {
	RateLimitWaitSeconds.WithLabelValues(channel).Observe(wait.Seconds())
}
