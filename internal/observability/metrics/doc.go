// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the worker's domain metrics:
//   - feed fetch counts, durations and errors per source
//   - rejected, new and notified item counts
//   - dedup tracker size and evictions
//   - content fetch and annotation outcomes
//
// All metrics are registered with the Prometheus default registry through
// promauto and exposed via the /metrics endpoint.
//
// Example usage:
//
//	start := time.Now()
//	items, err := fetcher.Fetch(ctx, src)
//	if err != nil {
//	    metrics.RecordFeedFetchError(src.Name, "fetch_failed")
//	    return
//	}
//	metrics.RecordFeedFetch(src.Name, time.Since(start), len(items))
package metrics
