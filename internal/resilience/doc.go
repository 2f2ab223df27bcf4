// Package resilience groups the fault tolerance helpers used around every
// outbound call the worker makes.
//
//   - circuitbreaker: sony/gobreaker wrappers for feeds, article hosts,
//     the annotation providers and the mail provider
//   - retry: exponential backoff with jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    _, err := circuitbreaker.Do(cb, func() (*gofeed.Feed, error) {
//	        return parser.ParseURLWithContext(url, ctx)
//	    })
//	    return err
//	})
package resilience
