// Package resilience guards outbound requests made while checking a site.
//
// The link scan issues one HEAD request per site-absolute link; a large
// content tree can produce hundreds of them against a single host. The
// primitives here keep that traffic polite and bounded:
//
//   - Retry re-issues requests that failed for a transient reason.
//   - RateLimiter spaces requests out (token bucket, golang.org/x/time/rate).
//   - Bulkhead caps the number of requests in flight.
//   - CircuitBreaker stops hammering a host that keeps failing; Breakers
//     keeps one per host.
//
// Executor composes them:
//
//	exec := resilience.NewExecutor(
//	    resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: 20})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 8})),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 2})),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    _, err := client.Head(ctx, link)
//	    return err
//	})
package resilience
