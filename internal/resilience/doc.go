// Package resilience provides the fault tolerance building blocks the
// pipeline wraps around external calls: circuit breakers for publisher
// fetches and embedding providers, and retry with exponential backoff and
// jitter for transient failures.
//
//	cb := circuitbreaker.New(circuitbreaker.PageFetchConfig("technews"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchPage(ctx, url)
//	})
//
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    return discoverLinks(ctx)
//	})
package resilience
