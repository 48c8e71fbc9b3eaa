// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all pipeline metrics including:
//   - Discovery metrics (runs, links found, duration)
//   - Fetch metrics (attempts by outcome, duration, content size)
//   - Embedding metrics (batches, duration, vector upserts)
//   - Backlog gauges (pending/failed links, pending articles)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "newsingest/internal/observability/metrics"
//
//	func collect(source string) {
//	    start := time.Now()
//	    // ... discover links ...
//	    metrics.RecordDiscovery(source, "fresh", time.Since(start), found, err)
//	}
package metrics
