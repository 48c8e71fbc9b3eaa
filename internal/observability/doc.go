// Package observability groups the logging and metrics infrastructure for
// the ingestion pipeline.
//
// Subpackages:
//   - logging: structured JSON logging with slog and context propagation
//   - metrics: Prometheus collectors for pipeline throughput, backlogs,
//     and external call latency
package observability
