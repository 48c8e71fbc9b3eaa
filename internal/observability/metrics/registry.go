// Package metrics provides centralized Prometheus metrics for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Discovery metrics track link collection from publishers
var (
	// LinksDiscoveredTotal counts link records produced by discovery
	LinksDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "links_discovered_total",
			Help: "Total number of links discovered",
		},
		[]string{"source", "mode"}, // mode: fresh, historical
	)

	// DiscoveryRunsTotal counts discovery runs by outcome
	DiscoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_runs_total",
			Help: "Total number of discovery runs",
		},
		[]string{"source", "mode", "result"}, // result: success, failure
	)

	// DiscoveryDuration measures one discovery run
	DiscoveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_duration_seconds",
			Help:    "Time taken for one discovery run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source", "mode"},
	)
)

// Fetch metrics track article page retrieval
var (
	// FetchAttemptsTotal counts fetch attempts by outcome class
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of article fetch attempts",
		},
		[]string{"source", "result"}, // result: success, retry, permanent
	)

	// FetchDuration measures time to fetch and extract one article
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Time taken to fetch and extract one article",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
		[]string{"source"},
	)

	// FetchContentSize measures extracted content size in characters
	FetchContentSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_content_chars",
			Help:    "Extracted article content size in characters",
			Buckets: prometheus.ExponentialBuckets(50, 4, 10),
		},
	)
)

// Embedding metrics track vectorization and upserts
var (
	// EmbeddingBatchesTotal counts embedding batches by outcome
	EmbeddingBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_batches_total",
			Help: "Total number of embedding batches processed",
		},
		[]string{"provider", "result"}, // result: success, failure, rate_limited
	)

	// EmbeddingDuration measures one batch embed call
	EmbeddingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "embedding_duration_seconds",
			Help:    "Time taken to embed one batch",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"provider"},
	)

	// VectorPointsUpsertedTotal counts points written to the vector store
	VectorPointsUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vector_points_upserted_total",
			Help: "Total number of points upserted into the vector store",
		},
	)
)

// Backlog gauges reflect pending work in the relational store
var (
	// LinksPending tracks link records awaiting fetch
	LinksPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "links_pending",
			Help: "Link records in pending status",
		},
	)

	// LinksCompleted tracks link records whose article has been fetched
	LinksCompleted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "links_completed",
			Help: "Link records in completed status",
		},
	)

	// LinksFailed tracks link records abandoned after retries
	LinksFailed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "links_failed",
			Help: "Link records in failed status",
		},
	)

	// ArticlesPending tracks article records awaiting embedding
	ArticlesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "articles_pending",
			Help: "Article records awaiting embedding",
		},
	)

	// ArticlesCompleted tracks article records present in the vector index
	ArticlesCompleted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "articles_completed",
			Help: "Article records embedded into the vector index",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "claim_links", "upsert_links").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
