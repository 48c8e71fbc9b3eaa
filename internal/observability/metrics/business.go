package metrics

import (
	"time"
)

// RecordDiscovery records one discovery run. Mode is "fresh" or "historical".
func RecordDiscovery(source, mode string, duration time.Duration, linksFound int, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	DiscoveryRunsTotal.WithLabelValues(source, mode, result).Inc()
	DiscoveryDuration.WithLabelValues(source, mode).Observe(duration.Seconds())
	if linksFound > 0 {
		LinksDiscoveredTotal.WithLabelValues(source, mode).Add(float64(linksFound))
	}
}

// RecordFetchSuccess records a successful article fetch with its extracted
// content size in characters.
func RecordFetchSuccess(source string, duration time.Duration, contentChars int) {
	FetchAttemptsTotal.WithLabelValues(source, "success").Inc()
	FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	FetchContentSize.Observe(float64(contentChars))
}

// RecordFetchRetry records a fetch failure that will be retried.
func RecordFetchRetry(source string, duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues(source, "retry").Inc()
	FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordFetchPermanent records a fetch failure abandoned without retry.
func RecordFetchPermanent(source string, duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues(source, "permanent").Inc()
	FetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordEmbeddingBatch records one embedding batch call.
func RecordEmbeddingBatch(provider string, duration time.Duration, rateLimited bool, err error) {
	result := "success"
	switch {
	case rateLimited:
		result = "rate_limited"
	case err != nil:
		result = "failure"
	}
	EmbeddingBatchesTotal.WithLabelValues(provider, result).Inc()
	EmbeddingDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordVectorUpsert records points written to the vector store.
func RecordVectorUpsert(points int) {
	if points > 0 {
		VectorPointsUpsertedTotal.Add(float64(points))
	}
}

// UpdateLinkBacklog updates the link backlog gauges.
func UpdateLinkBacklog(pending, completed, failed int64) {
	LinksPending.Set(float64(pending))
	LinksCompleted.Set(float64(completed))
	LinksFailed.Set(float64(failed))
}

// UpdateArticleBacklog updates the article backlog gauges.
func UpdateArticleBacklog(pending, completed int64) {
	ArticlesPending.Set(float64(pending))
	ArticlesCompleted.Set(float64(completed))
}
