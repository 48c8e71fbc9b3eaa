package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"newsingest/internal/pkg/config"
)

// WorkerMetrics tracks the scheduled collection job and embeds the
// standard configuration metrics.
//
// Job metrics:
//   - worker_collection_runs_total{status}
//   - worker_collection_duration_seconds
//   - worker_collection_links_total
//   - worker_collection_last_success_timestamp
type WorkerMetrics struct {
	*config.ConfigMetrics

	CollectionRunsTotal         *prometheus.CounterVec
	CollectionDurationSeconds   prometheus.Histogram
	CollectionLinksTotal        prometheus.Counter
	CollectionLastSuccessMoment prometheus.Gauge
}

// NewWorkerMetrics creates the worker metrics, registered against the
// default Prometheus registry via promauto.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CollectionRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_collection_runs_total",
			Help: "Total number of scheduled collection runs by status (started/success/failure)",
		}, []string{"status"}),

		CollectionDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_collection_duration_seconds",
			Help:    "Duration of scheduled collection runs in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}),

		CollectionLinksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_collection_links_total",
			Help: "Total number of new links discovered by scheduled collection runs",
		}),

		CollectionLastSuccessMoment: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_collection_last_success_timestamp",
			Help: "Unix timestamp of the last successful collection run",
		}),
	}
}

// RecordCollectionRun counts a run with the given status ("started",
// "success", "failure").
func (m *WorkerMetrics) RecordCollectionRun(status string) {
	m.CollectionRunsTotal.WithLabelValues(status).Inc()
}

// RecordCollectionDuration observes one run's duration in seconds.
func (m *WorkerMetrics) RecordCollectionDuration(seconds float64) {
	m.CollectionDurationSeconds.Observe(seconds)
}

// RecordLinksCollected adds the new links found by one run.
func (m *WorkerMetrics) RecordLinksCollected(count int64) {
	m.CollectionLinksTotal.Add(float64(count))
}

// RecordLastSuccess marks now as the last successful run.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CollectionLastSuccessMoment.SetToCurrentTime()
}
