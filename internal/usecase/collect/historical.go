package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"newsingest/internal/infra/publisher"
	"newsingest/internal/infra/queue"
	"newsingest/internal/observability/metrics"
	"newsingest/internal/repository"
)

// Defaults for the historical walk.
const (
	// DefaultBatchDays is how many days one batch covers.
	DefaultBatchDays = 10

	// DefaultDayWorkers is how many days of one batch are discovered
	// concurrently.
	DefaultDayWorkers = 4
)

// HistoricalCollector backfills link records for a date range by walking a
// publisher's archive day by day. Days within a batch run concurrently;
// batches run sequentially to keep memory bounded. Each day's links are
// persisted as soon as that day completes.
type HistoricalCollector struct {
	registry   *publisher.Registry
	links      repository.LinkRepository
	broker     queue.Broker
	batchDays  int
	dayWorkers int
}

func NewHistoricalCollector(
	registry *publisher.Registry,
	links repository.LinkRepository,
	broker queue.Broker,
	batchDays, dayWorkers int,
) *HistoricalCollector {
	if batchDays <= 0 {
		batchDays = DefaultBatchDays
	}
	if dayWorkers <= 0 {
		dayWorkers = DefaultDayWorkers
	}
	return &HistoricalCollector{
		registry:   registry,
		links:      links,
		broker:     broker,
		batchDays:  batchDays,
		dayWorkers: dayWorkers,
	}
}

// Collect walks [from, to] inclusive for one source and returns the total
// number of link rows written. A failed day aborts the walk; completed days
// stay persisted and a rerun re-covers the rest idempotently.
func (c *HistoricalCollector) Collect(ctx context.Context, source string, from, to time.Time) (int64, error) {
	adapter, ok := c.registry.Lookup(source)
	if !ok {
		return 0, fmt.Errorf("no adapter registered for source %q", source)
	}

	fromDay := truncateDay(from)
	toDay := truncateDay(to)
	if toDay.Before(fromDay) {
		return 0, fmt.Errorf("historical range inverted: %s after %s",
			fromDay.Format("2006-01-02"), toDay.Format("2006-01-02"))
	}

	start := time.Now()
	var total atomic.Int64

	err := c.walk(ctx, adapter, fromDay, toDay, &total)
	metrics.RecordDiscovery(source, "historical", time.Since(start), int(total.Load()), err)
	if err != nil {
		return total.Load(), err
	}

	slog.Info("historical collection complete",
		slog.String("source", source),
		slog.String("from", fromDay.Format("2006-01-02")),
		slog.String("to", toDay.Format("2006-01-02")),
		slog.Int64("written", total.Load()),
		slog.Duration("elapsed", time.Since(start)))

	return total.Load(), nil
}

func (c *HistoricalCollector) walk(ctx context.Context, adapter publisher.Adapter, fromDay, toDay time.Time, total *atomic.Int64) error {
	source := adapter.Source()

	for batchStart := fromDay; !batchStart.After(toDay); batchStart = batchStart.AddDate(0, 0, c.batchDays) {
		batchEnd := batchStart.AddDate(0, 0, c.batchDays-1)
		if batchEnd.After(toDay) {
			batchEnd = toDay
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(c.dayWorkers)

		for day := batchStart; !day.After(batchEnd); day = day.AddDate(0, 0, 1) {
			eg.Go(func() error {
				discovered, err := adapter.DiscoverForDay(egCtx, day)
				if err != nil {
					return fmt.Errorf("day %s: %w", day.Format("2006-01-02"), err)
				}

				records := validRecords(source, discovered)
				written, err := c.links.UpsertBatch(egCtx, records)
				if err != nil {
					return fmt.Errorf("persist day %s: %w", day.Format("2006-01-02"), err)
				}
				total.Add(written)
				publishLinks(egCtx, c.broker, records)

				slog.Debug("historical day persisted",
					slog.String("source", source),
					slog.String("day", day.Format("2006-01-02")),
					slog.Int64("written", written))
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
