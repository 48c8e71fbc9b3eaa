// Package collect implements link discovery: the periodic fresh collector
// that tails each publisher's feed, and the historical collector that
// backfills date ranges. Both write link records only; article content is the
// dispatcher's job.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsingest/internal/domain/entity"
	"newsingest/internal/infra/cache"
	"newsingest/internal/infra/publisher"
	"newsingest/internal/infra/queue"
	"newsingest/internal/observability/metrics"
	"newsingest/internal/repository"
)

// FreshCollector tails publisher feeds on a fixed cadence, persisting links
// that appeared since the last run.
type FreshCollector struct {
	registry *publisher.Registry
	links    repository.LinkRepository
	markers  cache.MarkerStore
	broker   queue.Broker
}

func NewFreshCollector(
	registry *publisher.Registry,
	links repository.LinkRepository,
	markers cache.MarkerStore,
	broker queue.Broker,
) *FreshCollector {
	return &FreshCollector{
		registry: registry,
		links:    links,
		markers:  markers,
		broker:   broker,
	}
}

// CollectSource runs one fresh collection for a single source and returns the
// number of link rows written. The marker advances only after the new links
// are durably persisted, so a crash between discovery and upsert re-discovers
// rather than loses.
func (c *FreshCollector) CollectSource(ctx context.Context, source string) (int64, error) {
	start := time.Now()
	written, err := c.collectSource(ctx, source)
	metrics.RecordDiscovery(source, "fresh", time.Since(start), int(written), err)
	return written, err
}

func (c *FreshCollector) collectSource(ctx context.Context, source string) (int64, error) {
	adapter, ok := c.registry.Lookup(source)
	if !ok {
		return 0, fmt.Errorf("no adapter registered for source %q", source)
	}

	marker, err := c.markers.Marker(ctx, source)
	if err != nil {
		// A dead cache costs one full feed walk, nothing more.
		slog.Warn("marker read failed, walking full feed",
			slog.String("source", source),
			slog.Any("error", err))
		marker = ""
	}

	newestURL, discovered, err := adapter.DiscoverRecent(ctx, marker)
	if err != nil {
		return 0, fmt.Errorf("discover recent for %s: %w", source, err)
	}

	records := validRecords(source, discovered)
	written, err := c.links.UpsertBatch(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("persist links for %s: %w", source, err)
	}

	publishLinks(ctx, c.broker, records)

	if newestURL != "" {
		if err := c.markers.SetMarker(ctx, source, newestURL); err != nil {
			// Links are already durable; next run just walks further.
			slog.Warn("marker write failed",
				slog.String("source", source),
				slog.Any("error", err))
		}
	}

	slog.Info("fresh collection complete",
		slog.String("source", source),
		slog.Int("discovered", len(discovered)),
		slog.Int64("written", written),
		slog.String("marker", newestURL))

	return written, nil
}

// publishLinks hands persisted links to the broker. A publish failure is not
// a collection failure; the dispatcher's poll loop covers for lost messages.
func publishLinks(ctx context.Context, broker queue.Broker, records []entity.LinkRecord) {
	for _, r := range records {
		if err := broker.Publish(ctx, queue.TopicLinks, queue.NewLinkMessage(r)); err != nil {
			slog.Warn("link message publish failed",
				slog.String("source", r.Source),
				slog.String("url", r.URL),
				slog.Any("error", err))
			return
		}
	}
}

// validRecords drops records that fail entity validation, logging each one.
// The input slice is left untouched.
func validRecords(source string, records []entity.LinkRecord) []entity.LinkRecord {
	valid := make([]entity.LinkRecord, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			slog.Warn("dropping invalid discovered link",
				slog.String("source", source),
				slog.String("url", r.URL),
				slog.Any("error", err))
			continue
		}
		valid = append(valid, r)
	}
	return valid
}
