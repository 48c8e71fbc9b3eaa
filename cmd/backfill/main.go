// Backfill walks a publisher's daily archive pages over a date range and
// persists every discovered link. Pending links are picked up by the
// running worker's dispatcher, or by a worker started afterwards.
//
// Usage:
//
//	backfill -source dailypost -from 2024-01-01 -to 2024-03-31
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	pgRepo "newsingest/internal/infra/adapter/persistence/postgres"
	"newsingest/internal/infra/db"
	"newsingest/internal/infra/publisher"
	"newsingest/internal/infra/queue"
	"newsingest/internal/observability/logging"
	"newsingest/internal/usecase/collect"
	"newsingest/pkg/config"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		source     = flag.String("source", "", "source name to backfill (required)")
		fromStr    = flag.String("from", "", "start date, inclusive, YYYY-MM-DD (required)")
		toStr      = flag.String("to", "", "end date, inclusive, YYYY-MM-DD (required)")
		batchDays  = flag.Int("batch-days", collect.DefaultBatchDays, "days written per transaction")
		dayWorkers = flag.Int("day-workers", collect.DefaultDayWorkers, "concurrent archive day fetches")
	)
	flag.Parse()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if *source == "" || *fromStr == "" || *toStr == "" {
		flag.Usage()
		os.Exit(2)
	}
	from, err := time.Parse(dateLayout, *fromStr)
	if err != nil {
		logger.Error("invalid -from date", slog.String("value", *fromStr), slog.Any("error", err))
		os.Exit(2)
	}
	to, err := time.Parse(dateLayout, *toStr)
	if err != nil {
		logger.Error("invalid -to date", slog.String("value", *toStr), slog.Any("error", err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database := db.Open()
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("migrations failed", slog.Any("error", err))
		os.Exit(1)
	}

	registry, err := publisher.LoadRegistryFromFile(
		config.GetEnvString("SOURCES_CONFIG", "configs/sources.json"),
		config.GetEnvInt("MIN_CONTENT_CHARS", 50),
	)
	if err != nil {
		logger.Error("failed to load sources config", slog.Any("error", err))
		os.Exit(1)
	}

	maxRetries := config.GetEnvInt("MAX_RETRIES", 3)
	linkRepo := pgRepo.NewLinkRepo(database, maxRetries)

	broker, cleanup := buildBroker(logger)
	defer cleanup()

	collector := collect.NewHistoricalCollector(registry, linkRepo, broker, *batchDays, *dayWorkers)

	logger.Info("backfill starting",
		slog.String("source", *source),
		slog.String("from", from.Format(dateLayout)),
		slog.String("to", to.Format(dateLayout)),
		slog.Int("batch_days", *batchDays),
		slog.Int("day_workers", *dayWorkers))

	start := time.Now()
	written, err := collector.Collect(ctx, *source, from, to)
	if err != nil {
		logger.Error("backfill failed",
			slog.String("source", *source),
			slog.Int64("links_written", written),
			slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("backfill completed",
		slog.String("source", *source),
		slog.Int64("links_written", written),
		slog.Duration("duration", time.Since(start).Round(time.Second)))
	fmt.Printf("backfilled %d links for %s (%s to %s)\n",
		written, *source, from.Format(dateLayout), to.Format(dateLayout))
}

// buildBroker mirrors the worker's queue selection so a backfill run can
// wake a live dispatcher through the same Redis stream.
func buildBroker(logger *slog.Logger) (queue.Broker, func()) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Info("REDIS_ADDR not set, using in-process queue")
		broker := queue.NewChannelBroker()
		return broker, func() { _ = broker.Close() }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       config.GetEnvInt("REDIS_DB", 0),
	})
	broker := queue.NewRedisStreamBroker(client)
	return broker, func() { _ = broker.Close() }
}
