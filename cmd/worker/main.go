// The worker runs the whole ingestion pipeline in one process: scheduled
// fresh link collection, the page fetcher dispatcher, and the embedding
// scheduler, plus health and metrics endpoints.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	pgRepo "newsingest/internal/infra/adapter/persistence/postgres"
	"newsingest/internal/infra/cache"
	"newsingest/internal/infra/db"
	"newsingest/internal/infra/embedder"
	"newsingest/internal/infra/notifier"
	"newsingest/internal/infra/publisher"
	"newsingest/internal/infra/queue"
	"newsingest/internal/infra/vector"
	workerPkg "newsingest/internal/infra/worker"
	"newsingest/internal/observability/logging"
	"newsingest/internal/observability/metrics"
	"newsingest/internal/repository"
	"newsingest/internal/usecase/collect"
	"newsingest/internal/usecase/dispatch"
	"newsingest/internal/usecase/embed"
	"newsingest/pkg/config"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := workerPkg.NewWorkerMetrics()
	cfg, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Int("max_retries", cfg.MaxRetries),
		slog.Int("claim_limit", cfg.ClaimLimit),
		slog.Int("embed_batch_size", cfg.EmbedBatchSize),
		slog.Duration("poll_interval", cfg.PollInterval))

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

	linkRepo := pgRepo.NewLinkRepo(database, cfg.MaxRetries)
	articleRepo := pgRepo.NewArticleRepo(database)

	broker, markers, brokerCleanup := buildBrokerAndMarkers(logger)
	defer brokerCleanup()

	registry, err := publisher.LoadRegistryFromFile(
		config.GetEnvString("SOURCES_CONFIG", "configs/sources.json"),
		cfg.MinContentChars,
	)
	if err != nil {
		logger.Error("failed to load sources config", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("publisher registry built", slog.Int("sources", len(registry.Sources())))

	emb, err := buildEmbedder(logger)
	if err != nil {
		logger.Error("failed to build embedder", slog.Any("error", err))
		os.Exit(1)
	}

	store := vector.NewPGStore(database)
	collection := config.GetEnvString("VECTOR_COLLECTION", "news_articles")
	if err := store.EnsureCollection(ctx, collection, emb.Dimension()); err != nil {
		logger.Error("failed to ensure vector collection", slog.Any("error", err))
		os.Exit(1)
	}
	if err := store.EnsurePayloadIndexes(ctx, collection); err != nil {
		logger.Error("failed to ensure vector payload indexes", slog.Any("error", err))
		os.Exit(1)
	}

	reporter := buildNotifier(logger)

	startMetricsServer(ctx, logger)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort), logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	dispatcher := dispatch.NewDispatcher(registry, linkRepo, broker, dispatch.Config{
		ClaimLimit:       cfg.ClaimLimit,
		PerSourceWorkers: cfg.PerSourceWorkers,
		SourceRPS:        cfg.SourceRPS,
		PollInterval:     cfg.PollInterval,
		MaxPollInterval:  cfg.MaxPollInterval,
	})
	scheduler := embed.NewScheduler(articleRepo, emb, store, broker, embed.Config{
		Collection:      collection,
		BatchSize:       cfg.EmbedBatchSize,
		PollInterval:    cfg.PollInterval,
		MaxPollInterval: cfg.MaxPollInterval,
	})
	fresh := collect.NewFreshCollector(registry, linkRepo, markers, broker)

	cronRunner, err := startCollectionCron(logger, fresh, registry, cfg, workerMetrics, reporter)
	if err != nil {
		logger.Error("failed to start collection cron", slog.Any("error", err))
		os.Exit(1)
	}

	go dispatcher.Run(ctx)
	go scheduler.Run(ctx)
	go runBacklogGauges(ctx, database, linkRepo, articleRepo)

	healthServer.SetReady(true)
	logger.Info("pipeline started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("collection", collection),
		slog.String("embedder", emb.ProviderName()))

	<-ctx.Done()
	logger.Info("shutdown signal received")
	cronCtx := cronRunner.Stop()
	<-cronCtx.Done()
	logger.Info("pipeline stopped")
}

// buildBrokerAndMarkers wires Redis when REDIS_ADDR is set, falling back
// to in-process implementations so the pipeline also runs standalone.
func buildBrokerAndMarkers(logger *slog.Logger) (queue.Broker, cache.MarkerStore, func()) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Info("REDIS_ADDR not set, using in-process queue and markers")
		broker := queue.NewChannelBroker()
		return broker, cache.NewMemoryMarkers(), func() { _ = broker.Close() }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       config.GetEnvInt("REDIS_DB", 0),
	})
	logger.Info("redis connected", slog.String("addr", addr))

	// broker.Close also closes the shared client.
	broker := queue.NewRedisStreamBroker(client)
	return broker, cache.NewRedisMarkers(client), func() {
		if err := broker.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}
}

// buildEmbedder selects the embedding provider from EMBEDDER_PROVIDER
// ("openai" or "ollama", default openai).
func buildEmbedder(logger *slog.Logger) (embedder.Embedder, error) {
	provider := config.GetEnvString("EMBEDDER_PROVIDER", "openai")

	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDER_PROVIDER=openai")
		}
		model := config.GetEnvString("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small")
		logger.Info("using OpenAI embedder", slog.String("model", model))
		return embedder.NewOpenAI(apiKey, model)
	case "ollama":
		host := config.GetEnvString("OLLAMA_HOST", "http://localhost:11434")
		model := config.GetEnvString("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text")
		workers := config.GetEnvInt("OLLAMA_EMBED_WORKERS", 4)
		logger.Info("using Ollama embedder",
			slog.String("host", host),
			slog.String("model", model))
		return embedder.NewOllama(host, model, workers)
	default:
		return nil, fmt.Errorf("invalid EMBEDDER_PROVIDER %q, expected openai or ollama", provider)
	}
}

// buildNotifier assembles the configured webhook notifiers; with none
// enabled reports are discarded.
func buildNotifier(logger *slog.Logger) notifier.Notifier {
	var notifiers []notifier.Notifier

	if config.GetEnvBool("SLACK_ENABLED", false) {
		url := os.Getenv("SLACK_WEBHOOK_URL")
		if url == "" {
			logger.Warn("SLACK_ENABLED set but SLACK_WEBHOOK_URL empty, skipping slack")
		} else {
			notifiers = append(notifiers, notifier.NewSlackNotifier(notifier.SlackConfig{
				Enabled:    true,
				WebhookURL: url,
				Timeout:    30 * time.Second,
			}))
			logger.Info("slack reporting enabled")
		}
	}

	if config.GetEnvBool("DISCORD_ENABLED", false) {
		url := os.Getenv("DISCORD_WEBHOOK_URL")
		if url == "" {
			logger.Warn("DISCORD_ENABLED set but DISCORD_WEBHOOK_URL empty, skipping discord")
		} else {
			notifiers = append(notifiers, notifier.NewDiscordNotifier(notifier.DiscordConfig{
				Enabled:    true,
				WebhookURL: url,
				Timeout:    30 * time.Second,
			}))
			logger.Info("discord reporting enabled")
		}
	}

	if len(notifiers) == 0 {
		return notifier.NewNoopNotifier()
	}
	return notifier.NewMulti(notifiers...)
}

// startCollectionCron schedules fresh collection runs.
func startCollectionCron(
	logger *slog.Logger,
	fresh *collect.FreshCollector,
	registry *publisher.Registry,
	cfg *workerPkg.PipelineConfig,
	workerMetrics *workerPkg.WorkerMetrics,
	reporter notifier.Notifier,
) (*cron.Cron, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone),
			slog.Any("error", err))
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))
	_, err = c.AddFunc(cfg.CronSchedule, func() {
		runCollection(logger, fresh, registry, cfg, workerMetrics, reporter)
	})
	if err != nil {
		return nil, fmt.Errorf("add collection cron job: %w", err)
	}
	c.Start()

	logger.Info("collection cron started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone))
	return c, nil
}

// runCollection executes one fresh collection pass and reports it.
func runCollection(
	logger *slog.Logger,
	fresh *collect.FreshCollector,
	registry *publisher.Registry,
	cfg *workerPkg.PipelineConfig,
	workerMetrics *workerPkg.WorkerMetrics,
	reporter notifier.Notifier,
) {
	start := time.Now()
	workerMetrics.RecordCollectionRun("started")
	logger.Info("fresh collection started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CollectTimeout)
	defer cancel()

	var newLinks int64
	failures := 0
	for _, source := range registry.Sources() {
		if ctx.Err() != nil {
			break
		}
		written, err := fresh.CollectSource(ctx, source)
		if err != nil {
			failures++
			logger.Error("fresh collection failed",
				slog.String("source", source),
				slog.Any("error", err))
			continue
		}
		newLinks += written
	}

	elapsed := time.Since(start)
	workerMetrics.RecordCollectionDuration(elapsed.Seconds())
	workerMetrics.RecordLinksCollected(newLinks)
	if failures == len(registry.Sources()) {
		workerMetrics.RecordCollectionRun("failure")
	} else {
		workerMetrics.RecordCollectionRun("success")
		workerMetrics.RecordLastSuccess()
	}

	report := notifier.Report{
		RanAt:    start,
		Sources:  len(registry.Sources()),
		NewLinks: newLinks,
		Failures: failures,
		Duration: elapsed,
	}
	if err := reporter.NotifyReport(ctx, report); err != nil {
		logger.Warn("collection report delivery failed", slog.Any("error", err))
	}

	logger.Info("fresh collection completed",
		slog.Int64("new_links", newLinks),
		slog.Int("failures", failures),
		slog.Duration("duration", elapsed))
}

// runBacklogGauges refreshes the backlog and connection pool gauges.
func runBacklogGauges(ctx context.Context, database *sql.DB, links repository.LinkRepository, articles repository.ArticleRepository) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if stats, err := links.Stats(ctx); err == nil {
			metrics.UpdateLinkBacklog(stats.Pending, stats.Completed, stats.Failed)
		} else if ctx.Err() == nil {
			slog.Warn("link stats query failed", slog.Any("error", err))
		}

		if stats, err := articles.Stats(ctx); err == nil {
			metrics.UpdateArticleBacklog(stats.Pending, stats.Completed)
		} else if ctx.Err() == nil {
			slog.Warn("article stats query failed", slog.Any("error", err))
		}

		pool := database.Stats()
		metrics.UpdateDBConnectionStats(pool.InUse, pool.Idle)
	}
}
