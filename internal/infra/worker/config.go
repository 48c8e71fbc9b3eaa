package worker

import (
	"fmt"
	"log/slog"
	"time"

	"newsingest/internal/pkg/config"
)

// PipelineConfig holds the operational knobs for the ingestion worker:
// the fresh-collection schedule, the dispatcher and embedder batch
// tuning, and the health server port. All fields have defaults and
// loading is fail-open, so a bad environment never stops the worker.
type PipelineConfig struct {
	// CronSchedule is the five-field cron expression for fresh link
	// collection. Default: every 15 minutes.
	CronSchedule string

	// Timezone is the IANA timezone the cron schedule is evaluated in.
	Timezone string

	// CollectTimeout bounds one fresh collection run across all sources.
	CollectTimeout time.Duration

	// MaxRetries is how many fetch attempts a link gets before it is
	// marked failed.
	MaxRetries int

	// MinContentChars is the minimum extracted content length accepted
	// as a real article.
	MinContentChars int

	// ClaimLimit is the maximum links the dispatcher claims per cycle.
	ClaimLimit int

	// PerSourceWorkers bounds concurrent fetches against one publisher.
	PerSourceWorkers int

	// SourceRPS rate-limits requests per second against one publisher.
	SourceRPS float64

	// EmbedBatchSize is the maximum articles embedded per cycle.
	EmbedBatchSize int

	// PollInterval is the dispatcher and embedder poll cadence when the
	// queue is quiet.
	PollInterval time.Duration

	// MaxPollInterval caps the idle poll backoff.
	MaxPollInterval time.Duration

	// HealthPort is the port for the health check HTTP server.
	HealthPort int
}

// DefaultConfig returns production-ready defaults: fresh collection every
// 15 minutes in UTC, three fetch attempts per link, and batch sizes that
// keep a single Postgres instance comfortable.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		CronSchedule:     "*/15 * * * *",
		Timezone:         "UTC",
		CollectTimeout:   10 * time.Minute,
		MaxRetries:       3,
		MinContentChars:  50,
		ClaimLimit:       50,
		PerSourceWorkers: 5,
		SourceRPS:        2.0,
		EmbedBatchSize:   50,
		PollInterval:     30 * time.Second,
		MaxPollInterval:  5 * time.Minute,
		HealthPort:       9091,
	}
}

// Validate checks every field and returns the collected failures.
func (c *PipelineConfig) Validate() error {
	var errs []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errs = append(errs, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidateDuration(c.CollectTimeout, 1*time.Minute, 4*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("collect timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxRetries, 1, 10); err != nil {
		errs = append(errs, fmt.Errorf("max retries: %w", err))
	}
	if err := config.ValidateIntRange(c.MinContentChars, 1, 10000); err != nil {
		errs = append(errs, fmt.Errorf("min content chars: %w", err))
	}
	if err := config.ValidateIntRange(c.ClaimLimit, 1, 500); err != nil {
		errs = append(errs, fmt.Errorf("claim limit: %w", err))
	}
	if err := config.ValidateIntRange(c.PerSourceWorkers, 1, 50); err != nil {
		errs = append(errs, fmt.Errorf("per-source workers: %w", err))
	}
	if err := config.ValidateFloatRange(c.SourceRPS, 0.1, 100); err != nil {
		errs = append(errs, fmt.Errorf("source rps: %w", err))
	}
	if err := config.ValidateIntRange(c.EmbedBatchSize, 1, 500); err != nil {
		errs = append(errs, fmt.Errorf("embed batch size: %w", err))
	}
	if err := config.ValidateDuration(c.PollInterval, 1*time.Second, 10*time.Minute); err != nil {
		errs = append(errs, fmt.Errorf("poll interval: %w", err))
	}
	if err := config.ValidateDuration(c.MaxPollInterval, c.PollInterval, 1*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("max poll interval: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the pipeline configuration from environment
// variables with per-field validation. A value that fails validation is
// replaced by its default, logged, and counted in metrics; the returned
// config is always usable and the error is always nil.
//
// Environment variables:
//   - COLLECT_CRON_SCHEDULE (default "*/15 * * * *")
//   - WORKER_TIMEZONE (default "UTC")
//   - COLLECT_TIMEOUT (default "10m", range 1m-4h)
//   - MAX_RETRIES (default 3, range 1-10)
//   - MIN_CONTENT_CHARS (default 50, range 1-10000)
//   - DISPATCH_CLAIM_LIMIT (default 50, range 1-500)
//   - DISPATCH_SOURCE_WORKERS (default 5, range 1-50)
//   - DISPATCH_SOURCE_RPS (default 2.0, range 0.1-100)
//   - EMBED_BATCH_SIZE (default 50, range 1-500)
//   - POLL_INTERVAL (default "30s", range 1s-10m)
//   - MAX_POLL_INTERVAL (default "5m", range poll interval-1h)
//   - WORKER_HEALTH_PORT (default 9091, range 1024-65535)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) (*PipelineConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	noteFallback := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field)
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvWithFallback("COLLECT_CRON_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)
	cfg.CronSchedule = result.Value.(string)
	noteFallback("cron_schedule", result)

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	noteFallback("timezone", result)

	result = config.LoadEnvDuration("COLLECT_TIMEOUT", cfg.CollectTimeout, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Minute, 4*time.Hour)
	})
	cfg.CollectTimeout = result.Value.(time.Duration)
	noteFallback("collect_timeout", result)

	result = config.LoadEnvInt("MAX_RETRIES", cfg.MaxRetries, func(v int) error {
		return config.ValidateIntRange(v, 1, 10)
	})
	cfg.MaxRetries = result.Value.(int)
	noteFallback("max_retries", result)

	result = config.LoadEnvInt("MIN_CONTENT_CHARS", cfg.MinContentChars, func(v int) error {
		return config.ValidateIntRange(v, 1, 10000)
	})
	cfg.MinContentChars = result.Value.(int)
	noteFallback("min_content_chars", result)

	result = config.LoadEnvInt("DISPATCH_CLAIM_LIMIT", cfg.ClaimLimit, func(v int) error {
		return config.ValidateIntRange(v, 1, 500)
	})
	cfg.ClaimLimit = result.Value.(int)
	noteFallback("dispatch_claim_limit", result)

	result = config.LoadEnvInt("DISPATCH_SOURCE_WORKERS", cfg.PerSourceWorkers, func(v int) error {
		return config.ValidateIntRange(v, 1, 50)
	})
	cfg.PerSourceWorkers = result.Value.(int)
	noteFallback("dispatch_source_workers", result)

	result = config.LoadEnvFloat("DISPATCH_SOURCE_RPS", cfg.SourceRPS, func(v float64) error {
		return config.ValidateFloatRange(v, 0.1, 100)
	})
	cfg.SourceRPS = result.Value.(float64)
	noteFallback("dispatch_source_rps", result)

	result = config.LoadEnvInt("EMBED_BATCH_SIZE", cfg.EmbedBatchSize, func(v int) error {
		return config.ValidateIntRange(v, 1, 500)
	})
	cfg.EmbedBatchSize = result.Value.(int)
	noteFallback("embed_batch_size", result)

	result = config.LoadEnvDuration("POLL_INTERVAL", cfg.PollInterval, func(d time.Duration) error {
		return config.ValidateDuration(d, 1*time.Second, 10*time.Minute)
	})
	cfg.PollInterval = result.Value.(time.Duration)
	noteFallback("poll_interval", result)

	result = config.LoadEnvDuration("MAX_POLL_INTERVAL", cfg.MaxPollInterval, func(d time.Duration) error {
		return config.ValidateDuration(d, cfg.PollInterval, 1*time.Hour)
	})
	cfg.MaxPollInterval = result.Value.(time.Duration)
	noteFallback("max_poll_interval", result)

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return config.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	noteFallback("health_port", result)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}
