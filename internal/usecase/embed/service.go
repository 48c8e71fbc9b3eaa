// Package embed implements the embedding scheduler: the stage that turns
// pending article records into vector points and marks them completed once
// the vector index holds them.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"newsingest/internal/domain/entity"
	"newsingest/internal/infra/embedder"
	"newsingest/internal/infra/queue"
	"newsingest/internal/infra/vector"
	"newsingest/internal/observability/metrics"
	"newsingest/internal/repository"
	"newsingest/internal/resilience/retry"
)

// Defaults for the scheduler knobs.
const (
	DefaultBatchSize       = 50
	DefaultPollInterval    = 30 * time.Second
	DefaultMaxPollInterval = 5 * time.Minute
	DefaultIdleThreshold   = 3

	// Rate-limit cadence backoff bounds.
	rateLimitBackoffBase = 2 * time.Second
	rateLimitBackoffCap  = 10 * time.Second
)

// Config tunes one Scheduler.
type Config struct {
	// Collection is the vector store collection points are written to.
	Collection string

	// BatchSize is the maximum articles claimed per cycle.
	BatchSize int

	// PollInterval is the sleep after an empty claim.
	PollInterval time.Duration

	// MaxPollInterval caps the idle backoff.
	MaxPollInterval time.Duration

	// IdleThreshold is how many consecutive empty cycles trigger a doubling
	// of the poll interval.
	IdleThreshold int

	// Consumer names this process to the broker's consumer group.
	Consumer string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxPollInterval < c.PollInterval {
		c.MaxPollInterval = DefaultMaxPollInterval
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
	if c.Consumer == "" {
		c.Consumer = "embedder"
	}
	return c
}

// Scheduler claims pending articles, embeds them in one batch call, upserts
// the points, and marks the articles completed.
type Scheduler struct {
	articles repository.ArticleRepository
	embedder embedder.Embedder
	store    vector.Store
	broker   queue.Broker
	cfg      Config

	// batchSize shrinks temporarily while the provider rate-limits.
	batchSize       int
	rateLimitDelay  time.Duration
	upsertRetryConf retry.Config
}

func NewScheduler(
	articles repository.ArticleRepository,
	emb embedder.Embedder,
	store vector.Store,
	broker queue.Broker,
	cfg Config,
) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		articles:        articles,
		embedder:        emb,
		store:           store,
		broker:          broker,
		cfg:             cfg,
		batchSize:       cfg.BatchSize,
		upsertRetryConf: retry.VectorUpsertConfig(),
	}
}

// Run cycles until ctx is canceled. An empty claim waits on the broker for a
// wake-up, backing off the wait when the pipeline stays idle.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.cfg.PollInterval
	idleCycles := 0
	var pendingAcks []string

	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := s.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("embedding cycle failed", slog.Any("error", err))
		}

		if len(pendingAcks) > 0 {
			if err := s.broker.Ack(ctx, queue.TopicArticles, queue.GroupEmbedder, pendingAcks...); err != nil {
				slog.Warn("article message ack failed", slog.Any("error", err))
			}
			pendingAcks = nil
		}

		// A rate-limited provider gets a short breather regardless of
		// whether anything was processed.
		if s.rateLimitDelay > 0 {
			select {
			case <-time.After(s.rateLimitDelay):
			case <-ctx.Done():
				return
			}
		}

		if processed > 0 {
			idleCycles = 0
			interval = s.cfg.PollInterval
			continue
		}

		idleCycles++
		if idleCycles >= s.cfg.IdleThreshold && interval < s.cfg.MaxPollInterval {
			interval *= 2
			if interval > s.cfg.MaxPollInterval {
				interval = s.cfg.MaxPollInterval
			}
			slog.Debug("embedding scheduler idle, backing off",
				slog.Int("idle_cycles", idleCycles),
				slog.Duration("poll_interval", interval))
		}

		msgs, err := s.broker.Consume(ctx, queue.TopicArticles, queue.GroupEmbedder, s.cfg.Consumer, interval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("article message wait failed", slog.Any("error", err))
			continue
		}
		for _, m := range msgs {
			pendingAcks = append(pendingAcks, m.ID)
		}
	}
}

// RunCycle claims one batch of pending articles and processes it to
// completion. Returns the number of articles whose status changed.
func (s *Scheduler) RunCycle(ctx context.Context) (int, error) {
	claim, err := s.articles.ClaimPending(ctx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim pending articles: %w", err)
	}
	defer func() { _ = claim.Rollback() }()

	records := claim.Records()
	if len(records) == 0 {
		return 0, nil
	}

	// Compose embedding texts; articles that produce nothing are failed in
	// place and excluded from the batch.
	var embeddable []*entity.ArticleRecord
	var texts []string
	failed := 0
	for _, a := range records {
		text := a.EmbeddingText()
		if text == "" {
			slog.Warn("article yields empty embedding text, failing in place",
				slog.String("source", a.Source),
				slog.String("url", a.URL))
			if err := claim.MarkFailed(ctx, a.URL); err != nil {
				return 0, fmt.Errorf("mark article failed: %w", err)
			}
			failed++
			continue
		}
		embeddable = append(embeddable, a)
		texts = append(texts, text)
	}

	if len(embeddable) == 0 {
		if err := claim.Commit(ctx); err != nil {
			return 0, fmt.Errorf("commit failed-in-place marks: %w", err)
		}
		return failed, nil
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	rateLimited := embedder.IsRateLimited(err)
	metrics.RecordEmbeddingBatch(s.embedder.ProviderName(), time.Since(start), rateLimited, err)
	if err != nil {
		s.noteEmbedResult(rateLimited)
		// Rollback leaves the whole batch pending for the next cycle.
		return 0, fmt.Errorf("embed batch of %d: %w", len(texts), err)
	}
	s.noteEmbedResult(false)

	points := make([]vector.Point, len(embeddable))
	urls := make([]string, len(embeddable))
	for i, a := range embeddable {
		points[i] = vector.Point{
			ID:     vector.PointID(a.URL),
			Vector: vectors[i],
			Payload: vector.Payload{
				Source:             a.Source,
				Title:              a.Title,
				Content:            a.Content,
				Summary:            a.Summary,
				Link:               a.URL,
				Keywords:           a.Keywords,
				Images:             a.Images,
				PublishedDatetime:  a.PublishedAt.UTC().Format(time.RFC3339),
				PublishedTimestamp: a.PublishedTS(),
				Status:             string(entity.ArticleStatusCompleted),
			},
		}
		urls[i] = a.URL
	}

	// The upsert is idempotent by point id, so it retries freely; if every
	// attempt fails the claim rolls back and the articles stay pending.
	err = retry.WithBackoffAll(ctx, s.upsertRetryConf, func() error {
		return s.store.UpsertPoints(ctx, s.cfg.Collection, points)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	metrics.RecordVectorUpsert(len(points))

	if err := claim.MarkCompleted(ctx, urls); err != nil {
		return 0, fmt.Errorf("mark articles completed: %w", err)
	}
	if err := claim.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit embedding outcomes: %w", err)
	}

	slog.Info("embedding cycle complete",
		slog.Int("embedded", len(embeddable)),
		slog.Int("failed_in_place", failed),
		slog.Int("batch_size", s.batchSize))

	return len(embeddable) + failed, nil
}

// noteEmbedResult adjusts the batch size and cycle cadence in response to
// provider rate limiting: halve the batch and back off multiplicatively while
// limited, restore both on the first clean call.
func (s *Scheduler) noteEmbedResult(rateLimited bool) {
	if !rateLimited {
		s.batchSize = s.cfg.BatchSize
		s.rateLimitDelay = 0
		return
	}

	if s.batchSize > 1 {
		s.batchSize /= 2
	}
	if s.rateLimitDelay == 0 {
		s.rateLimitDelay = rateLimitBackoffBase
	} else {
		s.rateLimitDelay *= 2
		if s.rateLimitDelay > rateLimitBackoffCap {
			s.rateLimitDelay = rateLimitBackoffCap
		}
	}
	slog.Warn("embedder rate limited, shrinking batch",
		slog.Int("batch_size", s.batchSize),
		slog.Duration("cycle_backoff", s.rateLimitDelay))
}
