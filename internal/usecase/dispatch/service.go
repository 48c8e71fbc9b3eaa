// Package dispatch implements the page fetcher: the stage that drives
// pending link records to completed or failed under bounded per-source
// concurrency, with at-least-once semantics and retry accounting.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"newsingest/internal/domain/entity"
	"newsingest/internal/infra/publisher"
	"newsingest/internal/infra/queue"
	"newsingest/internal/observability/metrics"
	"newsingest/internal/repository"
)

// Defaults for the dispatcher knobs.
const (
	DefaultClaimLimit       = 50
	DefaultPerSourceWorkers = 5
	DefaultSourceRPS        = 2.0
	DefaultPollInterval     = 30 * time.Second
	DefaultMaxPollInterval  = 5 * time.Minute
	DefaultIdleThreshold    = 3
)

// Config tunes one Dispatcher.
type Config struct {
	// ClaimLimit is the maximum links claimed per cycle.
	ClaimLimit int

	// PerSourceWorkers bounds concurrent fetches against one publisher.
	PerSourceWorkers int

	// SourceRPS rate-limits requests per second against one publisher.
	SourceRPS float64

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
	if c.ClaimLimit <= 0 {
		c.ClaimLimit = DefaultClaimLimit
	}
	if c.PerSourceWorkers <= 0 {
		c.PerSourceWorkers = DefaultPerSourceWorkers
	}
	if c.SourceRPS <= 0 {
		c.SourceRPS = DefaultSourceRPS
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
		c.Consumer = "dispatcher"
	}
	return c
}

// outcome is one link's fetch result, buffered until the batch is applied.
type outcome struct {
	linkID  int64
	source  string
	result  repository.FetchOutcome
	article *entity.ArticleRecord
}

// Dispatcher claims pending links, fetches their articles through the
// per-source adapters, and records the outcomes transactionally.
type Dispatcher struct {
	registry *publisher.Registry
	links    repository.LinkRepository
	broker   queue.Broker
	cfg      Config

	inflight *inflightSet

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewDispatcher(
	registry *publisher.Registry,
	links repository.LinkRepository,
	broker queue.Broker,
	cfg Config,
) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		links:    links,
		broker:   broker,
		cfg:      cfg.withDefaults(),
		inflight: newInflightSet(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Run cycles until ctx is canceled. An empty claim waits on the broker for a
// wake-up, backing off the wait when the pipeline stays idle.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.cfg.PollInterval
	idleCycles := 0
	var pendingAcks []string

	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := d.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("dispatch cycle failed", slog.Any("error", err))
		}

		// Wake-up messages are acked once a cycle has run after their
		// arrival; at that point the claimed work they announced is durable.
		if len(pendingAcks) > 0 {
			if err := d.broker.Ack(ctx, queue.TopicLinks, queue.GroupFetcher, pendingAcks...); err != nil {
				slog.Warn("link message ack failed", slog.Any("error", err))
			}
			pendingAcks = nil
		}

		if processed > 0 {
			idleCycles = 0
			interval = d.cfg.PollInterval
			continue
		}

		idleCycles++
		if idleCycles >= d.cfg.IdleThreshold && interval < d.cfg.MaxPollInterval {
			interval *= 2
			if interval > d.cfg.MaxPollInterval {
				interval = d.cfg.MaxPollInterval
			}
			slog.Debug("dispatcher idle, backing off",
				slog.Int("idle_cycles", idleCycles),
				slog.Duration("poll_interval", interval))
		}

		msgs, err := d.broker.Consume(ctx, queue.TopicLinks, queue.GroupFetcher, d.cfg.Consumer, interval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("link message wait failed", slog.Any("error", err))
			continue
		}
		for _, m := range msgs {
			pendingAcks = append(pendingAcks, m.ID)
		}
	}
}

// RunCycle claims one batch, fetches it, and commits the outcomes. Returns
// the number of links processed.
func (d *Dispatcher) RunCycle(ctx context.Context) (int, error) {
	claim, err := d.links.ClaimPending(ctx, "", d.cfg.ClaimLimit, d.inflight.Snapshot())
	if err != nil {
		return 0, fmt.Errorf("claim pending links: %w", err)
	}
	defer func() { _ = claim.Rollback() }()

	records := claim.Records()
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	d.inflight.Add(ids...)
	defer d.inflight.Remove(ids...)

	outcomes := d.fetchAll(ctx, records)

	// Fetches ran in parallel; the claim transaction is touched serially.
	var fetched []*entity.ArticleRecord
	for _, o := range outcomes {
		if err := claim.RecordOutcome(ctx, o.linkID, o.result, o.article); err != nil {
			return 0, fmt.Errorf("record outcome for link %d: %w", o.linkID, err)
		}
		if o.result == repository.OutcomeSuccess && o.article != nil {
			fetched = append(fetched, o.article)
		}
	}

	if err := claim.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit fetch outcomes: %w", err)
	}

	for _, a := range fetched {
		if err := d.broker.Publish(ctx, queue.TopicArticles, queue.NewArticleMessage(*a)); err != nil {
			// The embedder's poll loop covers for lost messages.
			slog.Warn("article message publish failed",
				slog.String("url", a.URL),
				slog.Any("error", err))
			break
		}
	}

	slog.Info("dispatch cycle complete",
		slog.Int("claimed", len(records)),
		slog.Int("fetched", len(fetched)))

	return len(records), nil
}

// fetchAll runs the claimed links through their adapters, each source with
// its own worker budget and rate limit, sources in parallel.
func (d *Dispatcher) fetchAll(ctx context.Context, records []*entity.LinkRecord) []outcome {
	bySource := make(map[string][]*entity.LinkRecord)
	for _, r := range records {
		bySource[r.Source] = append(bySource[r.Source], r)
	}

	var mu sync.Mutex
	var outcomes []outcome
	add := func(o outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for source, sourceLinks := range bySource {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.fetchSource(ctx, source, sourceLinks, add)
		}()
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) fetchSource(ctx context.Context, source string, links []*entity.LinkRecord, add func(outcome)) {
	adapter, ok := d.registry.Lookup(source)
	if !ok {
		// Links from an unregistered source can never be fetched here.
		slog.Error("no adapter for claimed source", slog.String("source", source))
		for _, link := range links {
			add(outcome{linkID: link.ID, source: source, result: repository.OutcomePermanent})
		}
		return
	}

	limiter := d.limiter(source)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.cfg.PerSourceWorkers)

	for _, link := range links {
		eg.Go(func() error {
			if err := limiter.Wait(egCtx); err != nil {
				// Shutdown mid-batch: leave the remaining links untouched so
				// they are re-claimed later.
				return nil
			}

			start := time.Now()
			article, err := adapter.Fetch(egCtx, link)
			elapsed := time.Since(start)

			if err != nil {
				result := classifyFetchError(err)
				if result == repository.OutcomePermanent {
					metrics.RecordFetchPermanent(source, elapsed)
					slog.Warn("fetch failed permanently",
						slog.String("source", source),
						slog.String("url", link.URL),
						slog.Any("error", err))
				} else {
					metrics.RecordFetchRetry(source, elapsed)
					slog.Warn("fetch failed, will retry",
						slog.String("source", source),
						slog.String("url", link.URL),
						slog.Int("tried_count", link.TriedCount),
						slog.Any("error", err))
				}
				add(outcome{linkID: link.ID, source: source, result: result})
				return nil
			}

			if err := article.Validate(); err != nil {
				metrics.RecordFetchRetry(source, elapsed)
				slog.Warn("fetched article failed validation",
					slog.String("source", source),
					slog.String("url", link.URL),
					slog.Any("error", err))
				add(outcome{linkID: link.ID, source: source, result: repository.OutcomeRetry})
				return nil
			}

			metrics.RecordFetchSuccess(source, elapsed, len(article.Content))
			add(outcome{linkID: link.ID, source: source, result: repository.OutcomeSuccess, article: article})
			return nil
		})
	}
	_ = eg.Wait()
}

// limiter returns the per-source rate limiter, creating it on first use.
func (d *Dispatcher) limiter(source string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[source]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.cfg.SourceRPS), d.cfg.PerSourceWorkers)
		d.limiters[source] = l
	}
	return l
}

// InflightSize reports the current in-flight set size for observability.
func (d *Dispatcher) InflightSize() int {
	return d.inflight.Len()
}
