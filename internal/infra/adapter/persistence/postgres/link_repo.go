// Package postgres implements the repository contracts on PostgreSQL.
// Claims take row locks with FOR UPDATE SKIP LOCKED so concurrent worker
// processes never select the same row; outcomes recorded against a claim
// become durable only when the claim commits.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"newsingest/internal/domain/entity"
	"newsingest/internal/observability/metrics"
	"newsingest/internal/repository"

	"github.com/lib/pq"
)

type LinkRepo struct {
	db         *sql.DB
	maxRetries int
}

// NewLinkRepo creates a PostgreSQL-backed LinkRepository. maxRetries is the
// retry budget after which a pending link transitions to failed.
func NewLinkRepo(db *sql.DB, maxRetries int) repository.LinkRepository {
	return &LinkRepo{db: db, maxRetries: maxRetries}
}

// UpsertBatch persists discovered links keyed by URL. A conflicting URL only
// refreshes published_at; status and retry accounting are never touched here,
// so re-running discovery over the same feed is idempotent.
func (repo *LinkRepo) UpsertBatch(ctx context.Context, records []entity.LinkRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	sources := make([]string, 0, len(records))
	urls := make([]string, 0, len(records))
	publishedAts := make([]time.Time, 0, len(records))
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return 0, fmt.Errorf("UpsertBatch: %w", err)
		}
		sources = append(sources, records[i].Source)
		urls = append(urls, records[i].URL)
		publishedAts = append(publishedAts, records[i].PublishedAt.UTC())
	}

	const query = `
INSERT INTO links (source, url, published_at, status, tried_count)
SELECT s, u, p, 'pending', 0
FROM unnest($1::text[], $2::text[], $3::timestamptz[]) AS t(s, u, p)
ON CONFLICT (url) DO UPDATE SET published_at = EXCLUDED.published_at`

	start := time.Now()
	result, err := repo.db.ExecContext(ctx, query,
		pq.Array(sources), pq.Array(urls), pq.Array(publishedAts))
	metrics.RecordDBQuery("upsert_links", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("UpsertBatch: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("UpsertBatch: RowsAffected: %w", err)
	}
	return affected, nil
}

// ClaimPending locks up to limit pending links with retry budget remaining.
// The SKIP LOCKED clause makes concurrent claimants disjoint by construction;
// exclude carries the process-local in-flight ids so a single process does
// not re-claim rows it is already working on in another cycle.
func (repo *LinkRepo) ClaimPending(ctx context.Context, source string, limit int, exclude []int64) (repository.LinkClaim, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: begin: %w", err)
	}

	if exclude == nil {
		exclude = []int64{}
	}

	const query = `
SELECT id, source, url, published_at, status, tried_count, last_tried_at
FROM links
WHERE status = 'pending'
  AND tried_count < $1
  AND ($2 = '' OR source = $2)
  AND NOT (id = ANY($3))
ORDER BY published_at DESC NULLS LAST, id ASC
LIMIT $4
FOR UPDATE SKIP LOCKED`

	start := time.Now()
	rows, err := tx.QueryContext(ctx, query, repo.maxRetries, source, pq.Array(exclude), limit)
	metrics.RecordDBQuery("claim_links", time.Since(start))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	links := make([]*entity.LinkRecord, 0, limit)
	for rows.Next() {
		var link entity.LinkRecord
		var lastTriedAt sql.NullTime
		if err := rows.Scan(&link.ID, &link.Source, &link.URL, &link.PublishedAt,
			&link.Status, &link.TriedCount, &lastTriedAt); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("ClaimPending: Scan: %w", err)
		}
		if lastTriedAt.Valid {
			t := lastTriedAt.Time
			link.LastTriedAt = &t
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}

	return &linkClaim{tx: tx, links: links, maxRetries: repo.maxRetries}, nil
}

// Stats returns link counts by status.
func (repo *LinkRepo) Stats(ctx context.Context) (repository.LinkStats, error) {
	const query = `SELECT status, COUNT(*) FROM links GROUP BY status`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return repository.LinkStats{}, fmt.Errorf("Stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats repository.LinkStats
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return repository.LinkStats{}, fmt.Errorf("Stats: Scan: %w", err)
		}
		switch entity.LinkStatus(status) {
		case entity.LinkStatusPending:
			stats.Pending = count
		case entity.LinkStatusCompleted:
			stats.Completed = count
		case entity.LinkStatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// linkClaim implements repository.LinkClaim on an open transaction.
type linkClaim struct {
	tx         *sql.Tx
	links      []*entity.LinkRecord
	maxRetries int
}

func (c *linkClaim) Records() []*entity.LinkRecord {
	return c.links
}

// RecordOutcome applies the link status transition and, on success, inserts
// the article record in the same transaction. A unique-URL conflict on the
// article means the same article arrived twice; the insert is skipped and the
// link still completes.
func (c *linkClaim) RecordOutcome(ctx context.Context, linkID int64, outcome repository.FetchOutcome, article *entity.ArticleRecord) error {
	switch outcome {
	case repository.OutcomeSuccess:
		if article == nil {
			return fmt.Errorf("RecordOutcome: success outcome requires an article")
		}
		if err := article.Validate(); err != nil {
			return fmt.Errorf("RecordOutcome: %w", err)
		}

		const completeLink = `
UPDATE links
SET status = 'completed', tried_count = tried_count + 1, last_tried_at = NOW()
WHERE id = $1`
		if _, err := c.tx.ExecContext(ctx, completeLink, linkID); err != nil {
			return fmt.Errorf("RecordOutcome: complete link: %w", err)
		}

		const insertArticle = `
INSERT INTO articles (source, url, title, content, summary, keywords, images, published_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
ON CONFLICT (url) DO NOTHING`
		_, err := c.tx.ExecContext(ctx, insertArticle,
			article.Source, article.URL, article.Title, article.Content, article.Summary,
			pq.Array(entity.NormalizeKeywords(article.Keywords)), pq.Array(article.Images),
			article.PublishedAt.UTC())
		if err != nil {
			return fmt.Errorf("RecordOutcome: insert article: %w", err)
		}
		return nil

	case repository.OutcomeRetry:
		const retryLink = `
UPDATE links
SET tried_count = tried_count + 1,
    last_tried_at = NOW(),
    status = CASE WHEN tried_count + 1 >= $2 THEN 'failed' ELSE 'pending' END
WHERE id = $1`
		if _, err := c.tx.ExecContext(ctx, retryLink, linkID, c.maxRetries); err != nil {
			return fmt.Errorf("RecordOutcome: retry link: %w", err)
		}
		return nil

	case repository.OutcomePermanent:
		// tried_count is forced to the retry budget so the failed-implies-
		// exhausted invariant holds even for immediate failures.
		const failLink = `
UPDATE links
SET status = 'failed',
    tried_count = GREATEST(tried_count + 1, $2),
    last_tried_at = NOW()
WHERE id = $1`
		if _, err := c.tx.ExecContext(ctx, failLink, linkID, c.maxRetries); err != nil {
			return fmt.Errorf("RecordOutcome: fail link: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("RecordOutcome: unknown outcome %d", outcome)
	}
}

func (c *linkClaim) Commit(ctx context.Context) error {
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

func (c *linkClaim) Rollback() error {
	if err := c.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("Rollback: %w", err)
	}
	return nil
}
