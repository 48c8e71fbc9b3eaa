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

type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates a PostgreSQL-backed ArticleRepository.
func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

// ClaimPending locks up to limit pending articles for the embedding stage.
func (repo *ArticleRepo) ClaimPending(ctx context.Context, limit int) (repository.ArticleClaim, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ClaimPending: begin: %w", err)
	}

	const query = `
SELECT id, source, url, title, content, summary, keywords, images, published_at, status
FROM articles
WHERE status = 'pending'
ORDER BY published_at DESC NULLS LAST, id ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

	start := time.Now()
	rows, err := tx.QueryContext(ctx, query, limit)
	metrics.RecordDBQuery("claim_articles", time.Since(start))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.ArticleRecord, 0, limit)
	for rows.Next() {
		var article entity.ArticleRecord
		if err := rows.Scan(&article.ID, &article.Source, &article.URL, &article.Title,
			&article.Content, &article.Summary, pq.Array(&article.Keywords),
			pq.Array(&article.Images), &article.PublishedAt, &article.Status); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("ClaimPending: Scan: %w", err)
		}
		articles = append(articles, &article)
	}
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("ClaimPending: %w", err)
	}

	return &articleClaim{tx: tx, articles: articles}, nil
}

// Stats returns article counts by status.
func (repo *ArticleRepo) Stats(ctx context.Context) (repository.ArticleStats, error) {
	const query = `SELECT status, COUNT(*) FROM articles GROUP BY status`

	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return repository.ArticleStats{}, fmt.Errorf("Stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats repository.ArticleStats
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return repository.ArticleStats{}, fmt.Errorf("Stats: Scan: %w", err)
		}
		switch entity.ArticleStatus(status) {
		case entity.ArticleStatusPending:
			stats.Pending = count
		case entity.ArticleStatusCompleted:
			stats.Completed = count
		case entity.ArticleStatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// articleClaim implements repository.ArticleClaim on an open transaction.
type articleClaim struct {
	tx       *sql.Tx
	articles []*entity.ArticleRecord
}

func (c *articleClaim) Records() []*entity.ArticleRecord {
	return c.articles
}

func (c *articleClaim) MarkCompleted(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	const query = `UPDATE articles SET status = 'completed' WHERE url = ANY($1)`
	if _, err := c.tx.ExecContext(ctx, query, pq.Array(urls)); err != nil {
		return fmt.Errorf("MarkCompleted: %w", err)
	}
	return nil
}

func (c *articleClaim) MarkFailed(ctx context.Context, url string) error {
	const query = `UPDATE articles SET status = 'failed' WHERE url = $1`
	if _, err := c.tx.ExecContext(ctx, query, url); err != nil {
		return fmt.Errorf("MarkFailed: %w", err)
	}
	return nil
}

func (c *articleClaim) Commit(ctx context.Context) error {
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

func (c *articleClaim) Rollback() error {
	if err := c.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("Rollback: %w", err)
	}
	return nil
}
