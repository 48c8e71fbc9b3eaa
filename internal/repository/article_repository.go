package repository

import (
	"context"

	"newsingest/internal/domain/entity"
)

// ArticleStats is a snapshot of article record counts by status.
type ArticleStats struct {
	Pending   int64
	Completed int64
	Failed    int64
}

// ArticleClaim is a batch of pending articles claimed under row locks for the
// embedding stage. Same commit semantics as LinkClaim.
type ArticleClaim interface {
	// Records returns the claimed article records, ordered newest-first.
	Records() []*entity.ArticleRecord

	// MarkCompleted transitions the given URLs to completed.
	MarkCompleted(ctx context.Context, urls []string) error

	// MarkFailed transitions one URL to failed. Used when an article cannot
	// produce embedding text.
	MarkFailed(ctx context.Context, url string) error

	// Commit makes the status transitions durable and releases the row locks.
	Commit(ctx context.Context) error

	// Rollback abandons the claim. Safe to call after Commit.
	Rollback() error
}

// ArticleRepository is the durable store of parsed articles.
type ArticleRepository interface {
	// ClaimPending locks and returns up to limit pending articles, ordered by
	// published_at DESC NULLS LAST, id ASC, skipping rows locked by
	// concurrent claimants.
	ClaimPending(ctx context.Context, limit int) (ArticleClaim, error)

	// Stats returns article counts by status.
	Stats(ctx context.Context) (ArticleStats, error)
}
