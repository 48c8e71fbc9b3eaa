// Package repository defines the persistence contracts the pipeline depends
// on. The relational store is the source of truth for what has been seen and
// what has been processed; implementations live under
// internal/infra/adapter/persistence.
package repository

import (
	"context"

	"newsingest/internal/domain/entity"
)

// FetchOutcome classifies the result of one fetch attempt for a link.
type FetchOutcome int

const (
	// OutcomeSuccess means the article was fetched and parsed; the link
	// transitions to completed and the article record is inserted.
	OutcomeSuccess FetchOutcome = iota

	// OutcomeRetry means the attempt failed recoverably; the tried counter is
	// bumped and the link stays pending until retries are exhausted.
	OutcomeRetry

	// OutcomePermanent means the attempt failed unrecoverably (for example
	// the adapter does not own the URL); the link is failed immediately.
	OutcomePermanent
)

// LinkStats is a snapshot of link record counts by status, used for
// observability gauges.
type LinkStats struct {
	Pending   int64
	Completed int64
	Failed    int64
}

// LinkClaim is a batch of pending links claimed under row locks. Outcomes are
// recorded against the claim and become durable only on Commit; Rollback (or a
// process crash) leaves every claimed row exactly as it was before the claim.
type LinkClaim interface {
	// Records returns the claimed link records, ordered newest-first.
	Records() []*entity.LinkRecord

	// RecordOutcome applies the status transition for one claimed link.
	// On OutcomeSuccess the article record is inserted in the same
	// transaction; a unique-URL conflict on the article is treated as
	// success.
	RecordOutcome(ctx context.Context, linkID int64, outcome FetchOutcome, article *entity.ArticleRecord) error

	// Commit makes all recorded outcomes durable and releases the row locks.
	Commit(ctx context.Context) error

	// Rollback abandons the claim. Safe to call after Commit.
	Rollback() error
}

// LinkRepository is the durable store of discovered links.
type LinkRepository interface {
	// UpsertBatch persists discovered links, keyed by URL. A conflicting URL
	// refreshes published_at only; status and retry accounting are untouched.
	// Returns the number of rows written.
	UpsertBatch(ctx context.Context, records []entity.LinkRecord) (int64, error)

	// ClaimPending locks and returns up to limit pending links whose retry
	// budget is not exhausted, ordered by published_at DESC NULLS LAST, id
	// ASC. Rows locked by concurrent claimants are skipped. Ids in exclude
	// (the process-local in-flight set) are never returned. An empty source
	// selects across all sources.
	ClaimPending(ctx context.Context, source string, limit int, exclude []int64) (LinkClaim, error)

	// Stats returns link counts by status.
	Stats(ctx context.Context) (LinkStats, error)
}
