// Package entity defines the core domain entities and validation logic for the
// ingestion pipeline: link records discovered from publishers and the parsed
// article records produced from them.
package entity

import "time"

// LinkStatus is the lifecycle state of a LinkRecord.
type LinkStatus string

const (
	// LinkStatusPending means the link has been discovered but not yet
	// successfully fetched.
	LinkStatusPending LinkStatus = "pending"

	// LinkStatusCompleted means the article behind the link was fetched and
	// an ArticleRecord with the same URL exists.
	LinkStatusCompleted LinkStatus = "completed"

	// LinkStatusFailed means fetching was abandoned after exhausting retries
	// or after an unrecoverable error. Terminal; never reactivated by the
	// pipeline itself.
	LinkStatusFailed LinkStatus = "failed"
)

// LinkRecord is persisted metadata about a single article URL, independent of
// whether the article content has been fetched yet.
type LinkRecord struct {
	ID          int64
	Source      string
	URL         string
	PublishedAt time.Time
	Status      LinkStatus
	TriedCount  int
	LastTriedAt *time.Time
}

// Validate checks the invariants a LinkRecord must satisfy before persistence.
func (l *LinkRecord) Validate() error {
	if l.Source == "" {
		return &ValidationError{Field: "source", Message: "source is required"}
	}
	if err := ValidateURL(l.URL); err != nil {
		return err
	}
	if l.TriedCount < 0 {
		return &ValidationError{Field: "tried_count", Message: "tried_count must be non-negative"}
	}
	switch l.Status {
	case "", LinkStatusPending, LinkStatusCompleted, LinkStatusFailed:
	default:
		return &ValidationError{Field: "status", Message: "unknown link status"}
	}
	return nil
}
