package entity

import (
	"strings"
	"time"
)

// ArticleStatus is the lifecycle state of an ArticleRecord.
type ArticleStatus string

const (
	// ArticleStatusPending means the article has been parsed and stored but
	// not yet embedded into the vector index.
	ArticleStatusPending ArticleStatus = "pending"

	// ArticleStatusCompleted means the vector index holds a point for this
	// article.
	ArticleStatusCompleted ArticleStatus = "completed"

	// ArticleStatusFailed means the article could not produce embedding text
	// (empty after composition). Rare; terminal.
	ArticleStatusFailed ArticleStatus = "failed"
)

// ArticleRecord is the persisted parsed content for a URL.
// Keywords and images are stored as delivered by the publisher; exact
// duplicates within one article are dropped at ingress, nothing more.
type ArticleRecord struct {
	ID          int64
	Source      string
	URL         string
	Title       string
	Content     string
	Summary     string
	Keywords    []string
	Images      []string
	PublishedAt time.Time
	Status      ArticleStatus
}

// PublishedTS returns the publication instant as integer seconds since epoch,
// the form stored in vector point payloads for range filtering.
func (a *ArticleRecord) PublishedTS() int64 {
	return a.PublishedAt.Unix()
}

// EmbeddingText composes the text handed to the embedder: title and summary
// when both are present, full content otherwise. Newlines are flattened so
// the text is a single paragraph.
func (a *ArticleRecord) EmbeddingText() string {
	var text string
	if a.Title != "" && a.Summary != "" {
		text = a.Title + ". " + a.Summary
	} else {
		text = a.Content
	}
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}

// Validate checks the invariants an ArticleRecord must satisfy before
// persistence. Title and content are required after a successful parse.
func (a *ArticleRecord) Validate() error {
	if a.Source == "" {
		return &ValidationError{Field: "source", Message: "source is required"}
	}
	if err := ValidateURL(a.URL); err != nil {
		return err
	}
	if strings.TrimSpace(a.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if strings.TrimSpace(a.Content) == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	switch a.Status {
	case "", ArticleStatusPending, ArticleStatusCompleted, ArticleStatusFailed:
	default:
		return &ValidationError{Field: "status", Message: "unknown article status"}
	}
	return nil
}
