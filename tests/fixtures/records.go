// Package fixtures provides reusable test data generators so integration
// tests across packages build records the same way.
package fixtures

import (
	"fmt"
	"strings"
	"time"

	"newsingest/internal/domain/entity"
)

// LinkOption customizes a generated link record.
type LinkOption func(*entity.LinkRecord)

// NewTestLink creates a valid pending LinkRecord with sensible defaults.
//
// Example:
//
//	link := fixtures.NewTestLink(fixtures.WithLinkSource("dailypost"))
func NewTestLink(opts ...LinkOption) *entity.LinkRecord {
	l := &entity.LinkRecord{
		ID:          1,
		Source:      "technews",
		URL:         "https://technews.example.com/articles/1",
		PublishedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:      entity.LinkStatusPending,
		TriedCount:  0,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func WithLinkID(id int64) LinkOption {
	return func(l *entity.LinkRecord) {
		l.ID = id
		l.URL = fmt.Sprintf("https://%s.example.com/articles/%d", l.Source, id)
	}
}

func WithLinkSource(source string) LinkOption {
	return func(l *entity.LinkRecord) {
		l.Source = source
		l.URL = fmt.Sprintf("https://%s.example.com/articles/%d", source, l.ID)
	}
}

func WithLinkStatus(status entity.LinkStatus) LinkOption {
	return func(l *entity.LinkRecord) { l.Status = status }
}

func WithTriedCount(count int) LinkOption {
	return func(l *entity.LinkRecord) { l.TriedCount = count }
}

func WithPublishedAt(at time.Time) LinkOption {
	return func(l *entity.LinkRecord) { l.PublishedAt = at }
}

// ArticleOption customizes a generated article record.
type ArticleOption func(*entity.ArticleRecord)

// NewTestArticle creates a valid pending ArticleRecord with sensible
// defaults. The content clears typical minimum-length thresholds.
func NewTestArticle(opts ...ArticleOption) *entity.ArticleRecord {
	a := &entity.ArticleRecord{
		ID:          1,
		Source:      "technews",
		URL:         "https://technews.example.com/articles/1",
		Title:       "Compilers Keep Getting Faster",
		Content:     GenerateContent(400),
		Summary:     "A look at recent compiler performance work.",
		Keywords:    []string{"compilers", "performance"},
		Images:      []string{"https://technews.example.com/img/1.png"},
		PublishedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		Status:      entity.ArticleStatusPending,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func WithArticleID(id int64) ArticleOption {
	return func(a *entity.ArticleRecord) {
		a.ID = id
		a.URL = fmt.Sprintf("https://%s.example.com/articles/%d", a.Source, id)
	}
}

func WithArticleSource(source string) ArticleOption {
	return func(a *entity.ArticleRecord) {
		a.Source = source
		a.URL = fmt.Sprintf("https://%s.example.com/articles/%d", source, a.ID)
	}
}

func WithArticleStatus(status entity.ArticleStatus) ArticleOption {
	return func(a *entity.ArticleRecord) { a.Status = status }
}

func WithContent(content string) ArticleOption {
	return func(a *entity.ArticleRecord) { a.Content = content }
}

func WithSummary(summary string) ArticleOption {
	return func(a *entity.ArticleRecord) { a.Summary = summary }
}

// GenerateContent produces plain English prose of approximately length
// characters, for exercising minimum-content thresholds.
func GenerateContent(length int) string {
	const sentence = "The ingestion pipeline moves every discovered link through fetch, parse, and embedding stages. "
	var b strings.Builder
	for b.Len() < length {
		b.WriteString(sentence)
	}
	return strings.TrimSpace(b.String()[:length])
}

// GenerateTestVector produces a deterministic embedding of the given
// dimension. Values follow a small ramp so distinct seeds produce distinct
// but reproducible vectors.
func GenerateTestVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i%7)*0.01
	}
	return v
}
