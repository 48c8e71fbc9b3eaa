package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticleRecordEmbeddingText(t *testing.T) {
	tests := []struct {
		name    string
		article ArticleRecord
		want    string
	}{
		{
			name: "title and summary present",
			article: ArticleRecord{
				Title:   "Market rallies",
				Summary: "Stocks rose on Friday.",
				Content: "Full body text that should be ignored.",
			},
			want: "Market rallies. Stocks rose on Friday.",
		},
		{
			name: "no summary falls back to content",
			article: ArticleRecord{
				Title:   "Market rallies",
				Content: "Full body text.",
			},
			want: "Full body text.",
		},
		{
			name: "newlines are flattened",
			article: ArticleRecord{
				Title:   "T",
				Summary: "line one\nline two",
			},
			want: "T. line one line two",
		},
		{
			name:    "all empty produces empty text",
			article: ArticleRecord{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.article.EmbeddingText())
		})
	}
}

func TestArticleRecordPublishedTS(t *testing.T) {
	at := time.Date(2026, 1, 15, 8, 30, 0, 500_000_000, time.UTC)
	a := ArticleRecord{PublishedAt: at}
	assert.Equal(t, at.Unix(), a.PublishedTS())
}

func TestArticleRecordValidate(t *testing.T) {
	valid := ArticleRecord{
		Source:  "reuters",
		URL:     "https://example.com/news/1",
		Title:   "T",
		Content: "body",
		Status:  ArticleStatusPending,
	}
	assert.NoError(t, valid.Validate())

	missingTitle := valid
	missingTitle.Title = "   "
	assert.Error(t, missingTitle.Validate())

	missingContent := valid
	missingContent.Content = ""
	assert.Error(t, missingContent.Validate())

	badStatus := valid
	badStatus.Status = ArticleStatus("archived")
	assert.Error(t, badStatus.Validate())
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Nil(t, NormalizeKeywords(nil))
	assert.Equal(t,
		[]string{"Fed", "rates", "fed"},
		NormalizeKeywords([]string{"Fed", "rates", "Fed", "", "fed"}),
	)
}
