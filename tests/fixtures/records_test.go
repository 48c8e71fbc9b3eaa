package fixtures_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"newsingest/internal/domain/entity"
	"newsingest/tests/fixtures"
)

func TestNewTestLinkIsValid(t *testing.T) {
	link := fixtures.NewTestLink()
	if err := link.Validate(); err != nil {
		t.Fatalf("default link fixture should validate: %v", err)
	}
	if link.Status != entity.LinkStatusPending {
		t.Errorf("default status = %s, want pending", link.Status)
	}
}

func TestLinkOptionsKeepURLConsistent(t *testing.T) {
	link := fixtures.NewTestLink(
		fixtures.WithLinkSource("dailypost"),
		fixtures.WithLinkID(42),
	)
	if link.Source != "dailypost" {
		t.Errorf("source = %s, want dailypost", link.Source)
	}
	want := "https://dailypost.example.com/articles/42"
	if link.URL != want {
		t.Errorf("URL = %s, want %s", link.URL, want)
	}
	if err := link.Validate(); err != nil {
		t.Errorf("customized link should validate: %v", err)
	}
}

func TestNewTestArticleIsValid(t *testing.T) {
	article := fixtures.NewTestArticle()
	if err := article.Validate(); err != nil {
		t.Fatalf("default article fixture should validate: %v", err)
	}
	if len(article.Content) < 50 {
		t.Errorf("default content length %d should clear typical minimums", len(article.Content))
	}
	if article.EmbeddingText() == "" {
		t.Error("default article should produce embedding text")
	}
}

func TestGenerateContentLength(t *testing.T) {
	for _, length := range []int{50, 400, 2000} {
		content := fixtures.GenerateContent(length)
		if len(content) > length {
			t.Errorf("GenerateContent(%d) produced %d chars", length, len(content))
		}
		if len(content) < length-1 {
			t.Errorf("GenerateContent(%d) too short: %d chars", length, len(content))
		}
	}
}

func TestGenerateTestVector(t *testing.T) {
	a := fixtures.GenerateTestVector(1536, 0.1)
	b := fixtures.GenerateTestVector(1536, 0.1)
	if len(a) != 1536 {
		t.Fatalf("dimension = %d, want 1536", len(a))
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("vectors with the same seed should match (-a +b):\n%s", diff)
	}
	c := fixtures.GenerateTestVector(8, 0.9)
	if c[0] == a[0] {
		t.Error("different seeds should produce different vectors")
	}
}
