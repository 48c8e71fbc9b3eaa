package publisher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := writeSources(t, `{
		"sources": [
			{
				"name": "technews",
				"type": "rss",
				"feed_url": "https://technews.example.com/feed.xml",
				"timezone": "America/New_York"
			},
			{
				"name": "dailypost",
				"type": "archive",
				"recent_url": "https://dailypost.example.com/latest",
				"day_url_format": "https://dailypost.example.com/archive/%s/page/%d",
				"item_selector": "article a.headline",
				"time_attr": "data-published"
			}
		]
	}`)

	reg, err := LoadRegistryFromFile(path, 50)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"technews", "dailypost"}, reg.Sources())

	adapter, ok := reg.Lookup("technews")
	require.True(t, ok)
	assert.Equal(t, "technews", adapter.Source())
}

func TestLoadRegistryFromFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadRegistryFromFile(filepath.Join(t.TempDir(), "nope.json"), 50)
		assert.Error(t, err)
	})

	t.Run("empty sources", func(t *testing.T) {
		path := writeSources(t, `{"sources": []}`)
		_, err := LoadRegistryFromFile(path, 50)
		assert.ErrorContains(t, err, "no sources")
	})

	t.Run("unknown type", func(t *testing.T) {
		path := writeSources(t, `{"sources": [{"name": "x", "type": "sitemap"}]}`)
		_, err := LoadRegistryFromFile(path, 50)
		assert.ErrorContains(t, err, "unknown type")
	})

	t.Run("bad timezone", func(t *testing.T) {
		path := writeSources(t, `{"sources": [{
			"name": "x", "type": "rss",
			"feed_url": "https://x.example.com/feed.xml",
			"timezone": "Mars/Olympus"
		}]}`)
		_, err := LoadRegistryFromFile(path, 50)
		assert.ErrorContains(t, err, "invalid timezone")
	})

	t.Run("duplicate source", func(t *testing.T) {
		path := writeSources(t, `{"sources": [
			{"name": "x", "type": "rss", "feed_url": "https://x.example.com/feed.xml"},
			{"name": "x", "type": "rss", "feed_url": "https://x.example.com/other.xml"}
		]}`)
		_, err := LoadRegistryFromFile(path, 50)
		assert.Error(t, err)
	})
}
