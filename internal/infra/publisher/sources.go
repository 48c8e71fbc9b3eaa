package publisher

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SourceSpec is one entry in the sources config file.
type SourceSpec struct {
	// Name is the publisher tag stored on every record.
	Name string `json:"name"`

	// Type selects the adapter: "rss" or "archive".
	Type string `json:"type"`

	// Timezone is the publisher's IANA timezone for zoneless timestamps.
	// Empty trusts the feed's own zone information.
	Timezone string `json:"timezone,omitempty"`

	// MinContentChars overrides the pipeline-wide minimum when positive.
	MinContentChars int `json:"min_content_chars,omitempty"`

	// RSS fields.
	FeedURL     string `json:"feed_url,omitempty"`
	ArticleHost string `json:"article_host,omitempty"`

	// Archive fields.
	RecentURL    string `json:"recent_url,omitempty"`
	DayURLFormat string `json:"day_url_format,omitempty"`
	ItemSelector string `json:"item_selector,omitempty"`
	TimeAttr     string `json:"time_attr,omitempty"`
}

type sourcesFile struct {
	Sources []SourceSpec `json:"sources"`
}

// LoadRegistryFromFile reads the JSON sources config at path and builds
// the adapter registry. defaultMinChars applies to sources that do not
// set their own minimum.
func LoadRegistryFromFile(path string, defaultMinChars int) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources config: %w", err)
	}

	var file sourcesFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse sources config %s: %w", path, err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("sources config %s defines no sources", path)
	}

	adapters := make([]Adapter, 0, len(file.Sources))
	for _, spec := range file.Sources {
		adapter, err := buildAdapter(spec, defaultMinChars)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}

	return NewRegistry(adapters...)
}

func buildAdapter(spec SourceSpec, defaultMinChars int) (Adapter, error) {
	var loc *time.Location
	if spec.Timezone != "" {
		parsed, err := time.LoadLocation(spec.Timezone)
		if err != nil {
			return nil, fmt.Errorf("source %s: invalid timezone %q: %w", spec.Name, spec.Timezone, err)
		}
		loc = parsed
	}

	minChars := spec.MinContentChars
	if minChars <= 0 {
		minChars = defaultMinChars
	}

	switch spec.Type {
	case "rss":
		return NewRSSAdapter(RSSConfig{
			Source:          spec.Name,
			FeedURL:         spec.FeedURL,
			ArticleHost:     spec.ArticleHost,
			Location:        loc,
			MinContentChars: minChars,
		})
	case "archive":
		return NewArchiveAdapter(ArchiveConfig{
			Source:          spec.Name,
			RecentURL:       spec.RecentURL,
			DayURLFormat:    spec.DayURLFormat,
			ItemSelector:    spec.ItemSelector,
			TimeAttr:        spec.TimeAttr,
			Location:        loc,
			MinContentChars: minChars,
		})
	default:
		return nil, fmt.Errorf("source %s: unknown type %q", spec.Name, spec.Type)
	}
}
