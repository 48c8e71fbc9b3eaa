package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"newsingest/internal/domain/entity"
	"newsingest/internal/resilience/circuitbreaker"
	"newsingest/internal/resilience/retry"
)

// RSSAdapter serves a publisher whose "what's new" surface is an RSS or Atom
// feed. The feed covers only recent items, so DiscoverForDay can reach back
// just as far as the feed does.
type RSSAdapter struct {
	source   string
	feedURL  string
	host     string
	loc      *time.Location
	minChars int

	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	extractor   *contentExtractor
}

// RSSConfig describes one RSS-backed source.
type RSSConfig struct {
	// Source is the publisher tag stored on every record.
	Source string

	// FeedURL is the RSS/Atom feed to poll.
	FeedURL string

	// ArticleHost restricts Fetch to URLs on this host. Empty means the
	// feed URL's host.
	ArticleHost string

	// Location is the publisher's timezone, applied to zoneless timestamps.
	// Nil means trust the feed's own zone information.
	Location *time.Location

	// MinContentChars overrides DefaultMinContentChars when positive.
	MinContentChars int
}

// NewRSSAdapter builds an adapter for one RSS-backed source.
func NewRSSAdapter(cfg RSSConfig) (*RSSAdapter, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("rss adapter: source tag is required")
	}
	feedURL, err := url.Parse(cfg.FeedURL)
	if err != nil || feedURL.Host == "" {
		return nil, fmt.Errorf("rss adapter %s: invalid feed url %q", cfg.Source, cfg.FeedURL)
	}

	host := cfg.ArticleHost
	if host == "" {
		host = feedURL.Host
	}
	minChars := cfg.MinContentChars
	if minChars <= 0 {
		minChars = DefaultMinContentChars
	}

	return &RSSAdapter{
		source:      cfg.Source,
		feedURL:     cfg.FeedURL,
		host:        host,
		loc:         cfg.Location,
		minChars:    minChars,
		client:      &http.Client{Timeout: DefaultDiscoverTimeout},
		breaker:     circuitbreaker.New(circuitbreaker.FeedFetchConfig(cfg.Source)),
		retryConfig: retry.FeedFetchConfig(),
		extractor:   newContentExtractor(cfg.Source),
	}, nil
}

func (a *RSSAdapter) Source() string {
	return a.source
}

// DiscoverRecent parses the feed and walks items newest-first until it hits
// lastSeenURL. The first item's URL is always returned as newestURL so the
// caller can advance its marker even on a quiet feed.
func (a *RSSAdapter) DiscoverRecent(ctx context.Context, lastSeenURL string) (string, []entity.LinkRecord, error) {
	feed, err := a.parseFeed(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(feed.Items) == 0 {
		return "", nil, nil
	}

	newestURL := feed.Items[0].Link

	var records []entity.LinkRecord
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		if lastSeenURL != "" && item.Link == lastSeenURL {
			break
		}
		records = append(records, a.toLinkRecord(item))
	}

	slog.Debug("feed discovery complete",
		slog.String("source", a.source),
		slog.Int("feed_items", len(feed.Items)),
		slog.Int("new_links", len(records)))

	return newestURL, records, nil
}

// DiscoverForDay returns the feed items published on the given UTC day.
func (a *RSSAdapter) DiscoverForDay(ctx context.Context, day time.Time) ([]entity.LinkRecord, error) {
	feed, err := a.parseFeed(ctx)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var records []entity.LinkRecord
	for _, item := range feed.Items {
		if item.Link == "" || item.PublishedParsed == nil {
			continue
		}
		published := normalizePublished(*item.PublishedParsed, a.loc)
		if published.Before(dayStart) || !published.Before(dayEnd) {
			continue
		}
		records = append(records, a.toLinkRecord(item))
	}
	return records, nil
}

// Fetch loads the article page and extracts its content. Title falls back to
// nothing here; the dispatcher keeps whatever the extractor found.
func (a *RSSAdapter) Fetch(ctx context.Context, link *entity.LinkRecord) (*entity.ArticleRecord, error) {
	if err := a.checkOwnership(link.URL); err != nil {
		return nil, err
	}

	page, err := a.extractor.Extract(ctx, link.URL)
	if err != nil {
		return nil, err
	}
	if len(page.content) < a.minChars {
		return nil, fmt.Errorf("%w: %d chars at %s", ErrContentTooShort, len(page.content), link.URL)
	}

	return &entity.ArticleRecord{
		Source:      a.source,
		URL:         link.URL,
		Title:       page.title,
		Content:     page.content,
		Images:      page.images,
		PublishedAt: link.PublishedAt,
		Status:      entity.ArticleStatusPending,
	}, nil
}

func (a *RSSAdapter) checkOwnership(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: unparseable url %q", ErrWrongPublisher, rawURL)
	}
	if !strings.EqualFold(parsed.Host, a.host) {
		return fmt.Errorf("%w: host %q, want %q", ErrWrongPublisher, parsed.Host, a.host)
	}
	return nil
}

func (a *RSSAdapter) parseFeed(ctx context.Context) (*gofeed.Feed, error) {
	var feed *gofeed.Feed

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			fp := gofeed.NewParser()
			fp.UserAgent = userAgent
			fp.Client = a.client
			return fp.ParseURLWithContext(a.feedURL, ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("feed discovery circuit open",
					slog.String("source", a.source),
					slog.String("url", a.feedURL))
			}
			return err
		}
		feed = result.(*gofeed.Feed)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("parse feed %s: %w", a.feedURL, retryErr)
	}
	return feed, nil
}

func (a *RSSAdapter) toLinkRecord(item *gofeed.Item) entity.LinkRecord {
	published := time.Now().UTC()
	if item.PublishedParsed != nil {
		published = normalizePublished(*item.PublishedParsed, a.loc)
	}
	return entity.LinkRecord{
		Source:      a.source,
		URL:         item.Link,
		PublishedAt: published,
		Status:      entity.LinkStatusPending,
	}
}
