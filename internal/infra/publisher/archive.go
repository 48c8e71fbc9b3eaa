package publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newsingest/internal/domain/entity"
	"newsingest/internal/resilience/circuitbreaker"
	"newsingest/internal/resilience/retry"
)

// maxArchivePages bounds a single day's pagination walk so a broken "next"
// link cannot spin forever.
const maxArchivePages = 50

// ArchiveAdapter serves a publisher whose history lives in paginated HTML
// archive pages organized by calendar day. Recency discovery reads the
// landing page; historical discovery walks one day's pages.
type ArchiveAdapter struct {
	source   string
	host     string
	loc      *time.Location
	minChars int

	recentURL    string
	dayURLFormat string
	itemSelector string
	timeAttr     string

	client      *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	extractor   *contentExtractor
}

// ArchiveConfig describes one HTML-archive-backed source.
type ArchiveConfig struct {
	// Source is the publisher tag stored on every record.
	Source string

	// RecentURL is the landing page listing the newest articles.
	RecentURL string

	// DayURLFormat builds the archive page for one day and page number, e.g.
	// "https://example.com/archive/%s/page/%d". The %s slot receives the day
	// as 2006-01-02, the %d slot the 1-based page number.
	DayURLFormat string

	// ItemSelector is the goquery selector for article anchors on a listing
	// page. Each match must carry an href.
	ItemSelector string

	// TimeAttr names the attribute on the matched element holding the
	// publication instant in RFC 3339, commonly "data-published". Empty
	// means listing pages carry no timestamps and discovery stamps records
	// with the archive day (or now, for the recent page).
	TimeAttr string

	// Location is the publisher's timezone, applied to zoneless timestamps.
	Location *time.Location

	// MinContentChars overrides DefaultMinContentChars when positive.
	MinContentChars int
}

// NewArchiveAdapter builds an adapter for one archive-backed source.
func NewArchiveAdapter(cfg ArchiveConfig) (*ArchiveAdapter, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("archive adapter: source tag is required")
	}
	recent, err := url.Parse(cfg.RecentURL)
	if err != nil || recent.Host == "" {
		return nil, fmt.Errorf("archive adapter %s: invalid recent url %q", cfg.Source, cfg.RecentURL)
	}
	if cfg.DayURLFormat == "" || strings.Count(cfg.DayURLFormat, "%s") != 1 || strings.Count(cfg.DayURLFormat, "%d") != 1 {
		return nil, fmt.Errorf("archive adapter %s: day url format needs one %%s and one %%d", cfg.Source)
	}
	if cfg.ItemSelector == "" {
		return nil, fmt.Errorf("archive adapter %s: item selector is required", cfg.Source)
	}

	minChars := cfg.MinContentChars
	if minChars <= 0 {
		minChars = DefaultMinContentChars
	}

	return &ArchiveAdapter{
		source:       cfg.Source,
		host:         recent.Host,
		loc:          cfg.Location,
		minChars:     minChars,
		recentURL:    cfg.RecentURL,
		dayURLFormat: cfg.DayURLFormat,
		itemSelector: cfg.ItemSelector,
		timeAttr:     cfg.TimeAttr,
		client:       &http.Client{Timeout: DefaultDiscoverTimeout},
		breaker:      circuitbreaker.New(circuitbreaker.FeedFetchConfig(cfg.Source)),
		retryConfig:  retry.FeedFetchConfig(),
		extractor:    newContentExtractor(cfg.Source),
	}, nil
}

func (a *ArchiveAdapter) Source() string {
	return a.source
}

// DiscoverRecent scrapes the landing page top to bottom, stopping at
// lastSeenURL. Landing pages list newest-first.
func (a *ArchiveAdapter) DiscoverRecent(ctx context.Context, lastSeenURL string) (string, []entity.LinkRecord, error) {
	items, err := a.scrapeListing(ctx, a.recentURL, time.Now().UTC())
	if err != nil {
		return "", nil, err
	}
	if len(items) == 0 {
		return "", nil, nil
	}

	newestURL := items[0].URL

	var records []entity.LinkRecord
	for _, item := range items {
		if lastSeenURL != "" && item.URL == lastSeenURL {
			break
		}
		records = append(records, item)
	}
	return newestURL, records, nil
}

// DiscoverForDay walks the day's archive pages until one comes back empty.
func (a *ArchiveAdapter) DiscoverForDay(ctx context.Context, day time.Time) ([]entity.LinkRecord, error) {
	dayUTC := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var records []entity.LinkRecord
	for page := 1; page <= maxArchivePages; page++ {
		pageURL := fmt.Sprintf(a.dayURLFormat, dayUTC.Format("2006-01-02"), page)
		items, err := a.scrapeListing(ctx, pageURL, dayUTC)
		if err != nil {
			return nil, fmt.Errorf("archive page %d: %w", page, err)
		}
		if len(items) == 0 {
			break
		}
		records = append(records, items...)
	}

	slog.Debug("archive day discovery complete",
		slog.String("source", a.source),
		slog.String("day", dayUTC.Format("2006-01-02")),
		slog.Int("links", len(records)))

	return records, nil
}

// Fetch loads the article page and extracts its content.
func (a *ArchiveAdapter) Fetch(ctx context.Context, link *entity.LinkRecord) (*entity.ArticleRecord, error) {
	parsed, err := url.Parse(link.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable url %q", ErrWrongPublisher, link.URL)
	}
	if !strings.EqualFold(parsed.Host, a.host) {
		return nil, fmt.Errorf("%w: host %q, want %q", ErrWrongPublisher, parsed.Host, a.host)
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

// scrapeListing fetches one listing page and extracts link records from it.
// fallbackTime stamps items whose listing entry carries no timestamp.
func (a *ArchiveAdapter) scrapeListing(ctx context.Context, pageURL string, fallbackTime time.Time) ([]entity.LinkRecord, error) {
	var doc *goquery.Document

	retryErr := retry.WithBackoff(ctx, a.retryConfig, func() error {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			return a.fetchDocument(ctx, pageURL)
		})
		if err != nil {
			return err
		}
		doc = result.(*goquery.Document)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("scrape %s: %w", pageURL, retryErr)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	var records []entity.LinkRecord
	doc.Find(a.itemSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)

		published := fallbackTime
		if a.timeAttr != "" {
			if raw, ok := sel.Attr(a.timeAttr); ok {
				if ts, err := time.Parse(time.RFC3339, raw); err == nil {
					published = normalizePublished(ts, a.loc)
				}
			}
		}

		records = append(records, entity.LinkRecord{
			Source:      a.source,
			URL:         abs.String(),
			PublishedAt: published,
			Status:      entity.LinkStatusPending,
		})
	})
	return records, nil
}

func (a *ArchiveAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		// Days past the end of pagination 404 on some archives. Treat as an
		// empty page rather than an error.
		return goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	limited := io.LimitReader(resp.Body, maxBodySize)
	doc, err := goquery.NewDocumentFromReader(limited)
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	return doc, nil
}
