// Package publisher defines the per-source adapter capability set and the
// registry that maps source tags to adapters. An adapter only talks to the
// publisher's site; parallelism and retry bookkeeping belong to the
// dispatcher.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsingest/internal/domain/entity"
)

// Sentinel errors adapters report. The dispatcher classifies on these.
var (
	// ErrContentTooShort means the fetched page produced less content than
	// the configured minimum. Guards against soft-404 pages and
	// interstitials; treated as a recoverable fetch failure.
	ErrContentTooShort = errors.New("article content below minimum length")

	// ErrWrongPublisher means the adapter was handed a URL it does not own.
	// Fatal for that record; no retries.
	ErrWrongPublisher = errors.New("url does not belong to this publisher")
)

// DefaultMinContentChars is the minimum extracted content length accepted as
// a real article.
const DefaultMinContentChars = 50

// Default deadlines for adapter I/O.
const (
	DefaultFetchTimeout    = 15 * time.Second
	DefaultDiscoverTimeout = 30 * time.Second
)

// Adapter is the capability set one source implements.
type Adapter interface {
	// Source returns the publisher tag this adapter serves.
	Source() string

	// DiscoverRecent walks the publisher's "what's new" feed newest-first,
	// stopping at lastSeenURL or feed exhaustion. newestURL is the first URL
	// in the feed regardless of whether any new records were produced, so
	// the caller's marker can advance even when nothing is new.
	DiscoverRecent(ctx context.Context, lastSeenURL string) (newestURL string, records []entity.LinkRecord, err error)

	// DiscoverForDay returns all links the publisher attributes to the given
	// calendar day (UTC).
	DiscoverForDay(ctx context.Context, day time.Time) ([]entity.LinkRecord, error)

	// Fetch loads one article and extracts its content. Fails with
	// ErrContentTooShort when the extracted content is below the minimum
	// and ErrWrongPublisher when the URL is not this adapter's.
	Fetch(ctx context.Context, link *entity.LinkRecord) (*entity.ArticleRecord, error)
}

// Registry maps source tags to adapters. Populated once at startup; read-only
// afterwards.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters.
// Duplicate source tags are a wiring bug and rejected.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, exists := r.adapters[a.Source()]; exists {
			return nil, fmt.Errorf("duplicate adapter for source %q", a.Source())
		}
		r.adapters[a.Source()] = a
	}
	return r, nil
}

// Lookup returns the adapter for a source tag.
func (r *Registry) Lookup(source string) (Adapter, bool) {
	a, ok := r.adapters[source]
	return a, ok
}

// Sources returns all registered source tags.
func (r *Registry) Sources() []string {
	sources := make([]string, 0, len(r.adapters))
	for s := range r.adapters {
		sources = append(sources, s)
	}
	return sources
}

// normalizePublished interprets a publisher timestamp that may lack a zone.
// Each adapter declares its publisher's location; zoneless instants are
// assumed local-to-publisher and normalized to UTC here, at ingress.
func normalizePublished(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	// Feed parsers hand back UTC when the source omitted a zone. Rebuild the
	// wall clock in the publisher's location before converting.
	if loc != nil && t.Location() == time.UTC {
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	}
	return t.UTC()
}
