package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsingest/internal/domain/entity"
	"newsingest/internal/infra/cache"
	"newsingest/internal/infra/publisher"
	"newsingest/internal/infra/queue"
	"newsingest/internal/repository"
)

// fakeAdapter serves a canned feed, newest first.
type fakeAdapter struct {
	source      string
	feed        []string
	discoverErr error
	byDay       map[string][]string
	dayErr      map[string]error

	mu         sync.Mutex
	activeDays int
	maxActive  int
}

func (f *fakeAdapter) Source() string { return f.source }

func (f *fakeAdapter) DiscoverRecent(_ context.Context, lastSeen string) (string, []entity.LinkRecord, error) {
	if f.discoverErr != nil {
		return "", nil, f.discoverErr
	}
	if len(f.feed) == 0 {
		return "", nil, nil
	}
	newest := f.feed[0]
	var records []entity.LinkRecord
	for _, u := range f.feed {
		if lastSeen != "" && u == lastSeen {
			break
		}
		records = append(records, entity.LinkRecord{
			Source:      f.source,
			URL:         u,
			PublishedAt: time.Now().UTC(),
			Status:      entity.LinkStatusPending,
		})
	}
	return newest, records, nil
}

func (f *fakeAdapter) DiscoverForDay(_ context.Context, day time.Time) ([]entity.LinkRecord, error) {
	f.mu.Lock()
	f.activeDays++
	if f.activeDays > f.maxActive {
		f.maxActive = f.activeDays
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.activeDays--
		f.mu.Unlock()
	}()

	key := day.Format("2006-01-02")
	if err := f.dayErr[key]; err != nil {
		return nil, err
	}
	var records []entity.LinkRecord
	for _, u := range f.byDay[key] {
		records = append(records, entity.LinkRecord{
			Source:      f.source,
			URL:         u,
			PublishedAt: day,
			Status:      entity.LinkStatusPending,
		})
	}
	return records, nil
}

func (f *fakeAdapter) Fetch(context.Context, *entity.LinkRecord) (*entity.ArticleRecord, error) {
	return nil, errors.New("not used in discovery tests")
}

// fakeLinkRepo records upserted URLs.
type fakeLinkRepo struct {
	mu        sync.Mutex
	upserted  []string
	upsertErr error
}

func (r *fakeLinkRepo) UpsertBatch(_ context.Context, records []entity.LinkRecord) (int64, error) {
	if r.upsertErr != nil {
		return 0, r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.upserted = append(r.upserted, rec.URL)
	}
	return int64(len(records)), nil
}

func (r *fakeLinkRepo) ClaimPending(context.Context, string, int, []int64) (repository.LinkClaim, error) {
	return nil, errors.New("not used in discovery tests")
}

func (r *fakeLinkRepo) Stats(context.Context) (repository.LinkStats, error) {
	return repository.LinkStats{}, nil
}

func (r *fakeLinkRepo) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.upserted...)
}

func newFreshFixture(t *testing.T, adapter *fakeAdapter) (*FreshCollector, *fakeLinkRepo, cache.MarkerStore, *queue.ChannelBroker) {
	t.Helper()
	reg, err := publisher.NewRegistry(adapter)
	require.NoError(t, err)
	repo := &fakeLinkRepo{}
	markers := cache.NewMemoryMarkers()
	broker := queue.NewChannelBroker()
	t.Cleanup(func() { _ = broker.Close() })
	return NewFreshCollector(reg, repo, markers, broker), repo, markers, broker
}

func TestFreshCollectEmptyMarker(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: "testsource",
		feed:   []string{"https://example.com/u1", "https://example.com/u2", "https://example.com/u3"},
	}
	collector, repo, markers, broker := newFreshFixture(t, adapter)

	written, err := collector.CollectSource(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, int64(3), written)
	assert.Equal(t, []string{
		"https://example.com/u1",
		"https://example.com/u2",
		"https://example.com/u3",
	}, repo.urls())

	marker, err := markers.Marker(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/u1", marker)

	msgs, err := broker.Consume(ctx, queue.TopicLinks, queue.GroupFetcher, "t", 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	lm, err := msgs[0].DecodeLink()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/u1", lm.URL)
	assert.Equal(t, "testsource", lm.Source)
}

func TestFreshCollectMarkerMidFeed(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: "testsource",
		feed:   []string{"https://example.com/u1", "https://example.com/u2", "https://example.com/u3"},
	}
	collector, repo, markers, _ := newFreshFixture(t, adapter)
	require.NoError(t, markers.SetMarker(ctx, "testsource", "https://example.com/u2"))

	written, err := collector.CollectSource(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)
	assert.Equal(t, []string{"https://example.com/u1"}, repo.urls())

	marker, err := markers.Marker(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/u1", marker)
}

func TestFreshCollectQuietFeedStillAdvancesMarker(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: "testsource",
		feed:   []string{"https://example.com/u1"},
	}
	collector, repo, markers, _ := newFreshFixture(t, adapter)
	require.NoError(t, markers.SetMarker(ctx, "testsource", "https://example.com/u1"))

	written, err := collector.CollectSource(ctx, "testsource")
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Empty(t, repo.urls())

	marker, err := markers.Marker(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/u1", marker)
}

func TestFreshCollectDiscoveryFailureKeepsMarker(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source:      "testsource",
		discoverErr: errors.New("feed down"),
	}
	collector, _, markers, _ := newFreshFixture(t, adapter)
	require.NoError(t, markers.SetMarker(ctx, "testsource", "https://example.com/old"))

	_, err := collector.CollectSource(ctx, "testsource")
	require.Error(t, err)

	marker, err := markers.Marker(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/old", marker)
}

func TestFreshCollectPersistFailureKeepsMarker(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: "testsource",
		feed:   []string{"https://example.com/u1"},
	}
	reg, err := publisher.NewRegistry(adapter)
	require.NoError(t, err)
	repo := &fakeLinkRepo{upsertErr: errors.New("db down")}
	markers := cache.NewMemoryMarkers()
	broker := queue.NewChannelBroker()
	defer func() { _ = broker.Close() }()
	collector := NewFreshCollector(reg, repo, markers, broker)

	_, err = collector.CollectSource(ctx, "testsource")
	require.Error(t, err)

	marker, err := markers.Marker(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, "", marker)
}

func TestFreshCollectDropsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: "testsource",
		feed:   []string{"https://example.com/good", "ftp://example.com/bad"},
	}
	collector, repo, _, _ := newFreshFixture(t, adapter)

	written, err := collector.CollectSource(ctx, "testsource")
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)
	assert.Equal(t, []string{"https://example.com/good"}, repo.urls())
}

func TestValidRecordsLeavesInputUntouched(t *testing.T) {
	discovered := []entity.LinkRecord{
		{Source: "testsource", URL: "ftp://example.com/bad", Status: entity.LinkStatusPending},
		{Source: "testsource", URL: "https://example.com/good", Status: entity.LinkStatusPending},
	}

	valid := validRecords("testsource", discovered)
	require.Len(t, valid, 1)
	assert.Equal(t, "https://example.com/good", valid[0].URL)

	// Filtering must not compact over the caller's backing array.
	assert.Equal(t, "ftp://example.com/bad", discovered[0].URL)
	assert.Equal(t, "https://example.com/good", discovered[1].URL)
}

func TestFreshCollectUnknownSource(t *testing.T) {
	adapter := &fakeAdapter{source: "testsource"}
	collector, _, _, _ := newFreshFixture(t, adapter)

	_, err := collector.CollectSource(context.Background(), "nosuch")
	require.Error(t, err)
}

func TestHistoricalCollectRange(t *testing.T) {
	ctx := context.Background()
	byDay := make(map[string][]string)
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		byDay[key] = []string{fmt.Sprintf("https://example.com/%s/a", key)}
	}
	adapter := &fakeAdapter{source: "testsource", byDay: byDay}

	reg, err := publisher.NewRegistry(adapter)
	require.NoError(t, err)
	repo := &fakeLinkRepo{}
	broker := queue.NewChannelBroker()
	defer func() { _ = broker.Close() }()

	collector := NewHistoricalCollector(reg, repo, broker, 10, 4)
	total, err := collector.Collect(ctx, "testsource", from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, repo.urls(), 25)

	// Concurrency stays within the worker budget.
	assert.LessOrEqual(t, adapter.maxActive, 4)
}

func TestHistoricalCollectDayFailureAborts(t *testing.T) {
	ctx := context.Background()
	adapter := &fakeAdapter{
		source: "testsource",
		byDay: map[string][]string{
			"2025-02-01": {"https://example.com/2025-02-01/a"},
		},
		dayErr: map[string]error{
			"2025-02-12": errors.New("archive broken"),
		},
	}

	reg, err := publisher.NewRegistry(adapter)
	require.NoError(t, err)
	repo := &fakeLinkRepo{}
	broker := queue.NewChannelBroker()
	defer func() { _ = broker.Close() }()

	collector := NewHistoricalCollector(reg, repo, broker, 10, 2)
	_, err = collector.Collect(ctx, "testsource",
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 20, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2025-02-12")

	// The first batch's day persisted before the second batch failed.
	assert.Contains(t, repo.urls(), "https://example.com/2025-02-01/a")
}

func TestHistoricalCollectInvertedRange(t *testing.T) {
	adapter := &fakeAdapter{source: "testsource"}
	reg, err := publisher.NewRegistry(adapter)
	require.NoError(t, err)
	broker := queue.NewChannelBroker()
	defer func() { _ = broker.Close() }()

	collector := NewHistoricalCollector(reg, &fakeLinkRepo{}, broker, 0, 0)
	_, err = collector.Collect(context.Background(), "testsource",
		time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}
