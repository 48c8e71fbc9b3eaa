// Package cache holds the short-term key/value pieces of the pipeline. The
// only tenant today is the per-source discovery marker: the newest URL fresh
// discovery has already seen. Markers are an optimization, never
// authoritative; losing them only makes the next discovery walk longer.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore reads and writes per-source discovery markers.
type MarkerStore interface {
	// Marker returns the last-seen URL for a source, or "" when no marker
	// has been written yet.
	Marker(ctx context.Context, source string) (string, error)

	// SetMarker records the newest URL seen for a source.
	SetMarker(ctx context.Context, source, url string) error
}

// markerTTL keeps stale markers from lingering across long outages. A marker
// older than this forces one full feed walk, which the upsert path absorbs.
const markerTTL = 30 * 24 * time.Hour

// RedisMarkers implements MarkerStore on Redis.
type RedisMarkers struct {
	client *redis.Client
}

// NewRedisMarkers wraps an existing Redis client.
func NewRedisMarkers(client *redis.Client) *RedisMarkers {
	return &RedisMarkers{client: client}
}

func markerKey(source string) string {
	return "marker:" + source
}

func (m *RedisMarkers) Marker(ctx context.Context, source string) (string, error) {
	val, err := m.client.Get(ctx, markerKey(source)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read marker for %s: %w", source, err)
	}
	return val, nil
}

func (m *RedisMarkers) SetMarker(ctx context.Context, source, url string) error {
	if err := m.client.Set(ctx, markerKey(source), url, markerTTL).Err(); err != nil {
		return fmt.Errorf("write marker for %s: %w", source, err)
	}
	return nil
}

// MemoryMarkers implements MarkerStore in process memory. Used when no cache
// host is configured; markers then last as long as the worker does.
type MemoryMarkers struct {
	mu      sync.RWMutex
	markers map[string]string
}

func NewMemoryMarkers() *MemoryMarkers {
	return &MemoryMarkers{markers: make(map[string]string)}
}

func (m *MemoryMarkers) Marker(_ context.Context, source string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.markers[source], nil
}

func (m *MemoryMarkers) SetMarker(_ context.Context, source, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[source] = url
	return nil
}
