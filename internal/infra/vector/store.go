// Package vector implements the content-addressed embedding index on
// PostgreSQL with the pgvector extension. A "collection" is a table with a
// fixed-dimension vector column plus the article payload fields used for
// filtering.
package vector

import (
	"context"

	"github.com/google/uuid"
)

// Point is one embedding plus its payload, keyed by a URL-derived id.
type Point struct {
	ID      uuid.UUID
	Vector  []float32
	Payload Payload
}

// Payload carries the article fields stored alongside the vector.
// PublishedDatetime is ISO-8601; PublishedTimestamp is integer seconds and is
// the field range filters run against.
type Payload struct {
	Source             string
	Title              string
	Content            string
	Summary            string
	Link               string
	Keywords           []string
	Images             []string
	PublishedDatetime  string
	PublishedTimestamp int64
	Status             string
}

// Store is the capability contract of the vector index.
type Store interface {
	// EnsureCollection creates the collection if absent. Idempotent; fails
	// only when an existing collection carries a different dimension.
	EnsureCollection(ctx context.Context, name string, dim int) error

	// EnsurePayloadIndexes creates the filtering indexes (source,
	// published_timestamp, status, keywords) and the cosine-distance vector
	// index. Idempotent.
	EnsurePayloadIndexes(ctx context.Context, name string) error

	// UpsertPoints writes the points in one call; an existing id is
	// overwritten, so reprocessing the same article never duplicates.
	UpsertPoints(ctx context.Context, name string, points []Point) error
}

// PointID derives the stable point id for an article URL: UUIDv5 over the
// URL namespace. The same URL always maps to the same point.
func PointID(url string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url))
}
