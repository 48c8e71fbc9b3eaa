package vector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// collectionNamePattern restricts collection names to safe identifiers since
// table names cannot be bound as query parameters.
var collectionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// PGStore implements Store on PostgreSQL + pgvector.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a pgvector-backed Store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func validateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// EnsureCollection creates the collection table if it does not exist and
// verifies the dimension of an existing one. The vector extension install is
// attempted but its failure is ignored; the CREATE TABLE surfaces the real
// error when the extension is genuinely missing.
func (s *PGStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateCollectionName(name); err != nil {
		return fmt.Errorf("EnsureCollection: %w", err)
	}
	if dim <= 0 {
		return fmt.Errorf("EnsureCollection: dimension must be positive, got %d", dim)
	}

	_, _ = s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)

	createTable := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id                  UUID PRIMARY KEY,
    embedding           vector(%d) NOT NULL,
    source              TEXT NOT NULL,
    title               TEXT,
    content             TEXT,
    summary             TEXT,
    link                TEXT NOT NULL,
    keywords            TEXT[],
    images              TEXT[],
    published_datetime  TEXT,
    published_timestamp BIGINT,
    status              TEXT,
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, name, dim)
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("EnsureCollection: create table: %w", err)
	}

	// For the vector type atttypmod stores the declared dimension directly.
	const dimQuery = `
SELECT atttypmod
FROM pg_attribute
WHERE attrelid = $1::regclass AND attname = 'embedding'`

	var existingDim int
	if err := s.db.QueryRowContext(ctx, dimQuery, name).Scan(&existingDim); err != nil {
		return fmt.Errorf("EnsureCollection: read dimension: %w", err)
	}
	if existingDim != dim {
		return fmt.Errorf("EnsureCollection: collection %q has dimension %d, embedder produces %d",
			name, existingDim, dim)
	}

	slog.Info("vector collection ready",
		slog.String("collection", name),
		slog.Int("dimension", dim))
	return nil
}

// EnsurePayloadIndexes creates the payload filtering indexes and the
// cosine-distance index over the embedding column.
func (s *PGStore) EnsurePayloadIndexes(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return fmt.Errorf("EnsurePayloadIndexes: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_published_ts ON %s(published_timestamp)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s(status)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_keywords ON %s USING gin(keywords)`, name, name),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`, name, name),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("EnsurePayloadIndexes: %w", err)
		}
	}
	return nil
}

// UpsertPoints writes all points inside one transaction so the batch is
// atomic from the caller's perspective. Conflicting ids are overwritten.
func (s *PGStore) UpsertPoints(ctx context.Context, name string, points []Point) error {
	if err := validateCollectionName(name); err != nil {
		return fmt.Errorf("UpsertPoints: %w", err)
	}
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpsertPoints: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := fmt.Sprintf(`
INSERT INTO %s (id, embedding, source, title, content, summary, link,
                keywords, images, published_datetime, published_timestamp, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
ON CONFLICT (id) DO UPDATE SET
    embedding = EXCLUDED.embedding,
    source = EXCLUDED.source,
    title = EXCLUDED.title,
    content = EXCLUDED.content,
    summary = EXCLUDED.summary,
    link = EXCLUDED.link,
    keywords = EXCLUDED.keywords,
    images = EXCLUDED.images,
    published_datetime = EXCLUDED.published_datetime,
    published_timestamp = EXCLUDED.published_timestamp,
    status = EXCLUDED.status,
    updated_at = NOW()`, name)

	for i := range points {
		p := &points[i]
		_, err := tx.ExecContext(ctx, upsert,
			p.ID, pgvector.NewVector(p.Vector), p.Payload.Source, p.Payload.Title,
			p.Payload.Content, p.Payload.Summary, p.Payload.Link,
			pq.Array(p.Payload.Keywords), pq.Array(p.Payload.Images),
			p.Payload.PublishedDatetime, p.Payload.PublishedTimestamp, p.Payload.Status)
		if err != nil {
			return fmt.Errorf("UpsertPoints: point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("UpsertPoints: commit: %w", err)
	}
	return nil
}
