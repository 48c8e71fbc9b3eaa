package db

import (
	"database/sql"
)

// MigrateUp creates the pipeline tables and the indexes the hot paths need.
// Every statement is idempotent so the worker can run it at startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS links (
    id            BIGSERIAL PRIMARY KEY,
    source        TEXT NOT NULL,
    url           TEXT NOT NULL UNIQUE,
    published_at  TIMESTAMPTZ,
    status        TEXT NOT NULL DEFAULT 'pending'
                  CHECK (status IN ('pending', 'completed', 'failed')),
    tried_count   INTEGER NOT NULL DEFAULT 0,
    last_tried_at TIMESTAMPTZ
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id           BIGSERIAL PRIMARY KEY,
    source       TEXT NOT NULL,
    url          TEXT NOT NULL UNIQUE REFERENCES links(url),
    title        TEXT NOT NULL,
    content      TEXT NOT NULL,
    summary      TEXT,
    keywords     TEXT[],
    images       TEXT[],
    published_at TIMESTAMPTZ,
    status       TEXT NOT NULL DEFAULT 'pending'
                 CHECK (status IN ('pending', 'completed', 'failed'))
)`); err != nil {
		return err
	}

	indexes := []string{
		// dispatcher claim path
		`CREATE INDEX IF NOT EXISTS idx_links_status_tried ON links(status, tried_count)`,
		`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source)`,
		`CREATE INDEX IF NOT EXISTS idx_links_published_at ON links(published_at DESC)`,
		// embedding claim path
		`CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	return nil
}
