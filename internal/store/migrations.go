package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one named, idempotent schema step. Migrations are applied in
// slice order, each recorded by name in _migrations so it runs at most
// once; per spec.md §9, existing names and their SQL are immutable once
// released — new schema changes append a new migration, they never edit
// one already shipped.
type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{name: "0001_init", sql: schemaInit},
	{name: "0002_release_tracking_v2", sql: schemaReleaseTrackingV2},
}

const schemaInit = `
CREATE TABLE IF NOT EXISTS media (
	id TEXT PRIMARY KEY,
	plugin_id TEXT NOT NULL,
	type TEXT NOT NULL CHECK (type IN ('anime','manga')),
	title TEXT NOT NULL,
	english_name TEXT,
	native_name TEXT,
	description TEXT,
	status TEXT,
	cover_url TEXT,
	banner_url TEXT,
	genres TEXT NOT NULL DEFAULT '[]',
	year INTEGER,
	rating REAL,
	episode_count INTEGER,
	season TEXT,
	aired_start TEXT,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS library_entries (
	media_id TEXT PRIMARY KEY REFERENCES media(id) ON DELETE CASCADE,
	status TEXT NOT NULL,
	favorite INTEGER NOT NULL DEFAULT 0,
	score INTEGER,
	notes TEXT,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS watch_history (
	media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
	episode_id TEXT NOT NULL,
	episode_number REAL,
	progress_seconds REAL NOT NULL DEFAULT 0,
	duration_seconds REAL,
	completed INTEGER NOT NULL DEFAULT 0,
	updated_at_ms INTEGER NOT NULL,
	PRIMARY KEY (media_id, episode_id)
);

CREATE TABLE IF NOT EXISTS reading_history (
	media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
	chapter_id TEXT NOT NULL,
	chapter_number REAL,
	page INTEGER NOT NULL DEFAULT 0,
	page_count INTEGER,
	completed INTEGER NOT NULL DEFAULT 0,
	updated_at_ms INTEGER NOT NULL,
	PRIMARY KEY (media_id, chapter_id)
);

CREATE TABLE IF NOT EXISTS downloads (
	id TEXT PRIMARY KEY,
	media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
	episode_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	source_url TEXT NOT NULL,
	file_path TEXT NOT NULL,
	total_bytes INTEGER NOT NULL DEFAULT 0,
	downloaded_bytes INTEGER NOT NULL DEFAULT 0,
	speed_bps REAL NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_downloads_media ON downloads(media_id);
CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);

CREATE TABLE IF NOT EXISTS chapter_downloads (
	id TEXT PRIMARY KEY,
	media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
	chapter_id TEXT NOT NULL,
	folder_path TEXT NOT NULL,
	total_images INTEGER NOT NULL DEFAULT 0,
	downloaded_images INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT,
	created_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL,
	UNIQUE (media_id, chapter_id)
);

CREATE TABLE IF NOT EXISTS durable_cache (
	cache_key TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	blob BLOB NOT NULL,
	cached_at_ms INTEGER NOT NULL,
	updated_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_durable_cache_category ON durable_cache(category);

CREATE TABLE IF NOT EXISTS plugins (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	version TEXT,
	type TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT 'javascript',
	base_url TEXT NOT NULL,
	allowed_domains TEXT NOT NULL DEFAULT '[]',
	code TEXT NOT NULL,
	loaded_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS plugin_id_mapping (
	mal_id TEXT NOT NULL,
	source_plugin_id TEXT NOT NULL,
	title TEXT,
	score REAL,
	PRIMARY KEY (mal_id, source_plugin_id)
);

CREATE TABLE IF NOT EXISTS app_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS tag_assignments (
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
	PRIMARY KEY (tag_id, media_id)
);
`

// schemaReleaseTrackingV2 adds the v2 tracking row plus the append-only
// check log described in spec.md §3. The legacy release_tracking table
// named in spec.md §9's Open Question is collapsed into this single table,
// per the note that an implementer may do so as long as
// user_notified_up_to/user_acknowledged_at are retained.
const schemaReleaseTrackingV2 = `
CREATE TABLE IF NOT EXISTS release_tracking_v2 (
	media_id TEXT PRIMARY KEY REFERENCES media(id) ON DELETE CASCADE,
	last_known_count INTEGER NOT NULL DEFAULT 0,
	last_known_latest_number REAL,
	last_known_latest_id TEXT,
	raw_status TEXT,
	normalized_status TEXT NOT NULL DEFAULT 'unknown',
	user_notified_up_to REAL,
	user_acknowledged_at_ms INTEGER,
	last_checked_at_ms INTEGER,
	next_scheduled_check_ms INTEGER,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_error TEXT,
	notification_enabled INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS release_check_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	media_id TEXT NOT NULL REFERENCES media(id) ON DELETE CASCADE,
	result TEXT NOT NULL,
	detail TEXT,
	checked_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_release_check_log_media ON release_check_log(media_id, checked_at_ms);
`

func (s *Store) runMigrations(ctx context.Context) error {
	if err := execContext(ctx, s.DB, `CREATE TABLE IF NOT EXISTS _migrations (
		name TEXT PRIMARY KEY,
		applied_at_ms INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := migrationApplied(ctx, s.DB, m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := applyMigration(ctx, s.DB, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		log.Info("applied migration %s", m.name)
	}
	return nil
}

func migrationApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO _migrations (name, applied_at_ms) VALUES (?, ?)`,
		m.name, nowMillis(time.Now())); err != nil {
		return err
	}
	return tx.Commit()
}
