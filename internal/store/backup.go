package store

import (
	"context"
	"database/sql"
)

// ListAllWatchHistory returns every watch_history row for export, ordered by
// the primary key so repeated exports are byte-comparable (spec.md §8
// round-trip property).
func (s *Store) ListAllWatchHistory(ctx context.Context) ([]WatchHistory, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT media_id, episode_id, episode_number, progress_seconds, duration_seconds, completed, updated_at_ms
		FROM watch_history ORDER BY media_id, episode_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WatchHistory
	for rows.Next() {
		var h WatchHistory
		var completed int
		if err := rows.Scan(&h.MediaID, &h.EpisodeID, &h.EpisodeNumber, &h.ProgressSeconds,
			&h.DurationSeconds, &completed, &h.UpdatedAtMs); err != nil {
			return nil, err
		}
		h.Completed = completed != 0
		out = append(out, h)
	}
	return out, nil
}

// ListAllReadingHistory mirrors ListAllWatchHistory for manga.
func (s *Store) ListAllReadingHistory(ctx context.Context) ([]ReadingHistory, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT media_id, chapter_id, chapter_number, page, page_count, completed, updated_at_ms
		FROM reading_history ORDER BY media_id, chapter_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReadingHistory
	for rows.Next() {
		var h ReadingHistory
		var completed int
		if err := rows.Scan(&h.MediaID, &h.ChapterID, &h.ChapterNumber, &h.Page,
			&h.PageCount, &completed, &h.UpdatedAtMs); err != nil {
			return nil, err
		}
		h.Completed = completed != 0
		out = append(out, h)
	}
	return out, nil
}

// ListAllPluginIDMappings returns every tracker-mapping row for export.
func (s *Store) ListAllPluginIDMappings(ctx context.Context) ([]PluginIDMapping, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT mal_id, source_plugin_id, title, score FROM plugin_id_mapping ORDER BY mal_id, source_plugin_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PluginIDMapping
	for rows.Next() {
		var m PluginIDMapping
		if err := rows.Scan(&m.MALID, &m.SourcePluginID, &m.Title, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// importTables lists every table the backup/import strategies operate on,
// in an order safe for TRUNCATE given foreign keys (children before
// parents is unnecessary here since all FKs cascade from media, but
// tag_assignments before tags keeps orphan-free semantics explicit).
var importTables = []string{
	"tag_assignments", "tags", "watch_history", "reading_history",
	"library_entries", "app_settings", "plugin_id_mapping", "media",
}

// TruncateForReplace empties every table the replace_all import strategy
// targets. Must run inside the same transaction as the subsequent inserts;
// callers use WithTx.
func (s *Store) TruncateForReplace(ctx context.Context, tx txExecer) error {
	for _, t := range importTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return err
		}
	}
	return nil
}

// txExecer is the subset of *sql.DB/*sql.Tx used by TruncateForReplace, so
// callers in internal/backup can pass either a transaction or a plain
// connection.
type txExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// BeginTx exposes a transaction to internal/backup for the replace_all
// import strategy, which must truncate and reinsert atomically.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}
