package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// WatchHistory is keyed by (media_id, episode_id) per spec.md §3.
type WatchHistory struct {
	MediaID         string
	EpisodeID       string
	EpisodeNumber   float64
	ProgressSeconds float64
	DurationSeconds float64 // 0 = unknown
	Completed       bool
	UpdatedAtMs     int64
}

// ReadingHistory is keyed by (media_id, chapter_id).
type ReadingHistory struct {
	MediaID       string
	ChapterID     string
	ChapterNumber float64
	Page          int
	PageCount     int
	Completed     bool
	UpdatedAtMs   int64
}

// UpsertWatchHistory is a last-writer-wins upsert (spec.md §5 ordering
// guarantee). Completed is monotonic per key: once true, a caller must
// pass resetCompleted=true to overwrite it back to false (spec.md §3).
func (s *Store) UpsertWatchHistory(ctx context.Context, h WatchHistory, resetCompleted bool) error {
	now := time.Now().UnixMilli()
	if resetCompleted {
		_, err := s.DB.ExecContext(ctx, `
			INSERT INTO watch_history (media_id, episode_id, episode_number, progress_seconds, duration_seconds, completed, updated_at_ms)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(media_id, episode_id) DO UPDATE SET
				episode_number=excluded.episode_number, progress_seconds=excluded.progress_seconds,
				duration_seconds=excluded.duration_seconds, completed=excluded.completed,
				updated_at_ms=excluded.updated_at_ms`,
			h.MediaID, h.EpisodeID, h.EpisodeNumber, h.ProgressSeconds, h.DurationSeconds, boolToInt(h.Completed), now)
		return err
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO watch_history (media_id, episode_id, episode_number, progress_seconds, duration_seconds, completed, updated_at_ms)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(media_id, episode_id) DO UPDATE SET
			episode_number=excluded.episode_number, progress_seconds=excluded.progress_seconds,
			duration_seconds=excluded.duration_seconds,
			completed=(completed = 1 OR excluded.completed = 1),
			updated_at_ms=excluded.updated_at_ms`,
		h.MediaID, h.EpisodeID, h.EpisodeNumber, h.ProgressSeconds, h.DurationSeconds, boolToInt(h.Completed), now)
	return err
}

// UpsertReadingHistory mirrors UpsertWatchHistory for manga.
func (s *Store) UpsertReadingHistory(ctx context.Context, h ReadingHistory, resetCompleted bool) error {
	now := time.Now().UnixMilli()
	if resetCompleted {
		_, err := s.DB.ExecContext(ctx, `
			INSERT INTO reading_history (media_id, chapter_id, chapter_number, page, page_count, completed, updated_at_ms)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(media_id, chapter_id) DO UPDATE SET
				chapter_number=excluded.chapter_number, page=excluded.page,
				page_count=excluded.page_count, completed=excluded.completed,
				updated_at_ms=excluded.updated_at_ms`,
			h.MediaID, h.ChapterID, h.ChapterNumber, h.Page, h.PageCount, boolToInt(h.Completed), now)
		return err
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO reading_history (media_id, chapter_id, chapter_number, page, page_count, completed, updated_at_ms)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(media_id, chapter_id) DO UPDATE SET
			chapter_number=excluded.chapter_number, page=excluded.page,
			page_count=excluded.page_count,
			completed=(completed = 1 OR excluded.completed = 1),
			updated_at_ms=excluded.updated_at_ms`,
		h.MediaID, h.ChapterID, h.ChapterNumber, h.Page, h.PageCount, boolToInt(h.Completed), now)
	return err
}

// GetWatchHistory looks up a single (media_id, episode_id) row, used by
// backup import's merge_keep_existing strategy to decide whether to skip.
func (s *Store) GetWatchHistory(ctx context.Context, mediaID, episodeID string) (*WatchHistory, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT media_id, episode_id, episode_number, progress_seconds, duration_seconds, completed, updated_at_ms
		FROM watch_history WHERE media_id = ? AND episode_id = ?`, mediaID, episodeID)
	var h WatchHistory
	var completed int
	err := row.Scan(&h.MediaID, &h.EpisodeID, &h.EpisodeNumber, &h.ProgressSeconds, &h.DurationSeconds, &completed, &h.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "watch_history", ID: mediaID + "/" + episodeID}
	}
	if err != nil {
		return nil, err
	}
	h.Completed = completed != 0
	return &h, nil
}

// GetReadingHistory mirrors GetWatchHistory for manga.
func (s *Store) GetReadingHistory(ctx context.Context, mediaID, chapterID string) (*ReadingHistory, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT media_id, chapter_id, chapter_number, page, page_count, completed, updated_at_ms
		FROM reading_history WHERE media_id = ? AND chapter_id = ?`, mediaID, chapterID)
	var h ReadingHistory
	var completed int
	err := row.Scan(&h.MediaID, &h.ChapterID, &h.ChapterNumber, &h.Page, &h.PageCount, &completed, &h.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "reading_history", ID: mediaID + "/" + chapterID}
	}
	if err != nil {
		return nil, err
	}
	h.Completed = completed != 0
	return &h, nil
}

// CountCompletedWatch returns how many distinct episodes are marked
// completed for mediaID, used by the write-through status inference
// (spec.md §4.6).
func (s *Store) CountCompletedWatch(ctx context.Context, mediaID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watch_history WHERE media_id = ? AND completed = 1`, mediaID).Scan(&n)
	return n, err
}

// CountCompletedReading mirrors CountCompletedWatch for manga.
func (s *Store) CountCompletedReading(ctx context.Context, mediaID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reading_history WHERE media_id = ? AND completed = 1`, mediaID).Scan(&n)
	return n, err
}

// ContinueWatchingRow is one row of the continue-watching query (§4.6).
type ContinueWatchingRow struct {
	MediaID         string
	EpisodeID       string
	EpisodeNumber   float64
	ProgressSeconds float64
	DurationSeconds float64
	UpdatedAtMs     int64
	FinalEpisode    bool
}

// ContinueWatching returns, for each media with uncompleted progress, the
// most recently updated watch_history row, newest first. A media's final
// episode at >=90% progress is excluded (it's "effectively completed" for
// UI purposes per spec.md §4.6 but the row itself is not rewritten).
func (s *Store) ContinueWatching(ctx context.Context) ([]ContinueWatchingRow, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT wh.media_id, wh.episode_id, wh.episode_number, wh.progress_seconds,
			wh.duration_seconds, wh.updated_at_ms, m.episode_count
		FROM watch_history wh
		JOIN media m ON m.id = wh.media_id
		JOIN (
			SELECT media_id, MAX(updated_at_ms) AS max_ts
			FROM watch_history
			WHERE completed = 0
			GROUP BY media_id
		) latest ON latest.media_id = wh.media_id AND latest.max_ts = wh.updated_at_ms
		WHERE wh.completed = 0
		ORDER BY wh.updated_at_ms DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContinueWatchingRow
	for rows.Next() {
		var r ContinueWatchingRow
		var duration sql.NullFloat64
		var episodeCount sql.NullInt64
		if err := rows.Scan(&r.MediaID, &r.EpisodeID, &r.EpisodeNumber, &r.ProgressSeconds,
			&duration, &r.UpdatedAtMs, &episodeCount); err != nil {
			return nil, err
		}
		r.DurationSeconds = duration.Float64
		isFinal := episodeCount.Valid && float64(episodeCount.Int64) > 0 && r.EpisodeNumber >= float64(episodeCount.Int64)
		nearlyDone := r.DurationSeconds > 0 && r.ProgressSeconds/r.DurationSeconds >= 0.9
		if isFinal && nearlyDone {
			continue
		}
		r.FinalEpisode = isFinal
		out = append(out, r)
	}
	return out, nil
}
