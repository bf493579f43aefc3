package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// LibraryStatus enumerates the status values from spec.md §3.
type LibraryStatus string

const (
	StatusWatching    LibraryStatus = "watching"
	StatusCompleted   LibraryStatus = "completed"
	StatusOnHold      LibraryStatus = "on_hold"
	StatusDropped     LibraryStatus = "dropped"
	StatusPlanToWatch LibraryStatus = "plan_to_watch"
	StatusReading     LibraryStatus = "reading"
	StatusPlanToRead  LibraryStatus = "plan_to_read"
)

// LibraryEntry is one per media (spec.md §3).
type LibraryEntry struct {
	MediaID     string
	Status      LibraryStatus
	Favorite    bool
	Score       *int
	Notes       string
	CreatedAtMs int64
	UpdatedAtMs int64
}

// UpsertLibraryEntry inserts or updates the library row for mediaID,
// creating it if absent (explicit add, or the implicit creation path used
// by progress writes in §4.6).
func (s *Store) UpsertLibraryEntry(ctx context.Context, e LibraryEntry) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO library_entries (media_id, status, favorite, score, notes, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(media_id) DO UPDATE SET
			status=excluded.status, favorite=excluded.favorite, score=excluded.score,
			notes=excluded.notes, updated_at_ms=excluded.updated_at_ms`,
		e.MediaID, string(e.Status), boolToInt(e.Favorite), nullableInt(e.Score), e.Notes, now, now)
	return err
}

// SetLibraryStatus updates only the status column, inserting a default row
// if one does not exist yet; used by the write-through path in §4.6 so a
// progress write never fails for lack of an explicit "add to library".
func (s *Store) SetLibraryStatus(ctx context.Context, mediaID string, status LibraryStatus) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO library_entries (media_id, status, favorite, score, notes, created_at_ms, updated_at_ms)
		VALUES (?, ?, 0, NULL, '', ?, ?)
		ON CONFLICT(media_id) DO UPDATE SET status=excluded.status, updated_at_ms=excluded.updated_at_ms`,
		mediaID, string(status), now, now)
	return err
}

// GetLibraryEntry returns the library row for mediaID.
func (s *Store) GetLibraryEntry(ctx context.Context, mediaID string) (*LibraryEntry, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT media_id, status, favorite, score, notes, created_at_ms, updated_at_ms
		FROM library_entries WHERE media_id = ?`, mediaID)
	var e LibraryEntry
	var status string
	var favorite int
	var score sql.NullInt64
	var notes sql.NullString
	err := row.Scan(&e.MediaID, &status, &favorite, &score, &notes, &e.CreatedAtMs, &e.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "library_entry", ID: mediaID}
	}
	if err != nil {
		return nil, err
	}
	e.Status = LibraryStatus(status)
	e.Favorite = favorite != 0
	if score.Valid {
		v := int(score.Int64)
		e.Score = &v
	}
	e.Notes = notes.String
	return &e, nil
}

// ListLibrary returns every library entry, optionally filtered by status.
func (s *Store) ListLibrary(ctx context.Context, statuses []LibraryStatus) ([]LibraryEntry, error) {
	query := `SELECT media_id FROM library_entries`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	out := make([]LibraryEntry, 0, len(ids))
	for _, id := range ids {
		e, err := s.GetLibraryEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

// DeleteLibraryEntry removes media from the library without deleting the
// media row itself.
func (s *Store) DeleteLibraryEntry(ctx context.Context, mediaID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM library_entries WHERE media_id = ?`, mediaID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	s := "?"
	for i := 1; i < n; i++ {
		s += ",?"
	}
	return s
}
