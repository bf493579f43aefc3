package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// DownloadStatus is the FSM state from spec.md §4.3.
type DownloadStatus string

const (
	DownloadQueued      DownloadStatus = "queued"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadPaused      DownloadStatus = "paused"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
	DownloadCancelled   DownloadStatus = "cancelled"
)

// Download is one row of the downloads table (spec.md §3).
type Download struct {
	ID              string
	MediaID         string
	EpisodeID       string
	Filename        string
	SourceURL       string
	FilePath        string
	TotalBytes      int64
	DownloadedBytes int64
	SpeedBps        float64
	Status          DownloadStatus
	Error           string
	CreatedAtMs     int64
	UpdatedAtMs     int64
}

// Percentage is derived, per spec.md §3's invariant.
func (d Download) Percentage() float64 {
	if d.TotalBytes <= 0 {
		return 0
	}
	pct := float64(d.DownloadedBytes) / float64(d.TotalBytes) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// InsertDownload creates a new queued row.
func (s *Store) InsertDownload(ctx context.Context, d Download) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO downloads (id, media_id, episode_id, filename, source_url, file_path,
			total_bytes, downloaded_bytes, speed_bps, status, error, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.MediaID, d.EpisodeID, d.Filename, d.SourceURL, d.FilePath,
		d.TotalBytes, d.DownloadedBytes, d.SpeedBps, string(d.Status), nullString(d.Error), now, now)
	return err
}

// GetDownload fetches one row by id.
func (s *Store) GetDownload(ctx context.Context, id string) (*Download, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, media_id, episode_id, filename, source_url, file_path, total_bytes,
			downloaded_bytes, speed_bps, status, error, created_at_ms, updated_at_ms
		FROM downloads WHERE id = ?`, id)
	return scanDownload(row)
}

func scanDownload(row *sql.Row) (*Download, error) {
	var d Download
	var status string
	var errStr sql.NullString
	err := row.Scan(&d.ID, &d.MediaID, &d.EpisodeID, &d.Filename, &d.SourceURL, &d.FilePath,
		&d.TotalBytes, &d.DownloadedBytes, &d.SpeedBps, &status, &errStr, &d.CreatedAtMs, &d.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "download", ID: d.ID}
	}
	if err != nil {
		return nil, err
	}
	d.Status = DownloadStatus(status)
	d.Error = errStr.String
	return &d, nil
}

// ListDownloads returns every download row, optionally filtered by status.
func (s *Store) ListDownloads(ctx context.Context, statuses ...DownloadStatus) ([]Download, error) {
	query := `SELECT id, media_id, episode_id, filename, source_url, file_path, total_bytes,
		downloaded_bytes, speed_bps, status, error, created_at_ms, updated_at_ms FROM downloads`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += ` ORDER BY created_at_ms ASC`
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var status string
		var errStr sql.NullString
		if err := rows.Scan(&d.ID, &d.MediaID, &d.EpisodeID, &d.Filename, &d.SourceURL, &d.FilePath,
			&d.TotalBytes, &d.DownloadedBytes, &d.SpeedBps, &status, &errStr, &d.CreatedAtMs, &d.UpdatedAtMs); err != nil {
			return nil, err
		}
		d.Status = DownloadStatus(status)
		d.Error = errStr.String
		out = append(out, d)
	}
	return out, nil
}

// SetDownloadStatus transitions status and optionally records an error
// message (spec.md §4.3 FSM; transition legality is enforced by the caller
// in internal/downloads, not here).
func (s *Store) SetDownloadStatus(ctx context.Context, id string, status DownloadStatus, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE downloads SET status = ?, error = ?, updated_at_ms = ? WHERE id = ?`,
		string(status), nullString(errMsg), now, id)
	return err
}

// UpdateDownloadProgress persists downloaded/total bytes and speed. Called
// at most every 5 MB of new data per spec.md §4.3, plus once on every
// terminal transition.
func (s *Store) UpdateDownloadProgress(ctx context.Context, id string, downloaded, total int64, speedBps float64) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE downloads SET downloaded_bytes = ?, total_bytes = ?, speed_bps = ?, updated_at_ms = ? WHERE id = ?`,
		downloaded, total, speedBps, now, id)
	return err
}

// DeleteDownload removes a download row (explicit user action required to
// leave a terminal state per spec.md §4.3).
func (s *Store) DeleteDownload(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
