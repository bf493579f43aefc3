package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// ChapterDownload is one folder-scoped record per (media_id, chapter_id)
// (spec.md §3, §4.3 "Chapter downloads").
type ChapterDownload struct {
	ID               string
	MediaID          string
	ChapterID        string
	FolderPath       string
	TotalImages      int
	DownloadedImages int
	Status           DownloadStatus
	Error            string
	CreatedAtMs      int64
	UpdatedAtMs      int64
}

// InsertChapterDownload creates a new queued chapter download row.
func (s *Store) InsertChapterDownload(ctx context.Context, c ChapterDownload) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO chapter_downloads (id, media_id, chapter_id, folder_path, total_images,
			downloaded_images, status, error, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.MediaID, c.ChapterID, c.FolderPath, c.TotalImages,
		c.DownloadedImages, string(c.Status), nullString(c.Error), now, now)
	return err
}

// GetChapterDownload fetches by id.
func (s *Store) GetChapterDownload(ctx context.Context, id string) (*ChapterDownload, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, media_id, chapter_id, folder_path, total_images, downloaded_images,
			status, error, created_at_ms, updated_at_ms
		FROM chapter_downloads WHERE id = ?`, id)
	var c ChapterDownload
	var status string
	var errStr sql.NullString
	err := row.Scan(&c.ID, &c.MediaID, &c.ChapterID, &c.FolderPath, &c.TotalImages,
		&c.DownloadedImages, &status, &errStr, &c.CreatedAtMs, &c.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "chapter_download", ID: id}
	}
	if err != nil {
		return nil, err
	}
	c.Status = DownloadStatus(status)
	c.Error = errStr.String
	return &c, nil
}

// ListChapterDownloads returns every row, optionally filtered by status.
func (s *Store) ListChapterDownloads(ctx context.Context, statuses ...DownloadStatus) ([]ChapterDownload, error) {
	query := `SELECT id, media_id, chapter_id, folder_path, total_images, downloaded_images,
		status, error, created_at_ms, updated_at_ms FROM chapter_downloads`
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
	var out []ChapterDownload
	for rows.Next() {
		var c ChapterDownload
		var status string
		var errStr sql.NullString
		if err := rows.Scan(&c.ID, &c.MediaID, &c.ChapterID, &c.FolderPath, &c.TotalImages,
			&c.DownloadedImages, &status, &errStr, &c.CreatedAtMs, &c.UpdatedAtMs); err != nil {
			return nil, err
		}
		c.Status = DownloadStatus(status)
		c.Error = errStr.String
		out = append(out, c)
	}
	return out, nil
}

// SetChapterDownloadStatus transitions status.
func (s *Store) SetChapterDownloadStatus(ctx context.Context, id string, status DownloadStatus, errMsg string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE chapter_downloads SET status = ?, error = ?, updated_at_ms = ? WHERE id = ?`,
		string(status), nullString(errMsg), now, id)
	return err
}

// UpdateChapterProgress persists downloaded/total image counts.
func (s *Store) UpdateChapterProgress(ctx context.Context, id string, downloaded, total int) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE chapter_downloads SET downloaded_images = ?, total_images = ?, updated_at_ms = ? WHERE id = ?`,
		downloaded, total, now, id)
	return err
}

// DeleteChapterDownload removes a row.
func (s *Store) DeleteChapterDownload(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM chapter_downloads WHERE id = ?`, id)
	return err
}
