package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// Media is the immutable-identity, mutable-descriptive-fields record from
// spec.md §3. Identity is (ID, PluginID, Type); everything else may be
// refreshed on subsequent details fetches.
type Media struct {
	ID            string
	PluginID      string
	Type          string // "anime" | "manga"
	Title         string
	EnglishName   string
	NativeName    string
	Description   string
	Status        string
	CoverURL      string
	BannerURL     string
	Genres        []string
	Year          int
	Rating        float64
	EpisodeCount  int
	Season        string
	AiredStart    string
	CreatedAtMs   int64
	UpdatedAtMs   int64
}

// UpsertMedia creates the row on first details fetch/import or refreshes
// descriptive fields on subsequent fetches, per spec.md §3. Identity
// columns (id, plugin_id, type) are never modified by an upsert.
func (s *Store) UpsertMedia(ctx context.Context, m Media) error {
	genres, err := json.Marshal(m.Genres)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO media (id, plugin_id, type, title, english_name, native_name,
			description, status, cover_url, banner_url, genres, year, rating,
			episode_count, season, aired_start, created_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, english_name=excluded.english_name,
			native_name=excluded.native_name, description=excluded.description,
			status=excluded.status, cover_url=excluded.cover_url,
			banner_url=excluded.banner_url, genres=excluded.genres,
			year=excluded.year, rating=excluded.rating,
			episode_count=excluded.episode_count, season=excluded.season,
			aired_start=excluded.aired_start, updated_at_ms=excluded.updated_at_ms`,
		m.ID, m.PluginID, m.Type, m.Title, m.EnglishName, m.NativeName,
		m.Description, m.Status, m.CoverURL, m.BannerURL, string(genres),
		m.Year, m.Rating, m.EpisodeCount, m.Season, m.AiredStart, now, now)
	return err
}

// GetMedia fetches one media row by id.
func (s *Store) GetMedia(ctx context.Context, id string) (*Media, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, plugin_id, type, title, english_name, native_name, description,
			status, cover_url, banner_url, genres, year, rating, episode_count,
			season, aired_start, created_at_ms, updated_at_ms
		FROM media WHERE id = ?`, id)
	return scanMedia(row)
}

func scanMedia(row *sql.Row) (*Media, error) {
	var m Media
	var genres string
	var englishName, nativeName, description, status, coverURL, bannerURL, season, airedStart sql.NullString
	var year sql.NullInt64
	var rating sql.NullFloat64
	var episodeCount sql.NullInt64
	err := row.Scan(&m.ID, &m.PluginID, &m.Type, &m.Title, &englishName, &nativeName,
		&description, &status, &coverURL, &bannerURL, &genres, &year, &rating,
		&episodeCount, &season, &airedStart, &m.CreatedAtMs, &m.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "media", ID: m.ID}
	}
	if err != nil {
		return nil, err
	}
	m.EnglishName = englishName.String
	m.NativeName = nativeName.String
	m.Description = description.String
	m.Status = status.String
	m.CoverURL = coverURL.String
	m.BannerURL = bannerURL.String
	m.Season = season.String
	m.AiredStart = airedStart.String
	m.Year = int(year.Int64)
	m.Rating = rating.Float64
	m.EpisodeCount = int(episodeCount.Int64)
	_ = json.Unmarshal([]byte(genres), &m.Genres)
	return &m, nil
}

// DeleteMedia removes media and, via ON DELETE CASCADE, every dependent
// download, history, library entry, and release tracking row (spec.md §3).
func (s *Store) DeleteMedia(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	return err
}

// ListMedia returns every media row, optionally filtered by type ("" = all).
func (s *Store) ListMedia(ctx context.Context, mediaType string) ([]Media, error) {
	var rows *sql.Rows
	var err error
	if mediaType == "" {
		rows, err = s.DB.QueryContext(ctx, `SELECT id FROM media ORDER BY updated_at_ms DESC`)
	} else {
		rows, err = s.DB.QueryContext(ctx, `SELECT id FROM media WHERE type = ? ORDER BY updated_at_ms DESC`, mediaType)
	}
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
	out := make([]Media, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMedia(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}
