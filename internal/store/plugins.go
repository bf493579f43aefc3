package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// PluginRecord is the persisted form of a loaded plugin (spec.md §3). The
// runtime itself lives in internal/plugin; this is its durable registry
// row, replaced in-place when the same id is reloaded.
type PluginRecord struct {
	ID             string
	Name           string
	Version        string
	Type           string
	Language       string
	BaseURL        string
	AllowedDomains []string
	Code           string
	LoadedAtMs     int64
}

// UpsertPlugin replaces the row for id in place (spec.md §3: "replaced
// in-place when the same id is reloaded").
func (s *Store) UpsertPlugin(ctx context.Context, p PluginRecord) error {
	domains, err := json.Marshal(p.AllowedDomains)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO plugins (id, name, version, type, language, base_url, allowed_domains, code, loaded_at_ms)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, version=excluded.version, type=excluded.type,
			language=excluded.language, base_url=excluded.base_url,
			allowed_domains=excluded.allowed_domains, code=excluded.code,
			loaded_at_ms=excluded.loaded_at_ms`,
		p.ID, p.Name, p.Version, p.Type, p.Language, p.BaseURL, string(domains), p.Code, now)
	return err
}

// GetPlugin fetches a plugin record by id.
func (s *Store) GetPlugin(ctx context.Context, id string) (*PluginRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, version, type, language, base_url, allowed_domains, code, loaded_at_ms
		FROM plugins WHERE id = ?`, id)
	var p PluginRecord
	var domains string
	err := row.Scan(&p.ID, &p.Name, &p.Version, &p.Type, &p.Language, &p.BaseURL, &domains, &p.Code, &p.LoadedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apierr.NotFound{Kind: "plugin", ID: id}
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(domains), &p.AllowedDomains)
	return &p, nil
}

// ListPlugins returns every loaded plugin's registry row.
func (s *Store) ListPlugins(ctx context.Context) ([]PluginRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM plugins ORDER BY name`)
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
	out := make([]PluginRecord, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetPlugin(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// DeletePlugin removes a plugin's registry row (unload).
func (s *Store) DeletePlugin(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM plugins WHERE id = ?`, id)
	return err
}

// PluginIDMapping bridges a legacy mal_id to a source plugin's own id
// (spec.md §3), used by the one-time migration_v1_status marker.
type PluginIDMapping struct {
	MALID          string
	SourcePluginID string
	Title          string
	Score          float64
}

// UpsertPluginIDMapping inserts or updates one mapping row.
func (s *Store) UpsertPluginIDMapping(ctx context.Context, m PluginIDMapping) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO plugin_id_mapping (mal_id, source_plugin_id, title, score)
		VALUES (?,?,?,?)
		ON CONFLICT(mal_id, source_plugin_id) DO UPDATE SET title=excluded.title, score=excluded.score`,
		m.MALID, m.SourcePluginID, m.Title, m.Score)
	return err
}

// GetPluginIDMapping looks up a (malID, sourcePluginID) pair.
func (s *Store) GetPluginIDMapping(ctx context.Context, malID, sourcePluginID string) (*PluginIDMapping, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT mal_id, source_plugin_id, title, score FROM plugin_id_mapping WHERE mal_id = ? AND source_plugin_id = ?`,
		malID, sourcePluginID)
	var m PluginIDMapping
	var title sql.NullString
	var score sql.NullFloat64
	err := row.Scan(&m.MALID, &m.SourcePluginID, &title, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.Title = title.String
	m.Score = score.Float64
	return &m, nil
}
