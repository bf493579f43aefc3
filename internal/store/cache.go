package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DurableCacheEntry is Tier B of the two-tier cache (spec.md §3, §4.2):
// query-keyed blobs with a per-entry TTL and freshness reported on read.
type DurableCacheEntry struct {
	Key         string
	Category    string
	TTLSeconds  int64
	Blob        []byte
	CachedAtMs  int64
	UpdatedAtMs int64
}

// AgeSeconds is derived from CachedAtMs.
func (e DurableCacheEntry) AgeSeconds(now time.Time) int64 {
	return (now.UnixMilli() - e.CachedAtMs) / 1000
}

// IsFresh reports whether the entry's age is still within its TTL.
func (e DurableCacheEntry) IsFresh(now time.Time) bool {
	return e.AgeSeconds(now) < e.TTLSeconds
}

// GetDurableCache is a pure read: it never creates a row for a missing key
// (spec.md §4.2's invariant). Returns nil, nil on miss.
func (s *Store) GetDurableCache(ctx context.Context, key string) (*DurableCacheEntry, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT cache_key, category, ttl_seconds, blob, cached_at_ms, updated_at_ms
		FROM durable_cache WHERE cache_key = ?`, key)
	var e DurableCacheEntry
	err := row.Scan(&e.Key, &e.Category, &e.TTLSeconds, &e.Blob, &e.CachedAtMs, &e.UpdatedAtMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutDurableCache is an idempotent upsert by key: writing the same
// (key, blob, ttl) twice leaves the stored row equivalent (spec.md §4.2).
// cached_at_ms is refreshed on every write, which is what makes a write a
// genuine "this is fresh as of now" and not merely a metadata touch.
func (s *Store) PutDurableCache(ctx context.Context, category, key string, blob []byte, ttlSeconds int64) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO durable_cache (cache_key, category, ttl_seconds, blob, cached_at_ms, updated_at_ms)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(cache_key) DO UPDATE SET
			category=excluded.category, ttl_seconds=excluded.ttl_seconds,
			blob=excluded.blob, cached_at_ms=excluded.cached_at_ms, updated_at_ms=excluded.updated_at_ms`,
		key, category, ttlSeconds, blob, now, now)
	return err
}

// SweepDurableCache deletes rows older than 3x their TTL (spec.md §4.2) and
// returns the number removed.
func (s *Store) SweepDurableCache(ctx context.Context) (int64, error) {
	now := time.Now().UnixMilli()
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM durable_cache WHERE (? - cached_at_ms) > (ttl_seconds * 3000)`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
