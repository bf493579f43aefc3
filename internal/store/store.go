// Package store owns the single durable SQLite file backing every engine:
// media, library, watch/read history, downloads, release tracking, the
// durable cache tier, plugin registry, and settings (spec.md §3, §6).
//
// Grounded on djryanj-media-viewer/internal/database/database.go for the
// open/pool/pragma shape and the teacher's internal/plex/dvr.go for the
// actual modernc.org/sqlite open idiom; the migrations runner generalizes
// djryanj's ad hoc ALTER-on-boot pattern into the ordered, named,
// idempotent list spec.md §9 calls for.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/otakuhaven/otakuback/internal/logging"
)

var log = logging.For("store")

// Store wraps the single *sql.DB shared by every component. Per spec.md §5,
// the pool is capped at 5 connections, WAL journal, foreign keys on;
// writers are implicitly serialized by SQLite's write lock and long reads
// do not block writers under WAL.
type Store struct {
	DB *sql.DB
}

// Open opens (creating if needed) the SQLite file at path and runs all
// pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{DB: db}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// nowMillis returns the current time as epoch milliseconds, the unit used
// for updated_at_ms columns throughout the schema (spec.md §6).
func nowMillis(t time.Time) int64 { return t.UnixMilli() }

func execContext(ctx context.Context, db interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, query string, args ...any) error {
	_, err := db.ExecContext(ctx, query, args...)
	return err
}
