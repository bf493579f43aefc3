package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Recognized app_settings keys (spec.md §6).
const (
	SettingAutoBackup                  = "auto_backup_settings"
	SettingReleaseCheckEnabled         = "release_check_enabled"
	SettingReleaseCheckIntervalMinutes = "release_check_interval_minutes"
	SettingReleaseCheckFastInterval    = "release_check_fast_interval_minutes"
	SettingReleaseCheckRetryDelay      = "release_check_retry_delay_minutes"
	SettingReleaseCheckMaxRetries      = "release_check_max_retries"
	SettingReleaseLastFullCheck        = "release_last_full_check"
	SettingNSFWFilter                  = "nsfw_filter"
	SettingMigrationV1Status           = "migration_v1_status"
)

// GetSetting reads one app_settings row; ok is false if absent.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	row := s.DB.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = ?`, key)
	err = row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts one row. Two identical calls in a row result in a
// single stored row with the later updated_at_ms (spec.md §8 idempotence
// property).
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO app_settings (key, value, updated_at_ms) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at_ms=excluded.updated_at_ms`,
		key, value, now)
	return err
}

// AllSettings returns every row, used by the backup exporter.
func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
