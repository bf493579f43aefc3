package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ReleaseTrackingRow is the v2 per-media tracking row (spec.md §3). The
// legacy release_tracking table is collapsed into this one per spec.md §9's
// Open Question resolution (see DESIGN.md).
type ReleaseTrackingRow struct {
	MediaID               string
	LastKnownCount        int
	LastKnownLatestNumber *float64
	LastKnownLatestID     string
	RawStatus             string
	NormalizedStatus      string
	UserNotifiedUpTo      *float64
	UserAcknowledgedAtMs  *int64
	LastCheckedAtMs       *int64
	NextScheduledCheckMs  *int64
	ConsecutiveFailures   int
	LastError             string
	NotificationEnabled   bool
}

// GetReleaseTracking returns the tracking row for mediaID, or nil if none
// exists yet (first-time tracking, spec.md §4.5).
func (s *Store) GetReleaseTracking(ctx context.Context, mediaID string) (*ReleaseTrackingRow, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT media_id, last_known_count, last_known_latest_number, last_known_latest_id,
			raw_status, normalized_status, user_notified_up_to, user_acknowledged_at_ms,
			last_checked_at_ms, next_scheduled_check_ms, consecutive_failures, last_error,
			notification_enabled
		FROM release_tracking_v2 WHERE media_id = ?`, mediaID)
	r, err := scanReleaseTracking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func scanReleaseTracking(row *sql.Row) (*ReleaseTrackingRow, error) {
	var r ReleaseTrackingRow
	var latestNumber, notifiedUpTo sql.NullFloat64
	var latestID, rawStatus, lastError sql.NullString
	var ackAt, checkedAt, nextCheck sql.NullInt64
	var notificationEnabled int
	err := row.Scan(&r.MediaID, &r.LastKnownCount, &latestNumber, &latestID, &rawStatus,
		&r.NormalizedStatus, &notifiedUpTo, &ackAt, &checkedAt, &nextCheck,
		&r.ConsecutiveFailures, &lastError, &notificationEnabled)
	if err != nil {
		return nil, err
	}
	if latestNumber.Valid {
		v := latestNumber.Float64
		r.LastKnownLatestNumber = &v
	}
	if notifiedUpTo.Valid {
		v := notifiedUpTo.Float64
		r.UserNotifiedUpTo = &v
	}
	if ackAt.Valid {
		v := ackAt.Int64
		r.UserAcknowledgedAtMs = &v
	}
	if checkedAt.Valid {
		v := checkedAt.Int64
		r.LastCheckedAtMs = &v
	}
	if nextCheck.Valid {
		v := nextCheck.Int64
		r.NextScheduledCheckMs = &v
	}
	r.LastKnownLatestID = latestID.String
	r.RawStatus = rawStatus.String
	r.LastError = lastError.String
	r.NotificationEnabled = notificationEnabled != 0
	return &r, nil
}

// UpsertReleaseTracking writes the full row, last-writer-wins.
func (s *Store) UpsertReleaseTracking(ctx context.Context, r ReleaseTrackingRow) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO release_tracking_v2 (media_id, last_known_count, last_known_latest_number,
			last_known_latest_id, raw_status, normalized_status, user_notified_up_to,
			user_acknowledged_at_ms, last_checked_at_ms, next_scheduled_check_ms,
			consecutive_failures, last_error, notification_enabled)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(media_id) DO UPDATE SET
			last_known_count=excluded.last_known_count,
			last_known_latest_number=excluded.last_known_latest_number,
			last_known_latest_id=excluded.last_known_latest_id,
			raw_status=excluded.raw_status, normalized_status=excluded.normalized_status,
			user_notified_up_to=excluded.user_notified_up_to,
			user_acknowledged_at_ms=excluded.user_acknowledged_at_ms,
			last_checked_at_ms=excluded.last_checked_at_ms,
			next_scheduled_check_ms=excluded.next_scheduled_check_ms,
			consecutive_failures=excluded.consecutive_failures,
			last_error=excluded.last_error, notification_enabled=excluded.notification_enabled`,
		r.MediaID, r.LastKnownCount, nullableFloat(r.LastKnownLatestNumber), nullString(r.LastKnownLatestID),
		nullString(r.RawStatus), r.NormalizedStatus, nullableFloat(r.UserNotifiedUpTo),
		nullableInt64(r.UserAcknowledgedAtMs), nullableInt64(r.LastCheckedAtMs),
		nullableInt64(r.NextScheduledCheckMs), r.ConsecutiveFailures, nullString(r.LastError),
		boolToInt(r.NotificationEnabled))
	return err
}

// AcknowledgeRelease sets user_acknowledged_at_ms := now, clearing the "new"
// badge per spec.md §4.5's separate acknowledgement call.
func (s *Store) AcknowledgeRelease(ctx context.Context, mediaID string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`UPDATE release_tracking_v2 SET user_acknowledged_at_ms = ? WHERE media_id = ?`, now, mediaID)
	return err
}

// EligibleTrackingItem is one row returned by ListEligibleForTracking,
// joined with the info needed to order and filter per spec.md §4.5.
type EligibleTrackingItem struct {
	MediaID          string
	MediaType        string
	NormalizedStatus string
	LastCheckedAtMs  *int64
}

// ListEligibleForTracking implements spec.md §4.5's eligibility query:
// library status in {watching, reading, plan_to_watch, plan_to_read} or
// favorited; normalized_status ongoing/unknown/missing; notifications
// enabled; next_scheduled_check due or unset. Ordered anime first, then
// oldest last_checked_at.
func (s *Store) ListEligibleForTracking(ctx context.Context, nowMs int64) ([]EligibleTrackingItem, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT m.id, m.type,
			COALESCE(rt.normalized_status, 'unknown') AS normalized_status,
			rt.last_checked_at_ms
		FROM media m
		JOIN library_entries le ON le.media_id = m.id
		LEFT JOIN release_tracking_v2 rt ON rt.media_id = m.id
		WHERE (le.status IN ('watching','reading','plan_to_watch','plan_to_read') OR le.favorite = 1)
			AND COALESCE(rt.normalized_status, 'unknown') IN ('ongoing', 'unknown')
			AND COALESCE(rt.notification_enabled, 1) = 1
			AND (rt.next_scheduled_check_ms IS NULL OR rt.next_scheduled_check_ms <= ?)
		ORDER BY CASE m.type WHEN 'anime' THEN 0 ELSE 1 END, COALESCE(rt.last_checked_at_ms, 0) ASC`,
		nowMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EligibleTrackingItem
	for rows.Next() {
		var it EligibleTrackingItem
		var checkedAt sql.NullInt64
		if err := rows.Scan(&it.MediaID, &it.MediaType, &it.NormalizedStatus, &checkedAt); err != nil {
			return nil, err
		}
		if checkedAt.Valid {
			v := checkedAt.Int64
			it.LastCheckedAtMs = &v
		}
		out = append(out, it)
	}
	return out, nil
}

// ReleaseCheckResult enumerates spec.md §4.5's check-log result kinds.
type ReleaseCheckResult string

const (
	CheckFirstCheck     ReleaseCheckResult = "first_check"
	CheckNoChange       ReleaseCheckResult = "no_change"
	CheckNewRelease     ReleaseCheckResult = "new_release"
	CheckCountDecreased ReleaseCheckResult = "count_decreased"
	CheckAPIError       ReleaseCheckResult = "api_error"
)

// InsertReleaseCheckLog appends one row, never mutated afterwards.
func (s *Store) InsertReleaseCheckLog(ctx context.Context, mediaID string, result ReleaseCheckResult, detail string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO release_check_log (media_id, result, detail, checked_at_ms) VALUES (?,?,?,?)`,
		mediaID, string(result), nullString(detail), now)
	return err
}

// PruneReleaseCheckLog retains only the most recent keepCount rows overall,
// bounding the append-only log's growth (spec.md §3 "retained for a
// bounded window").
func (s *Store) PruneReleaseCheckLog(ctx context.Context, keepCount int) error {
	_, err := s.DB.ExecContext(ctx, `
		DELETE FROM release_check_log WHERE id NOT IN (
			SELECT id FROM release_check_log ORDER BY checked_at_ms DESC LIMIT ?
		)`, keepCount)
	return err
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
