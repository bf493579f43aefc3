package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/otakuhaven/otakuback/internal/eventbus"
	"github.com/otakuhaven/otakuback/internal/logging"
	"github.com/otakuhaven/otakuback/internal/metrics"
	"github.com/otakuhaven/otakuback/internal/plugin"
	"github.com/otakuhaven/otakuback/internal/store"
)

var log = logging.For("tracker")

const (
	defaultIntervalMinutes   = 60
	defaultRetryDelayMinutes = 5 // fixed wait before re-checking an item after a failed check, spec.md §4.5
	defaultMaxRetries        = 3
	summaryThreshold         = 3 // more than this many notifying items -> one summary event
	apiDelay                 = 2 * time.Second // spec.md §5's API_DELAY_MS between items
)

// NotificationEvent is published on the bus for a single detected release.
type NotificationEvent struct {
	MediaID      string  `json:"media_id"`
	MediaType    string  `json:"media_type"`
	LatestNumber float64 `json:"latest_number"`
	Signal       string  `json:"signal"`
}

// SummaryNotificationEvent replaces a storm of per-item notifications
// (spec.md §4.5: "more than three notifying results... a single summary").
type SummaryNotificationEvent struct {
	Count int `json:"count"`
}

// Tracker runs the periodic release-check loop described in spec.md §4.5.
type Tracker struct {
	st      *store.Store
	plugins *plugin.Manager
	bus     *eventbus.Bus
}

// New builds a Tracker.
func New(st *store.Store, plugins *plugin.Manager, bus *eventbus.Bus) *Tracker {
	return &Tracker{st: st, plugins: plugins, bus: bus}
}

// Run is the long-lived cooperative loop: each minute it checks whether
// tracking is enabled and whether a full pass is due, per spec.md §4.5.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	enabled, _, err := t.st.GetSetting(ctx, store.SettingReleaseCheckEnabled)
	if err != nil {
		log.Warn("read release_check_enabled: %v", err)
		return
	}
	if enabled == "0" {
		return
	}

	intervalMinutes := t.intSetting(ctx, store.SettingReleaseCheckIntervalMinutes, defaultIntervalMinutes)
	lastFull, ok, _ := t.st.GetSetting(ctx, store.SettingReleaseLastFullCheck)
	if ok {
		lastMs, err := parseInt64(lastFull)
		if err == nil && time.Since(time.UnixMilli(lastMs)) < time.Duration(intervalMinutes)*time.Minute {
			return
		}
	}

	t.RunPass(ctx)
	_ = t.st.SetSetting(ctx, store.SettingReleaseLastFullCheck, fmt.Sprintf("%d", time.Now().UnixMilli()))
}

// RunPass checks every eligible item once, in order, and emits
// notifications per spec.md §4.5.
func (t *Tracker) RunPass(ctx context.Context) {
	now := time.Now().UnixMilli()
	items, err := t.st.ListEligibleForTracking(ctx, now)
	if err != nil {
		log.Warn("list eligible: %v", err)
		return
	}

	maxRetries := t.intSetting(ctx, store.SettingReleaseCheckMaxRetries, defaultMaxRetries)
	retryDelay := t.intSetting(ctx, store.SettingReleaseCheckRetryDelay, defaultRetryDelayMinutes)
	intervalMinutes := t.intSetting(ctx, store.SettingReleaseCheckIntervalMinutes, defaultIntervalMinutes)
	nsfw, _, _ := t.st.GetSetting(ctx, store.SettingNSFWFilter)
	allowAdult := nsfw != "1"

	var notifying []NotificationEvent
	for i, item := range items {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(apiDelay):
			}
		}
		ev, notified := t.checkOne(ctx, item, maxRetries, retryDelay, intervalMinutes, allowAdult)
		if notified {
			notifying = append(notifying, ev)
		}
	}

	if len(notifying) > summaryThreshold {
		t.bus.Publish("release-summary", SummaryNotificationEvent{Count: len(notifying)})
		metrics.TrackerNotificationsTotal.Inc()
		return
	}
	for _, ev := range notifying {
		t.bus.Publish("release-notification", ev)
		metrics.TrackerNotificationsTotal.Inc()
	}
}

func (t *Tracker) checkOne(ctx context.Context, item store.EligibleTrackingItem, maxRetries, retryDelayMinutes, intervalMinutes int, allowAdult bool) (NotificationEvent, bool) {
	media, err := t.st.GetMedia(ctx, item.MediaID)
	if err != nil {
		return NotificationEvent{}, false
	}
	p := t.plugins.Get(media.PluginID)
	if p == nil {
		t.recordFailure(ctx, item.MediaID, "plugin not loaded", retryDelayMinutes)
		return NotificationEvent{}, false
	}

	details, err := t.fetchWithRetry(ctx, p, media.ID, maxRetries, retryDelayMinutes, allowAdult)
	if err != nil {
		t.recordFailure(ctx, item.MediaID, err.Error(), retryDelayMinutes)
		metrics.TrackerChecksTotal.WithLabelValues(string(store.CheckAPIError)).Inc()
		return NotificationEvent{}, false
	}

	cur := extractState(detailsAdapter{details})
	normalized := ClassifyStatus(cur.RawStatus)

	prev, err := t.st.GetReleaseTracking(ctx, item.MediaID)
	if err != nil {
		log.Warn("read tracking row %s: %v", item.MediaID, err)
		return NotificationEvent{}, false
	}

	row := buildRow(item.MediaID, prev, cur, normalized)

	if prev == nil || (prev.LastKnownCount == 0 && prev.LastKnownLatestNumber == nil) {
		row.NextScheduledCheckMs = nextCheckMs(normalized, intervalMinutes)
		if err := t.st.UpsertReleaseTracking(ctx, row); err != nil {
			log.Warn("upsert tracking row %s: %v", item.MediaID, err)
		}
		_ = t.st.InsertReleaseCheckLog(ctx, item.MediaID, store.CheckFirstCheck, "")
		metrics.TrackerChecksTotal.WithLabelValues(string(store.CheckFirstCheck)).Inc()
		return NotificationEvent{}, false
	}

	prevLatestID := prev.LastKnownLatestID
	det := detectRelease(prev.LastKnownCount, prev.LastKnownLatestNumber, prevLatestID, cur)

	if det.CountDecreased {
		_ = t.st.InsertReleaseCheckLog(ctx, item.MediaID, store.CheckCountDecreased, "")
		metrics.TrackerChecksTotal.WithLabelValues(string(store.CheckCountDecreased)).Inc()
		// Row intentionally left untouched: treat as upstream inconsistency.
		return NotificationEvent{}, false
	}

	row.NextScheduledCheckMs = nextCheckMs(normalized, intervalMinutes)

	if det.Signal == SignalNone {
		if err := t.st.UpsertReleaseTracking(ctx, row); err != nil {
			log.Warn("upsert tracking row %s: %v", item.MediaID, err)
		}
		_ = t.st.InsertReleaseCheckLog(ctx, item.MediaID, store.CheckNoChange, "")
		metrics.TrackerChecksTotal.WithLabelValues(string(store.CheckNoChange)).Inc()
		return NotificationEvent{}, false
	}

	shouldNotify := cur.LatestNumber != nil &&
		(prev.UserNotifiedUpTo == nil || *cur.LatestNumber > *prev.UserNotifiedUpTo)
	if shouldNotify {
		v := *cur.LatestNumber
		row.UserNotifiedUpTo = &v
		row.UserAcknowledgedAtMs = nil
	} else {
		row.UserNotifiedUpTo = prev.UserNotifiedUpTo
	}

	if err := t.st.UpsertReleaseTracking(ctx, row); err != nil {
		log.Warn("upsert tracking row %s: %v", item.MediaID, err)
	}
	_ = t.st.InsertReleaseCheckLog(ctx, item.MediaID, store.CheckNewRelease, string(det.Signal))
	metrics.TrackerChecksTotal.WithLabelValues(string(store.CheckNewRelease)).Inc()

	if !shouldNotify {
		return NotificationEvent{}, false
	}
	return NotificationEvent{
		MediaID:      item.MediaID,
		MediaType:    item.MediaType,
		LatestNumber: *cur.LatestNumber,
		Signal:       string(det.Signal),
	}, true
}

func buildRow(mediaID string, prev *store.ReleaseTrackingRow, cur CurrentState, normalized NormalizedStatus) store.ReleaseTrackingRow {
	row := store.ReleaseTrackingRow{
		MediaID:              mediaID,
		LastKnownCount:       cur.Count,
		LastKnownLatestID:    cur.LatestID,
		RawStatus:            cur.RawStatus,
		NormalizedStatus:     string(normalized),
		LastCheckedAtMs:      ptrInt64(time.Now().UnixMilli()),
		ConsecutiveFailures:  0,
		NotificationEnabled:  true,
	}
	if cur.LatestNumber != nil {
		v := *cur.LatestNumber
		row.LastKnownLatestNumber = &v
	}
	if prev != nil {
		row.NotificationEnabled = prev.NotificationEnabled
		row.UserNotifiedUpTo = prev.UserNotifiedUpTo
		row.UserAcknowledgedAtMs = prev.UserAcknowledgedAtMs
	}
	return row
}

func nextCheckMs(status NormalizedStatus, userIntervalMinutes int) *int64 {
	minutes := RecommendedIntervalMinutes(status)
	if status == StatusOngoing {
		minutes = userIntervalMinutes
	}
	v := time.Now().Add(time.Duration(minutes) * time.Minute).UnixMilli()
	return &v
}

// fetchWithRetry implements spec.md §4.5's "up to max_retries, exponential
// backoff from 5s" policy around a single plugin.GetDetails call.
func (t *Tracker) fetchWithRetry(ctx context.Context, p *plugin.Plugin, mediaID string, maxRetries, _ int, allowAdult bool) (plugin.MediaDetails, error) {
	var lastErr error
	delay := 5 * time.Second
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return plugin.MediaDetails{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		details, err := p.GetDetails(ctx, mediaID, allowAdult)
		if err == nil {
			return details, nil
		}
		lastErr = err
	}
	return plugin.MediaDetails{}, lastErr
}

func (t *Tracker) recordFailure(ctx context.Context, mediaID, reason string, retryDelayMinutes int) {
	prev, _ := t.st.GetReleaseTracking(ctx, mediaID)
	row := store.ReleaseTrackingRow{MediaID: mediaID, LastError: reason}
	failures := 1
	if prev != nil {
		row = *prev
		row.LastError = reason
		failures = prev.ConsecutiveFailures + 1
	}
	row.ConsecutiveFailures = failures
	next := time.Now().Add(time.Duration(retryDelayMinutes) * time.Minute).UnixMilli()
	row.NextScheduledCheckMs = &next
	if err := t.st.UpsertReleaseTracking(ctx, row); err != nil {
		log.Warn("record failure for %s: %v", mediaID, err)
	}
}

// Acknowledge clears the "new" badge for mediaID (spec.md §4.5's separate
// acknowledgement call).
func (t *Tracker) Acknowledge(ctx context.Context, mediaID string) error {
	return t.st.AcknowledgeRelease(ctx, mediaID)
}

func (t *Tracker) intSetting(ctx context.Context, key string, def int) int {
	v, ok, err := t.st.GetSetting(ctx, key)
	if err != nil || !ok {
		return def
	}
	n, err := parseInt64(v)
	if err != nil {
		return def
	}
	return int(n)
}

func parseInt64(s string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

func ptrInt64(v int64) *int64 { return &v }
