package backup

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/otakuhaven/otakuback/internal/eventbus"
	"github.com/otakuhaven/otakuback/internal/store"
)

// Settings is the parsed form of the auto_backup_settings app_settings
// value (spec.md §6).
type Settings struct {
	Enabled        bool   `json:"enabled"`
	IntervalHours  int    `json:"interval_hours"`
	BackupLocation string `json:"backup_location,omitempty"`
	MaxBackups     int    `json:"max_backups"`
	LastBackup     int64  `json:"last_backup,omitempty"`
}

const defaultMaxBackups = 10

// CompletedEvent and FailedEvent are published on the bus as
// "auto-backup-completed" / "auto-backup-failed" (spec.md §6).
type CompletedEvent struct {
	Path string `json:"path"`
}

type FailedEvent struct {
	Error string `json:"error"`
}

// Loop runs the periodic auto-backup job described in spec.md §6 and §9's
// "global singletons" note: a process-wide background task, gated by an
// atomic so at most one instance runs, restartable after a stop.
type Loop struct {
	st       *store.Store
	exporter *Exporter
	bus      *eventbus.Bus
	dataDir  string
	running  atomicFlag
}

// NewLoop builds a backup Loop rooted at dataDir (backups land under
// dataDir/backups unless Settings.BackupLocation overrides it).
func NewLoop(st *store.Store, exporter *Exporter, bus *eventbus.Bus, dataDir string) *Loop {
	return &Loop{st: st, exporter: exporter, bus: bus, dataDir: dataDir}
}

// Run is the long-lived cooperative loop: each minute it reads settings and
// fires a backup once the configured interval has elapsed.
func (l *Loop) Run(ctx context.Context) {
	if !l.running.trySet() {
		return
	}
	defer l.running.clear()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	settings, ok := l.readSettings(ctx)
	if !ok || !settings.Enabled {
		return
	}
	interval := time.Duration(settings.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if settings.LastBackup != 0 && time.Since(time.UnixMilli(settings.LastBackup)) < interval {
		return
	}

	dir := settings.BackupLocation
	if dir == "" {
		dir = l.dataDir + "/backups"
	}
	now := time.Now()
	doc, err := l.exporter.Export(ctx, now.UnixMilli())
	if err != nil {
		l.fail(ctx, settings, err)
		return
	}
	name := Filename(now)
	if err := Save(dir, name, doc); err != nil {
		l.fail(ctx, settings, err)
		return
	}
	maxBackups := settings.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := Rotate(dir, maxBackups); err != nil {
		log.Warn("rotate after backup: %v", err)
	}

	settings.LastBackup = now.UnixMilli()
	l.writeSettings(ctx, settings)
	l.bus.Publish("auto-backup-completed", CompletedEvent{Path: dir + "/" + name})
}

func (l *Loop) fail(ctx context.Context, settings Settings, err error) {
	log.Warn("auto-backup failed: %v", err)
	l.bus.Publish("auto-backup-failed", FailedEvent{Error: err.Error()})
}

func (l *Loop) readSettings(ctx context.Context) (Settings, bool) {
	raw, ok, err := l.st.GetSetting(ctx, store.SettingAutoBackup)
	if err != nil || !ok {
		return Settings{}, false
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}, false
	}
	return s, true
}

func (l *Loop) writeSettings(ctx context.Context, s Settings) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = l.st.SetSetting(ctx, store.SettingAutoBackup, string(data))
}

// atomicFlag is the minimal "gate a singleton loop" primitive spec.md §9
// calls for (BACKUP_RUNNING-style flags), generalized from a raw bool.
type atomicFlag struct {
	mu sync.Mutex
	on bool
}

func (f *atomicFlag) trySet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.on {
		return false
	}
	f.on = true
	return true
}

func (f *atomicFlag) clear() {
	f.mu.Lock()
	f.on = false
	f.mu.Unlock()
}
