package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_defaults(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.DataDir != "./data" {
		t.Errorf("DataDir default: got %q", c.DataDir)
	}
	if c.CacheDir != "./data/cache" {
		t.Errorf("CacheDir default: got %q", c.CacheDir)
	}
	if c.DownloadConcurrency != 10 {
		t.Errorf("DownloadConcurrency default: got %d", c.DownloadConcurrency)
	}
	if c.ChapterDownloadConcurrency != 5 {
		t.Errorf("ChapterDownloadConcurrency default: got %d", c.ChapterDownloadConcurrency)
	}
	if c.TrackerPollInterval != 30*time.Minute {
		t.Errorf("TrackerPollInterval default: got %v", c.TrackerPollInterval)
	}
	if !c.BackupEnabled {
		t.Error("BackupEnabled should default true")
	}
	if c.BackupKeepCount != 7 {
		t.Errorf("BackupKeepCount default: got %d", c.BackupKeepCount)
	}
}

func TestLoad_dataDirDerivesDefaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTAKUBACK_DATA_DIR", "/srv/otaku")
	c := Load()
	if c.DBPath != "/srv/otaku/otaku.db" {
		t.Errorf("DBPath should derive from DataDir: got %q", c.DBPath)
	}
	if c.PluginsDir != "/srv/otaku/plugins" {
		t.Errorf("PluginsDir should derive from DataDir: got %q", c.PluginsDir)
	}
	if c.BackupDir != "/srv/otaku/backups" {
		t.Errorf("BackupDir should derive from DataDir: got %q", c.BackupDir)
	}
}

func TestLoad_explicitOverrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTAKUBACK_DB_PATH", "/custom/db.sqlite")
	os.Setenv("OTAKUBACK_DOWNLOAD_CONCURRENCY", "8")
	os.Setenv("OTAKUBACK_TRACKER_POLL_INTERVAL", "10m")
	os.Setenv("OTAKUBACK_BACKUP_ENABLED", "false")
	c := Load()
	if c.DBPath != "/custom/db.sqlite" {
		t.Errorf("DBPath override: got %q", c.DBPath)
	}
	if c.DownloadConcurrency != 8 {
		t.Errorf("DownloadConcurrency override: got %d", c.DownloadConcurrency)
	}
	if c.TrackerPollInterval != 10*time.Minute {
		t.Errorf("TrackerPollInterval override: got %v", c.TrackerPollInterval)
	}
	if c.BackupEnabled {
		t.Error("BackupEnabled should be false")
	}
}

func TestLoad_invalidConcurrencyFallsBackToDefault(t *testing.T) {
	os.Clearenv()
	os.Setenv("OTAKUBACK_DOWNLOAD_CONCURRENCY", "-5")
	c := Load()
	if c.DownloadConcurrency != 10 {
		t.Errorf("negative concurrency should fall back to default: got %d", c.DownloadConcurrency)
	}
}

func TestLoad_pluginExtraDomains(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.PluginFetchDomains != nil {
		t.Errorf("PluginFetchDomains default should be nil: got %v", c.PluginFetchDomains)
	}
	os.Setenv("OTAKUBACK_PLUGIN_EXTRA_DOMAINS", "a.example.com, b.example.com ,")
	c = Load()
	want := []string{"a.example.com", "b.example.com"}
	if len(c.PluginFetchDomains) != len(want) {
		t.Fatalf("PluginFetchDomains = %v, want %v", c.PluginFetchDomains, want)
	}
	for i := range want {
		if c.PluginFetchDomains[i] != want[i] {
			t.Errorf("PluginFetchDomains[%d] = %q, want %q", i, c.PluginFetchDomains[i], want[i])
		}
	}
}

func TestLoad_authTokenEmptyByDefault(t *testing.T) {
	os.Clearenv()
	c := Load()
	if c.AuthToken != "" {
		t.Errorf("AuthToken default should be empty (generated at boot): got %q", c.AuthToken)
	}
}
