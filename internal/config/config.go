package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-wide settings for the local backend. Loaded once at
// startup from the environment (optionally seeded by a .env file via
// LoadEnvFile); most values afterwards live in the app_settings table and
// are read through internal/store, so this struct only needs to cover what
// must be known before the database is open.
type Config struct {
	// Paths
	DataDir    string // root for the SQLite file, plugin installs, logs
	CacheDir   string // downloaded media and chapter images (under CacheDir/downloads)
	DBPath     string // defaults to DataDir/otaku.db
	PluginsDir string // defaults to DataDir/plugins

	// Local media server
	HTTPBindAddr string // loopback bind, e.g. 127.0.0.1:0 (0 = OS-assigned ephemeral port)
	AuthToken    string // per-launch bearer token; empty means generate one at boot

	// Download scheduler
	DownloadConcurrency        int // max simultaneous in-flight video downloads (spec.md §4.3 default: 10)
	ChapterDownloadConcurrency int // max simultaneous in-flight chapter downloads; a separate pool per spec.md §4.3
	DownloadChunkBytes         int64

	// Release tracker
	TrackerPollInterval time.Duration
	TrackerAPIDelay     time.Duration // pacing between outbound plugin calls (x/time/rate)
	TrackerMaxBackoff   time.Duration

	// Cache
	CacheTierATTL time.Duration
	CacheTierBTTL time.Duration

	// Backup
	BackupDir         string
	BackupInterval    time.Duration
	BackupKeepCount   int
	BackupEnabled     bool

	// Plugin sandbox
	PluginInvokeTimeout time.Duration
	PluginFetchDomains  []string // extra globally-allowed domains, beyond per-plugin manifest
}

// Load reads configuration from the environment. Call LoadEnvFile first to
// seed process env vars from a .env file.
func Load() *Config {
	dataDir := getEnv("OTAKUBACK_DATA_DIR", "./data")
	c := &Config{
		DataDir:                    dataDir,
		CacheDir:                   getEnv("OTAKUBACK_CACHE_DIR", dataDir+"/cache"),
		DBPath:                     getEnv("OTAKUBACK_DB_PATH", dataDir+"/otaku.db"),
		PluginsDir:                 getEnv("OTAKUBACK_PLUGINS_DIR", dataDir+"/plugins"),
		HTTPBindAddr:               getEnv("OTAKUBACK_HTTP_BIND", "127.0.0.1:0"),
		AuthToken:                  os.Getenv("OTAKUBACK_AUTH_TOKEN"),
		DownloadConcurrency:        getEnvInt("OTAKUBACK_DOWNLOAD_CONCURRENCY", 10),
		ChapterDownloadConcurrency: getEnvInt("OTAKUBACK_CHAPTER_DOWNLOAD_CONCURRENCY", 5),
		DownloadChunkBytes:         int64(getEnvInt("OTAKUBACK_DOWNLOAD_CHUNK_BYTES", 1<<20)),
		TrackerPollInterval:        getEnvDuration("OTAKUBACK_TRACKER_POLL_INTERVAL", 30*time.Minute),
		TrackerAPIDelay:            getEnvDuration("OTAKUBACK_TRACKER_API_DELAY", 1500*time.Millisecond),
		TrackerMaxBackoff:          getEnvDuration("OTAKUBACK_TRACKER_MAX_BACKOFF", 6*time.Hour),
		CacheTierATTL:              getEnvDuration("OTAKUBACK_CACHE_TIER_A_TTL", 5*time.Minute),
		CacheTierBTTL:              getEnvDuration("OTAKUBACK_CACHE_TIER_B_TTL", 24*time.Hour),
		BackupDir:                  getEnv("OTAKUBACK_BACKUP_DIR", dataDir+"/backups"),
		BackupInterval:             getEnvDuration("OTAKUBACK_BACKUP_INTERVAL", 24*time.Hour),
		BackupKeepCount:            getEnvInt("OTAKUBACK_BACKUP_KEEP_COUNT", 7),
		BackupEnabled:              getEnvBool("OTAKUBACK_BACKUP_ENABLED", true),
		PluginInvokeTimeout:        getEnvDuration("OTAKUBACK_PLUGIN_TIMEOUT", 20*time.Second),
		PluginFetchDomains:         splitCSV(os.Getenv("OTAKUBACK_PLUGIN_EXTRA_DOMAINS")),
	}
	if c.DownloadConcurrency <= 0 {
		c.DownloadConcurrency = 10
	}
	if c.ChapterDownloadConcurrency <= 0 {
		c.ChapterDownloadConcurrency = 5
	}
	if c.DownloadChunkBytes <= 0 {
		c.DownloadChunkBytes = 1 << 20
	}
	if c.TrackerPollInterval <= 0 {
		c.TrackerPollInterval = 30 * time.Minute
	}
	if c.BackupKeepCount <= 0 {
		c.BackupKeepCount = 7
	}
	return c
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
