// Command otakuback is the process entrypoint for the local backend: it
// loads configuration, opens the shared SQLite store, wires every engine
// (cache, plugin sandbox, download scheduler, media server, release
// tracker, library, auto-backup loop), and serves until interrupted.
//
// Grounded on the teacher's cmd/plex-tuner/main.go for flag/env parsing and
// signal handling, and internal/tuner/server.go for the bounded-shutdown
// shape generalized here across several long-running loops instead of one.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otakuhaven/otakuback/internal/backup"
	"github.com/otakuhaven/otakuback/internal/cache"
	"github.com/otakuhaven/otakuback/internal/config"
	"github.com/otakuhaven/otakuback/internal/downloads"
	"github.com/otakuhaven/otakuback/internal/eventbus"
	"github.com/otakuhaven/otakuback/internal/library"
	"github.com/otakuhaven/otakuback/internal/logging"
	"github.com/otakuhaven/otakuback/internal/mediaserver"
	"github.com/otakuhaven/otakuback/internal/plugin"
	"github.com/otakuhaven/otakuback/internal/store"
	"github.com/otakuhaven/otakuback/internal/tracker"
)

var log = logging.For("main")

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	metricsAddr := flag.String("metrics-addr", "127.0.0.1:9090", "bind address for the /metrics endpoint (empty disables it)")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Warn("load env file %s: %v", *envFile, err)
	}
	cfg := config.Load()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Error("create data dir: %v", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.CacheDir, 0755); err != nil {
		log.Error("create cache dir: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Error("open store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	bus := eventbus.New(256)

	// cch is the two-tier cache internal/plugin's Cached* wrappers read and
	// write around plugin calls; it has no loop of its own to start, and is
	// held here for the embedding host to reach the plugin manager through.
	cch := cache.New(cache.NewMemory(cfg.CacheTierATTL, 1000), cache.NewDurable(st))
	log.Info("cache ready (tier A ttl=%s)", cfg.CacheTierATTL)

	plugins := plugin.NewManager(st, 1.0/cfg.TrackerAPIDelay.Seconds(), 3)
	plugins.Cache = cch
	if err := os.MkdirAll(cfg.PluginsDir, 0755); err != nil {
		log.Warn("create plugins dir: %v", err)
	}
	for _, loadErr := range plugins.LoadDir(ctx, cfg.PluginsDir) {
		log.Warn("load plugin: %v", loadErr)
	}
	if err := plugins.RestoreFromStore(ctx); err != nil {
		log.Warn("restore plugins from store: %v", err)
	}

	downloadsRoot := cfg.CacheDir + "/downloads"
	scheduler := downloads.NewScheduler(st, bus, downloadsRoot, cfg.DownloadConcurrency, cfg.ChapterDownloadConcurrency)
	if err := scheduler.RecoverOnBoot(ctx); err != nil {
		log.Warn("recover downloads on boot: %v", err)
	}
	if err := scheduler.ResumePending(ctx); err != nil {
		log.Warn("resume pending downloads: %v", err)
	}

	// library.New has no loop to start: it's a direct CRUD/progress facade
	// the embedding host calls into alongside the engines started below.
	_ = library.New(st)

	trk := tracker.New(st, plugins, bus)

	exporter := backup.NewExporter(st, "otakuback-dev")
	backupLoop := backup.NewLoop(st, exporter, bus, cfg.DataDir)

	srv, err := mediaserver.NewServer(downloadsRoot)
	if err != nil {
		log.Error("build media server: %v", err)
		os.Exit(1)
	}
	if cfg.AuthToken != "" {
		srv.SetToken(cfg.AuthToken)
	}
	log.Info("media server token: %s", srv.Token())

	var wg errGroup
	wg.go_(func() error {
		if err := srv.Run(ctx, cfg.HTTPBindAddr); err != nil && ctx.Err() == nil {
			return fmt.Errorf("media server: %w", err)
		}
		return nil
	})
	wg.go_(func() error {
		trk.Run(ctx)
		return nil
	})
	if cfg.BackupEnabled {
		wg.go_(func() error {
			backupLoop.Run(ctx)
			return nil
		})
	}

	var metricsServer *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: *metricsAddr, Handler: mux}
		wg.go_(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	log.Info("otakuback started, data dir %s", cfg.DataDir)
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	if err := wg.wait(15 * time.Second); err != nil {
		log.Warn("shutdown: %v", err)
	}
}

// errGroup starts goroutines immediately and collects the first non-nil
// error on wait, with a bounded timeout so a stuck loop cannot hang the
// process forever (spec.md §5's bounded-shutdown expectation).
type errGroup struct {
	n    int
	done chan error
}

func (g *errGroup) go_(fn func() error) {
	if g.done == nil {
		g.done = make(chan error, 8)
	}
	g.n++
	go func() { g.done <- fn() }()
}

func (g *errGroup) wait(timeout time.Duration) error {
	var firstErr error
	deadline := time.After(timeout)
	for i := 0; i < g.n; i++ {
		select {
		case err := <-g.done:
			if err != nil && firstErr == nil {
				firstErr = err
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting for %d goroutine(s) to exit", g.n-i)
		}
	}
	return firstErr
}
