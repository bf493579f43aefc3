// Package metrics holds Prometheus counters/gauges/histograms for all five
// engines, grouped by subsystem, grounded on
// djryanj-media-viewer/internal/metrics/metrics.go's promauto registration
// shape.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Downloads
var (
	DownloadsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "otakuback_downloads_active",
		Help: "Number of downloads currently occupying a concurrency slot.",
	})

	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otakuback_downloads_total",
		Help: "Downloads by terminal status.",
	}, []string{"status"})

	DownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otakuback_download_bytes_total",
		Help: "Total bytes written by the download scheduler.",
	})
)

// Cache
var (
	CacheTierAHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otakuback_cache_tier_a_hits_total",
		Help: "In-memory cache hits/misses by category.",
	}, []string{"category", "result"})

	CacheTierBReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otakuback_cache_tier_b_reads_total",
		Help: "Durable cache reads by freshness.",
	}, []string{"category", "freshness"})
)

// Tracker
var (
	TrackerChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otakuback_tracker_checks_total",
		Help: "Release tracker checks by result.",
	}, []string{"result"})

	TrackerNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otakuback_tracker_notifications_total",
		Help: "Notifications emitted by the release tracker.",
	})
)

// Media server
var (
	MediaServerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otakuback_mediaserver_requests_total",
		Help: "Media server requests by route and status.",
	}, []string{"route", "status"})

	MediaServerProxyBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otakuback_mediaserver_proxy_bytes_total",
		Help: "Bytes streamed through /proxy.",
	})
)

// Plugin
var (
	PluginInvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otakuback_plugin_invocations_total",
		Help: "Plugin entry point invocations by plugin id and outcome.",
	}, []string{"plugin_id", "method", "outcome"})

	PluginInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "otakuback_plugin_invocation_duration_seconds",
		Help:    "Plugin invocation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin_id", "method"})
)
