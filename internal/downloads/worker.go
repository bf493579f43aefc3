package downloads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/otakuhaven/otakuback/internal/eventbus"
	"github.com/otakuhaven/otakuback/internal/httpclient"
	"github.com/otakuhaven/otakuback/internal/metrics"
	"github.com/otakuhaven/otakuback/internal/safeurl"
	"github.com/otakuhaven/otakuback/internal/store"
)

const (
	// progressEmitInterval bounds how often a download-progress event is
	// published on the bus, per spec.md §4.3.
	progressEmitInterval = 500 * time.Millisecond
	// progressPersistBytes bounds how often progress is written to
	// storage, per spec.md §4.3.
	progressPersistBytes = 5 * 1024 * 1024
	readChunkBytes       = 256 * 1024
)

// ProgressEvent is the download-progress payload published on the bus.
type ProgressEvent struct {
	DownloadID      string  `json:"download_id"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      int64   `json:"total_bytes"`
	SpeedBps        float64 `json:"speed_bps"`
	Status          string  `json:"status"`
}

// runWorker performs a single pass of a download: it resumes from any
// existing partial file, transfers bytes while cooperatively polling the
// row's FSM status, and leaves the row in a terminal or paused state.
func runWorker(ctx context.Context, st *store.Store, bus *eventbus.Bus, client *http.Client, d store.Download) {
	if !safeurl.IsHTTPOrHTTPS(d.SourceURL) {
		finish(ctx, st, bus, d, store.DownloadFailed, "invalid source URL scheme")
		return
	}
	if err := st.SetDownloadStatus(ctx, d.ID, store.DownloadDownloading, ""); err != nil {
		return
	}
	d.Status = store.DownloadDownloading

	if err := os.MkdirAll(filepath.Dir(d.FilePath), 0755); err != nil {
		finish(ctx, st, bus, d, store.DownloadFailed, err.Error())
		return
	}

	offset := resumeOffset(d.FilePath, d.DownloadedBytes)

	// RangeRequest issues "Range: bytes=<offset>-" (spec.md §4.3's resume
	// request) and hands back the raw body alongside the response so the
	// status/headers below can still drive the same fallback-to-zero logic.
	body, resp, err := httpclient.RangeRequest(ctx, client, d.SourceURL, offset, "")
	if err != nil {
		finish(ctx, st, bus, d, store.DownloadFailed, err.Error())
		return
	}
	defer body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		finish(ctx, st, bus, d, store.DownloadFailed, fmt.Sprintf("upstream HTTP %d", resp.StatusCode))
		return
	}
	if resp.StatusCode != http.StatusPartialContent {
		offset = 0
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	total := totalFromResponse(resp, offset)

	f, err := os.OpenFile(d.FilePath, flags, 0644)
	if err != nil {
		finish(ctx, st, bus, d, store.DownloadFailed, err.Error())
		return
	}
	defer f.Close()

	downloaded := offset
	sessionStart := time.Now()
	sessionBytes := int64(0)
	lastEmit := time.Time{}
	lastPersist := int64(0)

	buf := make([]byte, readChunkBytes)
	for {
		status, err := st.GetDownload(ctx, d.ID)
		if err != nil {
			return
		}
		if status.Status == store.DownloadCancelled {
			os.Remove(d.FilePath)
			emit(bus, d.ID, downloaded, total, 0, string(store.DownloadCancelled))
			return
		}
		if status.Status == store.DownloadPaused {
			persistProgress(ctx, st, bus, d.ID, downloaded, total, 0, store.DownloadPaused)
			return
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				finish(ctx, st, bus, d, store.DownloadFailed, werr.Error())
				return
			}
			downloaded += int64(n)
			sessionBytes += int64(n)
			metrics.DownloadBytesTotal.Add(float64(n))

			if time.Since(lastEmit) >= progressEmitInterval {
				speed := speedBps(sessionBytes, sessionStart)
				emit(bus, d.ID, downloaded, total, speed, string(store.DownloadDownloading))
				lastEmit = time.Now()
			}
			if downloaded-lastPersist >= progressPersistBytes {
				speed := speedBps(sessionBytes, sessionStart)
				_ = st.UpdateDownloadProgress(ctx, d.ID, downloaded, total, speed)
				lastPersist = downloaded
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			finish(ctx, st, bus, d, store.DownloadFailed, readErr.Error())
			return
		}
	}

	if total == 0 {
		// Origin omitted Content-Length; adopt the final on-disk size
		// (spec.md §4.3 integrity rule).
		if fi, err := f.Stat(); err == nil {
			total = fi.Size()
		} else {
			total = downloaded
		}
	}

	d.DownloadedBytes = downloaded
	d.TotalBytes = total
	finish(ctx, st, bus, d, store.DownloadCompleted, "")
}

// resumeOffset compares the on-disk file size to the row's recorded
// progress; they must agree and be non-zero to resume, otherwise the
// worker restarts from byte zero (spec.md §4.3).
func resumeOffset(path string, recorded int64) int64 {
	if recorded <= 0 {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if fi.Size() != recorded {
		return 0
	}
	return recorded
}

func totalFromResponse(resp *http.Response, offset int64) int64 {
	if resp.StatusCode == http.StatusPartialContent {
		if total, ok := parseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			return total
		}
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength + offset
	}
	return 0
}

func parseContentRangeTotal(headerVal string) (int64, bool) {
	var start, end, total int64
	n, err := fmt.Sscanf(headerVal, "bytes %d-%d/%d", &start, &end, &total)
	if err != nil || n != 3 {
		return 0, false
	}
	return total, true
}

func speedBps(bytes int64, since time.Time) float64 {
	elapsed := time.Since(since).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / elapsed
}

func emit(bus *eventbus.Bus, id string, downloaded, total int64, speed float64, status string) {
	if bus == nil {
		return
	}
	bus.Publish("download-progress", ProgressEvent{
		DownloadID: id, DownloadedBytes: downloaded, TotalBytes: total, SpeedBps: speed, Status: status,
	})
}

func persistProgress(ctx context.Context, st *store.Store, bus *eventbus.Bus, id string, downloaded, total int64, speed float64, status store.DownloadStatus) {
	_ = st.UpdateDownloadProgress(ctx, id, downloaded, total, speed)
	_ = st.SetDownloadStatus(ctx, id, status, "")
	emit(bus, id, downloaded, total, speed, string(status))
}

func finish(ctx context.Context, st *store.Store, bus *eventbus.Bus, d store.Download, status store.DownloadStatus, errMsg string) {
	_ = st.UpdateDownloadProgress(ctx, d.ID, d.DownloadedBytes, d.TotalBytes, 0)
	_ = st.SetDownloadStatus(ctx, d.ID, status, errMsg)
	metrics.DownloadsTotal.WithLabelValues(string(status)).Inc()
	emit(bus, d.ID, d.DownloadedBytes, d.TotalBytes, 0, string(status))
}
