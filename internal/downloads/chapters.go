package downloads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/otakuhaven/otakuback/internal/eventbus"
	"github.com/otakuhaven/otakuback/internal/httpclient"
	"github.com/otakuhaven/otakuback/internal/metrics"
	"github.com/otakuhaven/otakuback/internal/safeurl"
	"github.com/otakuhaven/otakuback/internal/store"
)

// ChapterProgressEvent is the chapter-download-progress payload.
type ChapterProgressEvent struct {
	ChapterDownloadID string `json:"chapter_download_id"`
	DownloadedImages  int    `json:"downloaded_images"`
	TotalImages       int    `json:"total_images"`
	Status            string `json:"status"`
}

// EnqueueChapter inserts a chapter_downloads row and admits it. imageURLs
// is the full ordered page list for the chapter.
func (s *Scheduler) EnqueueChapter(ctx context.Context, mediaID, chapterID, mediaTitle string, chapterNumber float64, imageURLs []string) (string, error) {
	id := uuid.NewString()
	folder := chapterFolder(s.dir, mediaTitle, chapterNumber)
	c := store.ChapterDownload{
		ID:          id,
		MediaID:     mediaID,
		ChapterID:   chapterID,
		FolderPath:  folder,
		TotalImages: len(imageURLs),
		Status:      store.DownloadQueued,
	}
	if err := s.st.InsertChapterDownload(ctx, c); err != nil {
		return "", err
	}
	s.admitChapter(id, imageURLs)
	return id, nil
}

// admitChapter starts a chapter worker once a chapter slot is free. The
// image URL list is not persisted across restarts, so a call without one
// (the boot path in ResumePending) returns without starting a worker and
// the row stays queued. A chapter interrupted mid-download is already
// marked failed by RecoverOnBoot before ResumePending runs.
func (s *Scheduler) admitChapter(id string, imageURLs ...[]string) {
	var urls []string
	if len(imageURLs) > 0 {
		urls = imageURLs[0]
	}
	if len(urls) == 0 {
		return
	}
	go func() {
		s.chapterSlots <- struct{}{}
		defer func() { <-s.chapterSlots }()

		ctx := context.Background()
		c, err := s.st.GetChapterDownload(ctx, id)
		if err != nil {
			return
		}
		if c.Status == store.DownloadCancelled {
			return
		}
		runChapterWorker(ctx, s.st, s.bus, httpclient.Default(), *c, urls)
	}()
}

// runChapterWorker downloads every image sequentially into FolderPath as
// page_NNNN.<ext>, tolerating individual image failures: the chapter is
// completed as long as at least one image was written (spec.md §4.3).
func runChapterWorker(ctx context.Context, st *store.Store, bus *eventbus.Bus, client *http.Client, c store.ChapterDownload, imageURLs []string) {
	if err := st.SetChapterDownloadStatus(ctx, c.ID, store.DownloadDownloading, ""); err != nil {
		return
	}
	if err := os.MkdirAll(c.FolderPath, 0755); err != nil {
		finishChapter(ctx, st, bus, c, store.DownloadFailed, err.Error())
		return
	}

	downloaded := 0
	lastEmit := time.Time{}

	for i, imgURL := range imageURLs {
		status, err := st.GetChapterDownload(ctx, c.ID)
		if err != nil {
			return
		}
		if status.Status == store.DownloadCancelled {
			os.RemoveAll(c.FolderPath)
			return
		}

		if err := downloadImage(ctx, client, imgURL, c.FolderPath, i+1); err != nil {
			log.Warn("chapter %s page %d failed: %v", c.ID, i+1, err)
			continue
		}
		downloaded++
		metrics.DownloadBytesTotal.Add(0) // page byte counts aren't tracked individually

		if time.Since(lastEmit) >= progressEmitInterval {
			emitChapter(bus, c.ID, downloaded, len(imageURLs), string(store.DownloadDownloading))
			_ = st.UpdateChapterProgress(ctx, c.ID, downloaded, len(imageURLs))
			lastEmit = time.Now()
		}
	}

	_ = st.UpdateChapterProgress(ctx, c.ID, downloaded, len(imageURLs))
	if downloaded == 0 {
		finishChapter(ctx, st, bus, c, store.DownloadFailed, "no images downloaded")
		return
	}
	finishChapter(ctx, st, bus, c, store.DownloadCompleted, "")
}

func downloadImage(ctx context.Context, client *http.Client, imgURL, folder string, page int) error {
	if !safeurl.IsHTTPOrHTTPS(imgURL) {
		return fmt.Errorf("invalid image URL scheme")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	ext := extFromURLOrContentType(imgURL, resp.Header.Get("Content-Type"))
	dest := filepath.Join(folder, fmt.Sprintf("page_%04d%s", page, ext))
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func extFromURLOrContentType(imgURL, contentType string) string {
	if ext := filepath.Ext(strings.SplitN(imgURL, "?", 2)[0]); ext != "" && len(ext) <= 5 {
		return ext
	}
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}

func emitChapter(bus *eventbus.Bus, id string, downloaded, total int, status string) {
	if bus == nil {
		return
	}
	bus.Publish("chapter-download-progress", ChapterProgressEvent{
		ChapterDownloadID: id, DownloadedImages: downloaded, TotalImages: total, Status: status,
	})
}

func finishChapter(ctx context.Context, st *store.Store, bus *eventbus.Bus, c store.ChapterDownload, status store.DownloadStatus, errMsg string) {
	_ = st.SetChapterDownloadStatus(ctx, c.ID, status, errMsg)
	metrics.DownloadsTotal.WithLabelValues(string(status)).Inc()
	emitChapter(bus, c.ID, c.DownloadedImages, c.TotalImages, string(status))
}
