// Package downloads implements spec.md §4.3's durable download scheduler:
// queued/downloading/paused/completed/failed/cancelled rows that survive
// restarts, resumable byte-range transfers, and a separate pool for manga
// chapter image sets. Grounded on the teacher's internal/materializer
// (DownloadToFile's range-request shape) generalized from a read-through
// cache into a full state machine backed by internal/store.
package downloads

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/otakuhaven/otakuback/internal/eventbus"
	"github.com/otakuhaven/otakuback/internal/httpclient"
	"github.com/otakuhaven/otakuback/internal/logging"
	"github.com/otakuhaven/otakuback/internal/metrics"
	"github.com/otakuhaven/otakuback/internal/store"
)

var log = logging.For("downloads")

// Scheduler owns admission control and lifecycle for both video downloads
// and manga chapter downloads. Each is a separate pool per spec.md §4.3.
type Scheduler struct {
	st  *store.Store
	bus *eventbus.Bus
	dir string // downloads root, <data>/downloads

	videoSlots   chan struct{}
	chapterSlots chan struct{}
}

// NewScheduler builds a scheduler rooted at dir with the given concurrency
// limits. Slots are modeled as buffered channels per spec.md §4.3's
// "increments a counter on admission, decrements on terminal transition".
func NewScheduler(st *store.Store, bus *eventbus.Bus, dir string, videoConcurrency, chapterConcurrency int) *Scheduler {
	if videoConcurrency <= 0 {
		videoConcurrency = 10
	}
	if chapterConcurrency <= 0 {
		chapterConcurrency = 5
	}
	return &Scheduler{
		st:           st,
		bus:          bus,
		dir:          dir,
		videoSlots:   make(chan struct{}, videoConcurrency),
		chapterSlots: make(chan struct{}, chapterConcurrency),
	}
}

// RecoverOnBoot reloads every row and repairs state left by an unclean
// shutdown (spec.md §4.3): downloading rows had no surviving worker and
// become failed; completed rows whose file vanished also become failed,
// with a stable "file missing" reason. Rows are never deleted here.
func (s *Scheduler) RecoverOnBoot(ctx context.Context) error {
	rows, err := s.st.ListDownloads(ctx)
	if err != nil {
		return err
	}
	for _, d := range rows {
		switch d.Status {
		case store.DownloadDownloading:
			log.Warn("download %s was mid-transfer at shutdown, marking failed", d.ID)
			if err := s.st.SetDownloadStatus(ctx, d.ID, store.DownloadFailed, "interrupted by restart"); err != nil {
				return err
			}
		case store.DownloadCompleted:
			if _, err := os.Stat(d.FilePath); err != nil {
				log.Warn("download %s completed file missing: %s", d.ID, d.FilePath)
				if err := s.st.SetDownloadStatus(ctx, d.ID, store.DownloadFailed, "file missing"); err != nil {
					return err
				}
			}
		}
	}

	chapters, err := s.st.ListChapterDownloads(ctx)
	if err != nil {
		return err
	}
	for _, c := range chapters {
		if c.Status == store.DownloadDownloading {
			log.Warn("chapter download %s was mid-transfer at shutdown, marking failed", c.ID)
			if err := s.st.SetChapterDownloadStatus(ctx, c.ID, store.DownloadFailed, "interrupted by restart"); err != nil {
				return err
			}
		} else if c.Status == store.DownloadCompleted {
			if fi, err := os.Stat(c.FolderPath); err != nil || !fi.IsDir() {
				if err := s.st.SetChapterDownloadStatus(ctx, c.ID, store.DownloadFailed, "folder missing"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ResumePending re-admits every queued or paused-turned-queued video
// download after boot recovery, since nothing is actively downloading any
// more. Queued chapter rows are handed to admitChapter without an image URL
// list, which leaves them queued.
func (s *Scheduler) ResumePending(ctx context.Context) error {
	rows, err := s.st.ListDownloads(ctx, store.DownloadQueued)
	if err != nil {
		return err
	}
	for _, d := range rows {
		s.admit(d.ID)
	}
	chapters, err := s.st.ListChapterDownloads(ctx, store.DownloadQueued)
	if err != nil {
		return err
	}
	for _, c := range chapters {
		s.admitChapter(c.ID)
	}
	return nil
}

// Enqueue inserts a new queued download row and admits it for scheduling.
func (s *Scheduler) Enqueue(ctx context.Context, mediaID, episodeID, filename, sourceURL string) (string, error) {
	id := uuid.NewString()
	d := store.Download{
		ID:        id,
		MediaID:   mediaID,
		EpisodeID: episodeID,
		Filename:  filename,
		SourceURL: sourceURL,
		FilePath:  filePath(s.dir, mediaID, filename),
		Status:    store.DownloadQueued,
	}
	if err := s.st.InsertDownload(ctx, d); err != nil {
		return "", err
	}
	s.admit(id)
	return id, nil
}

// admit blocks in a background goroutine until a slot frees, then runs the
// worker. Admission re-checks status first so a cancel issued while queued
// short-circuits before any work starts (spec.md §4.3).
func (s *Scheduler) admit(id string) {
	go func() {
		s.videoSlots <- struct{}{}
		defer func() { <-s.videoSlots }()
		metrics.DownloadsActive.Inc()
		defer metrics.DownloadsActive.Dec()

		ctx := context.Background()
		d, err := s.st.GetDownload(ctx, id)
		if err != nil {
			log.Error("admit: lookup %s failed: %v", id, err)
			return
		}
		if d.Status == store.DownloadCancelled {
			return
		}
		runWorker(ctx, s.st, s.bus, httpclient.Default(), *d)
	}()
}

// Pause requests a cooperative pause; the worker notices on its next
// between-chunk check and keeps the partial file (spec.md §4.3).
func (s *Scheduler) Pause(ctx context.Context, id string) error {
	d, err := s.st.GetDownload(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != store.DownloadDownloading {
		return fmt.Errorf("download %s is not downloading (status=%s)", id, d.Status)
	}
	return s.st.SetDownloadStatus(ctx, id, store.DownloadPaused, "")
}

// Resume requeues a paused download for another pass; the worker resumes
// from the on-disk byte count (spec.md §4.3 resumability).
func (s *Scheduler) Resume(ctx context.Context, id string) error {
	d, err := s.st.GetDownload(ctx, id)
	if err != nil {
		return err
	}
	if d.Status != store.DownloadPaused && d.Status != store.DownloadFailed {
		return fmt.Errorf("download %s cannot resume from status=%s", id, d.Status)
	}
	if err := s.st.SetDownloadStatus(ctx, id, store.DownloadQueued, ""); err != nil {
		return err
	}
	s.admit(id)
	return nil
}

// Cancel marks a download cancelled. Per spec.md §4.3 a cancelled row can
// never be resumed; a fresh Enqueue with a new id is required instead.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	d, err := s.st.GetDownload(ctx, id)
	if err != nil {
		return err
	}
	if d.Status == store.DownloadCompleted || d.Status == store.DownloadCancelled {
		return fmt.Errorf("download %s cannot be cancelled from terminal status=%s", id, d.Status)
	}
	return s.st.SetDownloadStatus(ctx, id, store.DownloadCancelled, "")
}

// Delete removes a terminal row; spec.md §4.3 requires explicit user action
// to leave completed/cancelled state.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	d, err := s.st.GetDownload(ctx, id)
	if err != nil {
		return err
	}
	if d.Status == store.DownloadDownloading || d.Status == store.DownloadQueued {
		return fmt.Errorf("download %s must be cancelled before it can be deleted", id)
	}
	return s.st.DeleteDownload(ctx, id)
}
