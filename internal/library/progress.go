// Package library implements spec.md §4.6's write-through progress tracking:
// a watch/read progress write upserts history and infers the library
// status from the completed-episode count, creating the library entry if
// it doesn't exist yet.
//
// Grounded on the teacher's catalog/indexer read-then-write request shape,
// generalized from VOD metadata lookups to progress bookkeeping.
package library

import (
	"context"

	"github.com/otakuhaven/otakuback/internal/store"
)

// Library wraps the store with the write-through business logic spec.md
// §4.6 requires on top of plain CRUD.
type Library struct {
	st *store.Store
}

// New builds a Library backed by st.
func New(st *store.Store) *Library {
	return &Library{st: st}
}

// WatchProgress is the input to SaveWatchProgress.
type WatchProgress struct {
	MediaID         string
	EpisodeID       string
	EpisodeNumber   float64
	ProgressSeconds float64
	DurationSeconds float64
	Completed       bool
}

// SaveWatchProgress upserts watch_history and infers the library status:
// completed if the completed-episode count reaches media.episode_count,
// otherwise watching. The library entry is created if missing.
func (l *Library) SaveWatchProgress(ctx context.Context, p WatchProgress) error {
	if err := l.st.UpsertWatchHistory(ctx, store.WatchHistory{
		MediaID:         p.MediaID,
		EpisodeID:       p.EpisodeID,
		EpisodeNumber:   p.EpisodeNumber,
		ProgressSeconds: p.ProgressSeconds,
		DurationSeconds: p.DurationSeconds,
		Completed:       p.Completed,
	}, false); err != nil {
		return err
	}
	return l.inferStatus(ctx, p.MediaID, "anime", p.Completed)
}

// ReadingProgress is the input to SaveReadingProgress.
type ReadingProgress struct {
	MediaID       string
	ChapterID     string
	ChapterNumber float64
	Page          int
	PageCount     int
	Completed     bool
}

// SaveReadingProgress mirrors SaveWatchProgress for manga.
func (l *Library) SaveReadingProgress(ctx context.Context, p ReadingProgress) error {
	if err := l.st.UpsertReadingHistory(ctx, store.ReadingHistory{
		MediaID:       p.MediaID,
		ChapterID:     p.ChapterID,
		ChapterNumber: p.ChapterNumber,
		Page:          p.Page,
		PageCount:     p.PageCount,
		Completed:     p.Completed,
	}, false); err != nil {
		return err
	}
	return l.inferStatus(ctx, p.MediaID, "manga", p.Completed)
}

// inferStatus implements spec.md §4.6: if this write marked an entry
// completed and the completed count reaches the declared total, the
// library status becomes completed; otherwise watching/reading.
func (l *Library) inferStatus(ctx context.Context, mediaID, mediaType string, justCompleted bool) error {
	media, err := l.st.GetMedia(ctx, mediaID)
	if err != nil {
		return err
	}

	inProgressStatus := store.StatusWatching
	if mediaType == "manga" {
		inProgressStatus = store.StatusReading
	}

	if !justCompleted || media.EpisodeCount <= 0 {
		return l.st.SetLibraryStatus(ctx, mediaID, inProgressStatus)
	}

	var completedCount int
	if mediaType == "manga" {
		completedCount, err = l.st.CountCompletedReading(ctx, mediaID)
	} else {
		completedCount, err = l.st.CountCompletedWatch(ctx, mediaID)
	}
	if err != nil {
		return err
	}

	if completedCount >= media.EpisodeCount {
		return l.st.SetLibraryStatus(ctx, mediaID, store.StatusCompleted)
	}
	return l.st.SetLibraryStatus(ctx, mediaID, inProgressStatus)
}

// ContinueWatching returns the continue-watching list as stored; the
// completion/final-episode filtering already lives in the store query
// (spec.md §4.6).
func (l *Library) ContinueWatching(ctx context.Context) ([]store.ContinueWatchingRow, error) {
	return l.st.ContinueWatching(ctx)
}
