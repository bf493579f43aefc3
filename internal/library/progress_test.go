package library

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/otakuhaven/otakuback/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedMedia(t *testing.T, st *store.Store, id string, episodeCount int) {
	t.Helper()
	err := st.UpsertMedia(context.Background(), store.Media{
		ID: id, PluginID: "test-plugin", Type: "anime", Title: "Test Show", EpisodeCount: episodeCount,
	})
	if err != nil {
		t.Fatalf("seed media: %v", err)
	}
}

func TestSaveWatchProgress_setsWatchingWhenIncomplete(t *testing.T) {
	st := newTestStore(t)
	seedMedia(t, st, "m1", 12)
	lib := New(st)

	err := lib.SaveWatchProgress(context.Background(), WatchProgress{
		MediaID: "m1", EpisodeID: "e1", EpisodeNumber: 1, ProgressSeconds: 100, DurationSeconds: 1400, Completed: true,
	})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}
	entry, err := st.GetLibraryEntry(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != store.StatusWatching {
		t.Errorf("got status %q, want watching", entry.Status)
	}
}

func TestSaveWatchProgress_setsCompletedAtFinalEpisode(t *testing.T) {
	st := newTestStore(t)
	seedMedia(t, st, "m1", 1)
	lib := New(st)

	err := lib.SaveWatchProgress(context.Background(), WatchProgress{
		MediaID: "m1", EpisodeID: "e1", EpisodeNumber: 1, ProgressSeconds: 1400, DurationSeconds: 1400, Completed: true,
	})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}
	entry, err := st.GetLibraryEntry(context.Background(), "m1")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != store.StatusCompleted {
		t.Errorf("got status %q, want completed", entry.Status)
	}
}

func TestSaveWatchProgress_idempotentOnRepeat(t *testing.T) {
	st := newTestStore(t)
	seedMedia(t, st, "m1", 1)
	lib := New(st)

	progress := WatchProgress{MediaID: "m1", EpisodeID: "e1", EpisodeNumber: 1, ProgressSeconds: 1400, DurationSeconds: 1400, Completed: true}
	if err := lib.SaveWatchProgress(context.Background(), progress); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := lib.SaveWatchProgress(context.Background(), progress); err != nil {
		t.Fatalf("second save: %v", err)
	}
	n, err := st.CountCompletedWatch(context.Background(), "m1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d completed rows, want 1", n)
	}
}

func TestSaveReadingProgress_setsReading(t *testing.T) {
	st := newTestStore(t)
	err := st.UpsertMedia(context.Background(), store.Media{ID: "m2", PluginID: "p", Type: "manga", Title: "Manga", EpisodeCount: 10})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	lib := New(st)

	err = lib.SaveReadingProgress(context.Background(), ReadingProgress{
		MediaID: "m2", ChapterID: "c1", ChapterNumber: 1, Page: 5, PageCount: 20, Completed: false,
	})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}
	entry, err := st.GetLibraryEntry(context.Background(), "m2")
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Status != store.StatusReading {
		t.Errorf("got status %q, want reading", entry.Status)
	}
}
