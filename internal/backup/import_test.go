package backup

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/otakuhaven/otakuback/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestExportImport_roundTripMedia(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.UpsertMedia(ctx, store.Media{ID: "m1", PluginID: "p", Type: "anime", Title: "Show"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	exporter := NewExporter(st, "test")
	doc, err := exporter.Export(ctx, 1000)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(doc.Data.Media) != 1 || doc.Data.Media[0].ID != "m1" {
		t.Fatalf("got %+v", doc.Data.Media)
	}

	st2 := newTestStore(t)
	importer := NewImporter(st2)
	result, err := importer.Import(ctx, doc, StrategyReplaceAll)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("got imported=%d, want 1", result.Imported)
	}
	m, err := st2.GetMedia(ctx, "m1")
	if err != nil {
		t.Fatalf("get media after import: %v", err)
	}
	if m.Title != "Show" {
		t.Errorf("got title %q", m.Title)
	}
}

func TestImport_mergeKeepExistingSkipsExistingSettings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.SetSetting(ctx, "nsfw_filter", "0"); err != nil {
		t.Fatal(err)
	}
	doc := Document{Data: Data{Settings: map[string]string{"nsfw_filter": "1"}}}

	importer := NewImporter(st)
	if _, err := importer.Import(ctx, doc, StrategyMergeKeepExisting); err != nil {
		t.Fatalf("import: %v", err)
	}
	v, _, _ := st.GetSetting(ctx, "nsfw_filter")
	if v != "0" {
		t.Errorf("got %q, want existing value preserved", v)
	}
}

func TestImport_mergePreferImportOverwritesSettings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.SetSetting(ctx, "nsfw_filter", "0"); err != nil {
		t.Fatal(err)
	}
	doc := Document{Data: Data{Settings: map[string]string{"nsfw_filter": "1"}}}

	importer := NewImporter(st)
	if _, err := importer.Import(ctx, doc, StrategyMergePreferImport); err != nil {
		t.Fatalf("import: %v", err)
	}
	v, _, _ := st.GetSetting(ctx, "nsfw_filter")
	if v != "1" {
		t.Errorf("got %q, want imported value", v)
	}
}

func TestImport_mergeKeepExistingSkipsExistingWatchHistory(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if err := st.UpsertWatchHistory(ctx, store.WatchHistory{MediaID: "m1", EpisodeID: "e1", ProgressSeconds: 100}, false); err != nil {
		t.Fatal(err)
	}
	doc := Document{Data: Data{WatchHistory: []store.WatchHistory{
		{MediaID: "m1", EpisodeID: "e1", ProgressSeconds: 9000},
	}}}

	importer := NewImporter(st)
	if _, err := importer.Import(ctx, doc, StrategyMergeKeepExisting); err != nil {
		t.Fatalf("import: %v", err)
	}
	h, err := st.GetWatchHistory(ctx, "m1", "e1")
	if err != nil {
		t.Fatalf("get watch history: %v", err)
	}
	if h.ProgressSeconds != 100 {
		t.Errorf("got progress %v, want existing value preserved", h.ProgressSeconds)
	}
}

func TestImport_tagAssignmentSkippedWithoutLibraryEntry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	doc := Document{
		Data: Data{
			Tags:           []store.Tag{{ID: 1, Name: "favorite"}},
			TagAssignments: []store.TagAssignment{{TagID: 1, MediaID: "nonexistent"}},
		},
	}
	importer := NewImporter(st)
	result, err := importer.Import(ctx, doc, StrategyReplaceAll)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for the unresolvable tag assignment")
	}
}
