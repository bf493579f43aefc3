package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFilename_format(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	got := Filename(ts)
	want := "otaku-auto-backup-2026-03-05_14-30-00.json"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSaveAndLoad_roundTrip(t *testing.T) {
	dir := t.TempDir()
	doc := Document{FormatVersion: formatVersion, AppVersion: "test", ExportedAt: 123}
	if err := Save(dir, "out.json", doc); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(filepath.Join(dir, "out.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ExportedAt != 123 || loaded.AppVersion != "test" {
		t.Errorf("got %+v", loaded)
	}
}

func TestRotate_keepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"otaku-auto-backup-2026-01-01_00-00-00.json",
		"otaku-auto-backup-2026-01-02_00-00-00.json",
		"otaku-auto-backup-2026-01-03_00-00-00.json",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := Rotate(dir, 2); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d files, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Name() == names[0] {
			t.Errorf("oldest backup should have been removed, found %s", e.Name())
		}
	}
}

func TestRotate_belowLimitNoOp(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "otaku-auto-backup-2026-01-01_00-00-00.json"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Rotate(dir, 5); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("got %d files, want 1", len(entries))
	}
}
