package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/otakuhaven/otakuback/internal/logging"
)

var log = logging.For("backup")

// Filename builds spec.md §6's auto-backup filename for t:
// otaku-auto-backup-<YYYY-MM-DD_HH-MM-SS>.json.
func Filename(t time.Time) string {
	return fmt.Sprintf("otaku-auto-backup-%s.json", t.Format("2006-01-02_15-04-05"))
}

// Save writes doc to dir/name atomically (temp file + rename), matching
// the teacher's dvbdb.Save idiom.
func Save(dir, name string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".backup-*.json.tmp")
	if err != nil {
		return fmt.Errorf("backup save: %w", err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return writeErr
		}
		return closeErr
	}
	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads and parses a backup file from disk.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Rotate keeps the maxBackups most recent otaku-auto-backup-*.json files in
// dir, deleting the rest by filename (the timestamp in the name sorts
// lexicographically with chronological order).
func Rotate(dir string, maxBackups int) error {
	if maxBackups <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".json" && len(e.Name()) > len("otaku-auto-backup-") &&
			e.Name()[:len("otaku-auto-backup-")] == "otaku-auto-backup-" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) <= maxBackups {
		return nil
	}
	for _, old := range names[:len(names)-maxBackups] {
		if err := os.Remove(filepath.Join(dir, old)); err != nil {
			log.Warn("rotate: remove %s: %v", old, err)
		}
	}
	return nil
}
