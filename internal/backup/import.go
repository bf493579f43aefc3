package backup

import (
	"context"
	"fmt"

	"github.com/otakuhaven/otakuback/internal/store"
)

// Strategy is one of spec.md §6's three import merge strategies.
type Strategy string

const (
	StrategyReplaceAll         Strategy = "replace_all"
	StrategyMergeKeepExisting  Strategy = "merge_keep_existing"
	StrategyMergePreferImport  Strategy = "merge_prefer_import"
)

// ImportResult collects spec.md §7's "per-record failures do not abort the
// whole import" warnings.
type ImportResult struct {
	Imported int
	Warnings []string
}

// Importer applies a Document to the store under one of three strategies.
type Importer struct {
	st *store.Store
}

// NewImporter builds an Importer backed by st.
func NewImporter(st *store.Store) *Importer {
	return &Importer{st: st}
}

// Import applies doc under strategy, remapping tag ids to freshly allocated
// ones (spec.md §6: "Tag assignments are resolved by remapping old tag ids
// to freshly allocated ones").
func (im *Importer) Import(ctx context.Context, doc Document, strategy Strategy) (ImportResult, error) {
	var result ImportResult

	if strategy == StrategyReplaceAll {
		tx, err := im.st.BeginTx(ctx)
		if err != nil {
			return result, err
		}
		if err := im.st.TruncateForReplace(ctx, tx); err != nil {
			tx.Rollback()
			return result, err
		}
		if err := tx.Commit(); err != nil {
			return result, err
		}
	}

	for _, m := range doc.Data.Media {
		if err := im.st.UpsertMedia(ctx, m); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("media %s: %v", m.ID, err))
			continue
		}
		result.Imported++
	}

	for k, v := range doc.Data.Settings {
		if strategy == StrategyMergeKeepExisting {
			if _, ok, _ := im.st.GetSetting(ctx, k); ok {
				continue
			}
		}
		if err := im.st.SetSetting(ctx, k, v); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("setting %s: %v", k, err))
		}
	}

	for _, e := range doc.Data.Library {
		if strategy == StrategyMergeKeepExisting {
			if existing, _ := im.st.GetLibraryEntry(ctx, e.MediaID); existing != nil {
				continue
			}
		}
		if err := im.st.UpsertLibraryEntry(ctx, e); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("library entry %s: %v", e.MediaID, err))
		}
	}

	for _, h := range doc.Data.WatchHistory {
		if strategy == StrategyMergeKeepExisting {
			if existing, _ := im.st.GetWatchHistory(ctx, h.MediaID, h.EpisodeID); existing != nil {
				continue
			}
		}
		if err := im.st.UpsertWatchHistory(ctx, h, strategy == StrategyMergePreferImport); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("watch history %s/%s: %v", h.MediaID, h.EpisodeID, err))
		}
	}
	for _, h := range doc.Data.ReadingHistory {
		if strategy == StrategyMergeKeepExisting {
			if existing, _ := im.st.GetReadingHistory(ctx, h.MediaID, h.ChapterID); existing != nil {
				continue
			}
		}
		if err := im.st.UpsertReadingHistory(ctx, h, strategy == StrategyMergePreferImport); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("reading history %s/%s: %v", h.MediaID, h.ChapterID, err))
		}
	}

	tagIDMap := make(map[int64]int64, len(doc.Data.Tags))
	for _, t := range doc.Data.Tags {
		newID, err := im.st.CreateTag(ctx, t.Name)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tag %q: %v", t.Name, err))
			continue
		}
		tagIDMap[t.ID] = newID
	}

	for _, a := range doc.Data.TagAssignments {
		newTagID, ok := tagIDMap[a.TagID]
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tag assignment for tag %d: no remapped tag, skipped", a.TagID))
			continue
		}
		if _, err := im.st.GetLibraryEntry(ctx, a.MediaID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tag assignment %d/%s: no library entry, skipped", a.TagID, a.MediaID))
			continue
		}
		if err := im.st.AssignTag(ctx, newTagID, a.MediaID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tag assignment %d/%s: %v", newTagID, a.MediaID, err))
		}
	}

	for _, m := range doc.Data.TrackerMappings {
		if err := im.st.UpsertPluginIDMapping(ctx, m); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("tracker mapping %s/%s: %v", m.MALID, m.SourcePluginID, err))
		}
	}

	return result, nil
}
