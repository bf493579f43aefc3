// Package backup implements spec.md §6's JSON export/import: a periodic
// snapshot of every user-owned table, written atomically with rotation by
// count, and a three-strategy importer.
//
// Grounded on the teacher's internal/dvbdb.Save (temp-file + rename for
// atomic JSON persistence), generalized from a static lookup table to a
// full database snapshot.
package backup

import (
	"context"

	"github.com/otakuhaven/otakuback/internal/store"
)

const formatVersion = "1.0.0"

// Document is the full backup file shape (spec.md §6).
type Document struct {
	FormatVersion string   `json:"format_version"`
	AppVersion    string   `json:"app_version"`
	ExportedAt    int64    `json:"exported_at"`
	Data          Data     `json:"data"`
	Metadata      Metadata `json:"metadata"`
}

// Data holds every exportable table.
type Data struct {
	Library         []store.LibraryEntry       `json:"library"`
	WatchHistory    []store.WatchHistory       `json:"watch_history"`
	ReadingHistory  []store.ReadingHistory     `json:"reading_history"`
	Tags            []store.Tag                `json:"tags"`
	TagAssignments  []store.TagAssignment      `json:"tag_assignments"`
	Settings        map[string]string          `json:"app_settings"`
	Media           []store.Media              `json:"media_cache"`
	TrackerMappings []store.PluginIDMapping    `json:"tracker_mappings"`
}

// Metadata carries export provenance, not restored on import.
type Metadata struct {
	LibraryCount        int `json:"library_count"`
	WatchHistoryCount   int `json:"watch_history_count"`
	ReadingHistoryCount int `json:"reading_history_count"`
	TagCount            int `json:"tag_count"`
	MediaCount          int `json:"media_cache_count"`
}

// Exporter builds Documents from the live store.
type Exporter struct {
	st         *store.Store
	appVersion string
}

// NewExporter builds an Exporter backed by st, stamping appVersion into
// every document it produces.
func NewExporter(st *store.Store, appVersion string) *Exporter {
	return &Exporter{st: st, appVersion: appVersion}
}

// Export reads every table and assembles one Document. exportedAt is
// passed in by the caller since workflow-style callers can't call
// time.Now(); production callers pass time.Now().UnixMilli().
func (e *Exporter) Export(ctx context.Context, exportedAt int64) (Document, error) {
	library, err := e.st.ListLibrary(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	watch, err := e.st.ListAllWatchHistory(ctx)
	if err != nil {
		return Document{}, err
	}
	reading, err := e.st.ListAllReadingHistory(ctx)
	if err != nil {
		return Document{}, err
	}
	tags, err := e.st.ListTags(ctx)
	if err != nil {
		return Document{}, err
	}
	assignments, err := e.st.ListTagAssignments(ctx)
	if err != nil {
		return Document{}, err
	}
	settings, err := e.st.AllSettings(ctx)
	if err != nil {
		return Document{}, err
	}
	media, err := e.st.ListMedia(ctx, "")
	if err != nil {
		return Document{}, err
	}
	mappings, err := e.st.ListAllPluginIDMappings(ctx)
	if err != nil {
		return Document{}, err
	}

	return Document{
		FormatVersion: formatVersion,
		AppVersion:    e.appVersion,
		ExportedAt:    exportedAt,
		Data: Data{
			Library:         library,
			WatchHistory:    watch,
			ReadingHistory:  reading,
			Tags:            tags,
			TagAssignments:  assignments,
			Settings:        settings,
			Media:           media,
			TrackerMappings: mappings,
		},
		Metadata: Metadata{
			LibraryCount:        len(library),
			WatchHistoryCount:   len(watch),
			ReadingHistoryCount: len(reading),
			TagCount:            len(tags),
			MediaCount:          len(media),
		},
	}, nil
}
