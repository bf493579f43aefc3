package library

import (
	"context"

	"github.com/otakuhaven/otakuback/internal/store"
)

// AddEntry explicitly adds or updates a library row (distinct from the
// implicit creation path progress writes use).
func (l *Library) AddEntry(ctx context.Context, e store.LibraryEntry) error {
	return l.st.UpsertLibraryEntry(ctx, e)
}

// Get returns the library entry for mediaID.
func (l *Library) Get(ctx context.Context, mediaID string) (*store.LibraryEntry, error) {
	return l.st.GetLibraryEntry(ctx, mediaID)
}

// List returns every library entry, optionally filtered by status.
func (l *Library) List(ctx context.Context, statuses []store.LibraryStatus) ([]store.LibraryEntry, error) {
	return l.st.ListLibrary(ctx, statuses)
}

// Remove deletes a library entry without deleting the underlying media row.
func (l *Library) Remove(ctx context.Context, mediaID string) error {
	return l.st.DeleteLibraryEntry(ctx, mediaID)
}

// SetFavorite flips the favorite flag, preserving everything else.
func (l *Library) SetFavorite(ctx context.Context, mediaID string, favorite bool) error {
	e, err := l.st.GetLibraryEntry(ctx, mediaID)
	if err != nil {
		return err
	}
	e.Favorite = favorite
	return l.st.UpsertLibraryEntry(ctx, *e)
}
