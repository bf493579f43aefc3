package library

import (
	"context"

	"github.com/otakuhaven/otakuback/internal/store"
)

// Tags is a thin CRUD wrapper over the store's tag tables, grouped here
// rather than called directly so callers get one cohesive library API.
type Tags struct {
	st *store.Store
}

// NewTags builds a Tags service backed by st.
func NewTags(st *store.Store) *Tags {
	return &Tags{st: st}
}

func (t *Tags) Create(ctx context.Context, name string) (int64, error) {
	return t.st.CreateTag(ctx, name)
}

func (t *Tags) Rename(ctx context.Context, id int64, name string) error {
	return t.st.RenameTag(ctx, id, name)
}

func (t *Tags) Delete(ctx context.Context, id int64) error {
	return t.st.DeleteTag(ctx, id)
}

func (t *Tags) List(ctx context.Context) ([]store.Tag, error) {
	return t.st.ListTags(ctx)
}

func (t *Tags) Assign(ctx context.Context, tagID int64, mediaID string) error {
	return t.st.AssignTag(ctx, tagID, mediaID)
}

func (t *Tags) Unassign(ctx context.Context, tagID int64, mediaID string) error {
	return t.st.UnassignTag(ctx, tagID, mediaID)
}

func (t *Tags) ForMedia(ctx context.Context, mediaID string) ([]store.Tag, error) {
	return t.st.TagsForMedia(ctx, mediaID)
}
