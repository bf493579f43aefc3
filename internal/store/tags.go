package store

import (
	"context"
	"strconv"

	"github.com/otakuhaven/otakuback/internal/apierr"
)

// Tag is a user-defined label (expansion: spec.md §2 "Glue" line item).
type Tag struct {
	ID   int64
	Name string
}

// CreateTag inserts a new tag and returns its id.
func (s *Store) CreateTag(ctx context.Context, name string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RenameTag updates a tag's name.
func (s *Store) RenameTag(ctx context.Context, id int64, name string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tags SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &apierr.NotFound{Kind: "tag", ID: strconv.FormatInt(id, 10)}
	}
	return nil
}

// DeleteTag removes a tag and, via ON DELETE CASCADE, its assignments.
func (s *Store) DeleteTag(ctx context.Context, id int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	return err
}

// ListTags returns every tag.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// AssignTag links a tag to a media item. Assigning twice is a no-op.
func (s *Store) AssignTag(ctx context.Context, tagID int64, mediaID string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO tag_assignments (tag_id, media_id) VALUES (?, ?)`, tagID, mediaID)
	return err
}

// UnassignTag removes a tag/media link.
func (s *Store) UnassignTag(ctx context.Context, tagID int64, mediaID string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM tag_assignments WHERE tag_id = ? AND media_id = ?`, tagID, mediaID)
	return err
}

// TagAssignment is one (tag_id, media_id) pair, used by export/import.
type TagAssignment struct {
	TagID   int64
	MediaID string
}

// ListTagAssignments returns every assignment row.
func (s *Store) ListTagAssignments(ctx context.Context) ([]TagAssignment, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT tag_id, media_id FROM tag_assignments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TagAssignment
	for rows.Next() {
		var a TagAssignment
		if err := rows.Scan(&a.TagID, &a.MediaID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// TagsForMedia returns the tags assigned to one media item.
func (s *Store) TagsForMedia(ctx context.Context, mediaID string) ([]Tag, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN tag_assignments a ON a.tag_id = t.id
		WHERE a.media_id = ? ORDER BY t.name`, mediaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
