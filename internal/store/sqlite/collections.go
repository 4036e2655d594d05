package sqlite

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// collectionColumns is the ordered list of columns selected in collection queries.
// Must match the scan order in scanCollection.
const collectionColumns = `id, workspace_id, name, object_type, emoji, view_type, attributes, created_by, is_favorite, created_at, updated_at`

// scanCollection scans a sql.Row (or sql.Rows via its Scan method) into a domain.Collection.
// IsDefault is left false; it is derived from workspace settings above the store.
func scanCollection(scanner interface{ Scan(dest ...any) error }) (*domain.Collection, error) {
	var (
		c          domain.Collection
		attributes string
		isFavorite int
		createdAt  string
		updatedAt  string
	)

	err := scanner.Scan(
		&c.ID,
		&c.WorkspaceID,
		&c.Name,
		&c.ObjectType,
		&c.Emoji,
		&c.ViewType,
		&attributes,
		&c.CreatedBy,
		&isFavorite,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attributes), &c.Columns); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	c.IsFavorite = isFavorite != 0

	return &c, nil
}

// ListCollections returns every collection of a workspace, oldest first.
func (s *Store) ListCollections(ctx context.Context, workspaceID string) ([]*domain.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE workspace_id = ? ORDER BY created_at, id`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCollection retrieves a collection by ID.
// Returns store.ErrNotFound if the collection does not exist.
func (s *Store) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if err != nil {
		return nil, notFound(err, "collection", id)
	}
	return c, nil
}

// CreateCollection inserts a collection.
// Returns store.ErrAlreadyExists on duplicate ID.
func (s *Store) CreateCollection(ctx context.Context, c *domain.Collection) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	attributes, err := json.Marshal(columnsOrEmpty(c.Columns))
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (
			id, workspace_id, name, object_type, emoji, view_type, attributes, created_by, is_favorite, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.WorkspaceID,
		c.Name,
		c.ObjectType,
		c.Emoji,
		c.ViewType,
		string(attributes),
		c.CreatedBy,
		boolToInt(c.IsFavorite),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessage("collection " + c.ID + " already exists")
	}
	if isForeignKeyViolation(err) {
		return store.ErrNotFound.WithMessage("workspace " + c.WorkspaceID + " not found")
	}
	return mapError(err)
}

// UpdateCollection rewrites the mutable fields of a collection.
// Returns store.ErrNotFound if the collection does not exist.
func (s *Store) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	attributes, err := json.Marshal(columnsOrEmpty(c.Columns))
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE collections SET
			name = ?,
			emoji = ?,
			view_type = ?,
			attributes = ?,
			is_favorite = ?,
			updated_at = ?
		WHERE id = ?`,
		c.Name,
		c.Emoji,
		c.ViewType,
		string(attributes),
		boolToInt(c.IsFavorite),
		formatTime(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return mapError(err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("collection " + c.ID + " not found")
	}
	return nil
}

// DeleteCollection removes a collection; its memberships cascade.
// Deleting a missing collection is not an error.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	return mapError(err)
}

func columnsOrEmpty(cols []domain.Column) []domain.Column {
	if cols == nil {
		return []domain.Column{}
	}
	return cols
}
