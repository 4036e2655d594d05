package postgres

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

const collectionColumns = `id, workspace_id, name, object_type, emoji, view_type, attributes, created_by, is_favorite, created_at, updated_at`

func scanCollection(row pgx.Row) (*domain.Collection, error) {
	var (
		c          domain.Collection
		objectType string
		viewType   string
		attributes []byte
	)
	err := row.Scan(
		&c.ID, &c.WorkspaceID, &c.Name, &objectType, &c.Emoji, &viewType,
		&attributes, &c.CreatedBy, &c.IsFavorite, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ObjectType = domain.ObjectType(objectType)
	c.ViewType = domain.ViewType(viewType)
	if err := json.Unmarshal(attributes, &c.Columns); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	return &c, nil
}

func encodeColumns(cols []domain.Column) (string, error) {
	if cols == nil {
		cols = []domain.Column{}
	}
	b, err := json.Marshal(cols)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	return string(b), nil
}

// ListCollections returns every collection of a workspace, oldest first.
func (s *Store) ListCollections(ctx context.Context, workspaceID string) ([]*domain.Collection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE workspace_id = $1 ORDER BY created_at, id`, workspaceID)
	if err != nil {
		return nil, mapError(err)
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
	return out, mapError(rows.Err())
}

// GetCollection retrieves a collection by ID.
func (s *Store) GetCollection(ctx context.Context, id string) (*domain.Collection, error) {
	c, err := scanCollection(s.pool.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

// CreateCollection inserts a collection.
func (s *Store) CreateCollection(ctx context.Context, c *domain.Collection) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	attributes, err := encodeColumns(c.Columns)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO collections (
			id, workspace_id, name, object_type, emoji, view_type, attributes, created_by, is_favorite, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.WorkspaceID, c.Name, string(c.ObjectType), c.Emoji, string(c.ViewType),
		attributes, c.CreatedBy, c.IsFavorite, c.CreatedAt, c.UpdatedAt)
	return mapError(err)
}

// UpdateCollection rewrites the mutable fields of a collection.
func (s *Store) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	attributes, err := encodeColumns(c.Columns)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE collections SET
			name = $1, emoji = $2, view_type = $3, attributes = $4, is_favorite = $5, updated_at = $6
		WHERE id = $7`,
		c.Name, c.Emoji, string(c.ViewType), attributes, c.IsFavorite, c.UpdatedAt, c.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound.WithMessage("collection " + c.ID + " not found")
	}
	return nil
}

// DeleteCollection removes a collection; its memberships cascade.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	return mapError(err)
}
