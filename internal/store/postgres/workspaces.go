package postgres

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

const workspaceColumns = `id, slug, name, settings, created_at, updated_at`

func scanWorkspace(row pgx.Row) (*domain.Workspace, error) {
	var (
		ws       domain.Workspace
		settings []byte
	)
	if err := row.Scan(&ws.ID, &ws.Slug, &ws.Name, &settings, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &ws.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	ws.Settings.Normalize()
	return &ws, nil
}

// GetWorkspace returns the workspace with the given slug.
func (s *Store) GetWorkspace(ctx context.Context, slug string) (*domain.Workspace, error) {
	ws, err := scanWorkspace(s.pool.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE slug = $1`, slug))
	if err != nil {
		return nil, mapError(err)
	}
	return ws, nil
}

// CreateWorkspace inserts a workspace.
func (s *Store) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	stamp(&ws.CreatedAt, &ws.UpdatedAt)
	settings, err := json.Marshal(ws.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO workspaces (id, slug, name, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ws.ID, ws.Slug, ws.Name, string(settings), ws.CreatedAt, ws.UpdatedAt)
	return mapError(err)
}

// UpdateWorkspace replaces a workspace's name and settings.
func (s *Store) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	stamp(&ws.CreatedAt, &ws.UpdatedAt)
	settings, err := json.Marshal(ws.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE workspaces SET name = $1, settings = $2, updated_at = $3 WHERE id = $4`,
		ws.Name, string(settings), ws.UpdatedAt, ws.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound.WithMessage("workspace " + ws.ID + " not found")
	}
	return nil
}
