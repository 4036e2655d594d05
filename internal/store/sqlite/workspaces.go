package sqlite

import (
	"context"
	"encoding/json/v2"
	"fmt"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

const workspaceColumns = `id, slug, name, settings, created_at, updated_at`

func scanWorkspace(scanner interface{ Scan(dest ...any) error }) (*domain.Workspace, error) {
	var (
		ws        domain.Workspace
		settings  string
		createdAt string
		updatedAt string
	)
	if err := scanner.Scan(&ws.ID, &ws.Slug, &ws.Name, &settings, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if ws.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if ws.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(settings), &ws.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	ws.Settings.Normalize()
	return &ws, nil
}

// GetWorkspace returns the workspace with the given slug.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) GetWorkspace(ctx context.Context, slug string) (*domain.Workspace, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE slug = ?`, slug)
	ws, err := scanWorkspace(row)
	if err != nil {
		return nil, notFound(err, "workspace", slug)
	}
	return ws, nil
}

// CreateWorkspace inserts a workspace.
// Returns store.ErrAlreadyExists on a duplicate id or slug.
func (s *Store) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	stamp(&ws.CreatedAt, &ws.UpdatedAt)
	settings, err := json.Marshal(ws.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, slug, name, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.Slug, ws.Name, string(settings),
		formatTime(ws.CreatedAt), formatTime(ws.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessage("workspace " + ws.Slug + " already exists")
	}
	return mapError(err)
}

// UpdateWorkspace replaces a workspace's name and settings.
// Returns store.ErrNotFound if it does not exist.
func (s *Store) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	stamp(&ws.CreatedAt, &ws.UpdatedAt)
	settings, err := json.Marshal(ws.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET name = ?, settings = ?, updated_at = ?
		WHERE id = ?`,
		ws.Name, string(settings), formatTime(ws.UpdatedAt), ws.ID,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("workspace " + ws.ID + " not found")
	}
	return nil
}
