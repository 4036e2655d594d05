package kv

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// GetWorkspace resolves the slug index and returns the workspace.
func (s *Store) GetWorkspace(_ context.Context, slug string) (*domain.Workspace, error) {
	var ws domain.Workspace
	err := s.db.View(func(txn *badger.Txn) error {
		idxKey := buildIndexKey(workspacePrefix, "slug", slug)
		defer releaseKey(idxKey)

		item, err := txn.Get(idxKey)
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		key := buildKey(workspacePrefix, string(id))
		defer releaseKey(key)
		return getJSON(txn, key, &ws)
	})
	if err != nil {
		return nil, mapError(err, "workspace", slug)
	}
	ws.Settings.Normalize()
	return &ws, nil
}

// CreateWorkspace stores a workspace and its slug index.
func (s *Store) CreateWorkspace(_ context.Context, ws *domain.Workspace) error {
	stamp(&ws.CreatedAt, &ws.UpdatedAt)
	err := s.db.Update(func(txn *badger.Txn) error {
		taken, err := exists(txn, slugIndexKey(ws.Slug))
		if err != nil {
			return err
		}
		if !taken {
			taken, err = exists(txn, newKey(workspacePrefix, ws.ID))
			if err != nil {
				return err
			}
		}
		if taken {
			return store.ErrAlreadyExists.WithMessage("workspace " + ws.Slug + " already exists")
		}

		if err := setJSON(txn, newKey(workspacePrefix, ws.ID), ws); err != nil {
			return err
		}
		return txn.Set(slugIndexKey(ws.Slug), []byte(ws.ID))
	})
	if err != nil {
		return fmt.Errorf("create workspace: %w", mapError(err, "workspace", ws.Slug))
	}
	s.logger.Info("workspace created", "id", ws.ID, "slug", ws.Slug)
	return nil
}

// UpdateWorkspace replaces a workspace's name and settings.
func (s *Store) UpdateWorkspace(_ context.Context, ws *domain.Workspace) error {
	stamp(&ws.CreatedAt, &ws.UpdatedAt)
	err := s.db.Update(func(txn *badger.Txn) error {
		key := newKey(workspacePrefix, ws.ID)
		var old domain.Workspace
		if err := getJSON(txn, key, &old); err != nil {
			return err
		}
		updated := *ws
		updated.Slug = old.Slug
		updated.CreatedAt = old.CreatedAt
		return setJSON(txn, key, &updated)
	})
	if err != nil {
		return fmt.Errorf("update workspace: %w", mapError(err, "workspace", ws.ID))
	}
	return nil
}
