package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

func stamp(created, updated *time.Time) {
	if created.IsZero() {
		*created = time.Now().UTC()
	}
	if updated.IsZero() {
		*updated = *created
	}
}

// ListCollections returns every collection of a workspace, oldest first.
func (s *Store) ListCollections(_ context.Context, workspaceID string) ([]*domain.Collection, error) {
	var out []*domain.Collection
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := buildIndexKey(collectionPrefix, "ws", workspaceID+":")
		defer releaseKey(prefix)

		for _, id := range suffixes(txn, prefix) {
			var c domain.Collection
			key := buildKey(collectionPrefix, id)
			err := getJSON(txn, key, &c)
			releaseKey(key)
			if err != nil {
				return fmt.Errorf("load collection %s: %w", id, err)
			}
			c.IsDefault = false
			out = append(out, &c)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "collection", "")
	}
	slices.SortStableFunc(out, func(a, b *domain.Collection) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// GetCollection retrieves a collection by ID.
func (s *Store) GetCollection(_ context.Context, id string) (*domain.Collection, error) {
	var c domain.Collection
	err := s.db.View(func(txn *badger.Txn) error {
		key := buildKey(collectionPrefix, id)
		defer releaseKey(key)
		return getJSON(txn, key, &c)
	})
	if err != nil {
		return nil, mapError(err, "collection", id)
	}
	c.IsDefault = false
	return &c, nil
}

// CreateCollection stores a collection and its workspace index.
func (s *Store) CreateCollection(_ context.Context, c *domain.Collection) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	err := s.db.Update(func(txn *badger.Txn) error {
		key := newKey(collectionPrefix, c.ID)
		taken, err := exists(txn, key)
		if err != nil {
			return err
		}
		if taken {
			return store.ErrAlreadyExists.WithMessage("collection " + c.ID + " already exists")
		}

		stored := c.Clone()
		stored.IsDefault = false
		if err := setJSON(txn, key, stored); err != nil {
			return err
		}
		return txn.Set(collectionWorkspaceKey(c.WorkspaceID, c.ID), []byte{})
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// UpdateCollection rewrites the mutable fields of a collection.
func (s *Store) UpdateCollection(_ context.Context, c *domain.Collection) error {
	stamp(&c.CreatedAt, &c.UpdatedAt)
	err := s.db.Update(func(txn *badger.Txn) error {
		key := newKey(collectionPrefix, c.ID)
		var old domain.Collection
		if err := getJSON(txn, key, &old); err != nil {
			return err
		}
		old.Name = c.Name
		old.Emoji = c.Emoji
		old.ViewType = c.ViewType
		old.Columns = domain.CloneColumns(c.Columns)
		old.IsFavorite = c.IsFavorite
		old.UpdatedAt = c.UpdatedAt
		return setJSON(txn, key, &old)
	})
	if err != nil {
		return fmt.Errorf("update collection: %w", mapError(err, "collection", c.ID))
	}
	return nil
}

// DeleteCollection removes a collection, its index and its memberships.
func (s *Store) DeleteCollection(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := newKey(collectionPrefix, id)
		var c domain.Collection
		if err := getJSON(txn, key, &c); err != nil {
			return err
		}

		for _, entityID := range suffixes(txn, newKey(memberByColl, id, "")) {
			if err := deleteIgnoreMissing(txn, memberCollKey(id, entityID)); err != nil {
				return err
			}
			if err := deleteIgnoreMissing(txn, memberEntityKey(entityID, id)); err != nil {
				return err
			}
		}
		if err := deleteIgnoreMissing(txn, collectionWorkspaceKey(c.WorkspaceID, id)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete collection: %w", mapError(err, "collection", id))
	}
	return nil
}
