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

// putEntity upserts e inside txn. An existing row keeps its created_at,
// type and workspace.
func putEntity(txn *badger.Txn, e *domain.Entity) error {
	if e.Payload == nil {
		return store.ErrInvalidInput.WithMessage("entity payload is required")
	}
	stamp(&e.CreatedAt, &e.UpdatedAt)

	key := newKey(entityPrefix, e.ID)
	var old domain.Entity
	err := getJSON(txn, key, &old)
	switch {
	case err == nil:
		if old.Type() != e.Type() {
			return store.ErrInvalidInput.WithMessage("entity " + e.ID + " cannot change type")
		}
		e.CreatedAt = old.CreatedAt
		e.WorkspaceID = old.WorkspaceID
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	if err := setJSON(txn, key, e); err != nil {
		return err
	}
	return txn.Set(entityTypeKey(e.WorkspaceID, string(e.Type()), e.ID), []byte{})
}

// ListEntitiesByType returns every entity of one type in a workspace, oldest first.
func (s *Store) ListEntitiesByType(_ context.Context, t domain.ObjectType, workspaceID string) ([]*domain.Entity, error) {
	var out []*domain.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := buildIndexKey(entityPrefix, "type", workspaceID+":"+string(t)+":")
		defer releaseKey(prefix)

		for _, id := range suffixes(txn, prefix) {
			var e domain.Entity
			key := buildKey(entityPrefix, id)
			err := getJSON(txn, key, &e)
			releaseKey(key)
			if err != nil {
				return fmt.Errorf("load entity %s: %w", id, err)
			}
			out = append(out, &e)
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "entity", "")
	}
	slices.SortStableFunc(out, func(a, b *domain.Entity) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(_ context.Context, id string) (*domain.Entity, error) {
	var e domain.Entity
	err := s.db.View(func(txn *badger.Txn) error {
		key := buildKey(entityPrefix, id)
		defer releaseKey(key)
		return getJSON(txn, key, &e)
	})
	if err != nil {
		return nil, mapError(err, "entity", id)
	}
	return &e, nil
}

// UpsertEntity inserts an entity or replaces its data.
func (s *Store) UpsertEntity(_ context.Context, e *domain.Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putEntity(txn, e)
	})
}

// BulkUpsertEntities upserts all entities in one transaction.
func (s *Store) BulkUpsertEntities(_ context.Context, entities []*domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entities {
			if err := putEntity(txn, e); err != nil {
				return fmt.Errorf("upsert entity %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Debug("entities upserted", "count", len(entities))
	return nil
}

// DeleteEntity removes an entity, its type index and its memberships.
func (s *Store) DeleteEntity(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := newKey(entityPrefix, id)
		var e domain.Entity
		if err := getJSON(txn, key, &e); err != nil {
			return err
		}

		for _, collectionID := range suffixes(txn, newKey(memberByEntity, id, "")) {
			if err := deleteIgnoreMissing(txn, memberEntityKey(id, collectionID)); err != nil {
				return err
			}
			if err := deleteIgnoreMissing(txn, memberCollKey(collectionID, id)); err != nil {
				return err
			}
		}
		if err := deleteIgnoreMissing(txn, entityTypeKey(e.WorkspaceID, string(e.Type()), id)); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

// CreateEntityWithMembership inserts an entity and links it to a collection
// in one transaction. Nothing is written if the collection does not exist.
func (s *Store) CreateEntityWithMembership(_ context.Context, e *domain.Entity, collectionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, newKey(collectionPrefix, collectionID))
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound.WithMessage("collection " + collectionID + " not found")
		}
		if err := putEntity(txn, e); err != nil {
			return err
		}
		return linkMembership(txn, collectionID, e.ID, time.Now())
	})
}
