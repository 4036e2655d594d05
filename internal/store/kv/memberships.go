package kv

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// linkMembership writes both membership keys unless the link already exists.
func linkMembership(txn *badger.Txn, collectionID, entityID string, addedAt time.Time) error {
	key := memberCollKey(collectionID, entityID)
	ok, err := exists(txn, key)
	if err != nil || ok {
		return err
	}
	if err := txn.Set(key, []byte(addedAt.UTC().Format(time.RFC3339Nano))); err != nil {
		return err
	}
	return txn.Set(memberEntityKey(entityID, collectionID), []byte{})
}

func unlinkMembership(txn *badger.Txn, collectionID, entityID string) error {
	if err := deleteIgnoreMissing(txn, memberCollKey(collectionID, entityID)); err != nil {
		return err
	}
	return deleteIgnoreMissing(txn, memberEntityKey(entityID, collectionID))
}

// readAddedAt returns the added_at stored under a mem:c key.
func readAddedAt(item *badger.Item) time.Time {
	var t time.Time
	_ = item.Value(func(val []byte) error {
		parsed, err := time.Parse(time.RFC3339Nano, string(val))
		if err == nil {
			t = parsed
		}
		return nil
	})
	return t
}

// ListMemberships returns every membership of the workspace's collections.
func (s *Store) ListMemberships(ctx context.Context, workspaceID string) ([]domain.Membership, error) {
	collections, err := s.ListCollections(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	var out []domain.Membership
	err = s.db.View(func(txn *badger.Txn) error {
		for _, c := range collections {
			prefix := newKey(memberByColl, c.ID, "")
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				out = append(out, domain.Membership{
					CollectionID: c.ID,
					EntityID:     string(item.Key()[len(prefix):]),
					AddedAt:      readAddedAt(item),
				})
			}
			it.Close()
		}
		return nil
	})
	return out, err
}

// ListMembershipEntityIDs returns the ids of entities linked to a collection.
func (s *Store) ListMembershipEntityIDs(_ context.Context, collectionID string) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		out = suffixes(txn, newKey(memberByColl, collectionID, ""))
		return nil
	})
	return out, err
}

// ListMembershipCollectionIDs returns the ids of collections an entity belongs to.
func (s *Store) ListMembershipCollectionIDs(_ context.Context, entityID string) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		out = suffixes(txn, newKey(memberByEntity, entityID, ""))
		return nil
	})
	return out, err
}

// InsertMembership links an entity to a collection; existing links are kept.
func (s *Store) InsertMembership(_ context.Context, m domain.Membership) error {
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now()
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := requireBoth(txn, m.CollectionID, m.EntityID); err != nil {
			return err
		}
		return linkMembership(txn, m.CollectionID, m.EntityID, m.AddedAt)
	})
}

// DeleteMembership unlinks an entity from a collection.
func (s *Store) DeleteMembership(_ context.Context, collectionID, entityID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return unlinkMembership(txn, collectionID, entityID)
	})
}

// ReplaceMembership sets the exact entity list of a collection in one
// transaction, restamping added_at in list order.
func (s *Store) ReplaceMembership(_ context.Context, collectionID string, entityIDs []string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, newKey(collectionPrefix, collectionID))
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound.WithMessage("collection " + collectionID + " not found")
		}

		for _, id := range suffixes(txn, newKey(memberByColl, collectionID, "")) {
			if err := unlinkMembership(txn, collectionID, id); err != nil {
				return err
			}
		}

		now := time.Now()
		for i, id := range entityIDs {
			ok, err := exists(txn, newKey(entityPrefix, id))
			if err != nil {
				return err
			}
			if !ok {
				return store.ErrNotFound.WithMessage("entity " + id + " not found")
			}
			if err := linkMembership(txn, collectionID, id, now.Add(time.Duration(i)*time.Microsecond)); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountMembership returns how many entities are linked to a collection.
func (s *Store) CountMembership(ctx context.Context, collectionID string) (int, error) {
	ids, err := s.ListMembershipEntityIDs(ctx, collectionID)
	return len(ids), err
}

func requireBoth(txn *badger.Txn, collectionID, entityID string) error {
	for _, k := range []struct{ prefix, id, what string }{
		{collectionPrefix, collectionID, "collection"},
		{entityPrefix, entityID, "entity"},
	} {
		ok, err := exists(txn, newKey(k.prefix, k.id))
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound.WithMessage(k.what + " " + k.id + " not found")
		}
	}
	return nil
}
