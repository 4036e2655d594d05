package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// ListMemberships returns every collection_entities row whose collection
// belongs to the workspace.
func (s *Store) ListMemberships(ctx context.Context, workspaceID string) ([]domain.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ce.collection_id, ce.entity_id, ce.added_at
		FROM collection_entities ce
		JOIN collections c ON c.id = ce.collection_id
		WHERE c.workspace_id = ?
		ORDER BY ce.added_at, ce.entity_id`,
		workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var (
			m       domain.Membership
			addedAt string
		)
		if err := rows.Scan(&m.CollectionID, &m.EntityID, &addedAt); err != nil {
			return nil, err
		}
		if m.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListMembershipEntityIDs returns the ids of entities linked to a collection.
func (s *Store) ListMembershipEntityIDs(ctx context.Context, collectionID string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT entity_id FROM collection_entities WHERE collection_id = ? ORDER BY added_at, entity_id`,
		collectionID)
}

// ListMembershipCollectionIDs returns the ids of collections an entity belongs to.
func (s *Store) ListMembershipCollectionIDs(ctx context.Context, entityID string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT collection_id FROM collection_entities WHERE entity_id = ? ORDER BY added_at, collection_id`,
		entityID)
}

// InsertMembership links an entity to a collection. Inserting an existing
// link is a no-op. Returns store.ErrNotFound if either side is missing.
func (s *Store) InsertMembership(ctx context.Context, m domain.Membership) error {
	if m.AddedAt.IsZero() {
		m.AddedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO collection_entities (collection_id, entity_id, added_at)
		VALUES (?, ?, ?)`,
		m.CollectionID, m.EntityID, formatTime(m.AddedAt),
	)
	if isForeignKeyViolation(err) {
		return store.ErrNotFound.WithMessage("collection or entity not found")
	}
	return mapError(err)
}

// DeleteMembership unlinks an entity from a collection. Removing a missing
// link is a no-op.
func (s *Store) DeleteMembership(ctx context.Context, collectionID, entityID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM collection_entities WHERE collection_id = ? AND entity_id = ?`,
		collectionID, entityID)
	return mapError(err)
}

// ReplaceMembership sets the exact entity list of a collection in one
// transaction. Links are restamped so added_at follows the order of entityIDs.
func (s *Store) ReplaceMembership(ctx context.Context, collectionID string, entityIDs []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return replaceMembership(ctx, tx, collectionID, entityIDs)
	})
}

func replaceMembership(ctx context.Context, tx *sql.Tx, collectionID string, entityIDs []string) error {
	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE id = ?`, collectionID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return store.ErrNotFound.WithMessage("collection " + collectionID + " not found")
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM collection_entities WHERE collection_id = ?`, collectionID); err != nil {
		return fmt.Errorf("clear memberships: %w", err)
	}

	now := time.Now()
	for i, id := range entityIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO collection_entities (collection_id, entity_id, added_at)
			VALUES (?, ?, ?)`,
			collectionID, id, formatTime(now.Add(time.Duration(i)*time.Microsecond)))
		if isForeignKeyViolation(err) {
			return store.ErrNotFound.WithMessage("entity " + id + " not found")
		}
		if err != nil {
			return fmt.Errorf("insert membership %s: %w", id, err)
		}
	}
	return nil
}

// CountMembership returns how many entities are linked to a collection.
func (s *Store) CountMembership(ctx context.Context, collectionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collection_entities WHERE collection_id = ?`, collectionID).Scan(&n)
	return n, err
}
