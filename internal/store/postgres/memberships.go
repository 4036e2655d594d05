package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// ListMemberships returns every membership whose collection belongs to the workspace.
func (s *Store) ListMemberships(ctx context.Context, workspaceID string) ([]domain.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ce.collection_id, ce.entity_id, ce.added_at
		FROM collection_entities ce
		JOIN collections c ON c.id = ce.collection_id
		WHERE c.workspace_id = $1
		ORDER BY ce.added_at, ce.entity_id`, workspaceID)
	if err != nil {
		return nil, mapError(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Membership, error) {
		var m domain.Membership
		err := row.Scan(&m.CollectionID, &m.EntityID, &m.AddedAt)
		return m, err
	})
	return out, mapError(err)
}

// ListMembershipEntityIDs returns the ids of entities linked to a collection.
func (s *Store) ListMembershipEntityIDs(ctx context.Context, collectionID string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT entity_id FROM collection_entities WHERE collection_id = $1 ORDER BY added_at, entity_id`, collectionID)
}

// ListMembershipCollectionIDs returns the ids of collections an entity belongs to.
func (s *Store) ListMembershipCollectionIDs(ctx context.Context, entityID string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT collection_id FROM collection_entities WHERE entity_id = $1 ORDER BY added_at, collection_id`, entityID)
}

// InsertMembership links an entity to a collection; existing links are kept.
func (s *Store) InsertMembership(ctx context.Context, m domain.Membership) error {
	if m.AddedAt.IsZero() {
		m.AddedAt = now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collection_entities (collection_id, entity_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`,
		m.CollectionID, m.EntityID, m.AddedAt)
	return mapError(err)
}

// DeleteMembership unlinks an entity from a collection.
func (s *Store) DeleteMembership(ctx context.Context, collectionID, entityID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM collection_entities WHERE collection_id = $1 AND entity_id = $2`, collectionID, entityID)
	return mapError(err)
}

// ReplaceMembership sets the exact entity list of a collection in one
// transaction. Links are restamped so added_at follows the order of entityIDs.
func (s *Store) ReplaceMembership(ctx context.Context, collectionID string, entityIDs []string) error {
	if entityIDs == nil {
		entityIDs = []string{}
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM collections WHERE id = $1)`, collectionID).Scan(&exists)
		if err != nil {
			return mapError(err)
		}
		if !exists {
			return store.ErrNotFound.WithMessage("collection " + collectionID + " not found")
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM collection_entities WHERE collection_id = $1`, collectionID); err != nil {
			return mapError(fmt.Errorf("clear memberships: %w", err))
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO collection_entities (collection_id, entity_id, added_at)
			SELECT $1, t.id, $3::timestamptz + t.ord * interval '1 microsecond'
			FROM unnest($2::text[]) WITH ORDINALITY AS t(id, ord)
			ON CONFLICT DO NOTHING`,
			collectionID, entityIDs, now()); err != nil {
			return mapError(fmt.Errorf("insert memberships: %w", err))
		}
		return nil
	})
}

// CountMembership returns how many entities are linked to a collection.
func (s *Store) CountMembership(ctx context.Context, collectionID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM collection_entities WHERE collection_id = $1`, collectionID).Scan(&n)
	return n, mapError(err)
}
