package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

const entityColumns = `id, workspace_id, entity_type, data, created_at, updated_at`

const upsertEntitySQL = `
	INSERT INTO entities (id, workspace_id, entity_type, data, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`

func scanEntity(row pgx.Row) (*domain.Entity, error) {
	var (
		e          domain.Entity
		entityType string
		data       []byte
	)
	if err := row.Scan(&e.ID, &e.WorkspaceID, &entityType, &data, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := domain.DecodePayload(domain.ObjectType(entityType), data)
	if err != nil {
		return nil, err
	}
	e.Payload = p
	return &e, nil
}

// entityArgs validates e and returns the arguments for upsertEntitySQL.
func entityArgs(e *domain.Entity) ([]any, error) {
	if e.Payload == nil {
		return nil, store.ErrInvalidInput.WithMessage("entity payload is required")
	}
	stamp(&e.CreatedAt, &e.UpdatedAt)
	data, err := domain.EncodePayload(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return []any{e.ID, e.WorkspaceID, string(e.Type()), string(data), e.CreatedAt, e.UpdatedAt}, nil
}

// ListEntitiesByType returns every entity of one type in a workspace, oldest first.
func (s *Store) ListEntitiesByType(ctx context.Context, t domain.ObjectType, workspaceID string) ([]*domain.Entity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE workspace_id = $1 AND entity_type = $2 ORDER BY created_at, id`,
		workspaceID, string(t))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []*domain.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	e, err := scanEntity(s.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

// UpsertEntity inserts an entity or replaces its data.
func (s *Store) UpsertEntity(ctx context.Context, e *domain.Entity) error {
	args, err := entityArgs(e)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, upsertEntitySQL, args...)
	return mapError(err)
}

// BulkUpsertEntities upserts all entities in one batched transaction.
func (s *Store) BulkUpsertEntities(ctx context.Context, entities []*domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entities {
		args, err := entityArgs(e)
		if err != nil {
			return fmt.Errorf("upsert entity %s: %w", e.ID, err)
		}
		batch.Queue(upsertEntitySQL, args...)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		return mapError(tx.SendBatch(ctx, batch).Close())
	})
}

// DeleteEntity removes an entity; its memberships cascade.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	return mapError(err)
}

// CreateEntityWithMembership inserts an entity and links it to a collection
// in one transaction.
func (s *Store) CreateEntityWithMembership(ctx context.Context, e *domain.Entity, collectionID string) error {
	args, err := entityArgs(e)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertEntitySQL, args...); err != nil {
			return mapError(fmt.Errorf("insert entity: %w", err))
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO collection_entities (collection_id, entity_id, added_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			collectionID, e.ID, now())
		if err != nil {
			if store.IsNotFound(mapError(err)) {
				return store.ErrNotFound.WithMessage("collection " + collectionID + " not found")
			}
			return mapError(fmt.Errorf("insert membership: %w", err))
		}
		return nil
	})
}
