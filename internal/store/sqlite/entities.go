package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

const entityColumns = `id, workspace_id, entity_type, data, created_at, updated_at`

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*domain.Entity, error) {
	var (
		e          domain.Entity
		entityType string
		data       string
		createdAt  string
		updatedAt  string
	)
	if err := scanner.Scan(&e.ID, &e.WorkspaceID, &entityType, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if e.Payload, err = domain.DecodePayload(domain.ObjectType(entityType), []byte(data)); err != nil {
		return nil, err
	}
	return &e, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertEntity(ctx context.Context, db execer, e *domain.Entity) error {
	if e.Payload == nil {
		return store.ErrInvalidInput.WithMessage("entity payload is required")
	}
	stamp(&e.CreatedAt, &e.UpdatedAt)
	data, err := domain.EncodePayload(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO entities (id, workspace_id, entity_type, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		e.ID, e.WorkspaceID, string(e.Type()), string(data),
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	return err
}

// ListEntitiesByType returns every entity of one type in a workspace, oldest first.
func (s *Store) ListEntitiesByType(ctx context.Context, t domain.ObjectType, workspaceID string) ([]*domain.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE workspace_id = ? AND entity_type = ? ORDER BY created_at, id`,
		workspaceID, string(t))
	if err != nil {
		return nil, err
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
	return out, rows.Err()
}

// GetEntity retrieves an entity by ID.
// Returns store.ErrNotFound if the entity does not exist.
func (s *Store) GetEntity(ctx context.Context, id string) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, notFound(err, "entity", id)
	}
	return e, nil
}

// UpsertEntity inserts an entity or replaces its data.
// The type and workspace of an existing row never change.
func (s *Store) UpsertEntity(ctx context.Context, e *domain.Entity) error {
	return mapError(upsertEntity(ctx, s.db, e))
}

// BulkUpsertEntities upserts all entities in one transaction.
func (s *Store) BulkUpsertEntities(ctx context.Context, entities []*domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entities {
			if err := upsertEntity(ctx, tx, e); err != nil {
				return fmt.Errorf("upsert entity %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// DeleteEntity removes an entity; its memberships cascade.
// Deleting a missing entity is not an error.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	return mapError(err)
}

// CreateEntityWithMembership inserts an entity and links it to a collection
// in one transaction. Nothing is written if the collection does not exist.
func (s *Store) CreateEntityWithMembership(ctx context.Context, e *domain.Entity, collectionID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertEntity(ctx, tx, e); err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO collection_entities (collection_id, entity_id, added_at)
			VALUES (?, ?, ?)`,
			collectionID, e.ID, formatTime(time.Now()),
		)
		if isForeignKeyViolation(err) {
			return store.ErrNotFound.WithMessage("collection " + collectionID + " not found")
		}
		if err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}
		return nil
	})
}
