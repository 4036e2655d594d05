package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/id"
	"github.com/rebase-energy/workspace-server/internal/sse"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// MembershipCoordinator is the only writer of collection memberships. Every
// mutation persists first and touches the cache only after the store
// accepted it, all under the workspace write lock. Concurrent mutations of a
// workspace are applied one at a time, so the last one to run wins.
type MembershipCoordinator struct {
	gateway  store.Gateway
	cache    *cache.EntityCache
	registry *CollectionRegistry
	search   *SearchService
	emitter  store.EventEmitter
	logger   *slog.Logger
}

// NewMembershipCoordinator creates a new membership coordinator.
func NewMembershipCoordinator(
	gateway store.Gateway,
	entityCache *cache.EntityCache,
	registry *CollectionRegistry,
	search *SearchService,
	emitter store.EventEmitter,
	logger *slog.Logger,
) *MembershipCoordinator {
	return &MembershipCoordinator{
		gateway:  gateway,
		cache:    entityCache,
		registry: registry,
		search:   search,
		emitter:  emitter,
		logger:   logger,
	}
}

// EntitiesForCollection returns the collection's entities in membership
// order, filtered by query. A blank query returns every member.
func (m *MembershipCoordinator) EntitiesForCollection(ctx context.Context, workspaceID, collectionID, query string) ([]*domain.Entity, error) {
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return nil, err
	}
	return domain.FilterEntities(m.cache.Get(workspaceID, collectionID), query), nil
}

// EntitiesByType returns every entity of one type in the workspace, filtered by query.
func (m *MembershipCoordinator) EntitiesByType(ctx context.Context, workspaceID string, t domain.ObjectType, query string) ([]*domain.Entity, error) {
	if !t.Valid() {
		return nil, domainerrors.Validationf("unknown object type %q", t)
	}
	if err := m.cache.EnsureLoaded(ctx, cache.TypesScope(workspaceID)); err != nil {
		return nil, err
	}
	return domain.FilterEntities(m.cache.ByType(workspaceID, t), query), nil
}

// EntityCounts returns the number of entities in every collection of the
// workspace, including empty ones.
func (m *MembershipCoordinator) EntityCounts(ctx context.Context, workspaceID string) (map[string]int, error) {
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return nil, err
	}
	collections, err := m.registry.List(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	counts := m.cache.Counts(workspaceID)
	out := make(map[string]int, len(collections))
	for _, c := range collections {
		out[c.ID] = counts[c.ID]
	}
	return out, nil
}

// GetEntity returns one entity of the workspace.
func (m *MembershipCoordinator) GetEntity(ctx context.Context, workspaceID, entityID string) (*domain.Entity, error) {
	if !id.IsUUID(entityID) {
		return nil, domainerrors.NotFoundf("entity %s not found", entityID)
	}
	if err := m.cache.EnsureLoaded(ctx, cache.TypesScope(workspaceID)); err != nil {
		return nil, err
	}
	if e, ok := m.cache.Entity(workspaceID, entityID); ok {
		return e, nil
	}

	e, err := m.gateway.GetEntity(ctx, entityID)
	if err != nil {
		if store.IsNotFound(err) || store.IsUnavailable(err) {
			return nil, domainerrors.NotFoundf("entity %s not found", entityID)
		}
		return nil, storeError("get entity", err)
	}
	if e.WorkspaceID != workspaceID {
		return nil, domainerrors.NotFoundf("entity %s not found", entityID)
	}
	m.cache.PutEntity(workspaceID, e)
	return e, nil
}

// CollectionsForEntity returns the ids of the collections an entity belongs to.
func (m *MembershipCoordinator) CollectionsForEntity(ctx context.Context, workspaceID, entityID string) ([]string, error) {
	if _, err := m.GetEntity(ctx, workspaceID, entityID); err != nil {
		return nil, err
	}
	ids, err := m.gateway.ListMembershipCollectionIDs(ctx, entityID)
	if err != nil {
		m.logger.Warn("membership lookup failed, serving empty", "entity_id", entityID, "error", err)
		return []string{}, nil
	}
	return ids, nil
}

// preparePayload applies variant defaults and checks required fields.
func preparePayload(p domain.Payload) error {
	if p == nil {
		return domainerrors.Validation("entity data is required")
	}
	domain.NormalizePayload(p)
	if err := domain.ValidatePayload(p); err != nil {
		return domainerrors.Validation(err.Error())
	}
	return nil
}

func newEntity(workspaceID string, p domain.Payload) (*domain.Entity, error) {
	entityID, err := id.NewEntityID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate entity id")
	}
	now := time.Now().UTC()
	return &domain.Entity{
		ID:          entityID,
		WorkspaceID: workspaceID,
		Payload:     p,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// requireAccepts checks that collection c may hold an entity of type t.
func requireAccepts(c *domain.Collection, t domain.ObjectType) error {
	if !c.Accepts(t) {
		return domainerrors.ValidationWithDetails("entity type does not match collection", map[string]string{
			"entity_type": "collection " + c.ID + " holds " + string(c.ObjectType) + ", got " + string(t),
		})
	}
	return nil
}

// CreateEntityInCollection creates an entity and links it to a collection in
// one store transaction. On any failure neither the entity nor the link exists.
func (m *MembershipCoordinator) CreateEntityInCollection(ctx context.Context, workspaceID, collectionID string, payload domain.Payload) (*domain.Entity, error) {
	if err := preparePayload(payload); err != nil {
		return nil, err
	}
	c, err := m.registry.Get(ctx, workspaceID, collectionID)
	if err != nil {
		return nil, err
	}
	if err := requireAccepts(c, payload.ObjectType()); err != nil {
		return nil, err
	}
	e, err := newEntity(workspaceID, payload)
	if err != nil {
		return nil, err
	}
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return nil, err
	}

	err = m.cache.WithWriteLock(workspaceID, func() error {
		if err := m.gateway.CreateEntityWithMembership(ctx, e, collectionID); err != nil {
			m.logger.Error("failed to create entity",
				"workspace_id", workspaceID,
				"collection_id", collectionID,
				"error", err,
			)
			return storeError("create entity", err)
		}
		m.cache.Put(workspaceID, collectionID, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.search.IndexEntity(ctx, e)
	m.emitter.Emit(sse.NewEntityCreatedEvent(e))
	m.emitter.Emit(sse.NewMembershipAddedEvent(workspaceID, collectionID, e.ID))
	m.logger.Info("entity created",
		"workspace_id", workspaceID,
		"collection_id", collectionID,
		"entity_id", e.ID,
		"entity_type", e.Type(),
	)
	return e.Clone(), nil
}

// CreateEntity creates an entity that belongs to no collection.
func (m *MembershipCoordinator) CreateEntity(ctx context.Context, workspaceID string, payload domain.Payload) (*domain.Entity, error) {
	if err := preparePayload(payload); err != nil {
		return nil, err
	}
	e, err := newEntity(workspaceID, payload)
	if err != nil {
		return nil, err
	}
	if err := m.cache.EnsureLoaded(ctx, cache.TypesScope(workspaceID)); err != nil {
		return nil, err
	}

	err = m.cache.WithWriteLock(workspaceID, func() error {
		if err := m.gateway.UpsertEntity(ctx, e); err != nil {
			m.logger.Error("failed to create entity", "workspace_id", workspaceID, "error", err)
			return storeError("create entity", err)
		}
		m.cache.PutEntity(workspaceID, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.search.IndexEntity(ctx, e)
	m.emitter.Emit(sse.NewEntityCreatedEvent(e))
	m.logger.Info("entity created", "workspace_id", workspaceID, "entity_id", e.ID, "entity_type", e.Type())
	return e.Clone(), nil
}

// UpdateEntity replaces an entity's data. The entity type cannot change.
// Every collection holding the entity sees the new data.
func (m *MembershipCoordinator) UpdateEntity(ctx context.Context, workspaceID, entityID string, payload domain.Payload) (*domain.Entity, error) {
	if err := preparePayload(payload); err != nil {
		return nil, err
	}
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return nil, err
	}

	var updated *domain.Entity
	err := m.cache.WithWriteLock(workspaceID, func() error {
		current, err := m.GetEntity(ctx, workspaceID, entityID)
		if err != nil {
			return err
		}
		if current.Type() != payload.ObjectType() {
			return domainerrors.Validationf("entity %s is a %s, not a %s", entityID, current.Type(), payload.ObjectType())
		}

		next := current.Clone()
		next.Payload = payload
		next.UpdatedAt = time.Now().UTC()
		if err := m.gateway.UpsertEntity(ctx, next); err != nil {
			m.logger.Error("failed to update entity", "workspace_id", workspaceID, "entity_id", entityID, "error", err)
			return storeError("update entity", err)
		}
		m.cache.PutEntity(workspaceID, next)
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.search.IndexEntity(ctx, updated)
	m.emitter.Emit(sse.NewEntityUpdatedEvent(updated))
	m.logger.Info("entity updated", "workspace_id", workspaceID, "entity_id", entityID)
	return updated.Clone(), nil
}

// DeleteEntity deletes an entity and, with it, all of its memberships.
func (m *MembershipCoordinator) DeleteEntity(ctx context.Context, workspaceID, entityID string) error {
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return err
	}

	err := m.cache.WithWriteLock(workspaceID, func() error {
		if _, err := m.GetEntity(ctx, workspaceID, entityID); err != nil {
			return err
		}
		if err := m.gateway.DeleteEntity(ctx, entityID); err != nil {
			m.logger.Error("failed to delete entity", "workspace_id", workspaceID, "entity_id", entityID, "error", err)
			return storeError("delete entity", err)
		}
		m.cache.RemoveEntity(workspaceID, entityID)
		return nil
	})
	if err != nil {
		return err
	}

	m.search.RemoveEntity(ctx, entityID)
	m.emitter.Emit(sse.NewEntityDeletedEvent(workspaceID, entityID))
	m.logger.Info("entity deleted", "workspace_id", workspaceID, "entity_id", entityID)
	return nil
}

// AddEntityToCollection links an existing entity to a collection. Linking
// an entity that is already a member succeeds without change.
func (m *MembershipCoordinator) AddEntityToCollection(ctx context.Context, workspaceID, collectionID, entityID string) error {
	c, err := m.registry.Get(ctx, workspaceID, collectionID)
	if err != nil {
		return err
	}
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return err
	}

	added := false
	err = m.cache.WithWriteLock(workspaceID, func() error {
		e, err := m.GetEntity(ctx, workspaceID, entityID)
		if err != nil {
			return err
		}
		if err := requireAccepts(c, e.Type()); err != nil {
			return err
		}
		if slices.Contains(m.cache.MembershipIDs(workspaceID, collectionID), entityID) {
			return nil
		}

		membership := domain.Membership{
			CollectionID: collectionID,
			EntityID:     entityID,
			AddedAt:      time.Now().UTC(),
		}
		if err := m.gateway.InsertMembership(ctx, membership); err != nil {
			m.logger.Error("failed to add entity to collection",
				"workspace_id", workspaceID,
				"collection_id", collectionID,
				"entity_id", entityID,
				"error", err,
			)
			return storeError("insert membership", err)
		}
		m.cache.Put(workspaceID, collectionID, e)
		added = true
		return nil
	})
	if err != nil {
		return err
	}

	if added {
		m.emitter.Emit(sse.NewMembershipAddedEvent(workspaceID, collectionID, entityID))
		m.logger.Info("entity added to collection",
			"workspace_id", workspaceID,
			"collection_id", collectionID,
			"entity_id", entityID,
		)
	}
	return nil
}

// RemoveEntityFromCollection unlinks an entity from a collection. The entity
// itself is kept. Removing a non-member succeeds without change.
func (m *MembershipCoordinator) RemoveEntityFromCollection(ctx context.Context, workspaceID, collectionID, entityID string) error {
	if _, err := m.registry.Get(ctx, workspaceID, collectionID); err != nil {
		return err
	}
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return err
	}

	err := m.cache.WithWriteLock(workspaceID, func() error {
		if err := m.gateway.DeleteMembership(ctx, collectionID, entityID); err != nil {
			m.logger.Error("failed to remove entity from collection",
				"workspace_id", workspaceID,
				"collection_id", collectionID,
				"entity_id", entityID,
				"error", err,
			)
			return storeError("delete membership", err)
		}
		m.cache.RemoveFromCollection(workspaceID, collectionID, entityID)
		return nil
	})
	if err != nil {
		return err
	}

	m.emitter.Emit(sse.NewMembershipRemovedEvent(workspaceID, collectionID, entityID))
	m.logger.Info("entity removed from collection",
		"workspace_id", workspaceID,
		"collection_id", collectionID,
		"entity_id", entityID,
	)
	return nil
}

// SetCollectionEntities makes entityIDs the exact, ordered membership of a
// collection in one store transaction. Duplicate ids are dropped. An add
// that ran earlier and is not in entityIDs is removed.
func (m *MembershipCoordinator) SetCollectionEntities(ctx context.Context, workspaceID, collectionID string, entityIDs []string) ([]*domain.Entity, error) {
	c, err := m.registry.Get(ctx, workspaceID, collectionID)
	if err != nil {
		return nil, err
	}
	if err := m.cache.EnsureLoaded(ctx, cache.MembershipScope(workspaceID)); err != nil {
		return nil, err
	}

	ids := dedupe(entityIDs)
	var members []*domain.Entity
	err = m.cache.WithWriteLock(workspaceID, func() error {
		members = make([]*domain.Entity, 0, len(ids))
		for _, entityID := range ids {
			e, err := m.GetEntity(ctx, workspaceID, entityID)
			if err != nil {
				return err
			}
			if err := requireAccepts(c, e.Type()); err != nil {
				return err
			}
			members = append(members, e)
		}

		if err := m.gateway.ReplaceMembership(ctx, collectionID, ids); err != nil {
			m.logger.Error("failed to replace collection membership",
				"workspace_id", workspaceID,
				"collection_id", collectionID,
				"count", len(ids),
				"error", err,
			)
			return storeError("replace membership", err)
		}
		m.cache.ReplaceMembership(workspaceID, collectionID, members)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.emitter.Emit(sse.NewMembershipReplacedEvent(workspaceID, collectionID, ids))
	m.logger.Info("collection membership replaced",
		"workspace_id", workspaceID,
		"collection_id", collectionID,
		"count", len(ids),
	)
	return members, nil
}

// dedupe drops empty and repeated ids, keeping first occurrences in order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, entityID := range ids {
		if entityID == "" {
			continue
		}
		if _, ok := seen[entityID]; ok {
			continue
		}
		seen[entityID] = struct{}{}
		out = append(out, entityID)
	}
	return out
}
