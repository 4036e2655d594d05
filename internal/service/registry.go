package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/id"
	"github.com/rebase-energy/workspace-server/internal/sse"
	"github.com/rebase-energy/workspace-server/internal/store"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

// CreateCollectionRequest is the input for creating a collection.
type CreateCollectionRequest struct {
	Name       string            `json:"name" validate:"notblank,max=200"`
	ObjectType domain.ObjectType `json:"object_type" validate:"required"`
	Emoji      string            `json:"emoji,omitempty" validate:"max=32"`
	ViewType   domain.ViewType   `json:"view_type,omitempty"`
	CreatedBy  string            `json:"created_by,omitempty" validate:"max=200"`
}

// CollectionRegistry lists and mutates collection metadata. The collection
// list of each workspace is loaded once into the entity cache and kept in
// step with the store after every successful write.
type CollectionRegistry struct {
	gateway    store.Gateway
	cache      *cache.EntityCache
	workspaces *WorkspaceService
	emitter    store.EventEmitter
	validator  *validation.Validator
	logger     *slog.Logger
}

// NewCollectionRegistry creates a new collection registry.
func NewCollectionRegistry(
	gateway store.Gateway,
	entityCache *cache.EntityCache,
	workspaces *WorkspaceService,
	emitter store.EventEmitter,
	validator *validation.Validator,
	logger *slog.Logger,
) *CollectionRegistry {
	return &CollectionRegistry{
		gateway:    gateway,
		cache:      entityCache,
		workspaces: workspaces,
		emitter:    emitter,
		validator:  validator,
		logger:     logger,
	}
}

// List returns the workspace's collections in creation order. is_default is
// derived from the workspace's default pointer. A store failure yields an
// empty list.
func (r *CollectionRegistry) List(ctx context.Context, workspaceID string) ([]*domain.Collection, error) {
	if err := r.cache.EnsureLoaded(ctx, cache.CollectionsScope(workspaceID)); err != nil {
		return nil, err
	}
	list := r.cache.Collections(workspaceID)
	defaultID := r.workspaces.DefaultCollectionID(workspaceID)
	for _, c := range list {
		c.IsDefault = c.ID == defaultID
	}
	return list, nil
}

// Get returns one collection of the workspace.
func (r *CollectionRegistry) Get(ctx context.Context, workspaceID, collectionID string) (*domain.Collection, error) {
	c, err := r.find(ctx, workspaceID, collectionID)
	if err != nil {
		return nil, err
	}
	c.IsDefault = c.ID == r.workspaces.DefaultCollectionID(workspaceID)
	return c, nil
}

// find looks the collection up in the cached list, falling back to the store
// for collections the cache missed (for example after a failed load).
func (r *CollectionRegistry) find(ctx context.Context, workspaceID, collectionID string) (*domain.Collection, error) {
	if err := r.cache.EnsureLoaded(ctx, cache.CollectionsScope(workspaceID)); err != nil {
		return nil, err
	}
	for _, c := range r.cache.Collections(workspaceID) {
		if c.ID == collectionID {
			return c, nil
		}
	}

	c, err := r.gateway.GetCollection(ctx, collectionID)
	if err != nil {
		if store.IsNotFound(err) || store.IsUnavailable(err) {
			return nil, domainerrors.NotFoundf("collection %s not found", collectionID)
		}
		return nil, storeError("get collection", err)
	}
	if c.WorkspaceID != workspaceID {
		return nil, domainerrors.NotFoundf("collection %s not found", collectionID)
	}
	r.cache.PutCollection(workspaceID, c)
	return c, nil
}

// Create validates req, persists a new collection with the default column
// schema for its object type, then adds it to the cached list.
func (r *CollectionRegistry) Create(ctx context.Context, workspaceID string, req CreateCollectionRequest) (*domain.Collection, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := r.validator.Validate(req); err != nil {
		return nil, err
	}
	if !req.ObjectType.Valid() {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"object_type": "must be one of: TimeSeries Site Asset",
		})
	}
	if req.ViewType == "" {
		req.ViewType = domain.ViewTable
	}
	if !req.ViewType.Valid() {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"view_type": "must be one of: table time_series_cards",
		})
	}
	if req.Emoji == "" {
		req.Emoji = domain.DefaultCollectionEmoji
	}

	collectionID, err := id.Generate(id.PrefixCollection)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate collection id")
	}

	c := &domain.Collection{
		ID:          collectionID,
		WorkspaceID: workspaceID,
		Name:        req.Name,
		ObjectType:  req.ObjectType,
		Emoji:       req.Emoji,
		ViewType:    req.ViewType,
		Columns:     domain.DefaultColumns(req.ObjectType),
		CreatedBy:   req.CreatedBy,
	}
	if err := r.insert(ctx, c); err != nil {
		return nil, err
	}

	r.logger.Info("collection created",
		"workspace_id", workspaceID,
		"collection_id", c.ID,
		"object_type", c.ObjectType,
		"name", c.Name,
	)
	return c, nil
}

// insert persists c and adds it to the cached list.
func (r *CollectionRegistry) insert(ctx context.Context, c *domain.Collection) error {
	if err := r.cache.EnsureLoaded(ctx, cache.CollectionsScope(c.WorkspaceID)); err != nil {
		return err
	}
	return r.cache.WithWriteLock(c.WorkspaceID, func() error {
		now := time.Now().UTC()
		c.CreatedAt, c.UpdatedAt = now, now
		if err := r.gateway.CreateCollection(ctx, c); err != nil {
			r.logger.Error("failed to create collection", "workspace_id", c.WorkspaceID, "collection_id", c.ID, "error", err)
			return storeError("create collection", err)
		}
		r.cache.PutCollection(c.WorkspaceID, c)
		r.emitter.Emit(sse.NewCollectionCreatedEvent(c))
		return nil
	})
}

// Update applies a partial update. The store is written first; the cached
// list changes only when that succeeds.
func (r *CollectionRegistry) Update(ctx context.Context, workspaceID, collectionID string, patch domain.CollectionPatch) (*domain.Collection, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return r.Get(ctx, workspaceID, collectionID)
	}

	var updated *domain.Collection
	err := r.cache.WithWriteLock(workspaceID, func() error {
		current, err := r.find(ctx, workspaceID, collectionID)
		if err != nil {
			return err
		}

		next := current.Clone()
		patch.Apply(next)
		next.UpdatedAt = time.Now().UTC()

		if err := r.gateway.UpdateCollection(ctx, next); err != nil {
			r.logger.Error("failed to update collection", "workspace_id", workspaceID, "collection_id", collectionID, "error", err)
			return storeError("update collection", err)
		}
		r.cache.PutCollection(workspaceID, next)
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated.IsDefault = updated.ID == r.workspaces.DefaultCollectionID(workspaceID)
	r.emitter.Emit(sse.NewCollectionUpdatedEvent(updated))
	r.logger.Info("collection updated", "workspace_id", workspaceID, "collection_id", collectionID)
	return updated, nil
}

func validatePatch(p domain.CollectionPatch) error {
	details := map[string]string{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		switch {
		case name == "":
			details["name"] = "is required"
		case len([]rune(name)) > 200:
			details["name"] = "must not exceed 200 characters"
		}
		*p.Name = name
	}
	if p.ViewType != nil && !p.ViewType.Valid() {
		details["view_type"] = "must be one of: table time_series_cards"
	}
	for _, col := range p.Columns {
		if strings.TrimSpace(col.Key) == "" {
			details["attributes"] = "every column needs a key"
		}
	}
	if len(details) > 0 {
		return domainerrors.ValidationWithDetails("validation failed", details)
	}
	return nil
}

// Rename changes a collection's name.
func (r *CollectionRegistry) Rename(ctx context.Context, workspaceID, collectionID, name string) (*domain.Collection, error) {
	return r.Update(ctx, workspaceID, collectionID, domain.CollectionPatch{Name: &name})
}

// SetEmoji changes a collection's emoji.
func (r *CollectionRegistry) SetEmoji(ctx context.Context, workspaceID, collectionID, emoji string) (*domain.Collection, error) {
	return r.Update(ctx, workspaceID, collectionID, domain.CollectionPatch{Emoji: &emoji})
}

// SetFavorite marks or unmarks a collection as favorite.
func (r *CollectionRegistry) SetFavorite(ctx context.Context, workspaceID, collectionID string, favorite bool) (*domain.Collection, error) {
	return r.Update(ctx, workspaceID, collectionID, domain.CollectionPatch{IsFavorite: &favorite})
}

// SetViewType switches how a collection is rendered.
func (r *CollectionRegistry) SetViewType(ctx context.Context, workspaceID, collectionID string, view domain.ViewType) (*domain.Collection, error) {
	return r.Update(ctx, workspaceID, collectionID, domain.CollectionPatch{ViewType: &view})
}

// UpdateColumns replaces a collection's column schema.
func (r *CollectionRegistry) UpdateColumns(ctx context.Context, workspaceID, collectionID string, columns []domain.Column) (*domain.Collection, error) {
	if columns == nil {
		columns = []domain.Column{}
	}
	return r.Update(ctx, workspaceID, collectionID, domain.CollectionPatch{Columns: columns})
}

// SetDefault makes collectionID the workspace's default collection. The
// default is a single pointer on the workspace, so one write moves it.
func (r *CollectionRegistry) SetDefault(ctx context.Context, workspaceID, collectionID string) (*domain.Collection, error) {
	var target *domain.Collection
	err := r.cache.WithWriteLock(workspaceID, func() error {
		c, err := r.find(ctx, workspaceID, collectionID)
		if err != nil {
			return err
		}
		if _, err := r.workspaces.updateSettingsLocked(ctx, workspaceID, func(s *domain.Settings) {
			s.DefaultCollectionID = collectionID
		}); err != nil {
			return err
		}
		target = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	target.IsDefault = true
	r.emitter.Emit(sse.NewCollectionUpdatedEvent(target))
	r.logger.Info("default collection set", "workspace_id", workspaceID, "collection_id", collectionID)
	return target, nil
}

// ClearDefault removes the workspace's default collection.
func (r *CollectionRegistry) ClearDefault(ctx context.Context, workspaceID string) error {
	return r.cache.WithWriteLock(workspaceID, func() error {
		if r.workspaces.DefaultCollectionID(workspaceID) == "" {
			return nil
		}
		_, err := r.workspaces.updateSettingsLocked(ctx, workspaceID, func(s *domain.Settings) {
			s.DefaultCollectionID = ""
		})
		return err
	})
}

// Delete removes a collection. Its memberships go with it; its entities stay.
func (r *CollectionRegistry) Delete(ctx context.Context, workspaceID, collectionID string) error {
	err := r.cache.WithWriteLock(workspaceID, func() error {
		if _, err := r.find(ctx, workspaceID, collectionID); err != nil {
			return err
		}
		if err := r.gateway.DeleteCollection(ctx, collectionID); err != nil {
			r.logger.Error("failed to delete collection", "workspace_id", workspaceID, "collection_id", collectionID, "error", err)
			return storeError("delete collection", err)
		}
		r.cache.RemoveCollection(workspaceID, collectionID)

		if r.workspaces.DefaultCollectionID(workspaceID) == collectionID {
			if _, err := r.workspaces.updateSettingsLocked(ctx, workspaceID, func(s *domain.Settings) {
				s.DefaultCollectionID = ""
			}); err != nil {
				// The pointer now names no collection, so nothing lists as default.
				r.logger.Warn("failed to clear default pointer", "workspace_id", workspaceID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.emitter.Emit(sse.NewCollectionDeletedEvent(workspaceID, collectionID))
	r.logger.Info("collection deleted", "workspace_id", workspaceID, "collection_id", collectionID)
	return nil
}
