// Package service holds the workspace business logic: workspaces and their
// settings, the collection registry, and the coordinator that keeps entity
// memberships consistent between the cache and the store.
package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/id"
	"github.com/rebase-energy/workspace-server/internal/sse"
	"github.com/rebase-energy/workspace-server/internal/store"
	"github.com/rebase-energy/workspace-server/internal/util"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

// WorkspaceService resolves workspaces by slug and owns their settings.
type WorkspaceService struct {
	gateway   store.Gateway
	cache     *cache.EntityCache
	emitter   store.EventEmitter
	validator *validation.Validator
	logger    *slog.Logger

	group  singleflight.Group
	bySlug *cache.SyncMap[string, *domain.Workspace]
	byID   *cache.SyncMap[string, *domain.Workspace]
}

// NewWorkspaceService creates a new workspace service.
func NewWorkspaceService(
	gateway store.Gateway,
	entityCache *cache.EntityCache,
	emitter store.EventEmitter,
	validator *validation.Validator,
	logger *slog.Logger,
) *WorkspaceService {
	return &WorkspaceService{
		gateway:   gateway,
		cache:     entityCache,
		emitter:   emitter,
		validator: validator,
		logger:    logger,
		bySlug:    cache.NewSyncMap[string, *domain.Workspace](),
		byID:      cache.NewSyncMap[string, *domain.Workspace](),
	}
}

// Ensure returns the workspace for slug, creating it with default settings
// on first access. When no store is reachable it returns an in-memory
// workspace whose id is the slug.
func (s *WorkspaceService) Ensure(ctx context.Context, rawSlug string) (*domain.Workspace, error) {
	slug := util.Slugify(rawSlug)
	if slug == "" {
		return nil, domainerrors.Validation("workspace slug is required")
	}

	if ws, ok := s.bySlug.Load(slug); ok {
		return ws.Clone(), nil
	}

	v, err, _ := s.group.Do(slug, func() (any, error) {
		if ws, ok := s.bySlug.Load(slug); ok {
			return ws, nil
		}
		return s.resolve(context.WithoutCancel(ctx), slug)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Workspace).Clone(), nil
}

func (s *WorkspaceService) resolve(ctx context.Context, slug string) (*domain.Workspace, error) {
	ws, err := s.gateway.GetWorkspace(ctx, slug)
	switch {
	case err == nil:
		ws.Settings.Normalize()
		s.remember(ws)
		return ws, nil

	case store.IsNotFound(err):
		return s.create(ctx, slug)

	case store.IsNotConfigured(err):
		ws := s.detached(slug)
		s.remember(ws)
		s.logger.Info("store not configured, using in-memory workspace", "slug", slug)
		return ws, nil

	case store.IsTransport(err):
		// Not remembered: the next request retries the store.
		s.logger.Warn("workspace lookup failed, using in-memory workspace", "slug", slug, "error", err)
		return s.detached(slug), nil

	default:
		s.logger.Error("workspace lookup failed", "slug", slug, "error", err)
		return nil, storeError("get workspace", err)
	}
}

func (s *WorkspaceService) create(ctx context.Context, slug string) (*domain.Workspace, error) {
	wsID, err := id.Generate(id.PrefixWorkspace)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate workspace id")
	}

	now := time.Now().UTC()
	ws := &domain.Workspace{
		ID:        wsID,
		Slug:      slug,
		Name:      util.TitleFromSlug(slug),
		Settings:  domain.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.gateway.CreateWorkspace(ctx, ws); err != nil {
		if domainerrors.Is(err, store.ErrAlreadyExists) {
			// Another process created it first.
			existing, getErr := s.gateway.GetWorkspace(ctx, slug)
			if getErr != nil {
				return nil, storeError("get workspace", getErr)
			}
			existing.Settings.Normalize()
			s.remember(existing)
			return existing, nil
		}
		if store.IsUnavailable(err) {
			s.logger.Warn("workspace create failed, using in-memory workspace", "slug", slug, "error", err)
			return s.detached(slug), nil
		}
		s.logger.Error("failed to create workspace", "slug", slug, "error", err)
		return nil, storeError("create workspace", err)
	}

	s.remember(ws)
	s.logger.Info("workspace created", "workspace_id", ws.ID, "slug", slug)
	return ws, nil
}

// detached builds a workspace that exists only in this process.
func (s *WorkspaceService) detached(slug string) *domain.Workspace {
	now := time.Now().UTC()
	return &domain.Workspace{
		ID:        slug,
		Slug:      slug,
		Name:      util.TitleFromSlug(slug),
		Settings:  domain.DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *WorkspaceService) remember(ws *domain.Workspace) {
	s.bySlug.Store(ws.Slug, ws)
	s.byID.Store(ws.ID, ws)
}

// Lookup returns a resolved workspace by id.
func (s *WorkspaceService) Lookup(workspaceID string) (*domain.Workspace, bool) {
	ws, ok := s.byID.Load(workspaceID)
	if !ok {
		return nil, false
	}
	return ws.Clone(), true
}

// DefaultCollectionID returns the workspace's default collection pointer.
func (s *WorkspaceService) DefaultCollectionID(workspaceID string) string {
	ws, ok := s.byID.Load(workspaceID)
	if !ok {
		return ""
	}
	return ws.Settings.DefaultCollectionID
}

// UpdateSettings validates and applies a settings patch.
func (s *WorkspaceService) UpdateSettings(ctx context.Context, workspaceID string, patch domain.SettingsPatch) (*domain.Workspace, error) {
	if err := s.validateSettingsPatch(patch); err != nil {
		return nil, err
	}

	var updated *domain.Workspace
	err := s.cache.WithWriteLock(workspaceID, func() error {
		var err error
		updated, err = s.updateSettingsLocked(ctx, workspaceID, patch.Apply)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// updateSettingsLocked persists a settings change. The caller holds the
// workspace write lock.
func (s *WorkspaceService) updateSettingsLocked(ctx context.Context, workspaceID string, mutate func(*domain.Settings)) (*domain.Workspace, error) {
	current, ok := s.byID.Load(workspaceID)
	if !ok {
		return nil, domainerrors.NotFoundf("workspace %s not found", workspaceID)
	}

	next := current.Clone()
	mutate(&next.Settings)
	next.Settings.Normalize()
	next.UpdatedAt = time.Now().UTC()

	if err := s.gateway.UpdateWorkspace(ctx, next); err != nil {
		s.logger.Error("failed to update workspace settings", "workspace_id", workspaceID, "error", err)
		return nil, storeError("update workspace", err)
	}

	s.remember(next)
	s.emitter.Emit(sse.NewWorkspaceUpdatedEvent(next))
	s.logger.Info("workspace settings updated", "workspace_id", workspaceID)
	return next.Clone(), nil
}

func (s *WorkspaceService) validateSettingsPatch(p domain.SettingsPatch) error {
	if p.Theme != nil {
		if err := s.validator.Var("theme", string(*p.Theme), "oneof=Light Dark System"); err != nil {
			return err
		}
	}
	if p.AccentColor != nil {
		if err := s.validator.Var("accent_color", *p.AccentColor, "hexcolor"); err != nil {
			return err
		}
	}
	for item := range p.MenuVisibility {
		if !slices.Contains(domain.MenuItems, item) {
			return domainerrors.ValidationWithDetails("validation failed", map[string]string{
				"menu_item_visibility": "unknown menu item " + item,
			})
		}
	}
	return nil
}
