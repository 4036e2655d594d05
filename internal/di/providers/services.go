package providers

import (
	"github.com/samber/do/v2"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/config"
	"github.com/rebase-energy/workspace-server/internal/logger"
	"github.com/rebase-energy/workspace-server/internal/service"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

// ProvideWorkspaceService provides the workspace service.
func ProvideWorkspaceService(i do.Injector) (*service.WorkspaceService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	entityCache := do.MustInvoke[*cache.EntityCache](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewWorkspaceService(storeHandle.Gateway, entityCache, sseHandle.Manager, validator, log.Logger), nil
}

// ProvideCollectionRegistry provides the collection registry.
func ProvideCollectionRegistry(i do.Injector) (*service.CollectionRegistry, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	entityCache := do.MustInvoke[*cache.EntityCache](i)
	workspaces := do.MustInvoke[*service.WorkspaceService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCollectionRegistry(storeHandle.Gateway, entityCache, workspaces, sseHandle.Manager, validator, log.Logger), nil
}

// ProvideMembershipCoordinator provides the membership coordinator.
func ProvideMembershipCoordinator(i do.Injector) (*service.MembershipCoordinator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	entityCache := do.MustInvoke[*cache.EntityCache](i)
	registry := do.MustInvoke[*service.CollectionRegistry](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMembershipCoordinator(storeHandle.Gateway, entityCache, registry, searchService, sseHandle.Manager, log.Logger), nil
}

// ProvideBootstrap provides workspace bootstrap and demo seeding.
func ProvideBootstrap(i do.Injector) (*service.Bootstrap, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	entityCache := do.MustInvoke[*cache.EntityCache](i)
	workspaces := do.MustInvoke[*service.WorkspaceService](i)
	registry := do.MustInvoke[*service.CollectionRegistry](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBootstrap(workspaces, registry, searchService, storeHandle.Gateway, entityCache,
		service.BootstrapOptions{
			PrimarySlug:  cfg.Workspace.DefaultSlug,
			SeedDemoData: cfg.Workspace.SeedDemoData,
		}, log.Logger), nil
}
