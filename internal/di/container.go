// Package di provides dependency injection configuration for the workspace server.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/config"
	"github.com/rebase-energy/workspace-server/internal/di/providers"
	"github.com/rebase-energy/workspace-server/internal/logger"
	"github.com/rebase-energy/workspace-server/internal/service"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Store and cache layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideEntityCache)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Business services
	do.Provide(injector, providers.ProvideWorkspaceService)
	do.Provide(injector, providers.ProvideCollectionRegistry)
	do.Provide(injector, providers.ProvideMembershipCoordinator)
	do.Provide(injector, providers.ProvideBootstrap)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	cfg := do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*cache.EntityCache](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)

	// Business services
	_ = do.MustInvoke[*service.WorkspaceService](injector)
	_ = do.MustInvoke[*service.CollectionRegistry](injector)
	_ = do.MustInvoke[*service.MembershipCoordinator](injector)
	bootstrap := do.MustInvoke[*service.Bootstrap](injector)

	// Warm the default workspace. Failures are not fatal: the first request
	// for the workspace retries.
	ws, err := bootstrap.Ensure(context.Background(), cfg.Workspace.DefaultSlug)
	if err != nil {
		log.Warn("Default workspace not ready", "slug", cfg.Workspace.DefaultSlug, "error", err)
	} else {
		log.ForWorkspace(ws.ID).Info("Default workspace ready", "slug", ws.Slug)
	}

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
