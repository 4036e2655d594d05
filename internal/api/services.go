package api

import (
	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/service"
)

// Services groups the business logic used by the API server.
type Services struct {
	Workspaces  *service.WorkspaceService
	Registry    *service.CollectionRegistry
	Coordinator *service.MembershipCoordinator
	Search      *service.SearchService
	Bootstrap   *service.Bootstrap
	Cache       *cache.EntityCache
}
