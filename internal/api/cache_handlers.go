package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	"github.com/rebase-energy/workspace-server/internal/cache"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/sse"
)

func (s *Server) registerCacheRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "invalidateCache",
		Method:      http.MethodPost,
		Path:        "/api/v1/workspaces/{slug}/cache/invalidate",
		Summary:     "Invalidate cache",
		Description: "Drops cached scopes so the next read reloads them from the store. With no scopes, the whole workspace is dropped.",
		Tags:        []string{"Cache"},
	}, s.handleInvalidateCache)
}

// InvalidateCacheInput contains the scopes to drop.
type InvalidateCacheInput struct {
	dto.WorkspaceParam
	Body struct {
		Scopes []string `json:"scopes,omitempty" doc:"Scopes to drop: types, membership, collections"`
	} `required:"false"`
}

// InvalidateCacheResponse lists the dropped scopes.
type InvalidateCacheResponse struct {
	Invalidated []string `json:"invalidated" doc:"Scopes dropped"`
}

// InvalidateCacheOutput wraps the response for Huma.
type InvalidateCacheOutput struct {
	Body InvalidateCacheResponse
}

func (s *Server) handleInvalidateCache(ctx context.Context, input *InvalidateCacheInput) (*InvalidateCacheOutput, error) {
	kinds := make([]cache.ScopeKind, 0, len(input.Body.Scopes))
	for _, name := range input.Body.Scopes {
		kind, ok := parseScopeKind(name)
		if !ok {
			return nil, domainerrors.Validationf("unknown cache scope %q", name)
		}
		kinds = append(kinds, kind)
	}

	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if len(kinds) == 0 {
		s.services.Cache.InvalidateWorkspace(ws.ID)
		kinds = cache.ScopeKinds
	} else {
		for _, kind := range kinds {
			s.services.Cache.Invalidate(cache.Scope{WorkspaceID: ws.ID, Kind: kind})
		}
	}

	out := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, string(kind))
	}
	s.logger.Info("cache invalidated", "workspace_id", ws.ID, "scopes", out)
	s.sseManager.Emit(sse.NewCacheInvalidatedEvent(ws.ID))

	return &InvalidateCacheOutput{Body: InvalidateCacheResponse{Invalidated: out}}, nil
}

func parseScopeKind(name string) (cache.ScopeKind, bool) {
	for _, kind := range cache.ScopeKinds {
		if string(kind) == name {
			return kind, true
		}
	}
	return "", false
}
