package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
)

func (s *Server) registerEntityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listEntitiesByType",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/entities",
		Summary:     "List entities by type",
		Description: "Returns every entity of one type in the workspace, optionally filtered by a query",
		Tags:        []string{"Entities"},
	}, s.handleListEntitiesByType)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createEntity",
		Method:        http.MethodPost,
		Path:          "/api/v1/workspaces/{slug}/entities",
		Summary:       "Create entity",
		Description:   "Creates an entity that belongs to no collection",
		Tags:          []string{"Entities"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "getEntity",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/entities/{entityId}",
		Summary:     "Get entity",
		Description: "Returns an entity and the IDs of the collections holding it",
		Tags:        []string{"Entities"},
	}, s.handleGetEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateEntity",
		Method:      http.MethodPatch,
		Path:        "/api/v1/workspaces/{slug}/entities/{entityId}",
		Summary:     "Update entity",
		Description: "Replaces an entity's data. The entity type cannot change.",
		Tags:        []string{"Entities"},
	}, s.handleUpdateEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteEntity",
		Method:      http.MethodDelete,
		Path:        "/api/v1/workspaces/{slug}/entities/{entityId}",
		Summary:     "Delete entity",
		Description: "Deletes an entity and removes it from every collection",
		Tags:        []string{"Entities"},
	}, s.handleDeleteEntity)
}

// === DTOs ===

// EntitiesByTypeInput contains parameters for listing entities of one type.
type EntitiesByTypeInput struct {
	dto.WorkspaceParam
	Type  string `query:"type" required:"true" doc:"Entity type: TimeSeries, Site or Asset"`
	Query string `query:"q" maxLength:"200" doc:"Case-insensitive filter over entity fields"`
}

// CreateEntityInput wraps the entity body for Huma.
type CreateEntityInput struct {
	dto.WorkspaceParam
	Body dto.EntityRequest
}

// EntityParam addresses one entity of a workspace.
type EntityParam struct {
	dto.WorkspaceParam
	EntityID string `path:"entityId" minLength:"1" doc:"Entity ID"`
}

// UpdateEntityInput wraps the replacement data for Huma.
type UpdateEntityInput struct {
	EntityParam
	Body dto.EntityRequest
}

// EntityDetailResponse is an entity together with its memberships.
type EntityDetailResponse struct {
	dto.EntityResponse
	CollectionIDs []string `json:"collection_ids" doc:"Collections holding the entity"`
}

// EntityDetailOutput wraps the entity detail for Huma.
type EntityDetailOutput struct {
	Body EntityDetailResponse
}

// === Handlers ===

func (s *Server) handleListEntitiesByType(ctx context.Context, input *EntitiesByTypeInput) (*EntityListOutput, error) {
	objectType, ok := domain.ParseObjectType(input.Type)
	if !ok {
		return nil, domainerrors.Validationf("unknown entity type %q", input.Type)
	}

	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	entities, err := s.services.Coordinator.EntitiesByType(ctx, ws.ID, objectType, input.Query)
	if err != nil {
		return nil, err
	}

	return entityList(dto.FromEntities(entities)), nil
}

func (s *Server) handleCreateEntity(ctx context.Context, input *CreateEntityInput) (*EntityOutput, error) {
	payload, err := input.Body.Payload("")
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	e, err := s.services.Coordinator.CreateEntity(ctx, ws.ID, payload)
	if err != nil {
		return nil, err
	}

	return &EntityOutput{Body: dto.FromEntity(e)}, nil
}

func (s *Server) handleGetEntity(ctx context.Context, input *EntityParam) (*EntityDetailOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	e, err := s.services.Coordinator.GetEntity(ctx, ws.ID, input.EntityID)
	if err != nil {
		return nil, err
	}

	collectionIDs, err := s.services.Coordinator.CollectionsForEntity(ctx, ws.ID, input.EntityID)
	if err != nil {
		return nil, err
	}
	if collectionIDs == nil {
		collectionIDs = []string{}
	}

	return &EntityDetailOutput{
		Body: EntityDetailResponse{
			EntityResponse: dto.FromEntity(e),
			CollectionIDs:  collectionIDs,
		},
	}, nil
}

func (s *Server) handleUpdateEntity(ctx context.Context, input *UpdateEntityInput) (*EntityOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	current, err := s.services.Coordinator.GetEntity(ctx, ws.ID, input.EntityID)
	if err != nil {
		return nil, err
	}

	payload, err := input.Body.Payload(current.Type())
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	e, err := s.services.Coordinator.UpdateEntity(ctx, ws.ID, input.EntityID, payload)
	if err != nil {
		return nil, err
	}

	return &EntityOutput{Body: dto.FromEntity(e)}, nil
}

func (s *Server) handleDeleteEntity(ctx context.Context, input *EntityParam) (*dto.MessageOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if err := s.services.Coordinator.DeleteEntity(ctx, ws.ID, input.EntityID); err != nil {
		return nil, err
	}

	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Entity deleted"}}, nil
}
