package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
)

func (s *Server) registerMembershipRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCollectionEntities",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}/entities",
		Summary:     "List collection entities",
		Description: "Returns the collection's entities in membership order, optionally filtered by a case-insensitive query",
		Tags:        []string{"Memberships"},
	}, s.handleListCollectionEntities)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createEntityInCollection",
		Method:        http.MethodPost,
		Path:          "/api/v1/workspaces/{slug}/collections/{id}/entities",
		Summary:       "Create entity in collection",
		Description:   "Creates an entity and its membership in one step. Neither exists if the write fails.",
		Tags:          []string{"Memberships"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateEntityInCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCollectionEntities",
		Method:      http.MethodPut,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}/entities",
		Summary:     "Replace collection members",
		Description: "Replaces the collection's membership with the given entity IDs, in order",
		Tags:        []string{"Memberships"},
	}, s.handleSetCollectionEntities)

	huma.Register(s.api, huma.Operation{
		OperationID: "addEntityToCollection",
		Method:      http.MethodPut,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}/entities/{entityId}",
		Summary:     "Add entity to collection",
		Description: "Adds an existing entity to the collection. Adding a member twice has no effect.",
		Tags:        []string{"Memberships"},
	}, s.handleAddEntityToCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeEntityFromCollection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}/entities/{entityId}",
		Summary:     "Remove entity from collection",
		Description: "Removes the membership. The entity itself is kept.",
		Tags:        []string{"Memberships"},
	}, s.handleRemoveEntityFromCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "entityCountsByCollection",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/entity-counts",
		Summary:     "Entity counts",
		Description: "Returns the number of members per collection",
		Tags:        []string{"Memberships"},
	}, s.handleEntityCounts)
}

// === DTOs ===

// EntityListResponse contains a list of entities.
type EntityListResponse struct {
	Entities []dto.EntityResponse `json:"entities" doc:"Entities"`
	Total    int                  `json:"total" doc:"Number of entities returned"`
}

// EntityListOutput wraps an entity list for Huma.
type EntityListOutput struct {
	Body EntityListResponse
}

// CollectionEntitiesInput contains parameters for listing collection members.
type CollectionEntitiesInput struct {
	dto.CollectionParam
	Query string `query:"q" maxLength:"200" doc:"Case-insensitive filter over entity fields"`
}

// CreateInCollectionInput wraps the entity body for Huma.
type CreateInCollectionInput struct {
	dto.CollectionParam
	Body dto.EntityRequest
}

// SetEntitiesInput wraps the replacement member list for Huma.
type SetEntitiesInput struct {
	dto.CollectionParam
	Body struct {
		EntityIDs []string `json:"entity_ids" doc:"Entity IDs in display order"`
	}
}

// MembershipInput addresses one membership.
type MembershipInput struct {
	dto.CollectionParam
	EntityID string `path:"entityId" minLength:"1" doc:"Entity ID"`
}

// EntityCountsResponse maps collection IDs to member counts.
type EntityCountsResponse struct {
	Counts map[string]int `json:"counts" doc:"Member count per collection ID"`
}

// EntityCountsOutput wraps the counts for Huma.
type EntityCountsOutput struct {
	Body EntityCountsResponse
}

// EntityOutput wraps a single entity for Huma.
type EntityOutput struct {
	Body dto.EntityResponse
}

func entityList(out []dto.EntityResponse) *EntityListOutput {
	return &EntityListOutput{Body: EntityListResponse{Entities: out, Total: len(out)}}
}

// === Handlers ===

func (s *Server) handleListCollectionEntities(ctx context.Context, input *CollectionEntitiesInput) (*EntityListOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	entities, err := s.services.Coordinator.EntitiesForCollection(ctx, ws.ID, input.ID, input.Query)
	if err != nil {
		return nil, err
	}

	return entityList(dto.FromEntities(entities)), nil
}

func (s *Server) handleCreateEntityInCollection(ctx context.Context, input *CreateInCollectionInput) (*EntityOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	c, err := s.services.Registry.Get(ctx, ws.ID, input.ID)
	if err != nil {
		return nil, err
	}

	payload, err := input.Body.Payload(c.ObjectType)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}

	e, err := s.services.Coordinator.CreateEntityInCollection(ctx, ws.ID, input.ID, payload)
	if err != nil {
		return nil, err
	}

	return &EntityOutput{Body: dto.FromEntity(e)}, nil
}

func (s *Server) handleSetCollectionEntities(ctx context.Context, input *SetEntitiesInput) (*EntityListOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	entities, err := s.services.Coordinator.SetCollectionEntities(ctx, ws.ID, input.ID, input.Body.EntityIDs)
	if err != nil {
		return nil, err
	}

	return entityList(dto.FromEntities(entities)), nil
}

func (s *Server) handleAddEntityToCollection(ctx context.Context, input *MembershipInput) (*dto.MessageOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if err := s.services.Coordinator.AddEntityToCollection(ctx, ws.ID, input.ID, input.EntityID); err != nil {
		return nil, err
	}

	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Entity added to collection"}}, nil
}

func (s *Server) handleRemoveEntityFromCollection(ctx context.Context, input *MembershipInput) (*dto.MessageOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if err := s.services.Coordinator.RemoveEntityFromCollection(ctx, ws.ID, input.ID, input.EntityID); err != nil {
		return nil, err
	}

	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Entity removed from collection"}}, nil
}

func (s *Server) handleEntityCounts(ctx context.Context, input *dto.WorkspaceParam) (*EntityCountsOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	counts, err := s.services.Coordinator.EntityCounts(ctx, ws.ID)
	if err != nil {
		return nil, err
	}

	return &EntityCountsOutput{Body: EntityCountsResponse{Counts: counts}}, nil
}
