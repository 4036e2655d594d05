package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/service"
)

func (s *Server) registerCollectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCollections",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/collections",
		Summary:     "List collections",
		Description: "Returns every collection in the workspace, oldest first",
		Tags:        []string{"Collections"},
	}, s.handleListCollections)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCollection",
		Method:        http.MethodPost,
		Path:          "/api/v1/workspaces/{slug}/collections",
		Summary:       "Create collection",
		Description:   "Creates a collection with the default column schema for its object type",
		Tags:          []string{"Collections"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCollection",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}",
		Summary:     "Get collection",
		Description: "Returns a collection by ID",
		Tags:        []string{"Collections"},
	}, s.handleGetCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCollection",
		Method:      http.MethodPatch,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}",
		Summary:     "Update collection",
		Description: "Renames a collection or changes its emoji, view type or column schema",
		Tags:        []string{"Collections"},
	}, s.handleUpdateCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCollectionFavorite",
		Method:      http.MethodPut,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}/favorite",
		Summary:     "Set favorite",
		Description: "Marks or unmarks a collection as favorite",
		Tags:        []string{"Collections"},
	}, s.handleSetCollectionFavorite)

	huma.Register(s.api, huma.Operation{
		OperationID: "setDefaultCollection",
		Method:      http.MethodPut,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}/default",
		Summary:     "Set default collection",
		Description: "Makes the collection the workspace default. At most one collection is the default.",
		Tags:        []string{"Collections"},
	}, s.handleSetDefaultCollection)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteCollection",
		Method:      http.MethodDelete,
		Path:        "/api/v1/workspaces/{slug}/collections/{id}",
		Summary:     "Delete collection",
		Description: "Deletes a collection and its memberships. Entities are kept.",
		Tags:        []string{"Collections"},
	}, s.handleDeleteCollection)
}

// === DTOs ===

// CollectionOutput wraps a single collection for Huma.
type CollectionOutput struct {
	Body dto.CollectionResponse
}

// ListCollectionsResponse contains the collections of a workspace.
type ListCollectionsResponse struct {
	Collections []dto.CollectionResponse `json:"collections" doc:"Collections, oldest first"`
}

// ListCollectionsOutput wraps the collection list for Huma.
type ListCollectionsOutput struct {
	Body ListCollectionsResponse
}

// CreateCollectionRequest is the request body for creating a collection.
type CreateCollectionRequest struct {
	Name       string `json:"name" minLength:"1" maxLength:"200" doc:"Display name"`
	ObjectType string `json:"object_type" doc:"Entity type the collection holds: TimeSeries, Site or Asset"`
	Emoji      string `json:"emoji,omitempty" maxLength:"32" doc:"Icon"`
	ViewType   string `json:"view_type,omitempty" doc:"table or time_series_cards; table when omitted"`
	CreatedBy  string `json:"created_by,omitempty" maxLength:"200" doc:"Creator"`
}

// CreateCollectionInput wraps the create request for Huma.
type CreateCollectionInput struct {
	dto.WorkspaceParam
	Body CreateCollectionRequest
}

// UpdateCollectionRequest is the request body for updating a collection.
// Omitted fields are left unchanged.
type UpdateCollectionRequest struct {
	Name       *string             `json:"name,omitempty" doc:"Display name"`
	Emoji      *string             `json:"emoji,omitempty" doc:"Icon"`
	ViewType   *string             `json:"view_type,omitempty" doc:"table or time_series_cards"`
	Attributes []dto.ColumnRequest `json:"attributes,omitempty" doc:"Replacement column schema"`
}

// UpdateCollectionInput wraps the update request for Huma.
type UpdateCollectionInput struct {
	dto.CollectionParam
	Body UpdateCollectionRequest
}

// SetFavoriteInput wraps the favorite toggle for Huma.
type SetFavoriteInput struct {
	dto.CollectionParam
	Body struct {
		IsFavorite bool `json:"is_favorite" doc:"Whether the collection is a favorite"`
	}
}

// SetDefaultInput wraps the default toggle for Huma.
type SetDefaultInput struct {
	dto.CollectionParam
	Body struct {
		IsDefault bool `json:"is_default" doc:"true makes this the default; false clears the default if it is this collection"`
	}
}

// === Handlers ===

func (s *Server) handleListCollections(ctx context.Context, input *dto.WorkspaceParam) (*ListCollectionsOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	collections, err := s.services.Registry.List(ctx, ws.ID)
	if err != nil {
		return nil, err
	}

	return &ListCollectionsOutput{
		Body: ListCollectionsResponse{Collections: dto.FromCollections(collections)},
	}, nil
}

func (s *Server) handleCreateCollection(ctx context.Context, input *CreateCollectionInput) (*CollectionOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	objectType, ok := domain.ParseObjectType(input.Body.ObjectType)
	if !ok {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"object_type": "must be one of: TimeSeries Site Asset",
		})
	}

	c, err := s.services.Registry.Create(ctx, ws.ID, service.CreateCollectionRequest{
		Name:       input.Body.Name,
		ObjectType: objectType,
		Emoji:      input.Body.Emoji,
		ViewType:   domain.ViewType(input.Body.ViewType),
		CreatedBy:  input.Body.CreatedBy,
	})
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: dto.FromCollection(c)}, nil
}

func (s *Server) handleGetCollection(ctx context.Context, input *dto.CollectionParam) (*CollectionOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	c, err := s.services.Registry.Get(ctx, ws.ID, input.ID)
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: dto.FromCollection(c)}, nil
}

func (s *Server) handleUpdateCollection(ctx context.Context, input *UpdateCollectionInput) (*CollectionOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	patch := domain.CollectionPatch{
		Name:    input.Body.Name,
		Emoji:   input.Body.Emoji,
		Columns: dto.ToColumns(input.Body.Attributes),
	}
	if input.Body.ViewType != nil {
		view := domain.ViewType(*input.Body.ViewType)
		patch.ViewType = &view
	}

	c, err := s.services.Registry.Update(ctx, ws.ID, input.ID, patch)
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: dto.FromCollection(c)}, nil
}

func (s *Server) handleSetCollectionFavorite(ctx context.Context, input *SetFavoriteInput) (*CollectionOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	c, err := s.services.Registry.SetFavorite(ctx, ws.ID, input.ID, input.Body.IsFavorite)
	if err != nil {
		return nil, err
	}

	return &CollectionOutput{Body: dto.FromCollection(c)}, nil
}

func (s *Server) handleSetDefaultCollection(ctx context.Context, input *SetDefaultInput) (*CollectionOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if input.Body.IsDefault {
		c, err := s.services.Registry.SetDefault(ctx, ws.ID, input.ID)
		if err != nil {
			return nil, err
		}
		return &CollectionOutput{Body: dto.FromCollection(c)}, nil
	}

	c, err := s.services.Registry.Get(ctx, ws.ID, input.ID)
	if err != nil {
		return nil, err
	}
	if c.IsDefault {
		if err := s.services.Registry.ClearDefault(ctx, ws.ID); err != nil {
			return nil, err
		}
		c.IsDefault = false
	}
	return &CollectionOutput{Body: dto.FromCollection(c)}, nil
}

func (s *Server) handleDeleteCollection(ctx context.Context, input *dto.CollectionParam) (*dto.MessageOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	if err := s.services.Registry.Delete(ctx, ws.ID, input.ID); err != nil {
		return nil, err
	}

	return &dto.MessageOutput{Body: dto.MessageResponse{Message: "Collection deleted"}}, nil
}
