package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	"github.com/rebase-energy/workspace-server/internal/domain"
)

func (s *Server) registerWorkspaceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getWorkspace",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}",
		Summary:     "Get workspace",
		Description: "Returns the workspace for a slug, creating and seeding it on first access",
		Tags:        []string{"Workspaces"},
	}, s.handleGetWorkspace)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateWorkspaceSettings",
		Method:      http.MethodPatch,
		Path:        "/api/v1/workspaces/{slug}/settings",
		Summary:     "Update settings",
		Description: "Applies a partial update to the workspace settings. Sidebar width is clamped to its bounds.",
		Tags:        []string{"Workspaces"},
	}, s.handleUpdateWorkspaceSettings)
}

// === DTOs ===

// SettingsResponse contains workspace preferences in API responses.
type SettingsResponse struct {
	Theme               string          `json:"theme" enum:"Light,Dark,System" doc:"UI theme"`
	AccentColor         string          `json:"accent_color" doc:"Accent color as a hex string"`
	SidebarWidth        int             `json:"sidebar_width" doc:"Sidebar width in pixels"`
	SidebarCollapsed    bool            `json:"sidebar_collapsed" doc:"Whether the sidebar is collapsed"`
	MenuVisibility      map[string]bool `json:"menu_item_visibility" doc:"Visibility per navigation entry"`
	DefaultCollectionID string          `json:"default_collection_id,omitempty" doc:"Collection opened when the workspace loads"`
}

// WorkspaceResponse contains workspace data in API responses.
type WorkspaceResponse struct {
	ID        string           `json:"id" doc:"Workspace ID"`
	Slug      string           `json:"slug" doc:"URL slug"`
	Name      string           `json:"name" doc:"Display name"`
	Settings  SettingsResponse `json:"settings" doc:"Workspace preferences"`
	CreatedAt time.Time        `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time        `json:"updated_at" doc:"Last update time"`
}

// WorkspaceOutput wraps the workspace response for Huma.
type WorkspaceOutput struct {
	Body WorkspaceResponse
}

// UpdateSettingsRequest is the request body for updating settings.
// Omitted fields are left unchanged.
type UpdateSettingsRequest struct {
	Theme            *string         `json:"theme,omitempty" enum:"Light,Dark,System" doc:"UI theme"`
	AccentColor      *string         `json:"accent_color,omitempty" doc:"Accent color as a hex string"`
	SidebarWidth     *int            `json:"sidebar_width,omitempty" doc:"Sidebar width in pixels"`
	SidebarCollapsed *bool           `json:"sidebar_collapsed,omitempty" doc:"Whether the sidebar is collapsed"`
	MenuVisibility   map[string]bool `json:"menu_item_visibility,omitempty" doc:"Visibility per navigation entry"`
}

// UpdateSettingsInput wraps the settings request for Huma.
type UpdateSettingsInput struct {
	dto.WorkspaceParam
	Body UpdateSettingsRequest
}

func toWorkspaceResponse(ws *domain.Workspace) WorkspaceResponse {
	return WorkspaceResponse{
		ID:   ws.ID,
		Slug: ws.Slug,
		Name: ws.Name,
		Settings: SettingsResponse{
			Theme:               string(ws.Settings.Theme),
			AccentColor:         ws.Settings.AccentColor,
			SidebarWidth:        ws.Settings.SidebarWidth,
			SidebarCollapsed:    ws.Settings.SidebarCollapsed,
			MenuVisibility:      ws.Settings.MenuVisibility,
			DefaultCollectionID: ws.Settings.DefaultCollectionID,
		},
		CreatedAt: ws.CreatedAt,
		UpdatedAt: ws.UpdatedAt,
	}
}

// === Handlers ===

func (s *Server) handleGetWorkspace(ctx context.Context, input *dto.WorkspaceParam) (*WorkspaceOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}
	return &WorkspaceOutput{Body: toWorkspaceResponse(ws)}, nil
}

func (s *Server) handleUpdateWorkspaceSettings(ctx context.Context, input *UpdateSettingsInput) (*WorkspaceOutput, error) {
	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	patch := domain.SettingsPatch{
		AccentColor:      input.Body.AccentColor,
		SidebarWidth:     input.Body.SidebarWidth,
		SidebarCollapsed: input.Body.SidebarCollapsed,
		MenuVisibility:   input.Body.MenuVisibility,
	}
	if input.Body.Theme != nil {
		theme := domain.Theme(*input.Body.Theme)
		patch.Theme = &theme
	}

	updated, err := s.services.Workspaces.UpdateSettings(ctx, ws.ID, patch)
	if err != nil {
		return nil, err
	}
	return &WorkspaceOutput{Body: toWorkspaceResponse(updated)}, nil
}
