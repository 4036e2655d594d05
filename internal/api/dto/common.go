// Package dto provides request and response types for the workspace API.
// These types are used by huma to generate OpenAPI documentation and perform validation.
package dto

// WorkspaceParam is the path parameter shared by every workspace route.
type WorkspaceParam struct {
	Slug string `path:"slug" minLength:"1" maxLength:"100" doc:"Workspace slug"`
}

// CollectionParam addresses one collection of a workspace.
type CollectionParam struct {
	WorkspaceParam
	ID string `path:"id" minLength:"1" doc:"Collection ID"`
}

// MessageResponse is a simple success message response.
type MessageResponse struct {
	Message string `json:"message" doc:"Success message"`
}

// MessageOutput wraps a message response for huma.
type MessageOutput struct {
	Body MessageResponse
}
