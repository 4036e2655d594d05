package dto

import (
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// ColumnResponse describes one column of a collection's table view.
type ColumnResponse struct {
	Key     string `json:"key" doc:"Entity field rendered in this column"`
	Label   string `json:"label" doc:"Column header"`
	Kind    string `json:"kind" doc:"Rendering kind"`
	Visible bool   `json:"visible" doc:"Whether the column is shown"`
}

// CollectionResponse is a collection as sent to clients.
type CollectionResponse struct {
	ID          string           `json:"id" doc:"Collection ID"`
	WorkspaceID string           `json:"workspace_id" doc:"Owning workspace"`
	Name        string           `json:"name" doc:"Display name"`
	ObjectType  string           `json:"object_type" enum:"TimeSeries,Site,Asset" doc:"Type of entity the collection holds"`
	Emoji       string           `json:"emoji" doc:"Icon"`
	ViewType    string           `json:"view_type" enum:"table,time_series_cards" doc:"How the collection is rendered"`
	Attributes  []ColumnResponse `json:"attributes" doc:"Column schema"`
	IsFavorite  bool             `json:"is_favorite" doc:"Pinned by the user"`
	IsDefault   bool             `json:"is_default" doc:"Opened when the workspace loads"`
	CreatedBy   string           `json:"created_by,omitempty" doc:"Creator"`
	CreatedAt   time.Time        `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time        `json:"updated_at" doc:"Last update time"`
}

// FromCollection converts a domain collection.
func FromCollection(c *domain.Collection) CollectionResponse {
	cols := make([]ColumnResponse, 0, len(c.Columns))
	for _, col := range c.Columns {
		cols = append(cols, ColumnResponse{Key: col.Key, Label: col.Label, Kind: string(col.Kind), Visible: col.Visible})
	}
	return CollectionResponse{
		ID:          c.ID,
		WorkspaceID: c.WorkspaceID,
		Name:        c.Name,
		ObjectType:  string(c.ObjectType),
		Emoji:       c.Emoji,
		ViewType:    string(c.ViewType),
		Attributes:  cols,
		IsFavorite:  c.IsFavorite,
		IsDefault:   c.IsDefault,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// FromCollections converts a list, never returning nil.
func FromCollections(list []*domain.Collection) []CollectionResponse {
	out := make([]CollectionResponse, 0, len(list))
	for _, c := range list {
		out = append(out, FromCollection(c))
	}
	return out
}

// ColumnRequest is one column of a schema update.
type ColumnRequest struct {
	Key     string `json:"key" minLength:"1" doc:"Entity field"`
	Label   string `json:"label" doc:"Column header"`
	Kind    string `json:"kind,omitempty" doc:"Rendering kind, text when omitted"`
	Visible bool   `json:"visible" doc:"Whether the column is shown"`
}

// ToColumns converts a schema update.
func ToColumns(req []ColumnRequest) []domain.Column {
	if req == nil {
		return nil
	}
	out := make([]domain.Column, 0, len(req))
	for _, c := range req {
		kind := domain.ColumnKind(c.Kind)
		if kind == "" {
			kind = domain.KindText
		}
		out = append(out, domain.Column{Key: c.Key, Label: c.Label, Kind: kind, Visible: c.Visible})
	}
	return out
}
