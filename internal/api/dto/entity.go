package dto

import (
	"encoding/json/v2"
	"fmt"
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// EntityResponse is an entity as sent to clients. Data holds the fields of
// the entity's variant.
type EntityResponse struct {
	ID          string    `json:"id" doc:"Entity ID (UUID)"`
	WorkspaceID string    `json:"workspace_id" doc:"Owning workspace"`
	EntityType  string    `json:"entity_type" enum:"TimeSeries,Site,Asset" doc:"Entity variant"`
	Name        string    `json:"name" doc:"Display name"`
	Data        any       `json:"data" doc:"Variant fields"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// FromEntity converts a domain entity.
func FromEntity(e *domain.Entity) EntityResponse {
	return EntityResponse{
		ID:          e.ID,
		WorkspaceID: e.WorkspaceID,
		EntityType:  string(e.Type()),
		Name:        e.Name(),
		Data:        e.Payload,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// FromEntities converts a list, never returning nil.
func FromEntities(entities []*domain.Entity) []EntityResponse {
	out := make([]EntityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, FromEntity(e))
	}
	return out
}

// EntityRequest is the body for creating or replacing an entity.
type EntityRequest struct {
	EntityType string         `json:"entity_type,omitempty" doc:"Entity variant; defaults to the collection's object type"`
	Data       map[string]any `json:"data" doc:"Variant fields, for example name, unit and site_name for a TimeSeries"`
}

// Payload decodes Data as the variant named by EntityType, or fallback
// when EntityType is empty.
func (r EntityRequest) Payload(fallback domain.ObjectType) (domain.Payload, error) {
	t := fallback
	if r.EntityType != "" {
		parsed, ok := domain.ParseObjectType(r.EntityType)
		if !ok {
			return nil, fmt.Errorf("unknown entity type %q", r.EntityType)
		}
		t = parsed
	}
	if t == "" {
		return nil, fmt.Errorf("entity_type is required")
	}

	raw, err := json.Marshal(r.Data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	return domain.DecodePayload(t, raw)
}
