// Package search provides full-text search over workspace entities using Bleve.
// Collection views filter linearly in memory; this index serves workspace-wide
// search with fuzzy matching and type facets.
package search

import (
	"github.com/rebase-energy/workspace-server/internal/domain"
)

// SearchDocument is the flattened form of an entity in the Bleve index.
// Variant-specific fields are left empty when they do not apply.
type SearchDocument struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	EntityType  string `json:"entity_type"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Kind        string `json:"kind,omitempty"` // series type, site type or asset type
	Status      string `json:"status,omitempty"`
	Location    string `json:"location,omitempty"`

	Tags []string `json:"tags,omitempty"`

	CreatedAt int64 `json:"created_at"` // Unix millis
	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with the field names used by the mapping.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":           d.ID,
		"workspace_id": d.WorkspaceID,
		"entity_type":  d.EntityType,
		"name":         d.Name,
		"created_at":   d.CreatedAt,
		"updated_at":   d.UpdatedAt,
	}

	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Unit != "" {
		m["unit"] = d.Unit
	}
	if d.SiteName != "" {
		m["site_name"] = d.SiteName
	}
	if d.Kind != "" {
		m["kind"] = d.Kind
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	if d.Location != "" {
		m["location"] = d.Location
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}

	return m
}

// EntityToSearchDocument converts an entity to its index document.
func EntityToSearchDocument(e *domain.Entity) *SearchDocument {
	doc := &SearchDocument{
		ID:          e.ID,
		WorkspaceID: e.WorkspaceID,
		EntityType:  string(e.Type()),
		Name:        e.Name(),
		CreatedAt:   e.CreatedAt.UnixMilli(),
		UpdatedAt:   e.UpdatedAt.UnixMilli(),
	}

	switch p := e.Payload.(type) {
	case *domain.TimeSeries:
		doc.Description = p.Description
		doc.Unit = p.Unit
		doc.SiteName = p.SiteName
		doc.Kind = string(p.Type)
		doc.Tags = p.Tags
	case *domain.Site:
		doc.Description = p.Description
		doc.Kind = p.SiteType
		doc.Status = p.Status
		doc.Location = p.Location
		doc.Tags = p.Tags
	case *domain.Asset:
		doc.Description = p.Description
		doc.SiteName = p.SiteName
		doc.Kind = p.AssetType
		doc.Status = p.Status
		doc.Tags = p.Tags
	}

	return doc
}
