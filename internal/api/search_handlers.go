package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspaces/{slug}/search",
		Summary:     "Search entities",
		Description: "Full-text search across the workspace's entities",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching a workspace.
type SearchInput struct {
	dto.WorkspaceParam
	Query  string `query:"q" minLength:"1" maxLength:"200" required:"true" doc:"Search query"`
	Types  string `query:"type" maxLength:"100" doc:"Comma-separated entity types (TimeSeries,Site,Asset). Omit for all."`
	Limit  int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Facets bool   `query:"facets" doc:"Include type facets in response"`
}

// SearchHitResult contains a single search result.
type SearchHitResult struct {
	ID         string            `json:"id" doc:"Entity ID"`
	EntityType string            `json:"entity_type" doc:"Entity type"`
	Score      float64           `json:"score" doc:"Search relevance score"`
	Name       string            `json:"name" doc:"Display name"`
	SiteName   string            `json:"site_name,omitempty" doc:"Site (for time series)"`
	Unit       string            `json:"unit,omitempty" doc:"Unit (for time series)"`
	Status     string            `json:"status,omitempty" doc:"Status (for sites and assets)"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value" doc:"Facet value"`
	Count int    `json:"count" doc:"Number of matches"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string            `json:"query" doc:"Original search query"`
	Total  int64             `json:"total" doc:"Total matches"`
	TookMs int64             `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []SearchHitResult `json:"hits" doc:"Search results"`
	Types  []FacetCount      `json:"types,omitempty" doc:"Matches per entity type"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	var types []domain.ObjectType
	if input.Types != "" {
		for t := range strings.SplitSeq(input.Types, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			objectType, ok := domain.ParseObjectType(t)
			if !ok {
				return nil, domainerrors.Validationf("unknown entity type %q", t)
			}
			types = append(types, objectType)
		}
	}

	ws, err := s.workspace(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Search.Search(ctx, ws.ID, input.Query, types, input.Limit)
	if err != nil {
		s.logger.Error("Search failed", "error", err, "query", input.Query, "workspace_id", ws.ID)
		return nil, err
	}

	s.logger.Debug("Search completed",
		"query", input.Query,
		"total", result.Total,
		"hits", len(result.Hits),
		"took_ms", result.TookMs,
	)

	resp := SearchResponse{
		Query:  input.Query,
		Total:  int64(result.Total), //nolint:gosec // Safe: total count won't exceed int64
		TookMs: result.TookMs,
		Hits:   make([]SearchHitResult, 0, len(result.Hits)),
	}
	for i := range result.Hits {
		hit := &result.Hits[i]
		resp.Hits = append(resp.Hits, SearchHitResult{
			ID:         hit.ID,
			EntityType: hit.EntityType,
			Score:      hit.Score,
			Name:       hit.Name,
			SiteName:   hit.SiteName,
			Unit:       hit.Unit,
			Status:     hit.Status,
			Highlights: hit.Highlights,
		})
	}
	if input.Facets {
		for _, f := range result.Facets.Types {
			resp.Types = append(resp.Types, FacetCount{Value: f.Value, Count: f.Count})
		}
	}

	return &SearchOutput{Body: resp}, nil
}
