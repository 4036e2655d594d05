package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query       string   // User's search query
	WorkspaceID string   // Required: results never cross workspaces
	Types       []string // Entity types to include (empty = all)
	Tags        []string // Filter by exact tags (OR)

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "name", "recent"
	SortOrder string // "asc", "desc"

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitzero"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID         string            `json:"id"`
	EntityType string            `json:"entity_type"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	SiteName   string            `json:"site_name,omitempty"`
	Unit       string            `json:"unit,omitempty"`
	Status     string            `json:"status,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Types []FacetCount `json:"types,omitempty"`
	Tags  []FacetCount `json:"tags,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if params.WorkspaceID == "" {
		return nil, fmt.Errorf("search requires a workspace")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		searchRequest.AddFacet("entity_type", bleve.NewFacetRequest("entity_type", 10))
		searchRequest.AddFacet("tags", bleve.NewFacetRequest("tags", 20))
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("site_name")
	}

	searchRequest.Fields = []string{"entity_type", "name", "site_name", "unit", "status"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}
		searchHit.EntityType, _ = hit.Fields["entity_type"].(string)
		searchHit.Name, _ = hit.Fields["name"].(string)
		searchHit.SiteName, _ = hit.Fields["site_name"].(string)
		searchHit.Unit, _ = hit.Fields["unit"].(string)
		searchHit.Status, _ = hit.Fields["status"].(string)

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// CountWorkspace returns the number of documents indexed for a workspace.
func (s *SearchIndex) CountWorkspace(ctx context.Context, workspaceID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(workspaceQuery(workspaceID), 0, 0, false)
	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("count workspace documents: %w", err)
	}
	return res.Total, nil
}

func workspaceQuery(workspaceID string) query.Query {
	q := bleve.NewTermQuery(workspaceID)
	q.SetField("workspace_id")
	return q
}

// buildSearchQuery constructs the Bleve query from params.
//
// Text matches name first, then site and description. Fuzzy and prefix
// queries on name cover typos and type-ahead.
func buildSearchQuery(params SearchParams) query.Query {
	queries := []query.Query{workspaceQuery(params.WorkspaceID)}

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		siteMatch := bleve.NewMatchQuery(q)
		siteMatch.SetField("site_name")
		siteMatch.SetBoost(1.5)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")

		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, siteMatch, descMatch, fuzzyQuery}

		for _, field := range []string{"unit", "kind", "status"} {
			m := bleve.NewMatchQuery(q)
			m.SetField(field)
			m.SetBoost(0.5)
			textQueries = append(textQueries, m)
		}

		// Prefix query for autocomplete (minimum 2 chars)
		if len(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("entity_type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	if len(params.Tags) > 0 {
		tagQueries := make([]query.Query, len(params.Tags))
		for i, tag := range params.Tags {
			tq := bleve.NewTermQuery(tag)
			tq.SetField("tags")
			tagQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(tagQueries...))
	}

	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "name":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-name"})
		} else {
			req.SortBy([]string{"name"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"updated_at"})
		} else {
			req.SortBy([]string{"-updated_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}

	if typeFacet, ok := result.Facets["entity_type"]; ok && typeFacet.Terms != nil {
		for _, term := range typeFacet.Terms.Terms() {
			facets.Types = append(facets.Types, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	if tagFacet, ok := result.Facets["tags"]; ok && tagFacet.Terms != nil {
		for _, term := range tagFacet.Terms.Terms() {
			facets.Tags = append(facets.Tags, FacetCount{Value: term.Term, Count: term.Count})
		}
	}

	return facets
}
