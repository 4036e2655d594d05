package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/search"
)

// SearchService provides workspace-wide entity search.
// It keeps the Bleve index in step with entity writes and rebuilds a
// workspace's documents from the entity cache when they are missing.
type SearchService struct {
	index  *search.SearchIndex
	cache  *cache.EntityCache
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, entityCache *cache.EntityCache, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		cache:  entityCache,
		logger: logger,
	}
}

// Search runs a query within one workspace. Types are optional filters.
func (s *SearchService) Search(ctx context.Context, workspaceID, query string, types []domain.ObjectType, limit int) (*search.SearchResult, error) {
	if err := s.ensureIndexed(ctx, workspaceID); err != nil {
		s.logger.Warn("search reindex failed", "workspace_id", workspaceID, "error", err)
	}

	params := search.DefaultSearchParams()
	params.WorkspaceID = workspaceID
	params.Query = query
	if limit > 0 {
		params.Limit = min(limit, 100)
	}
	for _, t := range types {
		params.Types = append(params.Types, string(t))
	}

	return s.index.Search(ctx, params)
}

// ensureIndexed reindexes a workspace whose index is empty while the cache
// holds entities, as happens after a restart with an in-memory index.
func (s *SearchService) ensureIndexed(ctx context.Context, workspaceID string) error {
	n, err := s.index.CountWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return s.ReindexWorkspace(ctx, workspaceID)
}

// ReindexWorkspace indexes every cached entity of a workspace.
func (s *SearchService) ReindexWorkspace(ctx context.Context, workspaceID string) error {
	if err := s.cache.EnsureLoaded(ctx, cache.TypesScope(workspaceID)); err != nil {
		return err
	}

	var docs []*search.SearchDocument
	for _, t := range domain.ObjectTypes {
		for _, e := range s.cache.ByType(workspaceID, t) {
			docs = append(docs, search.EntityToSearchDocument(e))
		}
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.index.IndexDocuments(docs); err != nil {
		return fmt.Errorf("index entities: %w", err)
	}
	s.logger.Info("workspace reindexed", "workspace_id", workspaceID, "documents", len(docs))
	return nil
}

// IndexEntity indexes a single entity. Failures are logged; the index is
// a derived view and never blocks a write.
func (s *SearchService) IndexEntity(_ context.Context, e *domain.Entity) {
	if err := s.index.IndexDocument(search.EntityToSearchDocument(e)); err != nil {
		s.logger.Warn("failed to index entity", "entity_id", e.ID, "error", err)
		return
	}
	s.logger.Debug("indexed entity", "entity_id", e.ID, "name", e.Name())
}

// RemoveEntity removes an entity from the index.
func (s *SearchService) RemoveEntity(_ context.Context, entityID string) {
	if err := s.index.DeleteDocument(entityID); err != nil {
		s.logger.Warn("failed to remove entity from index", "entity_id", entityID, "error", err)
	}
}

// DocumentCount returns the number of indexed documents.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}
