package providers

import (
	"github.com/samber/do/v2"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/config"
	"github.com/rebase-energy/workspace-server/internal/logger"
	"github.com/rebase-energy/workspace-server/internal/search"
	"github.com/rebase-energy/workspace-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Search.IndexPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "in_memory", cfg.Search.IndexPath == "")

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	entityCache := do.MustInvoke[*cache.EntityCache](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, entityCache, log.Logger), nil
}
