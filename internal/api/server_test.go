package api

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebase-energy/workspace-server/internal/api/dto"
	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/search"
	"github.com/rebase-energy/workspace-server/internal/service"
	"github.com/rebase-energy/workspace-server/internal/sse"
	"github.com/rebase-energy/workspace-server/internal/store"
	"github.com/rebase-energy/workspace-server/internal/store/sqlite"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

const (
	testSlug    = "default"
	wsPath      = "/api/v1/workspaces/" + testSlug
	seriesColID = service.DefaultTimeSeriesKey
)

// failingGateway fails collection writes while fail is set.
type failingGateway struct {
	store.Gateway
	fail atomic.Bool
}

func (g *failingGateway) CreateCollection(ctx context.Context, c *domain.Collection) error {
	if g.fail.Load() {
		return store.ErrTransport.WithMessage("connection reset")
	}
	return g.Gateway.CreateCollection(ctx, c)
}

type testServer struct {
	*Server
	api     humatest.TestAPI
	gateway *failingGateway
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	gateway := &failingGateway{Gateway: db}

	sseManager := sse.NewManager(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go sseManager.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = sseManager.Shutdown(context.Background())
	})

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	entityCache := cache.New(gateway, logger)
	validator := validation.New()
	searchService := service.NewSearchService(index, entityCache, logger)
	workspaces := service.NewWorkspaceService(gateway, entityCache, sseManager, validator, logger)
	registry := service.NewCollectionRegistry(gateway, entityCache, workspaces, sseManager, validator, logger)
	coordinator := service.NewMembershipCoordinator(gateway, entityCache, registry, searchService, sseManager, logger)
	bootstrap := service.NewBootstrap(workspaces, registry, searchService, gateway, entityCache,
		service.BootstrapOptions{PrimarySlug: testSlug}, logger)

	server := NewServer(gateway, &Services{
		Workspaces:  workspaces,
		Registry:    registry,
		Coordinator: coordinator,
		Search:      searchService,
		Bootstrap:   bootstrap,
		Cache:       entityCache,
	}, sseManager, opts, logger)
	t.Cleanup(server.Close)

	return &testServer{
		Server:  server,
		api:     humatest.Wrap(t, server.API()),
		gateway: gateway,
	}
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func (ts *testServer) createCollection(t *testing.T, name, objectType string) dto.CollectionResponse {
	t.Helper()
	resp := ts.api.Post(wsPath+"/collections", map[string]any{"name": name, "object_type": objectType})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[dto.CollectionResponse](t, resp)
}

func (ts *testServer) createSeries(t *testing.T, collectionID, name string) dto.EntityResponse {
	t.Helper()
	resp := ts.api.Post(wsPath+"/collections/"+collectionID+"/entities", map[string]any{
		"data": map[string]any{"name": name, "site_name": "North", "unit": "MW"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[dto.EntityResponse](t, resp)
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	health := decode[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["store"].Status)
	assert.Equal(t, "no connected clients", health.Components["sse"].Message)
}

func TestGetWorkspace(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get(wsPath)
	require.Equal(t, http.StatusOK, resp.Code)

	ws := decode[WorkspaceResponse](t, resp)
	assert.Equal(t, testSlug, ws.Slug)
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, "Dark", ws.Settings.Theme)
}

func TestUpdateSettings_ClampsSidebarWidth(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Patch(wsPath+"/settings", map[string]any{"sidebar_width": 5000, "theme": "Light"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	ws := decode[WorkspaceResponse](t, resp)
	assert.Equal(t, domain.MaxSidebarWidth, ws.Settings.SidebarWidth)
	assert.Equal(t, "Light", ws.Settings.Theme)
}

func TestListCollections_Bootstrap(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get(wsPath + "/collections")
	require.Equal(t, http.StatusOK, resp.Code)

	list := decode[ListCollectionsResponse](t, resp)
	require.Len(t, list.Collections, 2)
	ids := []string{list.Collections[0].ID, list.Collections[1].ID}
	assert.ElementsMatch(t, []string{service.DefaultTimeSeriesKey, service.EsettDataKey}, ids)
}

func TestCreateCollection(t *testing.T) {
	ts := setupTestServer(t, Options{})

	c := ts.createCollection(t, "Wind parks", "site")
	assert.Equal(t, "Site", c.ObjectType)
	assert.Equal(t, "table", c.ViewType)
	assert.NotEmpty(t, c.Attributes)
	assert.False(t, c.IsDefault)

	resp := ts.api.Get(wsPath + "/collections/" + c.ID)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "Wind parks", decode[dto.CollectionResponse](t, resp).Name)
}

func TestCreateCollection_Validation(t *testing.T) {
	ts := setupTestServer(t, Options{})

	tests := []struct {
		name   string
		body   map[string]any
		status int
	}{
		{
			name:   "unknown object type",
			body:   map[string]any{"name": "X", "object_type": "Turbine"},
			status: http.StatusBadRequest,
		},
		{
			name:   "blank name",
			body:   map[string]any{"name": "   ", "object_type": "Site"},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown view type",
			body:   map[string]any{"name": "X", "object_type": "Site", "view_type": "kanban"},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing name",
			body:   map[string]any{"object_type": "Site"},
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(wsPath+"/collections", tt.body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			assert.Equal(t, "VALIDATION", decode[APIError](t, resp).Code)
		})
	}

	list := decode[ListCollectionsResponse](t, ts.api.Get(wsPath+"/collections"))
	assert.Len(t, list.Collections, 2)
}

func TestCreateCollection_TransportFailureIsRetryable(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.api.Get(wsPath)
	ts.gateway.fail.Store(true)

	resp := ts.api.Post(wsPath+"/collections", map[string]any{"name": "Lost", "object_type": "Asset"})
	require.Equal(t, http.StatusBadGateway, resp.Code)
	apiErr := decode[APIError](t, resp)
	assert.Equal(t, "TRANSPORT", apiErr.Code)
	assert.True(t, apiErr.Retryable)

	ts.gateway.fail.Store(false)
	list := decode[ListCollectionsResponse](t, ts.api.Get(wsPath+"/collections"))
	assert.Len(t, list.Collections, 2)
}

func TestGetCollection_NotFound(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get(wsPath + "/collections/col-missing")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, resp).Code)
}

func TestUpdateCollection(t *testing.T) {
	ts := setupTestServer(t, Options{})
	c := ts.createCollection(t, "Meters", "Asset")

	resp := ts.api.Patch(wsPath+"/collections/"+c.ID, map[string]any{
		"name":      "Smart meters",
		"emoji":     "🔌",
		"view_type": "time_series_cards",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	updated := decode[dto.CollectionResponse](t, resp)
	assert.Equal(t, "Smart meters", updated.Name)
	assert.Equal(t, "🔌", updated.Emoji)
	assert.Equal(t, "time_series_cards", updated.ViewType)

	resp = ts.api.Put(wsPath+"/collections/"+c.ID+"/favorite", map[string]any{"is_favorite": true})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[dto.CollectionResponse](t, resp).IsFavorite)
}

func TestSetDefaultCollection_SinglePointer(t *testing.T) {
	ts := setupTestServer(t, Options{})
	a := ts.createCollection(t, "A", "Site")
	b := ts.createCollection(t, "B", "Site")

	for _, id := range []string{a.ID, b.ID} {
		resp := ts.api.Put(wsPath+"/collections/"+id+"/default", map[string]any{"is_default": true})
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	list := decode[ListCollectionsResponse](t, ts.api.Get(wsPath+"/collections"))
	var defaults []string
	for _, c := range list.Collections {
		if c.IsDefault {
			defaults = append(defaults, c.ID)
		}
	}
	assert.Equal(t, []string{b.ID}, defaults)

	ws := decode[WorkspaceResponse](t, ts.api.Get(wsPath))
	assert.Equal(t, b.ID, ws.Settings.DefaultCollectionID)

	resp := ts.api.Put(wsPath+"/collections/"+b.ID+"/default", map[string]any{"is_default": false})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[dto.CollectionResponse](t, resp).IsDefault)
}

func TestDeleteCollection_KeepsEntities(t *testing.T) {
	ts := setupTestServer(t, Options{})
	c := ts.createCollection(t, "Temp", "TimeSeries")
	e := ts.createSeries(t, c.ID, "Solar A")

	resp := ts.api.Delete(wsPath + "/collections/" + c.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, http.StatusNotFound, ts.api.Get(wsPath+"/collections/"+c.ID).Code)
	assert.Equal(t, http.StatusOK, ts.api.Get(wsPath+"/entities/"+e.ID).Code)
}

func TestCollectionEntities(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createSeries(t, seriesColID, "Wind Farm North")
	ts.createSeries(t, seriesColID, "Solar Plant")

	resp := ts.api.Get(wsPath + "/collections/" + seriesColID + "/entities")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[EntityListResponse](t, resp)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "Wind Farm North", list.Entities[0].Name)

	resp = ts.api.Get(wsPath + "/collections/" + seriesColID + "/entities?q=SOLAR")
	require.Equal(t, http.StatusOK, resp.Code)
	list = decode[EntityListResponse](t, resp)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Solar Plant", list.Entities[0].Name)
}

func TestCreateEntityInCollection_AppliesDefaults(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post(wsPath+"/collections/"+seriesColID+"/entities", map[string]any{
		"data": map[string]any{"name": "Bare"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	e := decode[dto.EntityResponse](t, resp)
	assert.Equal(t, "TimeSeries", e.EntityType)
	data, ok := e.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "kW", data["unit"])
}

func TestCreateEntityInCollection_TypeMismatch(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post(wsPath+"/collections/"+seriesColID+"/entities", map[string]any{
		"entity_type": "Site",
		"data":        map[string]any{"name": "Wrong"},
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	counts := decode[EntityCountsResponse](t, ts.api.Get(wsPath+"/entity-counts"))
	assert.Equal(t, 0, counts.Counts[seriesColID])
}

func TestMemberships(t *testing.T) {
	ts := setupTestServer(t, Options{})
	other := ts.createCollection(t, "Portfolio", "TimeSeries")
	e := ts.createSeries(t, seriesColID, "Hydro 1")

	path := wsPath + "/collections/" + other.ID + "/entities/" + e.ID
	for range 2 {
		resp := ts.api.Put(path)
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	counts := decode[EntityCountsResponse](t, ts.api.Get(wsPath+"/entity-counts"))
	assert.Equal(t, 1, counts.Counts[seriesColID])
	assert.Equal(t, 1, counts.Counts[other.ID])
	assert.Equal(t, 0, counts.Counts[service.EsettDataKey])

	detail := decode[EntityDetailResponse](t, ts.api.Get(wsPath+"/entities/"+e.ID))
	assert.ElementsMatch(t, []string{seriesColID, other.ID}, detail.CollectionIDs)

	require.Equal(t, http.StatusOK, ts.api.Delete(path).Code)
	counts = decode[EntityCountsResponse](t, ts.api.Get(wsPath+"/entity-counts"))
	assert.Equal(t, 0, counts.Counts[other.ID])
}

func TestSetCollectionEntities(t *testing.T) {
	ts := setupTestServer(t, Options{})
	other := ts.createCollection(t, "Ordered", "TimeSeries")
	a := ts.createSeries(t, seriesColID, "A")
	b := ts.createSeries(t, seriesColID, "B")

	resp := ts.api.Put(wsPath+"/collections/"+other.ID+"/entities", map[string]any{
		"entity_ids": []string{b.ID, a.ID},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	list := decode[EntityListResponse](t, ts.api.Get(wsPath+"/collections/"+other.ID+"/entities"))
	require.Len(t, list.Entities, 2)
	assert.Equal(t, []string{"B", "A"}, []string{list.Entities[0].Name, list.Entities[1].Name})

	resp = ts.api.Put(wsPath+"/collections/"+other.ID+"/entities", map[string]any{
		"entity_ids": []string{a.ID, "missing"},
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEntities_CRUD(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post(wsPath+"/entities", map[string]any{
		"entity_type": "Site",
		"data":        map[string]any{"name": "Ranasjo", "status": "active"},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	site := decode[dto.EntityResponse](t, resp)

	resp = ts.api.Patch(wsPath+"/entities/"+site.ID, map[string]any{
		"data": map[string]any{"name": "Ranasjo Wind", "status": "active"},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Ranasjo Wind", decode[dto.EntityResponse](t, resp).Name)

	list := decode[EntityListResponse](t, ts.api.Get(wsPath+"/entities?type=sites&q=wind"))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, site.ID, list.Entities[0].ID)

	require.Equal(t, http.StatusOK, ts.api.Delete(wsPath+"/entities/"+site.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Get(wsPath+"/entities/"+site.ID).Code)
}

func TestCreateEntity_RequiresType(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post(wsPath+"/entities", map[string]any{"data": map[string]any{"name": "Untyped"}})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Get(wsPath + "/entities?type=Turbine")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSearch(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createSeries(t, seriesColID, "Blackfjallet production")
	ts.createSeries(t, seriesColID, "Storberget forecast")

	resp := ts.api.Get(wsPath + "/search?q=blackfjallet")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	result := decode[SearchResponse](t, resp)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "Blackfjallet production", result.Hits[0].Name)
	assert.Equal(t, "TimeSeries", result.Hits[0].EntityType)

	resp = ts.api.Get(wsPath + "/search?q=blackfjallet&type=Site")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, decode[SearchResponse](t, resp).Hits)
}

func TestInvalidateCache(t *testing.T) {
	ts := setupTestServer(t, Options{})
	e := ts.createSeries(t, seriesColID, "Persisted")

	resp := ts.api.Post(wsPath+"/cache/invalidate", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, []string{"types", "membership", "collections"}, decode[InvalidateCacheResponse](t, resp).Invalidated)

	list := decode[EntityListResponse](t, ts.api.Get(wsPath+"/collections/"+seriesColID+"/entities"))
	require.Len(t, list.Entities, 1)
	assert.Equal(t, e.ID, list.Entities[0].ID)

	resp = ts.api.Post(wsPath+"/cache/invalidate", map[string]any{"scopes": []string{"bogus"}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRateLimit_OnlyMutations(t *testing.T) {
	ts := setupTestServer(t, Options{RateLimit: 2})

	for range 2 {
		ts.createCollection(t, "Allowed", "Site")
	}

	resp := ts.api.Post(wsPath+"/collections", map[string]any{"name": "Blocked", "object_type": "Site"})
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, ts.api.Get(wsPath+"/collections").Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[APIError](t, w).Code)
}
