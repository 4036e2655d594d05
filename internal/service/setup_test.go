package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/search"
	"github.com/rebase-energy/workspace-server/internal/store"
	"github.com/rebase-energy/workspace-server/internal/store/sqlite"
	"github.com/rebase-energy/workspace-server/internal/validation"
)

const testSlug = "default"

// flakyGateway fails every write while failWrites is set. Reads pass through.
type flakyGateway struct {
	store.Gateway
	failWrites atomic.Bool
	writes     atomic.Int32
}

func (g *flakyGateway) write() error {
	g.writes.Add(1)
	if g.failWrites.Load() {
		return store.ErrTransport.WithMessage("connection reset")
	}
	return nil
}

func (g *flakyGateway) CreateCollection(ctx context.Context, c *domain.Collection) error {
	if err := g.write(); err != nil {
		return err
	}
	return g.Gateway.CreateCollection(ctx, c)
}

func (g *flakyGateway) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	if err := g.write(); err != nil {
		return err
	}
	return g.Gateway.UpdateCollection(ctx, c)
}

func (g *flakyGateway) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	if err := g.write(); err != nil {
		return err
	}
	return g.Gateway.UpdateWorkspace(ctx, ws)
}

func (g *flakyGateway) CreateEntityWithMembership(ctx context.Context, e *domain.Entity, collectionID string) error {
	if err := g.write(); err != nil {
		return err
	}
	return g.Gateway.CreateEntityWithMembership(ctx, e, collectionID)
}

func (g *flakyGateway) InsertMembership(ctx context.Context, m domain.Membership) error {
	if err := g.write(); err != nil {
		return err
	}
	return g.Gateway.InsertMembership(ctx, m)
}

func (g *flakyGateway) ReplaceMembership(ctx context.Context, collectionID string, entityIDs []string) error {
	if err := g.write(); err != nil {
		return err
	}
	return g.Gateway.ReplaceMembership(ctx, collectionID, entityIDs)
}

type testEnv struct {
	gateway     *flakyGateway
	store       *sqlite.Store
	cache       *cache.EntityCache
	workspaces  *WorkspaceService
	registry    *CollectionRegistry
	coordinator *MembershipCoordinator
	search      *SearchService
	bootstrap   *Bootstrap
}

func newEnvWithGateway(t *testing.T, gateway store.Gateway, seedDemo bool) *testEnv {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	entityCache := cache.New(gateway, logger)
	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	emitter := store.NewNoopEmitter()
	validator := validation.New()
	searchService := NewSearchService(index, entityCache, logger)
	workspaces := NewWorkspaceService(gateway, entityCache, emitter, validator, logger)
	registry := NewCollectionRegistry(gateway, entityCache, workspaces, emitter, validator, logger)
	coordinator := NewMembershipCoordinator(gateway, entityCache, registry, searchService, emitter, logger)
	bootstrap := NewBootstrap(workspaces, registry, searchService, gateway, entityCache,
		BootstrapOptions{PrimarySlug: testSlug, SeedDemoData: seedDemo}, logger)

	return &testEnv{
		cache:       entityCache,
		workspaces:  workspaces,
		registry:    registry,
		coordinator: coordinator,
		search:      searchService,
		bootstrap:   bootstrap,
	}
}

// newTestEnv wires every service over a fresh SQLite database.
func newTestEnv(t *testing.T, seedDemo bool) *testEnv {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	gateway := &flakyGateway{Gateway: s}
	env := newEnvWithGateway(t, gateway, seedDemo)
	env.gateway = gateway
	env.store = s
	return env
}

func (env *testEnv) workspace(t *testing.T) *domain.Workspace {
	t.Helper()
	ws, err := env.bootstrap.Ensure(context.Background(), testSlug)
	require.NoError(t, err)
	return ws
}

func (env *testEnv) createSeries(t *testing.T, ws *domain.Workspace, name string) *domain.Entity {
	t.Helper()
	e, err := env.coordinator.CreateEntity(context.Background(), ws.ID, &domain.TimeSeries{Name: name})
	require.NoError(t, err)
	return e
}

func names(entities []*domain.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Name())
	}
	return out
}
