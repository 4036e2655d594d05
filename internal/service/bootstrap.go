package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/id"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// Built-in collection keys. In the primary workspace they are the
// collection ids; other workspaces prefix them with their slug.
const (
	DefaultTimeSeriesKey = "default-timeseries"
	EsettDataKey         = "esett-data"
)

// BootstrapOptions configures workspace seeding.
type BootstrapOptions struct {
	PrimarySlug  string
	SeedDemoData bool
}

// Bootstrap resolves workspaces and gives each one its built-in collections
// the first time it is used in this process.
type Bootstrap struct {
	workspaces *WorkspaceService
	registry   *CollectionRegistry
	search     *SearchService
	gateway    store.Gateway
	cache      *cache.EntityCache
	opts       BootstrapOptions
	logger     *slog.Logger

	group  singleflight.Group
	seeded *cache.SyncMap[string, bool]
}

// NewBootstrap creates a new bootstrap service.
func NewBootstrap(
	workspaces *WorkspaceService,
	registry *CollectionRegistry,
	search *SearchService,
	gateway store.Gateway,
	entityCache *cache.EntityCache,
	opts BootstrapOptions,
	logger *slog.Logger,
) *Bootstrap {
	return &Bootstrap{
		workspaces: workspaces,
		registry:   registry,
		search:     search,
		gateway:    gateway,
		cache:      entityCache,
		opts:       opts,
		logger:     logger,
		seeded:     cache.NewSyncMap[string, bool](),
	}
}

// Ensure resolves a workspace by slug and seeds it. Seeding runs again
// after the workspace's cached scopes were invalidated, which restores
// built-ins that only live in memory. A seeding failure is logged and does
// not fail the request.
func (b *Bootstrap) Ensure(ctx context.Context, slug string) (*domain.Workspace, error) {
	ws, err := b.workspaces.Ensure(ctx, slug)
	if err != nil {
		return nil, err
	}
	if b.isSeeded(ws.ID) {
		return ws, nil
	}

	_, _, _ = b.group.Do(ws.ID, func() (any, error) {
		if b.isSeeded(ws.ID) {
			return nil, nil
		}
		if err := b.Seed(context.WithoutCancel(ctx), ws); err != nil {
			b.logger.Warn("workspace seeding failed", "workspace_id", ws.ID, "error", err)
			if domainerrors.Retryable(err) {
				return nil, nil
			}
		}
		b.seeded.Store(ws.ID, true)
		return nil, nil
	})
	return ws, nil
}

func (b *Bootstrap) isSeeded(workspaceID string) bool {
	if _, ok := b.seeded.Load(workspaceID); !ok {
		return false
	}
	if b.cache.State(cache.CollectionsScope(workspaceID)) != cache.Loaded {
		return false
	}
	return !b.opts.SeedDemoData || b.cache.State(cache.MembershipScope(workspaceID)) == cache.Loaded
}

// CollectionID returns the id of a built-in collection within ws.
func (b *Bootstrap) CollectionID(ws *domain.Workspace, key string) string {
	if ws.Slug == b.opts.PrimarySlug {
		return key
	}
	return ws.Slug + "--" + key
}

func (b *Bootstrap) builtins(ws *domain.Workspace) []*domain.Collection {
	text := func(label, key string) domain.Column {
		return domain.Column{Key: key, Label: label, Kind: domain.KindText, Visible: true}
	}
	return []*domain.Collection{
		{
			ID:          b.CollectionID(ws, DefaultTimeSeriesKey),
			WorkspaceID: ws.ID,
			Name:        "Time Series",
			ObjectType:  domain.ObjectTimeSeries,
			Emoji:       "📊",
			ViewType:    domain.ViewTable,
			Columns: []domain.Column{
				text("Name", "name"),
				text("Description", "description"),
				text("Unit", "unit"),
				text("Site", "site_name"),
				{Key: "timestamp", Label: "Timestamp", Kind: domain.KindDate, Visible: true},
				{Key: "value", Label: "Value", Kind: domain.KindNumber, Visible: true},
				{Key: "type", Label: "Type", Kind: domain.KindStatus, Visible: true},
				{Key: "tags", Label: "Tags", Kind: domain.KindTags, Visible: true},
			},
		},
		{
			ID:          b.CollectionID(ws, EsettDataKey),
			WorkspaceID: ws.ID,
			Name:        "Esett data",
			ObjectType:  domain.ObjectTimeSeries,
			Emoji:       "📈",
			ViewType:    domain.ViewCardGrid,
			Columns: []domain.Column{
				text("Name", "name"),
				text("Description", "description"),
				text("Unit", "unit"),
			},
		},
	}
}

// Seed creates any missing built-in collection. With demo data enabled, the
// four capacity series are added whenever the Esett collection is empty.
// Without a configured store the collections live only in memory.
func (b *Bootstrap) Seed(ctx context.Context, ws *domain.Workspace) error {
	existing, err := b.registry.List(ctx, ws.ID)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, c := range existing {
		present[c.ID] = true
	}

	esettID := b.CollectionID(ws, EsettDataKey)
	for _, c := range b.builtins(ws) {
		if present[c.ID] {
			continue
		}
		if err := b.registry.insert(ctx, c); err != nil {
			if !domainerrors.Is(err, domainerrors.ErrNotConfigured) {
				return err
			}
			now := time.Now().UTC()
			c.CreatedAt, c.UpdatedAt = now, now
			b.cache.PutCollection(ws.ID, c)
		}
		b.logger.Info("built-in collection created", "workspace_id", ws.ID, "collection_id", c.ID)
	}

	if !b.opts.SeedDemoData {
		return nil
	}
	if err := b.cache.EnsureLoaded(ctx, cache.MembershipScope(ws.ID)); err != nil {
		return err
	}
	if len(b.cache.MembershipIDs(ws.ID, esettID)) > 0 {
		return nil
	}
	return b.seedEsett(ctx, ws, esettID)
}

type capacitySeed struct {
	key      string
	name     string
	siteName string
	value    float64
}

var esettSeeds = []capacitySeed{
	{key: "blackfjallet", name: "Blackfjället", siteName: "Blackfjället", value: 90.2},
	{key: "ranasjo", name: "Ranasjo", siteName: "Ranasjo", value: 150.0},
	{key: "storberget", name: "Storberget", siteName: "Storberget", value: 75.5},
	{key: "vindpark-nord", name: "Vindpark Nord", siteName: "Northern Region", value: 200.0},
}

func (b *Bootstrap) seedEsett(ctx context.Context, ws *domain.Workspace, collectionID string) error {
	now := time.Now().UTC()
	entities := make([]*domain.Entity, 0, len(esettSeeds))
	ids := make([]string, 0, len(esettSeeds))
	for _, seed := range esettSeeds {
		p := &domain.TimeSeries{
			Name:        seed.name,
			Description: seed.name + " wind farm",
			Unit:        "MW",
			SiteName:    seed.siteName,
			Timestamp:   now.Format(time.RFC3339),
			Value:       seed.value,
			Type:        domain.SeriesCapacity,
			Tags:        []string{},
		}
		domain.NormalizePayload(p)
		e := &domain.Entity{
			ID:          id.NamedEntityID(ws.ID, seed.key),
			WorkspaceID: ws.ID,
			Payload:     p,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		entities = append(entities, e)
		ids = append(ids, e.ID)
	}

	return b.cache.WithWriteLock(ws.ID, func() error {
		err := b.gateway.BulkUpsertEntities(ctx, entities)
		if err == nil {
			err = b.gateway.ReplaceMembership(ctx, collectionID, ids)
		}
		switch {
		case err == nil:
		case store.IsNotConfigured(err):
			b.logger.Debug("store not configured, demo data kept in memory", "workspace_id", ws.ID)
		default:
			b.logger.Error("failed to seed demo data", "workspace_id", ws.ID, "error", err)
			return storeError("seed demo data", err)
		}

		b.cache.ReplaceMembership(ws.ID, collectionID, entities)
		for _, e := range entities {
			b.search.IndexEntity(ctx, e)
		}
		b.logger.Info("demo data seeded", "workspace_id", ws.ID, "entities", len(entities))
		return nil
	})
}
