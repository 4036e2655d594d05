// Package cache holds the in-memory projection of each workspace's entities,
// collection memberships and collection list. It is filled lazily from the
// store gateway and is never the source of truth.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// workspace is the cached state of one workspace.
//
// writeMu serializes whole mutation sequences (remote write then cache
// update) and is only taken through WithWriteLock. mu guards the maps and is
// held briefly by every read and update, so readers never wait on a remote call.
type workspace struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	state map[ScopeKind]ScopeState
	// gen is bumped by Invalidate so an in-flight load can detect that its
	// result is stale.
	gen map[ScopeKind]uint64

	entities     map[string]*domain.Entity
	byType       map[domain.ObjectType][]string
	byCollection map[string][]string
	collections  []*domain.Collection
}

func newWorkspace() *workspace {
	return &workspace{
		state:        make(map[ScopeKind]ScopeState),
		gen:          make(map[ScopeKind]uint64),
		entities:     make(map[string]*domain.Entity),
		byType:       make(map[domain.ObjectType][]string),
		byCollection: make(map[string][]string),
	}
}

// EntityCache is the per-workspace entity, membership and collection cache.
type EntityCache struct {
	gateway    store.Gateway
	logger     *slog.Logger
	workspaces *SyncMap[string, *workspace]
	group      singleflight.Group
}

// New creates an EntityCache backed by gateway.
func New(gateway store.Gateway, logger *slog.Logger) *EntityCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EntityCache{
		gateway:    gateway,
		logger:     logger,
		workspaces: NewSyncMap[string, *workspace](),
	}
}

// workspace gets or creates the state for a workspace id.
func (c *EntityCache) workspace(id string) *workspace {
	if ws, ok := c.workspaces.Load(id); ok {
		return ws
	}
	actual, _ := c.workspaces.LoadOrStore(id, newWorkspace())
	return actual
}

// State returns the load state of a scope.
func (c *EntityCache) State(scope Scope) ScopeState {
	ws := c.workspace(scope.WorkspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.state[scope.Kind]
}

// EnsureLoaded fetches a scope from the gateway once. Concurrent callers for
// the same scope share one fetch. A failed fetch is logged and the scope is
// still marked loaded with whatever was retrieved, so reads degrade to empty.
// The only error returned is the caller's own context error.
func (c *EntityCache) EnsureLoaded(ctx context.Context, scope Scope) error {
	if c.State(scope) == Loaded {
		return nil
	}
	if scope.Kind == ScopeMembership {
		if err := c.EnsureLoaded(ctx, TypesScope(scope.WorkspaceID)); err != nil {
			return err
		}
	}

	ws := c.workspace(scope.WorkspaceID)
	// The fetch outlives any single caller's cancellation; the gateway
	// applies its own call timeout.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(scope.String(), func() (any, error) {
		c.load(loadCtx, ws, scope)
		return nil, nil
	})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *EntityCache) load(ctx context.Context, ws *workspace, scope Scope) {
	ws.mu.Lock()
	if ws.state[scope.Kind] == Loaded {
		ws.mu.Unlock()
		return
	}
	ws.state[scope.Kind] = Loading
	gen := ws.gen[scope.Kind]
	ws.mu.Unlock()

	logger := c.logger.With("workspace_id", scope.WorkspaceID, "scope", string(scope.Kind))

	var apply func()
	switch scope.Kind {
	case ScopeTypes:
		lists, err := c.fetchTypes(ctx, scope.WorkspaceID)
		if err != nil {
			logger.Warn("entity load failed, serving partial results", "error", err)
		}
		apply = func() {
			for _, t := range domain.ObjectTypes {
				ids := make([]string, 0, len(lists[t]))
				for _, e := range lists[t] {
					ws.entities[e.ID] = e
					ids = append(ids, e.ID)
				}
				ws.byType[t] = ids
			}
		}

	case ScopeMembership:
		rows, err := c.gateway.ListMemberships(ctx, scope.WorkspaceID)
		if err != nil {
			logger.Warn("membership load failed, serving empty", "error", err)
			rows = nil
		}
		apply = func() {
			byCollection := make(map[string][]string)
			for _, m := range rows {
				// Ids whose entity is unknown are skipped.
				if _, ok := ws.entities[m.EntityID]; !ok {
					continue
				}
				if slices.Contains(byCollection[m.CollectionID], m.EntityID) {
					continue
				}
				byCollection[m.CollectionID] = append(byCollection[m.CollectionID], m.EntityID)
			}
			ws.byCollection = byCollection
		}

	case ScopeCollections:
		list, err := c.gateway.ListCollections(ctx, scope.WorkspaceID)
		if err != nil {
			logger.Warn("collection load failed, serving empty", "error", err)
			list = nil
		}
		apply = func() {
			// Collections created in memory while the store was unreachable survive.
			merged := list
			for _, existing := range ws.collections {
				if !slices.ContainsFunc(merged, func(c *domain.Collection) bool { return c.ID == existing.ID }) {
					merged = append(merged, existing)
				}
			}
			ws.collections = merged
		}

	default:
		logger.Error("unknown cache scope")
		return
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.gen[scope.Kind] != gen {
		logger.Debug("scope invalidated during load, discarding result")
		return
	}
	apply()
	ws.state[scope.Kind] = Loaded
	logger.Debug("scope loaded")
}

// fetchTypes loads all object types concurrently. The returned map holds every
// type that loaded; err reports the first failure.
func (c *EntityCache) fetchTypes(ctx context.Context, workspaceID string) (map[domain.ObjectType][]*domain.Entity, error) {
	results := make([][]*domain.Entity, len(domain.ObjectTypes))

	var g errgroup.Group
	for i, t := range domain.ObjectTypes {
		g.Go(func() error {
			list, err := c.gateway.ListEntitiesByType(ctx, t, workspaceID)
			if err != nil {
				return fmt.Errorf("list %s: %w", t, err)
			}
			results[i] = list
			return nil
		})
	}
	err := g.Wait()

	out := make(map[domain.ObjectType][]*domain.Entity, len(domain.ObjectTypes))
	for i, t := range domain.ObjectTypes {
		out[t] = results[i]
	}
	return out, err
}

// Invalidate drops a scope so the next EnsureLoaded refetches it.
// Invalidating the type registry also invalidates the membership scope.
func (c *EntityCache) Invalidate(scope Scope) {
	ws := c.workspace(scope.WorkspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.invalidate(scope.Kind)
	if scope.Kind == ScopeTypes {
		ws.invalidate(ScopeMembership)
	}
	c.logger.Debug("cache scope invalidated", "workspace_id", scope.WorkspaceID, "scope", string(scope.Kind))
}

// InvalidateWorkspace drops every scope of a workspace.
func (c *EntityCache) InvalidateWorkspace(workspaceID string) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, kind := range ScopeKinds {
		ws.invalidate(kind)
	}
	c.logger.Info("workspace cache invalidated", "workspace_id", workspaceID)
}

// invalidate must be called with mu held.
func (ws *workspace) invalidate(kind ScopeKind) {
	ws.gen[kind]++
	ws.state[kind] = Unloaded
	switch kind {
	case ScopeTypes:
		ws.entities = make(map[string]*domain.Entity)
		ws.byType = make(map[domain.ObjectType][]string)
	case ScopeMembership:
		ws.byCollection = make(map[string][]string)
	case ScopeCollections:
		ws.collections = nil
	}
}

// WithWriteLock runs fn while holding the workspace's write lock. Every
// mutation sequence of a workspace (remote write followed by cache update)
// runs inside it, so sequences never interleave and the last one to acquire
// the lock wins. Reads are not blocked.
func (c *EntityCache) WithWriteLock(workspaceID string, fn func() error) error {
	ws := c.workspace(workspaceID)
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return fn()
}

// resolve returns clones of the entities for ids, skipping unknown ids.
// Must be called with mu held.
func (ws *workspace) resolve(ids []string) []*domain.Entity {
	out := make([]*domain.Entity, 0, len(ids))
	for _, id := range ids {
		if e, ok := ws.entities[id]; ok {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Get returns copies of the entities linked to a collection, in membership
// order. An unknown collection yields an empty slice.
func (c *EntityCache) Get(workspaceID, collectionID string) []*domain.Entity {
	ws := c.workspace(workspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.resolve(ws.byCollection[collectionID])
}

// ByType returns copies of every cached entity of one type.
func (c *EntityCache) ByType(workspaceID string, t domain.ObjectType) []*domain.Entity {
	ws := c.workspace(workspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.resolve(ws.byType[t])
}

// Entity returns a copy of one cached entity.
func (c *EntityCache) Entity(workspaceID, entityID string) (*domain.Entity, bool) {
	ws := c.workspace(workspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	e, ok := ws.entities[entityID]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Counts returns the number of cached entities per collection.
func (c *EntityCache) Counts(workspaceID string) map[string]int {
	ws := c.workspace(workspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	counts := make(map[string]int, len(ws.byCollection))
	for collectionID, ids := range ws.byCollection {
		n := 0
		for _, id := range ids {
			if _, ok := ws.entities[id]; ok {
				n++
			}
		}
		counts[collectionID] = n
	}
	return counts
}

// putEntity stores a copy of e and registers it under its type.
// Must be called with mu held.
func (ws *workspace) putEntity(e *domain.Entity) {
	ws.entities[e.ID] = e.Clone()
	t := e.Type()
	if !slices.Contains(ws.byType[t], e.ID) {
		ws.byType[t] = append(ws.byType[t], e.ID)
	}
}

// Put links e to a collection. Putting the same id twice keeps one entry,
// both in the collection list and in the type registry.
func (c *EntityCache) Put(workspaceID, collectionID string, e *domain.Entity) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.putEntity(e)
	if !slices.Contains(ws.byCollection[collectionID], e.ID) {
		ws.byCollection[collectionID] = append(ws.byCollection[collectionID], e.ID)
	}
}

// PutEntity stores or replaces an entity without touching memberships.
// Collection lists already holding the id see the new value.
func (c *EntityCache) PutEntity(workspaceID string, e *domain.Entity) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.putEntity(e)
}

// RemoveFromCollection unlinks an entity from one collection. The entity
// stays cached.
func (c *EntityCache) RemoveFromCollection(workspaceID, collectionID, entityID string) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.byCollection[collectionID] = slices.DeleteFunc(ws.byCollection[collectionID], func(id string) bool {
		return id == entityID
	})
}

// RemoveEntity drops an entity from the registry and from every collection.
func (c *EntityCache) RemoveEntity(workspaceID, entityID string) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	e, ok := ws.entities[entityID]
	if ok {
		t := e.Type()
		ws.byType[t] = slices.DeleteFunc(ws.byType[t], func(id string) bool { return id == entityID })
		delete(ws.entities, entityID)
	}
	for collectionID, ids := range ws.byCollection {
		ws.byCollection[collectionID] = slices.DeleteFunc(ids, func(id string) bool { return id == entityID })
	}
}

// ReplaceMembership sets the exact, ordered entity list of a collection.
func (c *EntityCache) ReplaceMembership(workspaceID, collectionID string, entities []*domain.Entity) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ws.putEntity(e)
		if !slices.Contains(ids, e.ID) {
			ids = append(ids, e.ID)
		}
	}
	ws.byCollection[collectionID] = ids
}

// MembershipIDs returns the ordered entity ids of a collection.
func (c *EntityCache) MembershipIDs(workspaceID, collectionID string) []string {
	ws := c.workspace(workspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return slices.Clone(ws.byCollection[collectionID])
}
