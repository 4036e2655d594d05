package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway serves canned rows and counts list calls.
type fakeGateway struct {
	store.NotConfigured

	mu          sync.Mutex
	entities    map[domain.ObjectType][]*domain.Entity
	memberships []domain.Membership
	collections []*domain.Collection
	failTypes   map[domain.ObjectType]bool
	failAll     bool
	delay       time.Duration

	typeCalls       atomic.Int32
	membershipCalls atomic.Int32
	collectionCalls atomic.Int32
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		entities:  make(map[domain.ObjectType][]*domain.Entity),
		failTypes: make(map[domain.ObjectType]bool),
	}
}

func (f *fakeGateway) ListEntitiesByType(_ context.Context, t domain.ObjectType, _ string) ([]*domain.Entity, error) {
	f.typeCalls.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failTypes[t] {
		return nil, store.ErrTransport.WithMessage("boom")
	}
	out := make([]*domain.Entity, 0, len(f.entities[t]))
	for _, e := range f.entities[t] {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (f *fakeGateway) ListMemberships(_ context.Context, _ string) ([]domain.Membership, error) {
	f.membershipCalls.Add(1)
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, store.ErrTransport.WithMessage("boom")
	}
	return append([]domain.Membership(nil), f.memberships...), nil
}

func (f *fakeGateway) ListCollections(_ context.Context, _ string) ([]*domain.Collection, error) {
	f.collectionCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, store.ErrTransport.WithMessage("boom")
	}
	out := make([]*domain.Collection, 0, len(f.collections))
	for _, c := range f.collections {
		out = append(out, c.Clone())
	}
	return out, nil
}

func series(id, name string) *domain.Entity {
	return &domain.Entity{
		ID:          id,
		WorkspaceID: "ws",
		Payload:     &domain.TimeSeries{Name: name, Type: domain.SeriesActual},
	}
}

func site(id, name string) *domain.Entity {
	return &domain.Entity{ID: id, WorkspaceID: "ws", Payload: &domain.Site{Name: name}}
}

func newTestCache(g store.Gateway) *EntityCache {
	return New(g, slog.New(slog.DiscardHandler))
}

func TestEnsureLoaded_JoinsMembership(t *testing.T) {
	g := newFakeGateway()
	g.entities[domain.ObjectTimeSeries] = []*domain.Entity{series("e1", "one"), series("e2", "two")}
	g.memberships = []domain.Membership{
		{CollectionID: "c1", EntityID: "e2"},
		{CollectionID: "c1", EntityID: "e1"},
		{CollectionID: "c1", EntityID: "ghost"},
	}
	c := newTestCache(g)

	require.NoError(t, c.EnsureLoaded(context.Background(), MembershipScope("ws")))

	assert.Equal(t, Loaded, c.State(TypesScope("ws")))
	assert.Equal(t, Loaded, c.State(MembershipScope("ws")))

	got := c.Get("ws", "c1")
	require.Len(t, got, 2)
	assert.Equal(t, "e2", got[0].ID)
	assert.Equal(t, "e1", got[1].ID)
	assert.Equal(t, map[string]int{"c1": 2}, c.Counts("ws"))
}

func TestEnsureLoaded_SingleFlight(t *testing.T) {
	g := newFakeGateway()
	g.delay = 20 * time.Millisecond
	g.entities[domain.ObjectTimeSeries] = []*domain.Entity{series("e1", "one")}
	c := newTestCache(g)

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			assert.NoError(t, c.EnsureLoaded(context.Background(), MembershipScope("ws")))
		})
	}
	wg.Wait()

	assert.Equal(t, int32(len(domain.ObjectTypes)), g.typeCalls.Load())
	assert.Equal(t, int32(1), g.membershipCalls.Load())

	// Loaded scopes are never refetched.
	require.NoError(t, c.EnsureLoaded(context.Background(), MembershipScope("ws")))
	assert.Equal(t, int32(1), g.membershipCalls.Load())
}

func TestEnsureLoaded_FailOpen(t *testing.T) {
	g := newFakeGateway()
	g.failAll = true
	c := newTestCache(g)

	require.NoError(t, c.EnsureLoaded(context.Background(), MembershipScope("ws")))
	require.NoError(t, c.EnsureLoaded(context.Background(), CollectionsScope("ws")))

	assert.Equal(t, Loaded, c.State(MembershipScope("ws")))
	assert.Empty(t, c.Get("ws", "c1"))
	assert.Empty(t, c.Collections("ws"))
}

func TestEnsureLoaded_PartialTypes(t *testing.T) {
	g := newFakeGateway()
	g.entities[domain.ObjectTimeSeries] = []*domain.Entity{series("e1", "one")}
	g.entities[domain.ObjectSite] = []*domain.Entity{site("s1", "plant")}
	g.failTypes[domain.ObjectSite] = true
	c := newTestCache(g)

	require.NoError(t, c.EnsureLoaded(context.Background(), TypesScope("ws")))

	assert.Len(t, c.ByType("ws", domain.ObjectTimeSeries), 1)
	assert.Empty(t, c.ByType("ws", domain.ObjectSite))
}

func TestEnsureLoaded_CallerCancel(t *testing.T) {
	g := newFakeGateway()
	g.delay = 50 * time.Millisecond
	c := newTestCache(g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.EnsureLoaded(ctx, TypesScope("ws"))
	assert.ErrorIs(t, err, context.Canceled)

	// The shared load still completes for the next caller.
	require.NoError(t, c.EnsureLoaded(context.Background(), TypesScope("ws")))
	assert.Equal(t, Loaded, c.State(TypesScope("ws")))
}

func TestPut_Idempotent(t *testing.T) {
	c := newTestCache(newFakeGateway())
	e := series("e1", "one")

	c.Put("ws", "c1", e)
	c.Put("ws", "c1", e)

	assert.Len(t, c.Get("ws", "c1"), 1)
	assert.Len(t, c.ByType("ws", domain.ObjectTimeSeries), 1)
}

func TestPutEntity_VisibleInEveryCollection(t *testing.T) {
	c := newTestCache(newFakeGateway())
	c.Put("ws", "c1", series("e1", "one"))
	c.Put("ws", "c2", series("e1", "one"))

	c.PutEntity("ws", series("e1", "renamed"))

	assert.Equal(t, "renamed", c.Get("ws", "c1")[0].Name())
	assert.Equal(t, "renamed", c.Get("ws", "c2")[0].Name())
}

func TestGet_ReturnsCopies(t *testing.T) {
	c := newTestCache(newFakeGateway())
	c.Put("ws", "c1", series("e1", "one"))

	got := c.Get("ws", "c1")
	got[0].Payload.(*domain.TimeSeries).Name = "mutated"

	e, ok := c.Entity("ws", "e1")
	require.True(t, ok)
	assert.Equal(t, "one", e.Name())
}

func TestRemoveEntity(t *testing.T) {
	c := newTestCache(newFakeGateway())
	c.Put("ws", "c1", series("e1", "one"))
	c.Put("ws", "c2", series("e1", "one"))
	c.Put("ws", "c2", series("e2", "two"))

	c.RemoveEntity("ws", "e1")

	assert.Empty(t, c.Get("ws", "c1"))
	assert.Len(t, c.Get("ws", "c2"), 1)
	assert.Len(t, c.ByType("ws", domain.ObjectTimeSeries), 1)
	_, ok := c.Entity("ws", "e1")
	assert.False(t, ok)
}

func TestRemoveFromCollection_KeepsEntity(t *testing.T) {
	c := newTestCache(newFakeGateway())
	c.Put("ws", "c1", series("e1", "one"))

	c.RemoveFromCollection("ws", "c1", "e1")
	c.RemoveFromCollection("ws", "c1", "e1")

	assert.Empty(t, c.Get("ws", "c1"))
	assert.Len(t, c.ByType("ws", domain.ObjectTimeSeries), 1)
}

func TestReplaceMembership(t *testing.T) {
	c := newTestCache(newFakeGateway())
	c.Put("ws", "c1", series("e1", "one"))

	c.ReplaceMembership("ws", "c1", []*domain.Entity{series("e3", "three"), series("e2", "two"), series("e3", "three")})

	assert.Equal(t, []string{"e3", "e2"}, c.MembershipIDs("ws", "c1"))
	assert.Len(t, c.ByType("ws", domain.ObjectTimeSeries), 3)
}

func TestCollections(t *testing.T) {
	g := newFakeGateway()
	g.collections = []*domain.Collection{{ID: "c1", Name: "One"}}
	c := newTestCache(g)

	require.NoError(t, c.EnsureLoaded(context.Background(), CollectionsScope("ws")))
	c.PutCollection("ws", &domain.Collection{ID: "c2", Name: "Two"})
	c.PutCollection("ws", &domain.Collection{ID: "c1", Name: "Renamed"})

	list := c.Collections("ws")
	require.Len(t, list, 2)
	assert.Equal(t, "Renamed", list[0].Name)

	c.Put("ws", "c2", series("e1", "one"))
	c.RemoveCollection("ws", "c2")
	assert.Len(t, c.Collections("ws"), 1)
	assert.Empty(t, c.Get("ws", "c2"))
}

func TestInvalidate(t *testing.T) {
	g := newFakeGateway()
	g.entities[domain.ObjectTimeSeries] = []*domain.Entity{series("e1", "one")}
	c := newTestCache(g)
	ctx := context.Background()

	require.NoError(t, c.EnsureLoaded(ctx, MembershipScope("ws")))
	c.Invalidate(TypesScope("ws"))

	assert.Equal(t, Unloaded, c.State(TypesScope("ws")))
	assert.Equal(t, Unloaded, c.State(MembershipScope("ws")))
	assert.Empty(t, c.ByType("ws", domain.ObjectTimeSeries))

	require.NoError(t, c.EnsureLoaded(ctx, MembershipScope("ws")))
	assert.Equal(t, int32(2), g.membershipCalls.Load())
	assert.Len(t, c.ByType("ws", domain.ObjectTimeSeries), 1)

	c.InvalidateWorkspace("ws")
	for _, kind := range ScopeKinds {
		assert.Equal(t, Unloaded, c.State(Scope{WorkspaceID: "ws", Kind: kind}))
	}
}

func TestWithWriteLock_Serializes(t *testing.T) {
	c := newTestCache(newFakeGateway())

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			_ = c.WithWriteLock("ws", func() error {
				n := active.Add(1)
				if n > maxActive.Load() {
					maxActive.Store(n)
				}
				// Cache reads and updates inside the lock must not block.
				c.Put("ws", "c1", series("e1", "one"))
				_ = c.Get("ws", "c1")
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())

	sentinel := errors.New("sentinel")
	assert.ErrorIs(t, c.WithWriteLock("ws", func() error { return sentinel }), sentinel)
}
