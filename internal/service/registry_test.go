package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
)

func TestRegistry_ListBootstrapCollections(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	list, err := env.registry.List(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, DefaultTimeSeriesKey, list[0].ID)
	assert.Equal(t, "Time Series", list[0].Name)
	assert.Equal(t, domain.ViewTable, list[0].ViewType)
	assert.Len(t, list[0].Columns, 8)

	assert.Equal(t, EsettDataKey, list[1].ID)
	assert.Equal(t, "Esett data", list[1].Name)
	assert.Equal(t, domain.ViewCardGrid, list[1].ViewType)
	assert.Len(t, list[1].Columns, 3)

	entities, err := env.coordinator.EntitiesForCollection(ctx, ws.ID, DefaultTimeSeriesKey, "")
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestRegistry_Create(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	c, err := env.registry.Create(ctx, ws.ID, CreateCollectionRequest{
		Name:       "Wind Farms",
		ObjectType: domain.ObjectSite,
	})
	require.NoError(t, err)

	assert.Contains(t, c.ID, "coll-")
	assert.Equal(t, domain.ViewTable, c.ViewType)
	assert.Equal(t, domain.DefaultColumns(domain.ObjectSite), c.Columns)
	assert.Equal(t, domain.DefaultCollectionEmoji, c.Emoji)
	assert.False(t, c.IsDefault)

	// Persisted, not only cached.
	stored, err := env.store.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wind Farms", stored.Name)

	list, err := env.registry.List(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, c.ID, list[2].ID)
}

func TestRegistry_Create_ValidationHasNoSideEffect(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)
	writes := env.gateway.writes.Load()

	tests := []struct {
		name string
		req  CreateCollectionRequest
	}{
		{"blank name", CreateCollectionRequest{Name: "   ", ObjectType: domain.ObjectSite}},
		{"long name", CreateCollectionRequest{Name: strings.Repeat("a", 201), ObjectType: domain.ObjectSite}},
		{"unknown type", CreateCollectionRequest{Name: "X", ObjectType: "Turbine"}},
		{"missing type", CreateCollectionRequest{Name: "X"}},
		{"bad view", CreateCollectionRequest{Name: "X", ObjectType: domain.ObjectAsset, ViewType: "kanban"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.registry.Create(ctx, ws.ID, tt.req)
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
		})
	}

	assert.Equal(t, writes, env.gateway.writes.Load())
	list, err := env.registry.List(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRegistry_Create_WriteFailureLeavesCacheUnchanged(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	env.gateway.failWrites.Store(true)
	_, err := env.registry.Create(ctx, ws.ID, CreateCollectionRequest{Name: "Wind Farms", ObjectType: domain.ObjectSite})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrTransport))
	assert.True(t, domainerrors.Retryable(err))

	list, err := env.registry.List(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRegistry_SetDefault_SinglePointer(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	_, err := env.registry.SetDefault(ctx, ws.ID, EsettDataKey)
	require.NoError(t, err)
	c, err := env.registry.SetDefault(ctx, ws.ID, DefaultTimeSeriesKey)
	require.NoError(t, err)
	assert.True(t, c.IsDefault)

	list, err := env.registry.List(ctx, ws.ID)
	require.NoError(t, err)
	var defaults []string
	for _, c := range list {
		if c.IsDefault {
			defaults = append(defaults, c.ID)
		}
	}
	assert.Equal(t, []string{DefaultTimeSeriesKey}, defaults)

	stored, err := env.store.GetWorkspace(ctx, testSlug)
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeSeriesKey, stored.Settings.DefaultCollectionID)
}

func TestRegistry_SetDefault_UnknownCollection(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	_, err := env.registry.SetDefault(ctx, ws.ID, "coll-missing")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	assert.Empty(t, env.workspaces.DefaultCollectionID(ws.ID))
}

func TestRegistry_SetDefault_WriteFailureKeepsPointer(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	_, err := env.registry.SetDefault(ctx, ws.ID, EsettDataKey)
	require.NoError(t, err)

	env.gateway.failWrites.Store(true)
	_, err = env.registry.SetDefault(ctx, ws.ID, DefaultTimeSeriesKey)
	require.Error(t, err)
	assert.Equal(t, EsettDataKey, env.workspaces.DefaultCollectionID(ws.ID))
}

func TestRegistry_UpdatePersists(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	_, err := env.registry.Rename(ctx, ws.ID, EsettDataKey, "  Nordic capacity ")
	require.NoError(t, err)
	_, err = env.registry.SetEmoji(ctx, ws.ID, EsettDataKey, "🌬️")
	require.NoError(t, err)
	c, err := env.registry.SetFavorite(ctx, ws.ID, EsettDataKey, true)
	require.NoError(t, err)
	assert.Equal(t, "Nordic capacity", c.Name)
	assert.True(t, c.IsFavorite)

	// Reload from the store.
	env.cache.Invalidate(cache.CollectionsScope(ws.ID))
	got, err := env.registry.Get(ctx, ws.ID, EsettDataKey)
	require.NoError(t, err)
	assert.Equal(t, "Nordic capacity", got.Name)
	assert.Equal(t, "🌬️", got.Emoji)
	assert.True(t, got.IsFavorite)
}

func TestRegistry_Update_FailureKeepsCachedValue(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	env.gateway.failWrites.Store(true)
	_, err := env.registry.Rename(ctx, ws.ID, EsettDataKey, "Renamed")
	require.Error(t, err)

	got, err := env.registry.Get(ctx, ws.ID, EsettDataKey)
	require.NoError(t, err)
	assert.Equal(t, "Esett data", got.Name)
}

func TestRegistry_Update_Validation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	_, err := env.registry.Rename(ctx, ws.ID, EsettDataKey, " ")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = env.registry.SetViewType(ctx, ws.ID, EsettDataKey, "kanban")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	_, err = env.registry.Rename(ctx, ws.ID, "coll-missing", "X")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestRegistry_Delete(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	c, err := env.registry.Create(ctx, ws.ID, CreateCollectionRequest{Name: "Sites", ObjectType: domain.ObjectSite})
	require.NoError(t, err)
	_, err = env.registry.SetDefault(ctx, ws.ID, c.ID)
	require.NoError(t, err)

	require.NoError(t, env.registry.Delete(ctx, ws.ID, c.ID))

	_, err = env.registry.Get(ctx, ws.ID, c.ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	assert.Empty(t, env.workspaces.DefaultCollectionID(ws.ID))

	err = env.registry.Delete(ctx, ws.ID, c.ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestRegistry_OtherWorkspaceIsHidden(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	other, err := env.bootstrap.Ensure(ctx, "Grid Ops")
	require.NoError(t, err)
	assert.Equal(t, "grid-ops", other.Slug)

	list, err := env.registry.List(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "grid-ops--"+DefaultTimeSeriesKey, list[0].ID)

	_, err = env.registry.Get(ctx, other.ID, DefaultTimeSeriesKey)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	_, err = env.registry.Get(ctx, ws.ID, list[0].ID)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
