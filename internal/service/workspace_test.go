package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebase-energy/workspace-server/internal/domain"
	domainerrors "github.com/rebase-energy/workspace-server/internal/errors"
	"github.com/rebase-energy/workspace-server/internal/store"
)

func TestWorkspace_EnsureCreatesOnce(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	ws, err := env.workspaces.Ensure(ctx, "  North Sea Ops ")
	require.NoError(t, err)
	assert.Equal(t, "north-sea-ops", ws.Slug)
	assert.Contains(t, ws.ID, "ws-")
	assert.Equal(t, domain.ThemeDark, ws.Settings.Theme)

	again, err := env.workspaces.Ensure(ctx, "north-sea-ops")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, again.ID)

	stored, err := env.store.GetWorkspace(ctx, "north-sea-ops")
	require.NoError(t, err)
	assert.Equal(t, ws.ID, stored.ID)
}

func TestWorkspace_EnsureRejectsEmptySlug(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.workspaces.Ensure(context.Background(), " !! ")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestWorkspace_EnsureWithoutStore(t *testing.T) {
	env := newEnvWithGateway(t, store.NotConfigured{}, false)

	ws, err := env.workspaces.Ensure(context.Background(), "lab")
	require.NoError(t, err)
	assert.Equal(t, "lab", ws.ID)
	assert.Equal(t, "Lab", ws.Name)
}

func TestWorkspace_UpdateSettings(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	theme := domain.ThemeLight
	color := "#ff8800"
	width := 5000
	updated, err := env.workspaces.UpdateSettings(ctx, ws.ID, domain.SettingsPatch{
		Theme:          &theme,
		AccentColor:    &color,
		SidebarWidth:   &width,
		MenuVisibility: map[string]bool{"Reports": false},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeLight, updated.Settings.Theme)
	assert.Equal(t, "#ff8800", updated.Settings.AccentColor)
	assert.Equal(t, domain.MaxSidebarWidth, updated.Settings.SidebarWidth)
	assert.False(t, updated.Settings.MenuVisibility["Reports"])
	assert.True(t, updated.Settings.MenuVisibility["Projects"])

	stored, err := env.store.GetWorkspace(ctx, testSlug)
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeLight, stored.Settings.Theme)
	assert.Equal(t, domain.MaxSidebarWidth, stored.Settings.SidebarWidth)
}

func TestWorkspace_UpdateSettings_Validation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	badTheme := domain.Theme("Sepia")
	badColor := "orange"

	tests := []struct {
		name  string
		patch domain.SettingsPatch
	}{
		{"theme", domain.SettingsPatch{Theme: &badTheme}},
		{"accent color", domain.SettingsPatch{AccentColor: &badColor}},
		{"menu item", domain.SettingsPatch{MenuVisibility: map[string]bool{"Games": true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.workspaces.UpdateSettings(ctx, ws.ID, tt.patch)
			assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
		})
	}
}

func TestWorkspace_UpdateSettings_FailureKeepsMemo(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ws := env.workspace(t)

	env.gateway.failWrites.Store(true)
	theme := domain.ThemeLight
	_, err := env.workspaces.UpdateSettings(ctx, ws.ID, domain.SettingsPatch{Theme: &theme})
	require.Error(t, err)

	current, ok := env.workspaces.Lookup(ws.ID)
	require.True(t, ok)
	assert.Equal(t, domain.ThemeDark, current.Settings.Theme)
}
