package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, ThemeDark, s.Theme)
	assert.Equal(t, "#10b981", s.AccentColor)
	assert.Equal(t, 256, s.SidebarWidth)
	assert.Len(t, s.MenuVisibility, len(MenuItems))
	assert.Empty(t, s.DefaultCollectionID)
}

func TestClampSidebarWidth(t *testing.T) {
	assert.Equal(t, 200, ClampSidebarWidth(10))
	assert.Equal(t, 600, ClampSidebarWidth(9000))
	assert.Equal(t, 320, ClampSidebarWidth(320))
}

func TestSettingsPatch_Apply(t *testing.T) {
	s := DefaultSettings()
	theme := ThemeLight
	width := 1000
	collapsed := true

	SettingsPatch{
		Theme:            &theme,
		SidebarWidth:     &width,
		SidebarCollapsed: &collapsed,
		MenuVisibility:   map[string]bool{"Reports": false},
	}.Apply(&s)

	assert.Equal(t, ThemeLight, s.Theme)
	assert.Equal(t, MaxSidebarWidth, s.SidebarWidth)
	assert.True(t, s.SidebarCollapsed)
	assert.False(t, s.MenuVisibility["Reports"])
	assert.True(t, s.MenuVisibility["Projects"])
}

func TestSettings_Normalize(t *testing.T) {
	s := Settings{SidebarWidth: 50, MenuVisibility: map[string]bool{"Models": false}}
	s.Normalize()

	assert.Equal(t, ThemeDark, s.Theme)
	assert.Equal(t, MinSidebarWidth, s.SidebarWidth)
	assert.False(t, s.MenuVisibility["Models"])
	assert.True(t, s.MenuVisibility["Datasets"])
}

func TestWorkspace_CloneIsDeep(t *testing.T) {
	w := &Workspace{ID: "ws", Settings: DefaultSettings()}
	c := w.Clone()
	c.Settings.MenuVisibility["Projects"] = false

	assert.True(t, w.Settings.MenuVisibility["Projects"])
}

func TestCollectionPatch(t *testing.T) {
	c := &Collection{Name: "Old", Columns: DefaultColumns(ObjectSite)}
	name := "New"
	fav := true

	p := CollectionPatch{Name: &name, IsFavorite: &fav}
	assert.False(t, p.Empty())
	p.Apply(c)

	assert.Equal(t, "New", c.Name)
	assert.True(t, c.IsFavorite)
	assert.Len(t, c.Columns, 4)
	assert.True(t, CollectionPatch{}.Empty())
}
