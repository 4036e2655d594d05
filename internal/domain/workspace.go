package domain

import (
	"maps"
	"time"
)

// Theme is the UI color scheme preference.
type Theme string

// Themes.
const (
	ThemeLight  Theme = "Light"
	ThemeDark   Theme = "Dark"
	ThemeSystem Theme = "System"
)

// Sidebar width bounds in pixels.
const (
	MinSidebarWidth     = 200
	MaxSidebarWidth     = 600
	DefaultSidebarWidth = 256
)

// DefaultAccentColor is the accent applied to new workspaces.
const DefaultAccentColor = "#10b981"

// MenuItems lists the navigation entries whose visibility can be toggled.
var MenuItems = []string{
	"Projects", "Workflows", "Dashboards", "Notebooks",
	"Models", "Datasets", "Notifications", "Reports",
}

// Workspace is the tenant root that owns collections and entities.
type Workspace struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Settings  Settings  `json:"settings"`
}

// Settings holds per-workspace preferences.
// DefaultCollectionID is the only record of which collection is the default.
type Settings struct {
	Theme               Theme           `json:"theme"`
	AccentColor         string          `json:"accent_color"`
	SidebarWidth        int             `json:"sidebar_width"`
	SidebarCollapsed    bool            `json:"sidebar_collapsed"`
	MenuVisibility      map[string]bool `json:"menu_item_visibility"`
	DefaultCollectionID string          `json:"default_collection_id,omitempty"`
}

// DefaultSettings returns the settings a new workspace starts with.
func DefaultSettings() Settings {
	visibility := make(map[string]bool, len(MenuItems))
	for _, item := range MenuItems {
		visibility[item] = true
	}
	return Settings{
		Theme:          ThemeDark,
		AccentColor:    DefaultAccentColor,
		SidebarWidth:   DefaultSidebarWidth,
		MenuVisibility: visibility,
	}
}

// Normalize fills missing values and clamps the sidebar width.
func (s *Settings) Normalize() {
	defaults := DefaultSettings()
	if s.Theme == "" {
		s.Theme = defaults.Theme
	}
	if s.AccentColor == "" {
		s.AccentColor = defaults.AccentColor
	}
	if s.SidebarWidth == 0 {
		s.SidebarWidth = defaults.SidebarWidth
	}
	s.SidebarWidth = ClampSidebarWidth(s.SidebarWidth)
	if s.MenuVisibility == nil {
		s.MenuVisibility = defaults.MenuVisibility
	}
	for _, item := range MenuItems {
		if _, ok := s.MenuVisibility[item]; !ok {
			s.MenuVisibility[item] = true
		}
	}
}

// ClampSidebarWidth bounds w to [MinSidebarWidth, MaxSidebarWidth].
func ClampSidebarWidth(w int) int {
	return min(max(w, MinSidebarWidth), MaxSidebarWidth)
}

// Clone returns a deep copy of the workspace.
func (w *Workspace) Clone() *Workspace {
	if w == nil {
		return nil
	}
	c := *w
	c.Settings.MenuVisibility = maps.Clone(w.Settings.MenuVisibility)
	return &c
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	Theme            *Theme          `json:"theme,omitempty"`
	AccentColor      *string         `json:"accent_color,omitempty"`
	SidebarWidth     *int            `json:"sidebar_width,omitempty"`
	SidebarCollapsed *bool           `json:"sidebar_collapsed,omitempty"`
	MenuVisibility   map[string]bool `json:"menu_item_visibility,omitempty"`
}

// Apply merges the patch into s.
func (p SettingsPatch) Apply(s *Settings) {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.AccentColor != nil {
		s.AccentColor = *p.AccentColor
	}
	if p.SidebarWidth != nil {
		s.SidebarWidth = ClampSidebarWidth(*p.SidebarWidth)
	}
	if p.SidebarCollapsed != nil {
		s.SidebarCollapsed = *p.SidebarCollapsed
	}
	if len(p.MenuVisibility) > 0 {
		if s.MenuVisibility == nil {
			s.MenuVisibility = make(map[string]bool, len(p.MenuVisibility))
		}
		maps.Copy(s.MenuVisibility, p.MenuVisibility)
	}
}
