package domain

import "time"

// Collection is a named, typed view over the entities linked to it.
// IsDefault is not stored; it is derived from the workspace's
// Settings.DefaultCollectionID whenever collections are listed.
type Collection struct {
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	ObjectType  ObjectType `json:"object_type"`
	Emoji       string     `json:"emoji"`
	ViewType    ViewType   `json:"view_type"`
	Columns     []Column   `json:"attributes"`
	CreatedBy   string     `json:"created_by,omitempty"`
	IsFavorite  bool       `json:"is_favorite"`
	IsDefault   bool       `json:"is_default"`
}

// DefaultCollectionEmoji is used when a collection is created without one.
const DefaultCollectionEmoji = "📋"

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Columns = CloneColumns(c.Columns)
	return &cp
}

// Accepts reports whether an entity of type t may be linked to this collection.
func (c *Collection) Accepts(t ObjectType) bool {
	return c.ObjectType == t
}

// Membership links an entity to a collection.
type Membership struct {
	AddedAt      time.Time `json:"added_at"`
	CollectionID string    `json:"collection_id"`
	EntityID     string    `json:"entity_id"`
}

// CollectionPatch is a partial collection update. Nil fields are left unchanged.
type CollectionPatch struct {
	Name       *string   `json:"name,omitempty"`
	Emoji      *string   `json:"emoji,omitempty"`
	ViewType   *ViewType `json:"view_type,omitempty"`
	Columns    []Column  `json:"attributes,omitempty"`
	IsFavorite *bool     `json:"is_favorite,omitempty"`
}

// Apply merges the patch into c.
func (p CollectionPatch) Apply(c *Collection) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Emoji != nil {
		c.Emoji = *p.Emoji
	}
	if p.ViewType != nil {
		c.ViewType = *p.ViewType
	}
	if p.Columns != nil {
		c.Columns = CloneColumns(p.Columns)
	}
	if p.IsFavorite != nil {
		c.IsFavorite = *p.IsFavorite
	}
}

// Empty reports whether the patch changes nothing.
func (p CollectionPatch) Empty() bool {
	return p.Name == nil && p.Emoji == nil && p.ViewType == nil && p.Columns == nil && p.IsFavorite == nil
}
