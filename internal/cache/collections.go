package cache

import (
	"slices"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// Collections returns copies of the cached collection list, in load order.
func (c *EntityCache) Collections(workspaceID string) []*domain.Collection {
	ws := c.workspace(workspaceID)
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	out := make([]*domain.Collection, 0, len(ws.collections))
	for _, col := range ws.collections {
		out = append(out, col.Clone())
	}
	return out
}

// PutCollection replaces the cached collection with the same id, or appends it.
func (c *EntityCache) PutCollection(workspaceID string, col *domain.Collection) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	cp := col.Clone()
	cp.IsDefault = false
	if i := slices.IndexFunc(ws.collections, func(x *domain.Collection) bool { return x.ID == col.ID }); i >= 0 {
		ws.collections[i] = cp
		return
	}
	ws.collections = append(ws.collections, cp)
}

// RemoveCollection drops a collection and its membership list.
func (c *EntityCache) RemoveCollection(workspaceID, collectionID string) {
	ws := c.workspace(workspaceID)
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.collections = slices.DeleteFunc(ws.collections, func(x *domain.Collection) bool { return x.ID == collectionID })
	delete(ws.byCollection, collectionID)
}
