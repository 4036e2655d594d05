// Package sse implements Server-Sent Events for real-time workspace updates.
package sse

import (
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventCollectionCreated represents a collection creation event.
	EventCollectionCreated EventType = "collection.created"
	// EventCollectionUpdated represents a collection update event, including
	// favorite and default changes.
	EventCollectionUpdated EventType = "collection.updated"
	// EventCollectionDeleted represents a collection deletion event.
	EventCollectionDeleted EventType = "collection.deleted"

	// EventEntityCreated represents an entity creation event.
	EventEntityCreated EventType = "entity.created"
	// EventEntityUpdated represents an entity update event.
	EventEntityUpdated EventType = "entity.updated"
	// EventEntityDeleted represents an entity deletion event.
	EventEntityDeleted EventType = "entity.deleted"

	// Membership events
	EventMembershipAdded    EventType = "membership.added"
	EventMembershipRemoved  EventType = "membership.removed"
	EventMembershipReplaced EventType = "membership.replaced"

	// EventWorkspaceUpdated represents a settings change.
	EventWorkspaceUpdated EventType = "workspace.updated"
	// EventCacheInvalidated tells clients to refetch a workspace.
	EventCacheInvalidated EventType = "cache.invalidated"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// WorkspaceID restricts delivery to clients watching that workspace.
	// Empty means broadcast to all.
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// CollectionEventData is the data payload for collection events.
type CollectionEventData struct {
	Collection *domain.Collection `json:"collection"`
}

// CollectionDeletedEventData is the data payload for collection delete events.
type CollectionDeletedEventData struct {
	CollectionID string `json:"collection_id"`
}

// EntityEventData is the data payload for entity events.
type EntityEventData struct {
	Entity *domain.Entity `json:"entity"`
}

// EntityDeletedEventData is the data payload for entity delete events.
type EntityDeletedEventData struct {
	EntityID string `json:"entity_id"`
}

// MembershipEventData is the data payload for membership.added and membership.removed.
type MembershipEventData struct {
	CollectionID string `json:"collection_id"`
	EntityID     string `json:"entity_id"`
}

// MembershipReplacedEventData is the data payload for membership.replaced.
type MembershipReplacedEventData struct {
	CollectionID string   `json:"collection_id"`
	EntityIDs    []string `json:"entity_ids"`
}

// WorkspaceEventData is the data payload for workspace.updated.
type WorkspaceEventData struct {
	Workspace *domain.Workspace `json:"workspace"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, workspaceID string, data any) Event {
	return Event{Type: t, WorkspaceID: workspaceID, Data: data, Timestamp: time.Now()}
}

// NewCollectionCreatedEvent creates a collection.created event.
func NewCollectionCreatedEvent(c *domain.Collection) Event {
	return newEvent(EventCollectionCreated, c.WorkspaceID, CollectionEventData{Collection: c})
}

// NewCollectionUpdatedEvent creates a collection.updated event.
func NewCollectionUpdatedEvent(c *domain.Collection) Event {
	return newEvent(EventCollectionUpdated, c.WorkspaceID, CollectionEventData{Collection: c})
}

// NewCollectionDeletedEvent creates a collection.deleted event.
func NewCollectionDeletedEvent(workspaceID, collectionID string) Event {
	return newEvent(EventCollectionDeleted, workspaceID, CollectionDeletedEventData{CollectionID: collectionID})
}

// NewEntityCreatedEvent creates an entity.created event.
func NewEntityCreatedEvent(e *domain.Entity) Event {
	return newEvent(EventEntityCreated, e.WorkspaceID, EntityEventData{Entity: e})
}

// NewEntityUpdatedEvent creates an entity.updated event.
func NewEntityUpdatedEvent(e *domain.Entity) Event {
	return newEvent(EventEntityUpdated, e.WorkspaceID, EntityEventData{Entity: e})
}

// NewEntityDeletedEvent creates an entity.deleted event.
func NewEntityDeletedEvent(workspaceID, entityID string) Event {
	return newEvent(EventEntityDeleted, workspaceID, EntityDeletedEventData{EntityID: entityID})
}

// NewMembershipAddedEvent creates a membership.added event.
func NewMembershipAddedEvent(workspaceID, collectionID, entityID string) Event {
	return newEvent(EventMembershipAdded, workspaceID, MembershipEventData{CollectionID: collectionID, EntityID: entityID})
}

// NewMembershipRemovedEvent creates a membership.removed event.
func NewMembershipRemovedEvent(workspaceID, collectionID, entityID string) Event {
	return newEvent(EventMembershipRemoved, workspaceID, MembershipEventData{CollectionID: collectionID, EntityID: entityID})
}

// NewMembershipReplacedEvent creates a membership.replaced event.
func NewMembershipReplacedEvent(workspaceID, collectionID string, entityIDs []string) Event {
	return newEvent(EventMembershipReplaced, workspaceID, MembershipReplacedEventData{
		CollectionID: collectionID,
		EntityIDs:    entityIDs,
	})
}

// NewWorkspaceUpdatedEvent creates a workspace.updated event.
func NewWorkspaceUpdatedEvent(ws *domain.Workspace) Event {
	return newEvent(EventWorkspaceUpdated, ws.ID, WorkspaceEventData{Workspace: ws})
}

// NewCacheInvalidatedEvent creates a cache.invalidated event.
func NewCacheInvalidatedEvent(workspaceID string) Event {
	return newEvent(EventCacheInvalidated, workspaceID, nil)
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: time.Now()},
		Timestamp: time.Now(),
	}
}
