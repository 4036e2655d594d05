// Package store defines the remote store gateway: the persistence contract for
// workspaces, collections, entities and the collection_entities junction.
package store

import (
	"context"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// Gateway is the sole owner of durable workspace state.
//
// Every method may fail with ErrNotConfigured (no backing store) or
// ErrTransport (network, timeout). Lookups of a single record return
// ErrNotFound when it is absent. Membership inserts and deletes are
// idempotent. Multi-step writes (ReplaceMembership, CreateEntityWithMembership,
// DeleteCollection, DeleteEntity) are atomic.
type Gateway interface {
	// Workspaces
	GetWorkspace(ctx context.Context, slug string) (*domain.Workspace, error)
	CreateWorkspace(ctx context.Context, ws *domain.Workspace) error
	UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error

	// Collections
	ListCollections(ctx context.Context, workspaceID string) ([]*domain.Collection, error)
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)
	CreateCollection(ctx context.Context, c *domain.Collection) error
	UpdateCollection(ctx context.Context, c *domain.Collection) error
	DeleteCollection(ctx context.Context, id string) error

	// Entities
	ListEntitiesByType(ctx context.Context, t domain.ObjectType, workspaceID string) ([]*domain.Entity, error)
	GetEntity(ctx context.Context, id string) (*domain.Entity, error)
	UpsertEntity(ctx context.Context, e *domain.Entity) error
	BulkUpsertEntities(ctx context.Context, entities []*domain.Entity) error
	DeleteEntity(ctx context.Context, id string) error
	CreateEntityWithMembership(ctx context.Context, e *domain.Entity, collectionID string) error

	// Memberships
	ListMemberships(ctx context.Context, workspaceID string) ([]domain.Membership, error)
	ListMembershipEntityIDs(ctx context.Context, collectionID string) ([]string, error)
	ListMembershipCollectionIDs(ctx context.Context, entityID string) ([]string, error)
	InsertMembership(ctx context.Context, m domain.Membership) error
	DeleteMembership(ctx context.Context, collectionID, entityID string) error
	ReplaceMembership(ctx context.Context, collectionID string, entityIDs []string) error
	CountMembership(ctx context.Context, collectionID string) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
