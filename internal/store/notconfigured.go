package store

import (
	"context"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// NotConfigured is the gateway used when no store driver is configured.
// Every call fails with ErrNotConfigured; reads above it degrade to empty.
type NotConfigured struct{}

var _ Gateway = NotConfigured{}

func (NotConfigured) GetWorkspace(context.Context, string) (*domain.Workspace, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) CreateWorkspace(context.Context, *domain.Workspace) error {
	return ErrNotConfigured
}
func (NotConfigured) UpdateWorkspace(context.Context, *domain.Workspace) error {
	return ErrNotConfigured
}

func (NotConfigured) ListCollections(context.Context, string) ([]*domain.Collection, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) GetCollection(context.Context, string) (*domain.Collection, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) CreateCollection(context.Context, *domain.Collection) error {
	return ErrNotConfigured
}
func (NotConfigured) UpdateCollection(context.Context, *domain.Collection) error {
	return ErrNotConfigured
}
func (NotConfigured) DeleteCollection(context.Context, string) error { return ErrNotConfigured }

func (NotConfigured) ListEntitiesByType(context.Context, domain.ObjectType, string) ([]*domain.Entity, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) GetEntity(context.Context, string) (*domain.Entity, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) UpsertEntity(context.Context, *domain.Entity) error { return ErrNotConfigured }
func (NotConfigured) BulkUpsertEntities(context.Context, []*domain.Entity) error {
	return ErrNotConfigured
}
func (NotConfigured) DeleteEntity(context.Context, string) error { return ErrNotConfigured }
func (NotConfigured) CreateEntityWithMembership(context.Context, *domain.Entity, string) error {
	return ErrNotConfigured
}

func (NotConfigured) ListMemberships(context.Context, string) ([]domain.Membership, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) ListMembershipEntityIDs(context.Context, string) ([]string, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) ListMembershipCollectionIDs(context.Context, string) ([]string, error) {
	return nil, ErrNotConfigured
}
func (NotConfigured) InsertMembership(context.Context, domain.Membership) error {
	return ErrNotConfigured
}
func (NotConfigured) DeleteMembership(context.Context, string, string) error { return ErrNotConfigured }
func (NotConfigured) ReplaceMembership(context.Context, string, []string) error {
	return ErrNotConfigured
}
func (NotConfigured) CountMembership(context.Context, string) (int, error) {
	return 0, ErrNotConfigured
}

func (NotConfigured) Ping(context.Context) error { return ErrNotConfigured }
func (NotConfigured) Close() error               { return nil }
