package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
)

// DefaultCallTimeout bounds a single gateway call when none is configured.
const DefaultCallTimeout = 5 * time.Second

// timeoutGateway bounds every call on the wrapped gateway. A call that runs
// past its deadline surfaces as ErrTransport so callers can retry it.
type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
	logger  *slog.Logger
}

// WithTimeout wraps g so each call is bounded by d.
func WithTimeout(g Gateway, d time.Duration, logger *slog.Logger) Gateway {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &timeoutGateway{next: g, timeout: d, logger: logger}
}

func (g *timeoutGateway) call(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		g.logger.Warn("store call timed out", "op", op, "timeout", g.timeout)
		return ErrTransport.WithMessage(op + " timed out").WithCause(err)
	}
	return err
}

func (g *timeoutGateway) GetWorkspace(ctx context.Context, slug string) (ws *domain.Workspace, err error) {
	err = g.call(ctx, "get workspace", func(ctx context.Context) error {
		ws, err = g.next.GetWorkspace(ctx, slug)
		return err
	})
	return ws, err
}

func (g *timeoutGateway) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	return g.call(ctx, "create workspace", func(ctx context.Context) error {
		return g.next.CreateWorkspace(ctx, ws)
	})
}

func (g *timeoutGateway) UpdateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	return g.call(ctx, "update workspace", func(ctx context.Context) error {
		return g.next.UpdateWorkspace(ctx, ws)
	})
}

func (g *timeoutGateway) ListCollections(ctx context.Context, workspaceID string) (out []*domain.Collection, err error) {
	err = g.call(ctx, "list collections", func(ctx context.Context) error {
		out, err = g.next.ListCollections(ctx, workspaceID)
		return err
	})
	return out, err
}

func (g *timeoutGateway) GetCollection(ctx context.Context, id string) (c *domain.Collection, err error) {
	err = g.call(ctx, "get collection", func(ctx context.Context) error {
		c, err = g.next.GetCollection(ctx, id)
		return err
	})
	return c, err
}

func (g *timeoutGateway) CreateCollection(ctx context.Context, c *domain.Collection) error {
	return g.call(ctx, "create collection", func(ctx context.Context) error {
		return g.next.CreateCollection(ctx, c)
	})
}

func (g *timeoutGateway) UpdateCollection(ctx context.Context, c *domain.Collection) error {
	return g.call(ctx, "update collection", func(ctx context.Context) error {
		return g.next.UpdateCollection(ctx, c)
	})
}

func (g *timeoutGateway) DeleteCollection(ctx context.Context, id string) error {
	return g.call(ctx, "delete collection", func(ctx context.Context) error {
		return g.next.DeleteCollection(ctx, id)
	})
}

func (g *timeoutGateway) ListEntitiesByType(ctx context.Context, t domain.ObjectType, workspaceID string) (out []*domain.Entity, err error) {
	err = g.call(ctx, "list entities", func(ctx context.Context) error {
		out, err = g.next.ListEntitiesByType(ctx, t, workspaceID)
		return err
	})
	return out, err
}

func (g *timeoutGateway) GetEntity(ctx context.Context, id string) (e *domain.Entity, err error) {
	err = g.call(ctx, "get entity", func(ctx context.Context) error {
		e, err = g.next.GetEntity(ctx, id)
		return err
	})
	return e, err
}

func (g *timeoutGateway) UpsertEntity(ctx context.Context, e *domain.Entity) error {
	return g.call(ctx, "upsert entity", func(ctx context.Context) error {
		return g.next.UpsertEntity(ctx, e)
	})
}

func (g *timeoutGateway) BulkUpsertEntities(ctx context.Context, entities []*domain.Entity) error {
	return g.call(ctx, "bulk upsert entities", func(ctx context.Context) error {
		return g.next.BulkUpsertEntities(ctx, entities)
	})
}

func (g *timeoutGateway) DeleteEntity(ctx context.Context, id string) error {
	return g.call(ctx, "delete entity", func(ctx context.Context) error {
		return g.next.DeleteEntity(ctx, id)
	})
}

func (g *timeoutGateway) CreateEntityWithMembership(ctx context.Context, e *domain.Entity, collectionID string) error {
	return g.call(ctx, "create entity with membership", func(ctx context.Context) error {
		return g.next.CreateEntityWithMembership(ctx, e, collectionID)
	})
}

func (g *timeoutGateway) ListMemberships(ctx context.Context, workspaceID string) (out []domain.Membership, err error) {
	err = g.call(ctx, "list memberships", func(ctx context.Context) error {
		out, err = g.next.ListMemberships(ctx, workspaceID)
		return err
	})
	return out, err
}

func (g *timeoutGateway) ListMembershipEntityIDs(ctx context.Context, collectionID string) (out []string, err error) {
	err = g.call(ctx, "list membership entity ids", func(ctx context.Context) error {
		out, err = g.next.ListMembershipEntityIDs(ctx, collectionID)
		return err
	})
	return out, err
}

func (g *timeoutGateway) ListMembershipCollectionIDs(ctx context.Context, entityID string) (out []string, err error) {
	err = g.call(ctx, "list membership collection ids", func(ctx context.Context) error {
		out, err = g.next.ListMembershipCollectionIDs(ctx, entityID)
		return err
	})
	return out, err
}

func (g *timeoutGateway) InsertMembership(ctx context.Context, m domain.Membership) error {
	return g.call(ctx, "insert membership", func(ctx context.Context) error {
		return g.next.InsertMembership(ctx, m)
	})
}

func (g *timeoutGateway) DeleteMembership(ctx context.Context, collectionID, entityID string) error {
	return g.call(ctx, "delete membership", func(ctx context.Context) error {
		return g.next.DeleteMembership(ctx, collectionID, entityID)
	})
}

func (g *timeoutGateway) ReplaceMembership(ctx context.Context, collectionID string, entityIDs []string) error {
	return g.call(ctx, "replace membership", func(ctx context.Context) error {
		return g.next.ReplaceMembership(ctx, collectionID, entityIDs)
	})
}

func (g *timeoutGateway) CountMembership(ctx context.Context, collectionID string) (n int, err error) {
	err = g.call(ctx, "count membership", func(ctx context.Context) error {
		n, err = g.next.CountMembership(ctx, collectionID)
		return err
	})
	return n, err
}

func (g *timeoutGateway) Ping(ctx context.Context) error {
	return g.call(ctx, "ping", g.next.Ping)
}

func (g *timeoutGateway) Close() error { return g.next.Close() }
