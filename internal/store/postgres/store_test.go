package postgres

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/id"
	"github.com/rebase-energy/workspace-server/internal/store"
)

// newTestStore connects to TEST_DATABASE_URL. Tests are skipped when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newEntityID(t *testing.T) string {
	t.Helper()
	v, err := id.NewEntityID()
	if err != nil {
		t.Fatalf("entity id: %v", err)
	}
	return v
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, store.ErrAlreadyExists},
		{"foreign key", &pgconn.PgError{Code: "23503"}, store.ErrNotFound},
		{"deadline", context.DeadlineExceeded, store.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("mapError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
	if mapError(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestOpen_EmptyURL(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	if !store.IsNotConfigured(err) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestMembershipLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	slug := id.MustGenerate("test")
	ws := &domain.Workspace{ID: id.MustGenerate(id.PrefixWorkspace), Slug: slug, Name: slug, Settings: domain.DefaultSettings()}
	if err := s.CreateWorkspace(ctx, ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	c := &domain.Collection{
		ID: id.MustGenerate(id.PrefixCollection), WorkspaceID: ws.ID, Name: "Sites",
		ObjectType: domain.ObjectSite, ViewType: domain.ViewTable, Columns: domain.DefaultColumns(domain.ObjectSite),
	}
	if err := s.CreateCollection(ctx, c); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	e1 := &domain.Entity{ID: newEntityID(t), WorkspaceID: ws.ID, Payload: &domain.Site{Name: "North"}}
	e2 := &domain.Entity{ID: newEntityID(t), WorkspaceID: ws.ID, Payload: &domain.Site{Name: "South"}}
	if err := s.CreateEntityWithMembership(ctx, e1, c.ID); err != nil {
		t.Fatalf("create with membership: %v", err)
	}
	if err := s.UpsertEntity(ctx, e2); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := s.ReplaceMembership(ctx, c.ID, []string{e2.ID}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	ids, err := s.ListMembershipEntityIDs(ctx, c.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !slices.Equal(ids, []string{e2.ID}) {
		t.Errorf("expected [%s], got %v", e2.ID, ids)
	}

	if err := s.DeleteCollection(ctx, c.ID); err != nil {
		t.Fatalf("delete collection: %v", err)
	}
	if n, _ := s.CountMembership(ctx, c.ID); n != 0 {
		t.Errorf("memberships should cascade, got %d", n)
	}
	for _, e := range []*domain.Entity{e1, e2} {
		if err := s.DeleteEntity(ctx, e.ID); err != nil {
			t.Errorf("delete entity: %v", err)
		}
	}
}
