package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// makeTestWorkspace inserts a workspace and returns it.
func makeTestWorkspace(t *testing.T, s *Store, slug string) *domain.Workspace {
	t.Helper()
	ws := &domain.Workspace{ID: "ws-" + slug, Slug: slug, Name: slug, Settings: domain.DefaultSettings()}
	if err := s.CreateWorkspace(context.Background(), ws); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	return ws
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	// Verify WAL mode is set.
	var journalMode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected wal, got %s", journalMode)
	}

	// Verify foreign keys are enabled.
	var fk int
	err = s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign_keys=1, got %d", fk)
	}

	// Verify tables exist.
	for _, table := range []string{"workspaces", "collections", "entities", "collection_entities"} {
		var name string
		err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for range 2 {
		s, err := Open(path, nil)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		s.Close()
	}
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conns := make([]interface{ Close() error }, 0, 4)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()
	for range 4 {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("conn: %v", err)
		}
		conns = append(conns, conn)

		var fk int
		if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
			t.Fatalf("query foreign_keys: %v", err)
		}
		if fk != 1 {
			t.Errorf("expected foreign_keys=1 on every connection, got %d", fk)
		}
	}
}

func TestLockedDatabaseIsTransportError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.db")
	holder, err := Open(path, nil)
	if err != nil {
		t.Fatalf("open holder: %v", err)
	}
	t.Cleanup(func() { holder.Close() })
	ws := makeTestWorkspace(t, holder, "acme")

	s, err := open(path, nil, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	conn, err := holder.db.Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer conn.ExecContext(ctx, "ROLLBACK")

	e := &domain.Entity{ID: "e1", WorkspaceID: ws.ID, Payload: &domain.Site{Name: "North"}}
	if err := s.UpsertEntity(ctx, e); !errors.Is(err, store.ErrTransport) {
		t.Errorf("UpsertEntity: expected ErrTransport, got %v", err)
	}
	if err := s.BulkUpsertEntities(ctx, []*domain.Entity{e}); !errors.Is(err, store.ErrTransport) {
		t.Errorf("BulkUpsertEntities: expected ErrTransport, got %v", err)
	}

	// Reads are not blocked by the writer in WAL mode.
	if _, err := s.GetWorkspace(ctx, "acme"); err != nil {
		t.Errorf("GetWorkspace: %v", err)
	}
}
