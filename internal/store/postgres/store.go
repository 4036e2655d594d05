// Package postgres implements the store gateway on a Postgres database,
// such as a hosted Supabase project.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rebase-energy/workspace-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres-backed persistence through a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Gateway = (*Store)(nil)

// Open connects to the database at url, verifies the connection and
// applies the schema.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if url == "" {
		return nil, store.ErrNotConfigured.WithMessage("postgres url is empty")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, mapError(fmt.Errorf("connect postgres: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mapError(fmt.Errorf("ping postgres: %w", err))
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("postgres store connected", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.pool.Ping(ctx))
}

// mapError translates pgx errors into store errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound.WithCause(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return store.ErrAlreadyExists.WithCause(err)
		case "23503": // foreign_key_violation
			return store.ErrNotFound.WithMessage("referenced row not found").WithCause(err)
		}
		return err
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return store.ErrTransport.WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return store.ErrTransport.WithCause(err)
	}
	return err
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return mapError(tx.Commit(ctx))
}

func now() time.Time { return time.Now().UTC() }

func stamp(created, updated *time.Time) {
	if created.IsZero() {
		*created = now()
	}
	if updated.IsZero() {
		*updated = *created
	}
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err)
	}
	return out, nil
}
