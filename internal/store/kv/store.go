// Package kv implements the store gateway on an embedded Badger key-value
// database. Secondary lookups are kept as empty index keys written in the same
// transaction as the record they point at.
package kv

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/rebase-energy/workspace-server/internal/store"
)

// Store provides Badger-backed persistence.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.Gateway = (*Store)(nil)

// Open opens (or creates) a Badger database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, logger)
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("Badger database opened successfully", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	s.logger.Info("Closing database connection")
	return s.db.Close()
}

// Ping reports whether the database is still open.
func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return store.ErrTransport.WithMessage("badger db is closed")
	}
	return nil
}

// getJSON reads key inside txn into dest.
func getJSON(txn *badger.Txn, key []byte, dest any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dest)
	})
}

// setJSON writes value under key inside txn.
func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return txn.Set(key, data)
}

// exists checks if a key exists inside txn.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// suffixes returns the key suffixes after prefix, in key order.
func suffixes(txn *badger.Txn, prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		out = append(out, string(it.Item().Key()[len(prefix):]))
	}
	return out
}

// deleteIgnoreMissing deletes key, treating a missing key as success.
func deleteIgnoreMissing(txn *badger.Txn, key []byte) error {
	if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return nil
}

// mapError translates badger errors into store errors.
func mapError(err error, what, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return store.ErrNotFound.WithMessage(what + " " + id + " not found")
	case errors.Is(err, badger.ErrDBClosed):
		return store.ErrTransport.WithCause(err)
	}
	return err
}
