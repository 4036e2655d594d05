package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/rebase-energy/workspace-server/internal/cache"
	"github.com/rebase-energy/workspace-server/internal/config"
	"github.com/rebase-energy/workspace-server/internal/logger"
	"github.com/rebase-energy/workspace-server/internal/sse"
	"github.com/rebase-energy/workspace-server/internal/store"
	"github.com/rebase-energy/workspace-server/internal/store/kv"
	"github.com/rebase-energy/workspace-server/internal/store/postgres"
	"github.com/rebase-energy/workspace-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager. Services use it
// as their store.EventEmitter.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the remote store gateway with shutdown capability.
type StoreHandle struct {
	store.Gateway
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the gateway selected by the store driver. Every call
// is bounded by the configured call timeout.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	gateway, err := openGateway(cfg.Store, log)
	if err != nil {
		return nil, err
	}

	return &StoreHandle{Gateway: store.WithTimeout(gateway, cfg.Store.CallTimeout, log.Logger)}, nil
}

func openGateway(sc config.StoreConfig, log *logger.Logger) (store.Gateway, error) {
	switch sc.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(sc.SQLitePath, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info("Store initialized", "driver", sc.Driver, "path", sc.SQLitePath)
		return db, nil

	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), sc.CallTimeout)
		defer cancel()
		db, err := postgres.Open(ctx, sc.PostgresURL, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Info("Store initialized", "driver", sc.Driver)
		return db, nil

	case config.DriverBadger:
		db, err := kv.Open(sc.BadgerPath, log.Logger)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		log.Info("Store initialized", "driver", sc.Driver, "path", sc.BadgerPath)
		return db, nil

	default:
		log.Warn("No store configured; workspaces live in memory and writes are rejected")
		return store.NotConfigured{}, nil
	}
}

// ProvideEntityCache provides the in-memory entity cache over the store.
func ProvideEntityCache(i do.Injector) (*cache.EntityCache, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return cache.New(storeHandle.Gateway, log.Logger), nil
}
