// Package main provides a tool to seed a workspace with demo time series.
//
// It ensures the workspace and its built-in collections exist, then adds
// randomly generated series to the default time series collection.
//
// Usage:
//
//	SEED_SERIES=25 go run ./cmd/seed --store sqlite --workspace rebase-energy
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/samber/do/v2"

	"github.com/rebase-energy/workspace-server/internal/config"
	"github.com/rebase-energy/workspace-server/internal/di"
	"github.com/rebase-energy/workspace-server/internal/domain"
	"github.com/rebase-energy/workspace-server/internal/service"
)

var (
	sites = []string{"Blackfjallet", "Ranasjo", "Storberget", "Vindpark Nord", "Solbacken", "Kraftverk Syd"}
	kinds = []struct {
		suffix string
		unit   string
		series domain.SeriesType
	}{
		{"production", "MW", domain.SeriesActual},
		{"forecast", "MW", domain.SeriesForecast},
		{"wind speed", "m/s", domain.SeriesActual},
		{"availability", "%", domain.SeriesActual},
	}
)

func main() {
	count := 10
	if v := os.Getenv("SEED_SERIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			log.Fatalf("Invalid SEED_SERIES %q", v)
		}
		count = n
	}

	injector := di.NewContainer()
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	cfg := do.MustInvoke[*config.Config](injector)
	bootstrap := do.MustInvoke[*service.Bootstrap](injector)
	coordinator := do.MustInvoke[*service.MembershipCoordinator](injector)

	ctx := context.Background()

	ws, err := bootstrap.Ensure(ctx, cfg.Workspace.DefaultSlug)
	if err != nil {
		log.Fatalf("Failed to ensure workspace: %v", err)
	}
	fmt.Printf("Seeding workspace %s (%s)\n", ws.Slug, ws.ID)

	collectionID := bootstrap.CollectionID(ws, service.DefaultTimeSeriesKey)
	now := time.Now().UTC()

	created := 0
	for range count {
		site := sites[rand.IntN(len(sites))]
		kind := kinds[rand.IntN(len(kinds))]

		payload := &domain.TimeSeries{
			Name:        site + " " + kind.suffix,
			Description: "Generated " + kind.suffix + " series for " + site,
			Unit:        kind.unit,
			SiteName:    site,
			Timestamp:   now.Add(-time.Duration(rand.IntN(24*60)) * time.Minute).Format(time.RFC3339),
			Value:       float64(rand.IntN(20000)) / 100,
			Type:        kind.series,
			Tags:        []string{"seed"},
		}

		e, err := coordinator.CreateEntityInCollection(ctx, ws.ID, collectionID, payload)
		if err != nil {
			log.Printf("Failed to create %q: %v", payload.Name, err)
			continue
		}
		created++
		fmt.Printf("  + %s (%s)\n", e.Name(), e.ID)
	}

	counts, err := coordinator.EntityCounts(ctx, ws.ID)
	if err != nil {
		log.Fatalf("Failed to count entities: %v", err)
	}

	fmt.Printf("\nCreated %d of %d series\n", created, count)
	for id, n := range counts {
		fmt.Printf("  %s: %d entities\n", id, n)
	}
}
