package main

import (
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/pintfinder/internal/adapters/policeuk"
	"github.com/samirrijal/pintfinder/internal/adapters/valkey"
	"github.com/samirrijal/pintfinder/internal/core/usecases"
	"github.com/samirrijal/pintfinder/internal/pkg/config"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
	"github.com/samirrijal/pintfinder/internal/workflows"
)

func main() {
	cfg, err := config.Load("pintfinder-enricher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	// Warmups only pay off when results land in the cache the API reads.
	cache, err := valkey.New(cfg.Valkey.Addr, "pintfinder:")
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	crimeClient := policeuk.New(cfg.CrimeFeed.URL, cfg.CrimeFeed.RatePerSec, cfg.CrimeFeed.Timeout)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.EnrichmentWorkflow)
	w.RegisterActivity(&workflows.EnrichmentActivities{
		Crimes: usecases.NewCrimeService(crimeClient, cache, usecases.CrimeDefaults{
			Month:    cfg.CrimeFeed.Month,
			Category: cfg.CrimeFeed.Category,
			CacheTTL: cfg.CrimeFeed.CacheTTL,
		}),
	})

	slog.Info("enricher worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
