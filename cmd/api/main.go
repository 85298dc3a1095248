package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/pintfinder/internal/adapters/http"
	natsadapter "github.com/samirrijal/pintfinder/internal/adapters/nats"
	"github.com/samirrijal/pintfinder/internal/adapters/places"
	"github.com/samirrijal/pintfinder/internal/adapters/policeuk"
	"github.com/samirrijal/pintfinder/internal/adapters/routing"
	temporaladapter "github.com/samirrijal/pintfinder/internal/adapters/temporal"
	"github.com/samirrijal/pintfinder/internal/adapters/valkey"
	"github.com/samirrijal/pintfinder/internal/core/domain"
	"github.com/samirrijal/pintfinder/internal/core/ports"
	"github.com/samirrijal/pintfinder/internal/core/usecases"
	"github.com/samirrijal/pintfinder/internal/pkg/config"
	"github.com/samirrijal/pintfinder/internal/pkg/logging"
	"github.com/samirrijal/pintfinder/internal/pkg/telemetry"
	"github.com/samirrijal/pintfinder/internal/surface"
)

func main() {
	cfg, err := config.Load("pintfinder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// Cache
	var cache *valkey.Cache
	var cacheSvc ports.CacheService
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr, "pintfinder:")
		if err != nil {
			slog.Warn("valkey unavailable, caching disabled", "error", err)
		} else {
			defer cache.Close()
			cacheSvc = cache
		}
	}

	// Surface op bus: the hub always tracks attached views and owns the
	// sessions of this process. NATS, when enabled, moves ops off the
	// request path; a view's socket and its sessions must still live on
	// the same replica.
	hub := surface.NewHub()
	var publisher ports.SurfacePublisher = hub
	var subscriber ports.SurfaceSubscriber = hub
	deps := &http.Dependencies{Views: hub}
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, using in-process op bus", "error", err)
		} else {
			defer pub.Close()
			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
			if err != nil {
				slog.Warn("nats subscriber unavailable, using in-process op bus", "error", err)
			} else {
				defer sub.Close()
				publisher, subscriber = pub, sub
				deps.NATS = sub.Conn()
			}
		}
	}

	// Enrichment workflows warm the shared cache, so they need one.
	var scheduler ports.EnrichmentScheduler
	if cfg.Temporal.Enabled && cacheSvc == nil {
		slog.Warn("temporal enabled without valkey, enrichment disabled")
	} else if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, enrichment disabled", "error", err)
		} else {
			defer tc.Close()
			scheduler = temporaladapter.NewScheduler(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Gateways
	routeClient := routing.New(cfg.Routing.URL, cfg.Routing.Timeout)
	crimeClient := policeuk.New(cfg.CrimeFeed.URL, cfg.CrimeFeed.RatePerSec, cfg.CrimeFeed.Timeout)
	var photoResolver ports.PhotoResolver
	if cfg.Photos.APIKey != "" {
		photoResolver = places.New(cfg.Photos.URL, cfg.Photos.APIKey, cfg.Photos.MaxWidth, cfg.Photos.Timeout)
	} else {
		slog.Warn("photos.api_key not set, popups will have no photos")
	}

	// Use cases
	center := domain.Coordinate{Lng: cfg.Map.CenterLng, Lat: cfg.Map.CenterLat}
	mapOpts := domain.MapOptions{Style: cfg.Map.Style, AccessToken: cfg.Map.AccessToken, Zoom: cfg.Map.Zoom}

	photoSvc := usecases.NewPhotoService(photoResolver, cacheSvc, cfg.Photos.CacheTTL)
	crimeSvc := usecases.NewCrimeService(crimeClient, cacheSvc, usecases.CrimeDefaults{
		Month:    cfg.CrimeFeed.Month,
		Category: cfg.CrimeFeed.Category,
		CacheTTL: cfg.CrimeFeed.CacheTTL,
	})

	routeStyle := usecases.DefaultRouteStyle()
	routeStyle.Line.Color = cfg.Render.LineColor
	routeStyle.Line.Width = cfg.Render.LineWidth
	routeStyle.PhotoWorkers = cfg.Photos.Workers
	routes := usecases.NewRouteRenderer(photoSvc, routeStyle)

	sessions := usecases.NewSessionService(
		&surface.Factory{Views: hub, Publisher: publisher, Options: mapOpts},
		usecases.FormOptions{LockOrigin: cfg.Form.LockOrigin, MaxRadiusKm: cfg.Form.MaxRadiusKm},
		center,
		routes,
		scheduler,
	)
	planner := usecases.NewPlanner(
		sessions,
		routeClient,
		crimeSvc,
		routes,
		usecases.NewCrimeOverlayRenderer(usecases.DefaultCrimeStyle()),
		usecases.PlannerOptions{
			RouteTimeout:      cfg.Routing.Timeout,
			StrictGenerations: cfg.Render.StrictGenerations,
		},
	)

	deps.Sessions = sessions
	deps.Planner = planner
	deps.Crimes = crimeSvc
	deps.Photos = photoSvc
	deps.Ops = subscriber
	deps.Cache = cache
	deps.Map = http.MapConfig{
		Style:       cfg.Map.Style,
		AccessToken: cfg.Map.AccessToken,
		Center:      center,
		Zoom:        cfg.Map.Zoom,
	}
	deps.SubmitTimeout = cfg.Routing.Timeout + 10*time.Second
	deps.OpenAPIPath = cfg.Server.OpenAPIPath

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "PintFinder API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	sessions.CloseAll(shutdownCtx)

	slog.Info("server stopped")
}
