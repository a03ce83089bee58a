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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/stopgrid/internal/adapters/http"
	natsadapter "github.com/samirrijal/stopgrid/internal/adapters/nats"
	"github.com/samirrijal/stopgrid/internal/adapters/postgres"
	"github.com/samirrijal/stopgrid/internal/adapters/valkey"
	"github.com/samirrijal/stopgrid/internal/core/ports"
	"github.com/samirrijal/stopgrid/internal/core/proximity"
	"github.com/samirrijal/stopgrid/internal/core/usecases"
	"github.com/samirrijal/stopgrid/internal/pkg/config"
	"github.com/samirrijal/stopgrid/internal/pkg/logging"
	"github.com/samirrijal/stopgrid/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("stopgrid-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("stopgrid-api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		pub = nil
	} else {
		defer pub.Close()
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats subscriber unavailable", "error", err)
		sub = nil
	} else {
		defer sub.Close()
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos + use cases
	stopRepo := postgres.NewStopRepo(db)

	svcCfg := usecases.Config{
		Index: proximity.Config{
			CellSizeMeters: cfg.Accessibility.CellSizeMeters,
			MaxRings:       cfg.Accessibility.MaxRings,
			MaxK:           cfg.Accessibility.MaxK,
		},
		SummaryRadii:       cfg.Accessibility.SummaryRadii,
		HeatMaxMeters:      cfg.Accessibility.HeatMaxMeters,
		HeatmapDefaultSize: cfg.Accessibility.HeatmapDefaultSize,
	}

	accessSvc := usecases.NewAccessibilityService(stopRepo, cacheOrNil(cache), publisherOrNil(pub), svcCfg)

	// Snapshot refresher: initial build, periodic rebuilds, and debounced
	// rebuilds on stop-change events.
	refresher := usecases.NewRefresher(accessSvc, subscriberOrNil(sub),
		cfg.Accessibility.RefreshIntervalDuration(),
		cfg.Accessibility.RefreshDebounceDuration())
	go func() {
		if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("refresher stopped", "error", err)
		}
	}()

	deps := &http.Dependencies{
		Accessibility: accessSvc,
		Stops:         stopRepo,
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "StopGrid API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
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

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// The *OrNil helpers keep typed-nil adapter pointers from turning into
// non-nil interfaces downstream.

func cacheOrNil(c *valkey.Cache) ports.CacheService {
	if c == nil {
		return nil
	}
	return c
}

func publisherOrNil(p *natsadapter.Publisher) ports.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func subscriberOrNil(s *natsadapter.Subscriber) ports.EventSubscriber {
	if s == nil {
		return nil
	}
	return s
}
