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

	"github.com/samirrijal/raycross/internal/adapters/http"
	"github.com/samirrijal/raycross/internal/adapters/memstore"
	natsadapter "github.com/samirrijal/raycross/internal/adapters/nats"
	"github.com/samirrijal/raycross/internal/adapters/overlay"
	"github.com/samirrijal/raycross/internal/adapters/postgres"
	"github.com/samirrijal/raycross/internal/adapters/valkey"
	"github.com/samirrijal/raycross/internal/core/ports"
	"github.com/samirrijal/raycross/internal/core/usecases"
	"github.com/samirrijal/raycross/internal/pkg/config"
	"github.com/samirrijal/raycross/internal/pkg/logging"
	"github.com/samirrijal/raycross/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("raycross-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr, cfg.Telemetry.SampleRatio)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	deps := &http.Dependencies{}

	// Database (observation batches only)
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		deps.Observations = postgres.NewObservationRepo(db)

		go db.ReportPoolStats(ctx, 15*time.Second)
	}

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		if cfg.Session.Store == config.StoreValkey {
			log.Fatalf("valkey session store: %v", err)
		}
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		deps.Cache = cache
	}

	// Session store
	var store ports.SessionStore
	switch cfg.Session.Store {
	case config.StoreValkey:
		store = valkey.NewSessionStore(cache)
	default:
		mem := memstore.New(uint64(cfg.Session.Capacity), func(id string) {
			slog.Info("session expired", "session_id", id)
		})
		mem.Start()
		defer mem.Stop()
		store = mem
	}
	slog.Info("session store ready", "store", cfg.Session.Store, "ttl", cfg.Session.TTL())

	// NATS
	var publisher ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			deps.NATS = pub.Conn()
		}
	}

	// Use cases
	newSurface := func() ports.OverlaySurface { return overlay.New() }
	deps.Sessions = usecases.NewSessionService(store, publisher, newSurface, cfg.Session.TTL())
	if deps.Cache != nil {
		deps.Projections = usecases.NewProjectionService(deps.Cache)
	} else {
		deps.Projections = usecases.NewProjectionService(nil)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "Raycross API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Link, Location",
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

	slog.Info("server stopped")
}
