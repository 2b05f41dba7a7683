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

	"github.com/samirrijal/trailobs/internal/adapters/gpx"
	"github.com/samirrijal/trailobs/internal/adapters/http"
	"github.com/samirrijal/trailobs/internal/app"
	"github.com/samirrijal/trailobs/internal/pkg/config"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
	"github.com/samirrijal/trailobs/internal/pkg/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.Load("trailobs-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.SetupWriter(os.Stdout, cfg.Log.Level, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer application.Close()

	if cfg.Cache.PurgeOnStart {
		if _, err := application.PurgeStale(ctx); err != nil {
			logging.LogError(logger, "cache purge failed", err)
		}
	}

	defaults, err := cfg.RunConfig()
	if err != nil {
		log.Fatalf("run config: %v", err)
	}

	deps := &http.Dependencies{
		Reports:        application.Reports,
		Tracks:         gpx.Reader{},
		Defaults:       defaults,
		Ready:          application.Ready,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		Version:        version,
	}

	// Fiber
	server := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "trailobs API",
	})
	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(server, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := server.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Report runs can be long; give them the request timeout to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
