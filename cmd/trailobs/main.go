package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/samirrijal/trailobs/internal/app"
	"github.com/samirrijal/trailobs/internal/pkg/config"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
	"github.com/samirrijal/trailobs/internal/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "trailobs",
		Usage: "list the named trails of a hike and the observations made along them",
		Commands: []*cli.Command{
			reportCommand(),
			cacheCommand(),
			watchCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "trailobs:", err)
		os.Exit(1)
	}
}

// setup loads configuration and logs to stderr so stdout stays clean for
// the command output.
func setup(c *cli.Context) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load("trailobs")
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.SetupWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	cleanup := func() {}
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(c.Context, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			logger.Warn("telemetry init failed", "error", err)
		} else {
			cleanup = shutdown
		}
	}
	return cfg, logger, cleanup, nil
}

// openApp wires the application and purges stale cache entries when
// configured to.
func openApp(c *cli.Context, cfg *config.Config, logger *slog.Logger) (*app.Application, error) {
	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.PurgeOnStart {
		if _, err := a.PurgeStale(c.Context); err != nil {
			logging.LogError(logger, "cache purge failed", err)
		}
	}
	return a, nil
}
