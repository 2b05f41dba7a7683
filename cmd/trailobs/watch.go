package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v2"

	natsadapter "github.com/samirrijal/trailobs/internal/adapters/nats"
	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "print reports as they are published to NATS",
		Action: func(c *cli.Context) error {
			cfg, logger, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()
			if cfg.NATS.URL == "" {
				return errors.New("nats.url is not configured")
			}

			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
			if err != nil {
				return err
			}
			defer logging.SafeClose(logger, sub, "nats subscriber")

			out := c.App.Writer
			err = sub.SubscribeReports(c.Context, func(_ context.Context, r *domain.Report) error {
				logger.Info("report received", "run_id", r.RunID, "trails", r.Stats.Trails)
				return writeListing(out, r)
			})
			if err != nil {
				return err
			}

			<-c.Context.Done()
			return nil
		},
	}
}
