package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/samirrijal/trailobs/internal/app"
	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/usecases"
)

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "manage cached API results",
		Subcommands: []*cli.Command{
			{
				Name:  "purge",
				Usage: "remove cached results older than their retention",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "remove every cached result"},
				},
				Action: func(c *cli.Context) error {
					cfg, logger, cleanup, err := setup(c)
					if err != nil {
						return err
					}
					defer cleanup()

					a, err := app.New(c.Context, cfg, logger)
					if err != nil {
						return err
					}
					defer a.Close()

					var n int
					if c.Bool("all") {
						n, err = purgeAll(c, a.Cache)
					} else {
						n, err = a.PurgeStale(c.Context)
					}
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(c.App.Writer, "removed %d cached result(s)\n", n)
					return err
				},
			},
		},
	}
}

// purgeAll uses a negative age so that every entry counts as stale.
func purgeAll(c *cli.Context, cache *usecases.CacheService) (int, error) {
	total := 0
	for _, kind := range []domain.ResourceKind{domain.KindObservations, domain.KindWays, domain.KindPlaces} {
		n, err := cache.Purge(c.Context, kind, -1)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
