package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/samirrijal/trailobs/internal/adapters/gpx"
	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/config"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

func reportCommand() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "match GPX tracks against named trails and list nearby observations",
		ArgsUsage: "FILE.gpx...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "quality-grade", Aliases: []string{"q"}, Usage: "casual, needs_id, research or all (comma separated)"},
			&cli.StringFlag{Name: "iconic-taxon", Aliases: []string{"t"}, Usage: "iconic taxa to keep, e.g. Plantae,Aves, or all"},
			&cli.BoolFlag{Name: "month", Aliases: []string{"m"}, Usage: "only observations from this month and its neighbours"},
			&cli.BoolFlag{Name: "login-names", Aliases: []string{"l"}, Usage: "show observer login names"},
			&cli.TimestampFlag{Name: "since", Layout: time.DateOnly, Usage: "earliest observation date"},
			&cli.TimestampFlag{Name: "until", Layout: time.DateOnly, Usage: "latest observation date"},
			&cli.BoolFlag{Name: "json", Usage: "print the full report as JSON"},
			&cli.BoolFlag{Name: "geojson", Usage: "print the matched trails and observations as GeoJSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("at least one GPX file is required")
			}

			cfg, logger, cleanup, err := setup(c)
			if err != nil {
				return err
			}
			defer cleanup()

			// flags are validated before anything touches the network
			runCfg, err := runConfigFromFlags(c, cfg)
			if err != nil {
				return err
			}
			route, err := gpx.Reader{}.ReadFiles(c.Args().Slice()...)
			if err != nil {
				return err
			}

			a, err := openApp(c, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logging.WithLogger(c.Context, logger)
			report, err := a.Reports.Run(ctx, route, runCfg)
			if err != nil {
				return err
			}

			out := c.App.Writer
			switch {
			case c.Bool("geojson"):
				return writeJSON(out, report.GeoJSON())
			case c.Bool("json"):
				return writeJSON(out, report)
			default:
				return writeListing(out, report)
			}
		},
	}
}

func runConfigFromFlags(c *cli.Context, cfg *config.Config) (domain.RunConfig, error) {
	run, err := cfg.RunConfig()
	if err != nil {
		return run, err
	}
	if c.IsSet("quality-grade") {
		if run.Filter.QualityGrades, err = domain.ParseQualityGrade(c.String("quality-grade")); err != nil {
			return run, err
		}
	}
	if c.IsSet("iconic-taxon") {
		if run.Filter.IconicTaxa, err = domain.ParseIconicTaxon(c.String("iconic-taxon")); err != nil {
			return run, err
		}
	}
	if c.IsSet("month") {
		run.Filter.Month = c.Bool("month")
	}
	if c.IsSet("login-names") {
		run.Filter.LoginNames = c.Bool("login-names")
	}
	if t := c.Timestamp("since"); t != nil {
		run.Filter.Since = *t
	}
	if t := c.Timestamp("until"); t != nil {
		run.Filter.Until = *t
	}
	return run, run.Validate()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeListing prints one block per trail in route order, then the
// exclusion counts.
func writeListing(w io.Writer, r *domain.Report) error {
	if w == nil {
		w = os.Stdout
	}
	if r.DegenerateRoute {
		_, err := fmt.Fprintln(w, "The track has fewer than two points; nothing to match.")
		return err
	}

	byID := make(map[int64]domain.Observation)
	for _, a := range r.Included() {
		byID[a.Observation.ID] = a.Observation
	}

	bw := &errWriter{w: w}
	if r.Place != "" {
		bw.printf("%s\n\n", r.Place)
	}
	if len(r.Trails) == 0 {
		bw.printf("No named trails found along the track.\n")
	}
	for _, t := range r.Trails {
		bw.printf("%s (%.1f km)\n", t.Name, t.Length/1000)
		if len(t.Observations) == 0 {
			bw.printf("  no observations\n")
		}
		for _, id := range t.Observations {
			bw.printf("  %s\n", observationLine(byID[id], r.Filter.LoginNames))
		}
	}

	s := r.Stats
	bw.printf("\n%d observation(s) along %d trail(s); %d way(s) loaded, %d without geometry.\n",
		s.Associated, s.Trails, s.Ways, s.SkippedWays)
	bw.printf("Excluded: %d not along the route, %d low positional accuracy, %d by quality grade, %d by iconic taxon, %d out of season.\n",
		s.ExcludedOffRoute, s.ExcludedAccuracy, s.ExcludedQuality, s.ExcludedIconicTaxon, s.ExcludedSeason)
	return bw.err
}

func observationLine(o domain.Observation, logins bool) string {
	name := o.Taxon.CommonName
	switch {
	case name == "":
		name = o.Taxon.Name
	case o.Taxon.Name != "":
		name = fmt.Sprintf("%s (%s)", name, o.Taxon.Name)
	}
	if name == "" {
		name = "unidentified"
	}
	line := name
	if !o.ObservedOn.IsZero() {
		line += " " + o.ObservedOn.Format(time.DateOnly)
	}
	switch {
	case o.Status != "" && o.StatusPlace != "":
		line += " [" + o.Status + " in " + o.StatusPlace + "]"
	case o.Status != "":
		line += " [" + o.Status + "]"
	}
	if logins && o.UserLogin != "" {
		line += " @" + o.UserLogin
	}
	return fmt.Sprintf("%s https://www.inaturalist.org/observations/%d", line, o.ID)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
