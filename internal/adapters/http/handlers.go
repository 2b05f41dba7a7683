package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

// runConfigFromQuery overlays the filter query parameters on the defaults.
// Absent parameters keep the default.
func runConfigFromQuery(c *fiber.Ctx, defaults domain.RunConfig) (domain.RunConfig, error) {
	cfg := defaults

	if v := c.Query("quality_grade"); v != "" {
		grades, err := domain.ParseQualityGrade(v)
		if err != nil {
			return cfg, err
		}
		cfg.Filter.QualityGrades = grades
	}
	if v := c.Query("iconic_taxon"); v != "" {
		taxa, err := domain.ParseIconicTaxon(v)
		if err != nil {
			return cfg, err
		}
		cfg.Filter.IconicTaxa = taxa
	}
	cfg.Filter.Month = c.QueryBool("month", cfg.Filter.Month)
	cfg.Filter.LoginNames = c.QueryBool("login_names", cfg.Filter.LoginNames)

	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"since", &cfg.Filter.Since},
		{"until", &cfg.Filter.Until},
	} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return cfg, fmt.Errorf("%s must be YYYY-MM-DD", p.name)
		}
		*p.dst = t
	}

	return cfg, cfg.Validate()
}

// CreateReportHandler runs the pipeline for the GPX document in the request
// body. With format=geojson the response is the map layer instead of the
// full report.
func CreateReportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cfg, err := runConfigFromQuery(c, deps.Defaults)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		format := c.Query("format", "json")
		if format != "json" && format != "geojson" {
			return errBadRequest(c, "format must be json or geojson")
		}

		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "request body must be a GPX document")
		}
		route, err := deps.Tracks.ReadRoute(bytes.NewReader(body))
		if err != nil {
			return errUnprocessable(c, err.Error())
		}

		ctx := c.UserContext()
		report, err := deps.Reports.Run(ctx, route, cfg)
		if err != nil {
			logging.LogError(logging.FromContext(ctx), "report run failed", err)
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				return errGatewayTimeout(c, "report did not finish in time")
			case errors.Is(err, domain.ErrFetchFailed):
				return errBadGateway(c, err.Error())
			default:
				return errInternal(c, err.Error())
			}
		}

		c.Set("X-Run-ID", report.RunID)
		if format == "geojson" {
			return c.JSON(report.GeoJSON(), "application/geo+json")
		}
		return c.JSON(report)
	}
}
