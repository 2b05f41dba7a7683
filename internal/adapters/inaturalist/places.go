package inaturalist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

// FetchPlaces returns the standard and community places overlapping b.
func (c *Client) FetchPlaces(ctx context.Context, b domain.Bounds) ([]domain.Place, error) {
	v := url.Values{}
	v.Set("swlat", formatCoord(b.MinLat))
	v.Set("swlng", formatCoord(b.MinLon))
	v.Set("nelat", formatCoord(b.MaxLat))
	v.Set("nelng", formatCoord(b.MaxLon))
	u := c.placesURL + "places/nearby?" + v.Encode()

	body, err := c.transport.Do(ctx, domain.KindPlaces, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return nil, err
	}
	places, err := decodePlaces(body)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("places fetched", "count", len(places))
	return places, nil
}

func decodePlaces(body []byte) ([]domain.Place, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("places: invalid JSON response")
	}
	res := gjson.ParseBytes(body)
	if errs := res.Get("errors"); errs.Exists() {
		return nil, fmt.Errorf("places: api error: %s", errs.Raw)
	}

	var out []domain.Place
	seen := make(map[int64]bool)
	for _, group := range []string{"standard", "community"} {
		for _, r := range res.Get("results." + group).Array() {
			p := domain.Place{
				ID:       r.Get("id").Int(),
				Name:     r.Get("display_name").String(),
				BBoxArea: r.Get("bbox_area").Float(),
			}
			if p.ID == 0 || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			if p.Name == "" {
				p.Name = r.Get("name").String()
			}
			for _, a := range r.Get("ancestor_place_ids").Array() {
				p.AncestorIDs = append(p.AncestorIDs, a.Int())
			}
			if g := r.Get("geometry_geojson"); g.IsObject() {
				geom, err := geojson.UnmarshalGeometry([]byte(g.Raw))
				if err != nil {
					return nil, fmt.Errorf("places: geometry of place %d: %w", p.ID, err)
				}
				p.Geometry = geom
			}
			out = append(out, p)
		}
	}
	return out, nil
}
