package inaturalist

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/samirrijal/trailobs/internal/adapters/remote"
	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

const (
	DefaultBaseURL = "https://api.inaturalist.org/v2/"
	// placesVersion is the API version that serves places/nearby.
	placesVersion = "/v1/"
	// DefaultPerPage is the largest page the API serves.
	DefaultPerPage = 200
	// ResultWindow is how deep page-based access reaches; further results
	// need an id_below continuation.
	ResultWindow = 10_000
)

// fields selects the observation attributes the v2 API returns.
const fields = "(id:!t,user:(login:!t,name:!t),location:!t,obscured:!t," +
	"public_positional_accuracy:!t,observed_on:!t,quality_grade:!t," +
	"taxon:(id:!t,name:!t,rank:!t,preferred_common_name:!t,iconic_taxon_name:!t," +
	"listed_taxa:(taxon_id:!t,place:(id:!t),establishment_means:!t)," +
	"conservation_statuses:(taxon_id:!t,place:(id:!t),status:!t)))"

// Client fetches observations from the iNaturalist v2 API.
type Client struct {
	baseURL   string
	placesURL string
	perPage   int
	transport *remote.Transport
}

// New creates a Client. An empty baseURL selects the public API.
func New(baseURL string, perPage int, transport *remote.Transport) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if perPage <= 0 || perPage > DefaultPerPage {
		perPage = DefaultPerPage
	}
	return &Client{
		baseURL:   baseURL,
		placesURL: strings.Replace(baseURL, "/v2/", placesVersion, 1),
		perPage:   perPage,
		transport: transport,
	}
}

// FetchObservations returns every observation matching q, deduplicated and
// sorted by id. Results are ordered by descending id upstream: each window
// of pages fans out concurrently, and the next window continues below the
// smallest id seen.
func (c *Client) FetchObservations(ctx context.Context, q domain.ObservationQuery) ([]domain.Observation, error) {
	log := logging.FromContext(ctx)
	pages := ResultWindow / c.perPage
	p := remote.Paginator[domain.Observation]{
		PerPage:     c.perPage,
		MaxPages:    pages,
		Concurrency: c.transport.MaxConcurrency(),
		ID:          observationID,
	}

	var all []domain.Observation
	var idBelow int64
	for {
		below := idBelow
		total := -1
		items, err := p.Collect(ctx, func(ctx context.Context, n int) (remote.Page[domain.Observation], error) {
			pg, err := c.page(ctx, q, below, n)
			if n == 1 {
				// page 1 is always fetched alone, before any fan-out
				total = pg.Total
			}
			return pg, err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		log.Debug("observation window fetched", "count", len(items), "total", total, "id_below", below)

		capacity := pages * c.perPage
		if len(items) == 0 || (total >= 0 && total <= capacity) || (total < 0 && len(items) < capacity) {
			break
		}
		if below > 0 && items[0].ID >= below {
			return nil, fmt.Errorf("observations: id_below %d did not advance", below)
		}
		idBelow = items[0].ID
	}
	return remote.Dedup(all, observationID), nil
}

func observationID(o domain.Observation) int64 { return o.ID }

func (c *Client) page(ctx context.Context, q domain.ObservationQuery, idBelow int64, n int) (remote.Page[domain.Observation], error) {
	u := c.baseURL + "observations?" + c.params(q, idBelow, n).Encode()
	body, err := c.transport.Do(ctx, domain.KindObservations, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return remote.Page[domain.Observation]{}, err
	}
	return decodePage(body)
}

func (c *Client) params(q domain.ObservationQuery, idBelow int64, page int) url.Values {
	v := url.Values{}
	v.Set("fields", fields)
	v.Set("order_by", "id")
	v.Set("order", "desc")
	v.Set("per_page", strconv.Itoa(c.perPage))
	v.Set("page", strconv.Itoa(page))
	v.Set("captive", "false")
	v.Set("geoprivacy", "open")
	v.Set("identified", "true")
	v.Set("hrank", "species")
	v.Set("swlat", formatCoord(q.Bounds.MinLat))
	v.Set("swlng", formatCoord(q.Bounds.MinLon))
	v.Set("nelat", formatCoord(q.Bounds.MaxLat))
	v.Set("nelng", formatCoord(q.Bounds.MaxLon))
	if len(q.QualityGrades) > 0 {
		gs := make([]string, len(q.QualityGrades))
		for i, g := range q.QualityGrades {
			gs[i] = string(g)
		}
		v.Set("quality_grade", strings.Join(gs, ","))
	}
	if len(q.IconicTaxa) > 0 {
		v.Set("iconic_taxa", strings.Join(q.IconicTaxa, ","))
	}
	if len(q.Months) > 0 {
		ms := make([]string, len(q.Months))
		for i, m := range q.Months {
			ms[i] = strconv.Itoa(m)
		}
		v.Set("month", strings.Join(ms, ","))
	}
	if !q.Since.IsZero() {
		v.Set("d1", q.Since.Format(time.DateOnly))
	}
	if !q.Until.IsZero() {
		v.Set("d2", q.Until.Format(time.DateOnly))
	}
	if idBelow > 0 {
		v.Set("id_below", strconv.FormatInt(idBelow, 10))
	}
	return v
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func decodePage(body []byte) (remote.Page[domain.Observation], error) {
	if !gjson.ValidBytes(body) {
		return remote.Page[domain.Observation]{}, fmt.Errorf("observations: invalid JSON response")
	}
	res := gjson.ParseBytes(body)
	if errs := res.Get("errors"); errs.Exists() {
		return remote.Page[domain.Observation]{}, fmt.Errorf("observations: api error: %s", errs.Raw)
	}

	page := remote.Page[domain.Observation]{Total: -1}
	if t := res.Get("total_results"); t.Exists() {
		page.Total = int(t.Int())
	}
	for _, r := range res.Get("results").Array() {
		if o, ok := decodeObservation(r); ok {
			page.Items = append(page.Items, o)
		}
	}
	return page, nil
}

// decodeObservation converts one result. Results without an id or a
// parseable location are dropped.
func decodeObservation(r gjson.Result) (domain.Observation, bool) {
	id := r.Get("id").Int()
	if id == 0 {
		return domain.Observation{}, false
	}
	lat, lon, ok := parseLocation(r.Get("location").String())
	if !ok {
		return domain.Observation{}, false
	}

	o := domain.Observation{
		ID:           id,
		Location:     domain.Point{Lat: lat, Lon: lon},
		QualityGrade: domain.QualityGrade(r.Get("quality_grade").String()),
		UserLogin:    r.Get("user.login").String(),
		UserName:     r.Get("user.name").String(),
		Obscured:     r.Get("obscured").Bool(),
	}
	if o.UserName == "" {
		o.UserName = o.UserLogin
	}
	if acc := r.Get("public_positional_accuracy"); acc.Exists() && acc.Type == gjson.Number {
		v := acc.Float()
		o.Accuracy = &v
	}
	if d, err := time.Parse(time.DateOnly, r.Get("observed_on").String()); err == nil {
		o.ObservedOn = d
	}

	t := r.Get("taxon")
	o.Taxon = domain.Taxon{
		ID:          t.Get("id").Int(),
		Name:        t.Get("name").String(),
		CommonName:  t.Get("preferred_common_name").String(),
		Rank:        t.Get("rank").String(),
		IconicTaxon: t.Get("iconic_taxon_name").String(),
	}
	o.Taxon.Statuses = decodeStatuses(t)
	return o, true
}

// decodeStatuses collects the conservation statuses and then the
// establishment means of a taxon. Entries without a place are global and
// skipped.
func decodeStatuses(t gjson.Result) []domain.PlaceStatus {
	var out []domain.PlaceStatus
	for _, cs := range t.Get("conservation_statuses").Array() {
		id := cs.Get("place.id").Int()
		status := cs.Get("status").String()
		if id == 0 || status == "" {
			continue
		}
		out = append(out, domain.PlaceStatus{PlaceID: id, Status: status, Conservation: true})
	}
	for _, lt := range t.Get("listed_taxa").Array() {
		id := lt.Get("place.id").Int()
		means := lt.Get("establishment_means").String()
		if id == 0 || means == "" {
			continue
		}
		out = append(out, domain.PlaceStatus{PlaceID: id, Status: means})
	}
	return out
}

func parseLocation(s string) (lat, lon float64, ok bool) {
	latS, lonS, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonS), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
