package overpass

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/samirrijal/trailobs/internal/adapters/remote"
	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/pkg/logging"
)

const DefaultURL = "https://overpass-api.de/api/interpreter"

// Client fetches named highway ways from an Overpass interpreter.
type Client struct {
	url       string
	transport *remote.Transport
}

// New creates a Client. An empty endpoint selects the public interpreter.
func New(endpoint string, transport *remote.Transport) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{url: endpoint, transport: transport}
}

// Query returns the Overpass QL for all highway ways in b, recursed down
// to their nodes.
func Query(b domain.Bounds) string {
	return fmt.Sprintf(`[out:json];way["highway"](%s,%s,%s,%s);(._;>;);out;`,
		coord(b.MinLat), coord(b.MinLon), coord(b.MaxLat), coord(b.MaxLon))
}

// FetchWays returns the named ways inside b. The interpreter answers in a
// single response, so there is no pagination.
func (c *Client) FetchWays(ctx context.Context, b domain.Bounds) ([]domain.NamedWay, error) {
	form := url.Values{"data": {Query(b)}}.Encode()
	body, err := c.transport.DoChecked(ctx, domain.KindWays, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, checkRemark)
	if err != nil {
		return nil, err
	}

	ways, err := decode(body)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("ways fetched", "count", len(ways))
	return ways, nil
}

// checkRemark rejects answers carrying a "remark", which the server adds to
// a 200 response when the query did not complete. Timeouts and runtime
// errors are retried; any other remark fails the fetch, since the elements
// may be incomplete.
func checkRemark(body []byte) error {
	remark := gjson.GetBytes(body, "remark").String()
	if remark == "" {
		return nil
	}
	if strings.Contains(remark, "runtime error") || strings.Contains(remark, "timed out") {
		return &remote.StatusError{Code: http.StatusGatewayTimeout, Body: remark}
	}
	return fmt.Errorf("ways: incomplete answer: %s", remark)
}

func decode(body []byte) ([]domain.NamedWay, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("ways: invalid JSON response")
	}
	elements := gjson.GetBytes(body, "elements").Array()

	nodes := make(map[int64]domain.Point)
	for _, el := range elements {
		if el.Get("type").String() != "node" {
			continue
		}
		nodes[el.Get("id").Int()] = domain.Point{Lat: el.Get("lat").Float(), Lon: el.Get("lon").Float()}
	}

	var ways []domain.NamedWay
	for _, el := range elements {
		if el.Get("type").String() != "way" {
			continue
		}
		name := el.Get("tags.name").String()
		if name == "" {
			continue
		}
		w := domain.NamedWay{
			ID:     el.Get("id").Int(),
			Name:   name,
			Source: el.Get("tags.highway").String(),
		}
		w.Segments = segments(el.Get("nodes").Array(), nodes)
		ways = append(ways, w)
	}
	return ways, nil
}

// segments resolves node references, splitting the way wherever a node is
// missing from the response. Runs shorter than two points are dropped, so a
// way with fewer than two resolvable nodes ends up with no segments.
func segments(refs []gjson.Result, nodes map[int64]domain.Point) [][]domain.Point {
	var out [][]domain.Point
	var cur []domain.Point
	flush := func() {
		if len(cur) >= 2 {
			out = append(out, cur)
		}
		cur = nil
	}
	for _, ref := range refs {
		p, ok := nodes[ref.Int()]
		if !ok {
			flush()
			continue
		}
		cur = append(cur, p)
	}
	flush()
	return out
}

func coord(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.7f", f), "0"), ".")
}
