package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// ResourceKind tags the remote resource a cached value belongs to.
type ResourceKind string

const (
	KindWays         ResourceKind = "ways"
	KindObservations ResourceKind = "observations"
	KindPlaces       ResourceKind = "places"
)

// cacheKeyDecimals is the precision bounding boxes are rounded to before
// they take part in a cache key.
const cacheKeyDecimals = 2

// CacheKey builds a stable key from the resource kind, the bounding box
// rounded outward and the sorted query parameters.
func CacheKey(kind ResourceKind, b Bounds, params map[string]string) string {
	var sb strings.Builder
	sb.WriteString(string(kind))
	sb.WriteByte(':')
	sb.WriteString(b.Rounded(cacheKeyDecimals).String())

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		sb.WriteByte(':')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}
	return sb.String()
}

// WaysCacheKey is the cache key of a named-way query.
func WaysCacheKey(b Bounds) string {
	return CacheKey(KindWays, b, nil)
}

// CacheKey is the cache key of the observation query. The bounding box is
// rounded, so the query itself should use Bounds.Rounded as well.
func (q ObservationQuery) CacheKey() string {
	params := map[string]string{
		"quality": joinOrAll(gradeStrings(q.QualityGrades)),
		"iconic":  joinOrAll(q.IconicTaxa),
		"month":   "*",
	}
	if len(q.Months) > 0 {
		ms := make([]string, len(q.Months))
		for i, m := range q.Months {
			ms[i] = strconv.Itoa(m)
		}
		params["month"] = strings.Join(ms, ",")
	}
	if !q.Since.IsZero() {
		params["since"] = q.Since.Format(time.DateOnly)
	}
	if !q.Until.IsZero() {
		params["until"] = q.Until.Format(time.DateOnly)
	}
	return CacheKey(KindObservations, q.Bounds, params)
}

func gradeStrings(gs []QualityGrade) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = string(g)
	}
	return out
}

func joinOrAll(vs []string) string {
	if len(vs) == 0 {
		return "all"
	}
	sorted := append([]string(nil), vs...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
