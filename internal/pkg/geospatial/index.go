package geospatial

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
)

// Segment is one straight edge in projected meters. Ref identifies the
// feature the edge belongs to; Pos is the distance along that feature at A.
type Segment struct {
	A, B orb.Point
	Ref  int
	Pos  float64
}

// Len returns the planar length of the segment.
func (s Segment) Len() float64 {
	return planar.Distance(s.A, s.B)
}

// Hit is a segment found by a proximity query.
type Hit struct {
	Segment int // index into the index's segments
	Ref     int
	Dist    float64
	// At is the distance along the feature of the point closest to the query.
	At float64
}

type segmentItem struct {
	mid orb.Point
	i   int
}

func (s segmentItem) Point() orb.Point { return s.mid }

// SegmentIndex answers nearest and within-distance queries over a set of
// segments. Segments are indexed by midpoint in a quadtree; a query widens
// its search box by half the longest segment so no candidate is missed.
type SegmentIndex struct {
	segs    []Segment
	tree    *quadtree.Quadtree
	maxHalf float64
}

// NewSegmentIndex builds an index over segs. Building is O(n log n).
func NewSegmentIndex(segs []Segment) *SegmentIndex {
	idx := &SegmentIndex{segs: segs}
	if len(segs) == 0 {
		return idx
	}

	bound := segs[0].A.Bound()
	for _, s := range segs {
		bound = bound.Extend(s.A).Extend(s.B)
		if h := s.Len() / 2; h > idx.maxHalf {
			idx.maxHalf = h
		}
	}
	idx.tree = quadtree.New(bound.Pad(1))
	for i, s := range segs {
		// midpoints always lie inside the padded bound
		_ = idx.tree.Add(segmentItem{mid: midpoint(s.A, s.B), i: i})
	}
	return idx
}

// Len returns the number of indexed segments.
func (idx *SegmentIndex) Len() int { return len(idx.segs) }

// Segment returns the i-th indexed segment.
func (idx *SegmentIndex) Segment(i int) Segment { return idx.segs[i] }

// Nearest returns the closest segment to p. Ties are resolved towards the
// lower Ref and then the lower segment index. ok is false for an empty index.
func (idx *SegmentIndex) Nearest(p orb.Point) (Hit, bool) {
	if idx.tree == nil {
		return Hit{}, false
	}
	seed, ok := idx.tree.Find(p).(segmentItem)
	if !ok {
		return Hit{}, false
	}
	hits := idx.Within(p, idx.hit(seed.i, p).Dist)
	if len(hits) == 0 {
		// unreachable unless floating point disagrees with itself
		return idx.hit(seed.i, p), true
	}
	return hits[0], true
}

// Within returns every segment whose distance to p is at most r, sorted by
// distance, Ref and segment index.
func (idx *SegmentIndex) Within(p orb.Point, r float64) []Hit {
	if idx.tree == nil || r < 0 {
		return nil
	}
	reach := r + idx.maxHalf + 1e-9
	box := orb.Bound{
		Min: orb.Point{p[0] - reach, p[1] - reach},
		Max: orb.Point{p[0] + reach, p[1] + reach},
	}

	var hits []Hit
	for _, it := range idx.tree.InBound(nil, box) {
		h := idx.hit(it.(segmentItem).i, p)
		if h.Dist <= r {
			hits = append(hits, h)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Dist != hits[j].Dist {
			return hits[i].Dist < hits[j].Dist
		}
		if hits[i].Ref != hits[j].Ref {
			return hits[i].Ref < hits[j].Ref
		}
		return hits[i].Segment < hits[j].Segment
	})
	return hits
}

func (idx *SegmentIndex) hit(i int, p orb.Point) Hit {
	s := idx.segs[i]
	t := projectOnSegment(s.A, s.B, p)
	q := orb.Point{s.A[0] + (s.B[0]-s.A[0])*t, s.A[1] + (s.B[1]-s.A[1])*t}
	return Hit{
		Segment: i,
		Ref:     s.Ref,
		Dist:    planar.Distance(p, q),
		At:      s.Pos + t*s.Len(),
	}
}

// projectOnSegment returns the parameter in [0,1] of the point of ab
// closest to p. Zero-length segments yield 0.
func projectOnSegment(a, b, p orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	return math.Max(0, math.Min(1, t))
}

func midpoint(a, b orb.Point) orb.Point {
	return orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
}

// Segments splits a line into consecutive segments tagged with ref, with
// positions measured from the start of the line plus offset.
func Segments(ls orb.LineString, ref int, offset float64) []Segment {
	if len(ls) < 2 {
		return nil
	}
	out := make([]Segment, 0, len(ls)-1)
	pos := offset
	for i := 1; i < len(ls); i++ {
		s := Segment{A: ls[i-1], B: ls[i], Ref: ref, Pos: pos}
		out = append(out, s)
		pos += s.Len()
	}
	return out
}
