package raster

import (
	"sort"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/gis"
)

// ClassFeature is one vectorized class surface. CRS is normally the
// requested output CRS but falls back to the grid CRS when reprojection is
// not possible.
type ClassFeature struct {
	Class int
	Geom  geom.Geom
	CRS   string
}

// FeatureSeq is a lazy, finite, non-restartable sequence of class surfaces.
// Each Next call traces and dissolves one class; classes come out in
// ascending order.
type FeatureSeq struct {
	grid      *Grid
	classes   []int
	remaining []int
	cells     []int // per-cell class, -1 for none
	tolerance float64
	outCRS    string
	lg        *zap.Logger
}

// Vectorize classifies every eligible cell of g and returns the per-class
// polygon surfaces as a lazy sequence. Eligible cells are those that are not
// nodata and classify against c; everything else is left out of every
// surface. Boundaries are simplified with the given tolerance (in grid CRS
// units, 0 disables) and reprojected to outCRS, defaulting to WGS84.
func Vectorize(g *Grid, c *Classifier, tolerance float64, outCRS string) (*FeatureSeq, error) {
	if !g.Tr.Invertible() {
		return nil, eris.New("raster: grid transform is not invertible")
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	if outCRS == "" {
		outCRS = gis.WGS84
	}

	cells := make([]int, g.Rows()*g.Cols())
	seen := map[int]bool{}
	for r := 0; r < g.Rows(); r++ {
		for col := 0; col < g.Cols(); col++ {
			i := r*g.Cols() + col
			cells[i] = -1
			if g.IsNoData(r, col) {
				continue
			}
			if cl, ok := c.Classify(g.Value(r, col)); ok {
				cells[i] = cl
				seen[cl] = true
			}
		}
	}
	classes := make([]int, 0, len(seen))
	for cl := range seen {
		classes = append(classes, cl)
	}
	sort.Ints(classes)

	return &FeatureSeq{
		grid:      g,
		classes:   classes,
		remaining: classes,
		cells:     cells,
		tolerance: tolerance,
		outCRS:    outCRS,
		lg: zap.L().With(
			zap.String("component", "raster.vectorize"),
			zap.String("classifier", c.Name)),
	}, nil
}

// Classes returns the classes the sequence will emit, in emission order.
func (s *FeatureSeq) Classes() []int { return s.classes }

// Next traces the next class surface. The second return is false once the
// sequence is exhausted.
func (s *FeatureSeq) Next() (*ClassFeature, bool) {
	if len(s.remaining) == 0 {
		return nil, false
	}
	cl := s.remaining[0]
	s.remaining = s.remaining[1:]

	mp := s.traceClass(cl)
	full := geom.Geom(mp)

	out := full
	if s.tolerance > 0 {
		if sp, ok := out.(simplifier); ok {
			out = sp.Simplify(s.tolerance)
		}
	}
	proj, err := gis.Transform(out, s.grid.CRS, s.outCRS)
	if err != nil {
		// Vector reprojection failure degrades, it does not abort: emit
		// the ungeneralized surface in the grid CRS.
		s.lg.Warn("reprojection failed, emitting grid-CRS geometry",
			zap.Int("class", cl), zap.Error(err))
		return &ClassFeature{Class: cl, Geom: full, CRS: s.grid.CRS}, true
	}
	return &ClassFeature{Class: cl, Geom: proj, CRS: s.outCRS}, true
}

type simplifier interface {
	Simplify(tolerance float64) geom.Geom
}

// latticeVertex is a cell-corner point; (0,0) is the grid's top-left corner.
type latticeVertex struct{ c, r int }

// boundaryEdge is one directed cell side with the class region on its left
// (in geographic orientation). probe is the center of the absent neighbor
// cell, used to locate holes.
type boundaryEdge struct {
	to    latticeVertex
	probe geom.Point
	used  bool
}

// traceClass walks the boundary of every connected region of class cl and
// assembles the rings into a dissolved MultiPolygon in the grid CRS.
func (s *FeatureSeq) traceClass(cl int) geom.MultiPolygon {
	g := s.grid
	in := func(r, c int) bool {
		return r >= 0 && r < g.Rows() && c >= 0 && c < g.Cols() && s.cells[r*g.Cols()+c] == cl
	}

	// One directed edge per exposed cell side, oriented so the region is on
	// the left: counterclockwise outer rings, clockwise holes.
	edges := map[latticeVertex][]*boundaryEdge{}
	add := func(from, to latticeVertex, nr, nc int) {
		edges[from] = append(edges[from], &boundaryEdge{to: to, probe: g.CellCenter(nr, nc)})
	}
	for r := 0; r < g.Rows(); r++ {
		for c := 0; c < g.Cols(); c++ {
			if !in(r, c) {
				continue
			}
			if !in(r-1, c) {
				add(latticeVertex{c + 1, r}, latticeVertex{c, r}, r-1, c)
			}
			if !in(r+1, c) {
				add(latticeVertex{c, r + 1}, latticeVertex{c + 1, r + 1}, r+1, c)
			}
			if !in(r, c-1) {
				add(latticeVertex{c, r}, latticeVertex{c, r + 1}, r, c-1)
			}
			if !in(r, c+1) {
				add(latticeVertex{c + 1, r + 1}, latticeVertex{c + 1, r}, r, c+1)
			}
		}
	}

	var outers []geom.Polygon
	var outerAreas []float64
	type hole struct {
		ring  []geom.Point
		probe geom.Point
	}
	var holes []hole

	for start, list := range edges {
		for _, e := range list {
			if e.used {
				continue
			}
			ring, probe := s.walkRing(start, e, edges)
			if len(ring) < 3 {
				continue
			}
			if signedArea(ring) > 0 {
				outers = append(outers, geom.Polygon{ring})
				outerAreas = append(outerAreas, signedArea(ring))
			} else {
				holes = append(holes, hole{ring: ring, probe: probe})
			}
		}
	}

	// Attach each hole to the smallest outer ring containing its probe
	// cell, which handles regions nested inside another region's hole.
	for _, h := range holes {
		best := -1
		for i := range outers {
			if h.probe.Within(outers[i]) == geom.Inside {
				if best < 0 || outerAreas[i] < outerAreas[best] {
					best = i
				}
			}
		}
		if best < 0 {
			s.lg.Warn("hole ring outside every outer ring, dropped", zap.Int("class", cl))
			continue
		}
		outers[best] = append(outers[best], h.ring)
	}

	mp := make(geom.MultiPolygon, len(outers))
	copy(mp, outers)
	return mp
}

// walkRing follows directed edges from start until the ring closes,
// preferring the sharpest left turn where two regions of the same class
// touch corner to corner, which keeps the touching regions' rings separate.
// It returns the ring in geographic coordinates with collinear lattice
// vertices collapsed, plus the probe point of the first edge.
func (s *FeatureSeq) walkRing(start latticeVertex, first *boundaryEdge, edges map[latticeVertex][]*boundaryEdge) ([]geom.Point, geom.Point) {
	path := []latticeVertex{start}
	cur := first
	cur.used = true
	from := start
	for cur.to != start {
		path = appendVertex(path, cur.to)
		prev := from
		from = cur.to
		cur = nextEdge(prev, from, edges)
		if cur == nil {
			// Should not happen on a consistent edge set; bail out with
			// what we have rather than loop forever.
			break
		}
		cur.used = true
	}
	path = appendVertex(path, start)
	// Drop the closing vertex and a possible collinear seam across it.
	if len(path) > 1 && path[len(path)-1] == path[0] {
		path = path[:len(path)-1]
	}
	if len(path) > 2 && collinear(path[len(path)-1], path[0], path[1]) {
		path = path[1:]
	}

	ring := make([]geom.Point, len(path))
	for i, v := range path {
		ring[i] = s.grid.Vertex(v.c, v.r)
	}
	return ring, first.probe
}

func appendVertex(path []latticeVertex, v latticeVertex) []latticeVertex {
	if len(path) >= 2 && collinear(path[len(path)-2], path[len(path)-1], v) {
		path[len(path)-1] = v
		return path
	}
	return append(path, v)
}

func collinear(a, b, c latticeVertex) bool {
	return (b.c-a.c)*(c.r-a.r) == (b.r-a.r)*(c.c-a.c)
}

// nextEdge picks the outgoing edge at v, resolving corner-touch ambiguity by
// taking the sharpest left turn relative to the incoming direction. Turns
// are ranked in geographic orientation, where the lattice row axis points
// the other way.
func nextEdge(prev, v latticeVertex, edges map[latticeVertex][]*boundaryEdge) *boundaryEdge {
	dx, dy := v.c-prev.c, -(v.r - prev.r)
	var best *boundaryEdge
	bestRank := -1
	for _, e := range edges[v] {
		if e.used {
			continue
		}
		ex, ey := e.to.c-v.c, -(e.to.r - v.r)
		cross := dx*ey - dy*ex
		dot := dx*ex + dy*ey
		rank := 1 // right turn
		switch {
		case cross > 0:
			rank = 3 // left turn
		case cross == 0 && dot > 0:
			rank = 2 // straight
		}
		if rank > bestRank {
			best, bestRank = e, rank
		}
	}
	return best
}

// signedArea is positive for counterclockwise rings in geographic
// orientation.
func signedArea(ring []geom.Point) float64 {
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		sum += ring[i].X*ring[j].Y - ring[j].X*ring[i].Y
	}
	return sum / 2
}
