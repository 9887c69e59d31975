package rail

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"

	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/gis"
)

// Sentinel administrative keys for fragments outside every boundary
// polygon, i.e. cross-border trackage.
const (
	OutsideRegion   = "Estero/Confine"
	OutsideProvince = "Tratte di Confine"
)

// MinFragmentKM is the default noise floor: fragments shorter than this are
// measurement artifacts of the cut, not track.
const MinFragmentKM = 0.01

// Fragment is the part of one feature lying inside one administrative unit,
// or outside all of them. Length is recomputed on the cut geometry because
// cutting changes measure.
type Fragment struct {
	Feature  *Feature
	Unit     *boundary.Unit // nil for outside fragments
	Region   string
	Province string
	Geom     geom.MultiLineString
	LengthKM float64
}

// Outside reports whether the fragment lies outside every boundary polygon.
func (f *Fragment) Outside() bool { return f.Unit == nil }

// Overlay cuts line features exactly along a fixed set of boundary
// polygons. The boundary set is indexed once; Cut may then be called from
// multiple goroutines.
type Overlay struct {
	units         []*boundary.Unit
	tree          *rtree.Rtree
	minFragmentKM float64
}

type unitEntry struct {
	geom.Polygonal
	idx int
	u   *boundary.Unit
}

// NewOverlay indexes the boundary units for cutting. minFragmentKM < 0
// keeps every fragment; 0 applies the default noise floor.
func NewOverlay(units []*boundary.Unit, minFragmentKM float64) (*Overlay, error) {
	if len(units) == 0 {
		return nil, eris.New("rail: overlay needs at least one boundary unit")
	}
	if minFragmentKM == 0 {
		minFragmentKM = MinFragmentKM
	}
	tree := rtree.NewTree(25, 50)
	for i, u := range units {
		tree.Insert(unitEntry{Polygonal: u.Geom, idx: i, u: u})
	}
	return &Overlay{units: units, tree: tree, minFragmentKM: minFragmentKM}, nil
}

// Cut splits f along every boundary it crosses and returns one fragment per
// touched unit plus, when anything remains, one outside fragment. The
// fragments partition f's geometry: their lengths sum to the feature length
// up to floating-point tolerance, with nothing double-counted across
// adjacent units.
func (o *Overlay) Cut(f *Feature) []*Fragment {
	// runs[i] accumulates the polyline pieces assigned to unit i; the last
	// slot is the outside piece.
	runs := make([]geom.MultiLineString, len(o.units)+1)
	outside := len(o.units)

	for _, ls := range f.Geom {
		cur := -2 // no open run
		var open geom.LineString
		flush := func() {
			if cur != -2 && len(open) >= 2 {
				runs[cur] = append(runs[cur], open)
			}
			open = nil
		}
		for i := 1; i < len(ls); i++ {
			a, b := ls[i-1], ls[i]
			cands := o.candidates(a, b)
			for _, pc := range splitSegment(a, b, cands) {
				owner := pc.owner
				if owner < 0 {
					owner = outside
				}
				if owner != cur {
					flush()
					cur = owner
					open = geom.LineString{pc.a}
				}
				open = append(open, pc.b)
			}
		}
		flush()
	}

	var out []*Fragment
	for i, ml := range runs {
		if len(ml) == 0 {
			continue
		}
		fr := &Fragment{
			Feature:  f,
			Geom:     ml,
			LengthKM: gis.MultiLength(ml) / 1000,
		}
		if i == outside {
			fr.Region = OutsideRegion
			fr.Province = OutsideProvince
		} else {
			u := o.units[i]
			fr.Unit = u
			fr.Region = u.Region
			fr.Province = u.Province
			switch u.Level {
			case boundary.LevelRegion:
				fr.Region = u.Name
			case boundary.LevelProvince:
				fr.Province = u.Name
			}
		}
		if fr.LengthKM < o.minFragmentKM {
			continue
		}
		out = append(out, fr)
	}
	return out
}

// Intersection returns the fragments of f inside each boundary unit.
func (o *Overlay) Intersection(f *Feature) []*Fragment {
	var in []*Fragment
	for _, fr := range o.Cut(f) {
		if !fr.Outside() {
			in = append(in, fr)
		}
	}
	return in
}

// Difference returns the fragment of f outside the union of all boundary
// units, or nil when f lies fully inside.
func (o *Overlay) Difference(f *Feature) *Fragment {
	for _, fr := range o.Cut(f) {
		if fr.Outside() {
			return fr
		}
	}
	return nil
}

func (o *Overlay) candidates(a, b geom.Point) []unitEntry {
	sb := &geom.Bounds{
		Min: geom.Point{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y)},
		Max: geom.Point{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y)},
	}
	hits := o.tree.SearchIntersect(sb)
	cands := make([]unitEntry, 0, len(hits))
	for _, h := range hits {
		cands = append(cands, h.(unitEntry))
	}
	// Stable assignment order so a point on a shared border always counts
	// towards the same unit.
	sort.Slice(cands, func(i, j int) bool { return cands[i].idx < cands[j].idx })
	return cands
}

// piece is a sub-segment with its owning unit index, -1 for outside.
type piece struct {
	a, b  geom.Point
	owner int
}

const paramEps = 1e-9

// splitSegment cuts segment ab at every crossing with a candidate unit's
// rings and assigns each sub-segment to the first unit containing its
// midpoint. Midpoints on a border count as inside, so shared borders
// resolve to the lowest-indexed adjacent unit.
func splitSegment(a, b geom.Point, cands []unitEntry) []piece {
	ts := []float64{0, 1}
	for _, c := range cands {
		ts = appendCrossings(ts, a, b, c.u.Geom)
	}
	sort.Float64s(ts)

	var out []piece
	prev := 0.0
	for _, t := range ts {
		if t <= prev+paramEps || t > 1 {
			continue
		}
		pa := lerp(a, b, prev)
		pb := lerp(a, b, t)
		mid := lerp(a, b, (prev+t)/2)
		owner := -1
		for _, c := range cands {
			if mid.Within(c.u.Geom) != geom.Outside {
				owner = c.idx
				break
			}
		}
		out = append(out, piece{a: pa, b: pb, owner: owner})
		prev = t
	}
	return out
}

// appendCrossings adds the parameters along ab where it crosses an edge of
// poly, including both overlap endpoints when ab runs along an edge.
func appendCrossings(ts []float64, a, b geom.Point, poly geom.Polygonal) []float64 {
	rx, ry := b.X-a.X, b.Y-a.Y
	for _, p := range poly.Polygons() {
		for _, ring := range p {
			n := len(ring)
			for i := 0; i < n; i++ {
				e0 := ring[i]
				e1 := ring[(i+1)%n]
				sx, sy := e1.X-e0.X, e1.Y-e0.Y
				qpx, qpy := e0.X-a.X, e0.Y-a.Y
				denom := rx*sy - ry*sx
				if denom != 0 {
					t := (qpx*sy - qpy*sx) / denom
					u := (qpx*ry - qpy*rx) / denom
					if u >= -paramEps && u <= 1+paramEps && t > paramEps && t < 1-paramEps {
						ts = append(ts, t)
					}
					continue
				}
				// Parallel; if collinear, project the edge endpoints.
				if qpx*ry-qpy*rx != 0 {
					continue
				}
				l2 := rx*rx + ry*ry
				if l2 == 0 {
					continue
				}
				for _, e := range []geom.Point{e0, e1} {
					t := ((e.X-a.X)*rx + (e.Y-a.Y)*ry) / l2
					if t > paramEps && t < 1-paramEps {
						ts = append(ts, t)
					}
				}
			}
		}
	}
	return ts
}

func lerp(a, b geom.Point, t float64) geom.Point {
	return geom.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}
