// Package access computes, for an ordered list of historical years, the
// distance from every query point to the nearest railway segment built by
// that year.
package access

import (
	"context"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/gis"
	"github.com/histrail/railatlas/internal/rail"
)

// PointKind distinguishes the query point populations.
type PointKind string

const (
	KindMunicipality      PointKind = "municipality"
	KindRegionalCapital   PointKind = "regional_capital"
	KindProvincialCapital PointKind = "provincial_capital"
)

// QueryPoint is one location whose rail accessibility is tracked over time.
type QueryPoint struct {
	ID       string
	Name     string
	Region   string
	Province string
	Kind     PointKind
	Point    geom.Point // metric CRS
}

// DistanceRecord is the distance from one point to the network snapshot of
// one year, in km rounded to two decimals.
type DistanceRecord struct {
	Year       int
	PointID    string
	Name       string
	Region     string
	Province   string
	Kind       PointKind
	DistanceKM float64
}

// Options configures an accessibility run.
type Options struct {
	Years   []int // processed in increasing order; DefaultYears when empty
	Workers int   // concurrent years, default 4
}

// DefaultYears is the historical sampling: every five years from the first
// Italian railway to the eve of the war, with the 1913 network appended.
func DefaultYears() []int {
	var ys []int
	for y := 1839; y < 1913; y += 5 {
		ys = append(ys, y)
	}
	return append(ys, 1913)
}

// MunicipalityPoints builds the standard query set from a municipality
// collection: every centroid, plus the regional and provincial capital
// points.
func MunicipalityPoints(municipalities *boundary.Set) []QueryPoint {
	pts := make([]QueryPoint, 0, len(municipalities.Units))
	add := func(u *boundary.Unit, kind PointKind) {
		pts = append(pts, QueryPoint{
			ID:       u.ID + "/" + string(kind),
			Name:     u.Name,
			Region:   u.Region,
			Province: u.Province,
			Kind:     kind,
			Point:    u.Centroid,
		})
	}
	for _, u := range municipalities.Units {
		add(u, KindMunicipality)
	}
	for _, u := range municipalities.RegionalCapitals() {
		add(u, KindRegionalCapital)
	}
	for _, u := range municipalities.ProvincialCapitals() {
		add(u, KindProvincialCapital)
	}
	return pts
}

// Run computes one DistanceRecord per (point, year). Years are independent
// given the immutable feature set, so they run on a bounded worker group;
// records come back ordered by year, then by point order. A year whose
// snapshot is empty contributes no records.
func Run(ctx context.Context, features []*rail.Feature, points []QueryPoint, opts Options) ([]DistanceRecord, error) {
	years := opts.Years
	if len(years) == 0 {
		years = DefaultYears()
	}
	years = append([]int(nil), years...)
	sort.Ints(years)
	years = truncateYears(years, lastConstructionYear(features))
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if len(points) == 0 {
		return nil, eris.New("access: no query points")
	}
	lg := zap.L().With(zap.String("component", "access.engine"))

	perYear := make([][]DistanceRecord, len(years))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, year := range years {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap := newSnapshot(features, year)
			if snap.Empty() {
				lg.Debug("no network yet, skipping year", zap.Int("year", year))
				return nil
			}
			recs := make([]DistanceRecord, 0, len(points))
			for _, p := range points {
				d := snap.Distance(p.Point)
				recs = append(recs, DistanceRecord{
					Year:       year,
					PointID:    p.ID,
					Name:       p.Name,
					Region:     p.Region,
					Province:   p.Province,
					Kind:       p.Kind,
					DistanceKM: roundKM(d / 1000),
				})
			}
			perYear[i] = recs
			lg.Info("computed accessibility",
				zap.Int("year", year),
				zap.Int("segments", snap.Size()),
				zap.Int("points", len(points)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "access: run years")
	}

	var out []DistanceRecord
	for _, recs := range perYear {
		out = append(out, recs...)
	}
	return out, nil
}

func roundKM(v float64) float64 { return math.Round(v*100) / 100 }

func lastConstructionYear(features []*rail.Feature) int {
	max := 0
	for _, f := range features {
		if f.Year > max {
			max = f.Year
		}
	}
	return max
}

// truncateYears drops sample years past the last construction year, where
// the snapshot would only repeat the previous one. The final sample year is
// kept regardless so the completed network is always reported.
func truncateYears(years []int, maxYear int) []int {
	if len(years) == 0 {
		return years
	}
	last := years[len(years)-1]
	out := years[:0]
	for _, y := range years {
		if y <= maxYear {
			out = append(out, y)
		}
	}
	if len(out) == 0 || out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}

// segment is one indexed polyline edge of a snapshot.
type segment struct {
	geom.Geom
	a, b geom.Point
}

func newSegment(a, b geom.Point) segment {
	return segment{Geom: geom.LineString{a, b}, a: a, b: b}
}

// snapshot indexes the segments of every feature built by the cutoff year.
// The cumulative filter makes snapshots monotone: a later year's segment set
// contains every earlier year's.
type snapshot struct {
	tree   *rtree.Rtree
	count  int
	extent *geom.Bounds
}

func newSnapshot(features []*rail.Feature, year int) *snapshot {
	s := &snapshot{tree: rtree.NewTree(25, 50)}
	for _, f := range features {
		if !f.BuiltBy(year) {
			continue
		}
		for _, ls := range f.Geom {
			for i := 1; i < len(ls); i++ {
				seg := newSegment(ls[i-1], ls[i])
				s.tree.Insert(seg)
				s.count++
				sb := seg.Bounds()
				if s.extent == nil {
					s.extent = &geom.Bounds{Min: sb.Min, Max: sb.Max}
				} else {
					s.extent.Min.X = math.Min(s.extent.Min.X, sb.Min.X)
					s.extent.Min.Y = math.Min(s.extent.Min.Y, sb.Min.Y)
					s.extent.Max.X = math.Max(s.extent.Max.X, sb.Max.X)
					s.extent.Max.Y = math.Max(s.extent.Max.Y, sb.Max.Y)
				}
			}
		}
	}
	return s
}

func (s *snapshot) Empty() bool { return s.count == 0 }
func (s *snapshot) Size() int   { return s.count }

// Distance returns the planar distance from p to the nearest indexed
// segment. The search box doubles until it captures a candidate, then one
// more pass at the candidate distance makes the result exact.
func (s *snapshot) Distance(p geom.Point) float64 {
	// Worst case the point is outside the whole network extent; start from
	// its distance to the extent box so the first search is already close.
	radius := math.Max(boxDistance(p, s.extent), s.extent.Max.X-s.extent.Min.X+s.extent.Max.Y-s.extent.Min.Y)
	for r := initialRadius(p, s.extent); ; r *= 2 {
		d, ok := s.minWithin(p, r)
		if ok {
			if d <= r {
				return d
			}
			// A candidate exists but something closer may sit outside the
			// box; one exact pass at radius d settles it.
			d2, _ := s.minWithin(p, d)
			return d2
		}
		if r > radius {
			d, _ := s.minWithin(p, radius*2)
			return d
		}
	}
}

func (s *snapshot) minWithin(p geom.Point, r float64) (float64, bool) {
	b := &geom.Bounds{
		Min: geom.Point{X: p.X - r, Y: p.Y - r},
		Max: geom.Point{X: p.X + r, Y: p.Y + r},
	}
	best := math.Inf(1)
	found := false
	for _, h := range s.tree.SearchIntersect(b) {
		seg := h.(segment)
		d := gis.PointSegmentDistance(p, seg.a, seg.b)
		if d < best {
			best = d
			found = true
		}
	}
	return best, found
}

func initialRadius(p geom.Point, extent *geom.Bounds) float64 {
	if d := boxDistance(p, extent); d > 0 {
		return d * 1.5
	}
	// Inside the extent: start at a small fraction of its size.
	w := extent.Max.X - extent.Min.X
	h := extent.Max.Y - extent.Min.Y
	r := math.Max(w, h) / 64
	if r <= 0 {
		r = 1
	}
	return r
}

// boxDistance is the distance from p to the nearest point of b, 0 inside.
func boxDistance(p geom.Point, b *geom.Bounds) float64 {
	dx := math.Max(math.Max(b.Min.X-p.X, 0), p.X-b.Max.X)
	dy := math.Max(math.Max(b.Min.Y-p.Y, 0), p.Y-b.Max.Y)
	return math.Hypot(dx, dy)
}
