package gis

import (
	"math"

	"github.com/ctessum/geom"
)

// Length returns the planar length of a polyline in CRS units. Measures are
// always recomputed on cut geometry, never inherited, so this is the single
// length implementation used by the overlay and accessibility stages.
func Length(ls geom.LineString) float64 {
	var sum float64
	for i := 1; i < len(ls); i++ {
		sum += math.Hypot(ls[i].X-ls[i-1].X, ls[i].Y-ls[i-1].Y)
	}
	return sum
}

// MultiLength returns the planar length of a multi-polyline in CRS units.
func MultiLength(ml geom.MultiLineString) float64 {
	var sum float64
	for _, ls := range ml {
		sum += Length(ls)
	}
	return sum
}

// PointSegmentDistance returns the planar distance from p to the segment ab.
func PointSegmentDistance(p, a, b geom.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	switch {
	case t < 0:
		t = 0
	case t > 1:
		t = 1
	}
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
