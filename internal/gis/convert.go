package gis

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	ggeom "github.com/twpayne/go-geom"
)

// FromGeoJSON converts a decoded GeoJSON geometry to the computational
// geometry type used by the pipeline. Unsupported geometry kinds are an
// error rather than a silent nil so the caller can drop the feature with a
// reason.
func FromGeoJSON(t ggeom.T) (geom.Geom, error) {
	switch g := t.(type) {
	case *ggeom.Point:
		c := g.Coords()
		return geom.Point{X: c[0], Y: c[1]}, nil

	case *ggeom.LineString:
		return lineFromCoords(g.Coords()), nil

	case *ggeom.MultiLineString:
		ml := make(geom.MultiLineString, 0, g.NumLineStrings())
		for i := 0; i < g.NumLineStrings(); i++ {
			ml = append(ml, lineFromCoords(g.LineString(i).Coords()))
		}
		return ml, nil

	case *ggeom.Polygon:
		return polygonFromCoords(g.Coords()), nil

	case *ggeom.MultiPolygon:
		mp := make(geom.MultiPolygon, 0, g.NumPolygons())
		for i := 0; i < g.NumPolygons(); i++ {
			mp = append(mp, polygonFromCoords(g.Polygon(i).Coords()))
		}
		return mp, nil

	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "gis: unsupported GeoJSON geometry %T", t)
	}
}

// ToGeoJSON converts a computational geometry back to the GeoJSON wire type.
func ToGeoJSON(g geom.Geom) (ggeom.T, error) {
	switch gg := g.(type) {
	case geom.Point:
		return ggeom.NewPoint(ggeom.XY).MustSetCoords(ggeom.Coord{gg.X, gg.Y}), nil

	case geom.LineString:
		return ggeom.NewLineString(ggeom.XY).MustSetCoords(coordsFromLine(gg)), nil

	case geom.MultiLineString:
		coords := make([][]ggeom.Coord, 0, len(gg))
		for _, ls := range gg {
			coords = append(coords, coordsFromLine(ls))
		}
		return ggeom.NewMultiLineString(ggeom.XY).MustSetCoords(coords), nil

	case geom.Polygon:
		return ggeom.NewPolygon(ggeom.XY).MustSetCoords(coordsFromPolygon(gg)), nil

	case geom.MultiPolygon:
		coords := make([][][]ggeom.Coord, 0, len(gg))
		for _, p := range gg {
			coords = append(coords, coordsFromPolygon(p))
		}
		return ggeom.NewMultiPolygon(ggeom.XY).MustSetCoords(coords), nil

	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "gis: unsupported geometry %T", g)
	}
}

func lineFromCoords(coords []ggeom.Coord) geom.LineString {
	ls := make(geom.LineString, 0, len(coords))
	for _, c := range coords {
		ls = append(ls, geom.Point{X: c[0], Y: c[1]})
	}
	return ls
}

func polygonFromCoords(rings [][]ggeom.Coord) geom.Polygon {
	p := make(geom.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make([]geom.Point, 0, len(ring))
		for _, c := range ring {
			r = append(r, geom.Point{X: c[0], Y: c[1]})
		}
		p = append(p, r)
	}
	return p
}

func coordsFromLine(ls geom.LineString) []ggeom.Coord {
	coords := make([]ggeom.Coord, 0, len(ls))
	for _, pt := range ls {
		coords = append(coords, ggeom.Coord{pt.X, pt.Y})
	}
	return coords
}

func coordsFromPolygon(p geom.Polygon) [][]ggeom.Coord {
	rings := make([][]ggeom.Coord, 0, len(p))
	for _, ring := range p {
		coords := make([]ggeom.Coord, 0, len(ring)+1)
		for _, pt := range ring {
			coords = append(coords, ggeom.Coord{pt.X, pt.Y})
		}
		// GeoJSON rings are explicitly closed.
		if len(ring) > 0 && (ring[0] != ring[len(ring)-1]) {
			coords = append(coords, ggeom.Coord{ring[0].X, ring[0].Y})
		}
		rings = append(rings, coords)
	}
	return rings
}

// Round returns a copy of g with every coordinate rounded to the given
// number of decimal digits. Bounding payload size this way is lossy by
// intent; it is applied only at the serialization boundary.
func Round(g geom.Geom, digits int) geom.Geom {
	f := math.Pow10(digits)
	r := func(v float64) float64 { return math.Round(v*f) / f }
	switch gg := g.(type) {
	case geom.Point:
		return geom.Point{X: r(gg.X), Y: r(gg.Y)}
	case geom.LineString:
		out := make(geom.LineString, len(gg))
		for i, pt := range gg {
			out[i] = geom.Point{X: r(pt.X), Y: r(pt.Y)}
		}
		return out
	case geom.MultiLineString:
		out := make(geom.MultiLineString, len(gg))
		for i, ls := range gg {
			out[i] = Round(ls, digits).(geom.LineString)
		}
		return out
	case geom.Polygon:
		out := make(geom.Polygon, len(gg))
		for i, ring := range gg {
			nr := make([]geom.Point, len(ring))
			for j, pt := range ring {
				nr[j] = geom.Point{X: r(pt.X), Y: r(pt.Y)}
			}
			out[i] = nr
		}
		return out
	case geom.MultiPolygon:
		out := make(geom.MultiPolygon, len(gg))
		for i, p := range gg {
			out[i] = Round(p, digits).(geom.Polygon)
		}
		return out
	default:
		return g
	}
}
