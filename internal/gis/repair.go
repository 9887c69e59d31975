package gis

import (
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
)

// RepairPolygonal normalizes a polygonal geometry before it is used in any
// boolean or distance operation: closing duplicates and consecutive repeated
// vertices are removed, and rings degenerated below three distinct vertices
// are dropped. A geometry with no surviving ring fails with
// ErrInvalidGeometry so the caller can reject the feature instead of
// silently using it.
func RepairPolygonal(g geom.Geom) (geom.Polygonal, error) {
	switch p := g.(type) {
	case geom.Polygon:
		rp := repairPolygon(p)
		if len(rp) == 0 {
			return nil, eris.Wrap(ErrInvalidGeometry, "gis: polygon has no valid ring")
		}
		return rp, nil
	case geom.MultiPolygon:
		out := make(geom.MultiPolygon, 0, len(p))
		for _, poly := range p {
			if rp := repairPolygon(poly); len(rp) > 0 {
				out = append(out, rp)
			}
		}
		if len(out) == 0 {
			return nil, eris.Wrap(ErrInvalidGeometry, "gis: multipolygon has no valid ring")
		}
		return out, nil
	case *geom.Bounds:
		return p, nil
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "gis: %T is not polygonal", g)
	}
}

func repairPolygon(p geom.Polygon) geom.Polygon {
	out := make(geom.Polygon, 0, len(p))
	for _, ring := range p {
		r := make([]geom.Point, 0, len(ring))
		for _, pt := range ring {
			if len(r) > 0 && r[len(r)-1] == pt {
				continue
			}
			r = append(r, pt)
		}
		// Rings are implicitly closed; drop an explicit closing vertex.
		if len(r) > 1 && r[0] == r[len(r)-1] {
			r = r[:len(r)-1]
		}
		if len(r) >= 3 {
			out = append(out, r)
		}
	}
	return out
}
