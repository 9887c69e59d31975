package gis

import (
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// Canonical CRS tags used across the pipeline. WGS84 is the output CRS for
// every emitted feature collection; Metric (ETRS89-LAEA, the European
// equal-area grid) is used for areas, lengths and distances.
const (
	WGS84  = "EPSG:4326"
	Metric = "EPSG:3035"
)

// proj4 definitions for the CRS tags the pipeline knows by name. Anything
// else passed to SR is assumed to already be a proj4 string.
var proj4Defs = map[string]string{
	WGS84:  "+proj=longlat +datum=WGS84 +no_defs",
	Metric: "+proj=laea +lat_0=52 +lon_0=10 +x_0=4321000 +y_0=3210000 +ellps=GRS80 +units=m +no_defs",
}

// SR resolves a CRS tag or raw proj4 string to a spatial reference.
func SR(crs string) (*proj.SR, error) {
	def, ok := proj4Defs[strings.ToUpper(strings.TrimSpace(crs))]
	if !ok {
		def = crs
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return nil, eris.Wrapf(ErrProjectionFailure, "gis: parse CRS %q: %v", crs, err)
	}
	return sr, nil
}

// NewTransform builds a transformer from one CRS to another. A nil
// transformer with a nil error means the two CRS are the same and no
// transformation is needed.
func NewTransform(from, to string) (proj.Transformer, error) {
	if SameCRS(from, to) {
		return nil, nil
	}
	src, err := SR(from)
	if err != nil {
		return nil, err
	}
	dst, err := SR(to)
	if err != nil {
		return nil, err
	}
	t, err := src.NewTransform(dst)
	if err != nil {
		return nil, eris.Wrapf(ErrProjectionFailure, "gis: transform %s -> %s: %v", from, to, err)
	}
	return t, nil
}

// Transform reprojects g from one CRS to another. The input geometry is
// never mutated; the same geometry is returned when the CRS match.
func Transform(g geom.Geom, from, to string) (geom.Geom, error) {
	t, err := NewTransform(from, to)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return g, nil
	}
	out, err := g.Transform(t)
	if err != nil {
		return nil, eris.Wrapf(ErrProjectionFailure, "gis: reproject %s -> %s: %v", from, to, err)
	}
	return out, nil
}

// SameCRS reports whether two CRS tags name the same reference system.
func SameCRS(a, b string) bool {
	na := strings.ToUpper(strings.TrimSpace(a))
	nb := strings.ToUpper(strings.TrimSpace(b))
	if na == "" {
		na = WGS84
	}
	if nb == "" {
		nb = WGS84
	}
	return na == nb
}
