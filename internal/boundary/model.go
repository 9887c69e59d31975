// Package boundary loads the administrative polygon sets (region, province,
// municipality), validates and reprojects them, and exposes the dissolved
// national outline used as the raster clip mask.
package boundary

import (
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"

	"github.com/histrail/railatlas/internal/gis"
)

// Level names an administrative level.
type Level string

const (
	LevelRegion       Level = "regions"
	LevelProvince     Level = "provinces"
	LevelMunicipality Level = "municipalities"
)

// Unit is one administrative polygon with its parent chain. Geom is in the
// metric CRS; area and centroid are derived from it once at load time.
type Unit struct {
	ID       string
	Name     string
	Province string // empty above province level
	Region   string // empty at region level
	Level    Level

	Geom     geom.Polygonal
	AreaKM2  float64
	Centroid geom.Point
}

// Set is the loaded collection for one administrative level. Units keep
// source order; ByName is keyed by unit name.
type Set struct {
	Level  Level
	CRS    string
	Units  []*Unit
	ByName map[string]*Unit
}

// Dissolve returns the geometric union of every unit polygon. The result is
// a clip mask only, not an administrative object.
func (s *Set) Dissolve() (geom.Polygonal, error) {
	var union geom.Polygonal
	for _, u := range s.Units {
		if union == nil {
			union = u.Geom
			continue
		}
		union = union.Union(u.Geom)
	}
	if union == nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "boundary: no units to dissolve at level %s", s.Level)
	}
	return union, nil
}
