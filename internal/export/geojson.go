// Package export writes the pipeline's serializable artifacts: GeoJSON
// feature collections, the stats workbook and the JSON tables the dashboard
// layer consumes.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	ggeojson "github.com/twpayne/go-geom/encoding/geojson"

	"github.com/histrail/railatlas/internal/gis"
	"github.com/histrail/railatlas/internal/rail"
	"github.com/histrail/railatlas/internal/raster"
)

// Options controls artifact encoding.
type Options struct {
	Dir            string
	CoordPrecision int // decimal digits kept in emitted coordinates
}

func (o Options) precision() int {
	if o.CoordPrecision <= 0 {
		return 4
	}
	return o.CoordPrecision
}

// WriteClassFeatures drains a vectorized feature sequence into one GeoJSON
// feature collection per class surface.
func WriteClassFeatures(seq *raster.FeatureSeq, name string, opts Options) (string, error) {
	var features []*ggeojson.Feature
	for {
		f, ok := seq.Next()
		if !ok {
			break
		}
		g, err := gis.ToGeoJSON(gis.Round(f.Geom, opts.precision()))
		if err != nil {
			return "", eris.Wrapf(err, "export: class %d surface", f.Class)
		}
		features = append(features, &ggeojson.Feature{
			Geometry:   g,
			Properties: map[string]interface{}{"class": f.Class},
		})
	}
	path := filepath.Join(opts.Dir, name+".geojson")
	return path, writeCollection(path, features)
}

// WriteFragments writes boundary-exact rail fragments as a GeoJSON feature
// collection in WGS84. Fragments whose geometry cannot be reprojected are
// dropped with a logged reason rather than failing the export.
func WriteFragments(frags []*rail.Fragment, metricCRS, name string, opts Options) (string, error) {
	lg := zap.L().With(zap.String("component", "export"))
	var features []*ggeojson.Feature
	for _, fr := range frags {
		wg, err := gis.Transform(fr.Geom, metricCRS, gis.WGS84)
		if err != nil {
			lg.Warn("dropping fragment from export",
				zap.String("feature", fr.Feature.ID), zap.Error(err))
			continue
		}
		g, err := gis.ToGeoJSON(gis.Round(wg, opts.precision()))
		if err != nil {
			lg.Warn("dropping fragment from export",
				zap.String("feature", fr.Feature.ID), zap.Error(err))
			continue
		}
		features = append(features, &ggeojson.Feature{
			Geometry: g,
			Properties: map[string]interface{}{
				"year":       fr.Feature.Year,
				"label":      fr.Feature.Label,
				"length_km":  fr.LengthKM,
				"region":     fr.Region,
				"province":   fr.Province,
				"line_class": string(fr.Feature.Class),
				"gauge":      string(fr.Feature.Gauge),
			},
		})
	}
	path := filepath.Join(opts.Dir, name+".geojson")
	return path, writeCollection(path, features)
}

func writeCollection(path string, features []*ggeojson.Feature) error {
	fc := &ggeojson.FeatureCollection{Features: features}
	raw, err := json.Marshal(fc)
	if err != nil {
		return eris.Wrapf(err, "export: marshal %s", path)
	}
	return writeFile(path, raw)
}

// WriteJSON writes any table as indented JSON under the output dir.
func WriteJSON(name string, v interface{}, opts Options) (string, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", eris.Wrapf(err, "export: marshal %s", name)
	}
	path := filepath.Join(opts.Dir, name+".json")
	return path, writeFile(path, raw)
}

func writeFile(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "export: create dir for %s", path)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}
