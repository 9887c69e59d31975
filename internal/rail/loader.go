package rail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/gis"
)

// Attrs names the shapefile attribute columns the loader reads.
type Attrs struct {
	Year  string
	Class string
	Gauge string
	Label string
}

// DefaultAttrs matches the historical Italian railway shapefile.
func DefaultAttrs() Attrs {
	return Attrs{Year: "YearConstr", Class: "MAINLIGHT", Gauge: "STANDNARRO", Label: "TRUNK"}
}

// LoaderOptions configures the rail loader.
type LoaderOptions struct {
	Attrs     Attrs
	SourceCRS string // CRS of the shapefile, default WGS84
	MetricCRS string // default EPSG:3035
}

// Load reads the railway shapefile at path into Features in the metric CRS.
// Records with broken geometry are dropped with a logged reason; records
// with a missing or unparsable year are kept with Year 0 so the caller can
// see them excluded rather than silently vanish.
func Load(path string, opts LoaderOptions) ([]*Feature, error) {
	if opts.Attrs == (Attrs{}) {
		opts.Attrs = DefaultAttrs()
	}
	if opts.SourceCRS == "" {
		opts.SourceCRS = gis.WGS84
	}
	if opts.MetricCRS == "" {
		opts.MetricCRS = gis.Metric
	}
	lg := zap.L().With(zap.String("component", "rail.loader"))

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "rail: open shapefile %s: %v", path, err)
	}
	defer func() { _ = reader.Close() }()

	yearIdx := fieldIndex(reader, opts.Attrs.Year)
	classIdx := fieldIndex(reader, opts.Attrs.Class)
	gaugeIdx := fieldIndex(reader, opts.Attrs.Gauge)
	labelIdx := fieldIndex(reader, opts.Attrs.Label)
	if yearIdx < 0 {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "rail: shapefile has no %s field", opts.Attrs.Year)
	}

	tr, err := gis.NewTransform(opts.SourceCRS, opts.MetricCRS)
	if err != nil {
		return nil, eris.Wrap(err, "rail: build reprojection")
	}

	var features []*Feature
	dropped := 0
	for n := 0; reader.Next(); n++ {
		_, shape := reader.Shape()
		ml, err := polylineGeom(shape)
		if err != nil {
			dropped++
			lg.Warn("dropping rail record", zap.Int("record", n), zap.Error(err))
			continue
		}
		if tr != nil {
			g, err := ml.Transform(tr)
			if err != nil {
				dropped++
				lg.Warn("dropping rail record", zap.Int("record", n), zap.Error(err))
				continue
			}
			ml = g.(geom.MultiLineString)
		}

		f := &Feature{
			ID:       fmt.Sprintf("rail-%d", n),
			Year:     parseYear(reader.Attribute(yearIdx)),
			Geom:     ml,
			LengthKM: gis.MultiLength(ml) / 1000,
		}
		if labelIdx >= 0 {
			f.Label = strings.TrimSpace(reader.Attribute(labelIdx))
		}
		if classIdx >= 0 {
			f.Class = ClassifyLine(reader.Attribute(classIdx))
		} else {
			f.Class = ClassSecondary
		}
		if gaugeIdx >= 0 {
			f.Gauge = ClassifyGauge(reader.Attribute(gaugeIdx))
		} else {
			f.Gauge = GaugeNarrow
		}
		features = append(features, f)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "rail: read shapefile %s: %v", path, err)
	}
	if len(features) == 0 {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "rail: shapefile %s has no usable records", path)
	}
	lg.Info("loaded rail features", zap.Int("features", len(features)), zap.Int("dropped", dropped))
	return features, nil
}

func polylineGeom(shape shp.Shape) (geom.MultiLineString, error) {
	pl, ok := shape.(*shp.PolyLine)
	if !ok {
		return nil, eris.Wrapf(gis.ErrInvalidGeometry, "rail: record is %T, want polyline", shape)
	}
	ml := make(geom.MultiLineString, 0, len(pl.Parts))
	for i, start := range pl.Parts {
		end := int32(len(pl.Points))
		if i+1 < len(pl.Parts) {
			end = pl.Parts[i+1]
		}
		if end-start < 2 {
			continue
		}
		ls := make(geom.LineString, 0, end-start)
		for _, p := range pl.Points[start:end] {
			pt := geom.Point{X: p.X, Y: p.Y}
			if len(ls) > 0 && ls[len(ls)-1] == pt {
				continue
			}
			ls = append(ls, pt)
		}
		if len(ls) >= 2 {
			ml = append(ml, ls)
		}
	}
	if len(ml) == 0 {
		return nil, eris.Wrap(gis.ErrInvalidGeometry, "rail: polyline has no usable part")
	}
	return ml, nil
}

func parseYear(raw string) int {
	y, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return y
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
