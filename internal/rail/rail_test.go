package rail

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/gis"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		raw  string
		want LineClass
	}{
		{raw: "Mainline", want: ClassPrimary},
		{raw: "MAIN", want: ClassPrimary},
		{raw: "light", want: ClassSecondary},
		{raw: "", want: ClassSecondary},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLine(tt.raw), tt.raw)
	}
}

func TestClassifyGauge(t *testing.T) {
	assert.Equal(t, GaugeStandard, ClassifyGauge("Standard"))
	assert.Equal(t, GaugeStandard, ClassifyGauge("STAN"))
	assert.Equal(t, GaugeNarrow, ClassifyGauge("narrow"))
	assert.Equal(t, GaugeNarrow, ClassifyGauge(""))
}

func TestBuiltBy(t *testing.T) {
	f := &Feature{Year: 1861}
	assert.False(t, f.BuiltBy(1860))
	assert.True(t, f.BuiltBy(1861))
	assert.True(t, f.BuiltBy(1900))
	assert.False(t, (&Feature{Year: 0}).BuiltBy(1900), "unknown years never enter a snapshot")
}

func unitSquare(name, prov, reg string, x0, x1 float64) *boundary.Unit {
	return &boundary.Unit{
		Name: name, Province: prov, Region: reg, Level: boundary.LevelMunicipality,
		Geom: geom.Polygon{{
			{X: x0, Y: 0}, {X: x1, Y: 0}, {X: x1, Y: 2}, {X: x0, Y: 2},
		}},
	}
}

func lineFeature(pts ...geom.Point) *Feature {
	ml := geom.MultiLineString{geom.LineString(pts)}
	return &Feature{ID: "t", Year: 1850, Class: ClassPrimary, Gauge: GaugeStandard,
		Geom: ml, LengthKM: gis.MultiLength(ml) / 1000}
}

// A line crossing two adjacent units and sticking out both ends must be cut
// into per-unit fragments plus one outside fragment, with lengths that
// reassemble the original exactly.
func TestCutPartition(t *testing.T) {
	units := []*boundary.Unit{
		unitSquare("A", "PA", "RA", 0, 2),
		unitSquare("B", "PB", "RB", 2, 4),
	}
	ov, err := NewOverlay(units, -1)
	require.NoError(t, err)

	f := lineFeature(geom.Point{X: -1, Y: 1}, geom.Point{X: 5, Y: 1})
	frags := ov.Cut(f)
	require.Len(t, frags, 3)

	var total float64
	byRegion := map[string]float64{}
	for _, fr := range frags {
		total += fr.LengthKM
		byRegion[fr.Region] += fr.LengthKM
	}
	assert.InDelta(t, f.LengthKM, total, 1e-9*f.LengthKM, "fragments partition the feature")
	assert.InDelta(t, 2.0/1000, byRegion["RA"], 1e-12)
	assert.InDelta(t, 2.0/1000, byRegion["RB"], 1e-12)
	assert.InDelta(t, 2.0/1000, byRegion[OutsideRegion], 1e-12, "both protruding ends land in one outside fragment")
}

// A line fully inside one unit comes back as a single intersection fragment
// with the original length, and no difference remainder.
func TestCutFullyInside(t *testing.T) {
	units := []*boundary.Unit{unitSquare("A", "PA", "RA", 0, 4)}
	ov, err := NewOverlay(units, -1)
	require.NoError(t, err)

	f := lineFeature(geom.Point{X: 0.5, Y: 0.5}, geom.Point{X: 3.5, Y: 0.5}, geom.Point{X: 3.5, Y: 1.5})
	in := ov.Intersection(f)
	require.Len(t, in, 1)
	assert.Equal(t, "A", in[0].Unit.Name)
	assert.Equal(t, "PA", in[0].Province)
	assert.InDelta(t, f.LengthKM, in[0].LengthKM, 1e-9*f.LengthKM)

	assert.Nil(t, ov.Difference(f))
}

// A line running along a shared border must be attributed to exactly one of
// the two adjacent units, never both and never neither.
func TestCutSharedBorder(t *testing.T) {
	units := []*boundary.Unit{
		unitSquare("A", "PA", "RA", 0, 2),
		unitSquare("B", "PB", "RB", 2, 4),
	}
	ov, err := NewOverlay(units, -1)
	require.NoError(t, err)

	f := lineFeature(geom.Point{X: 2, Y: 0.25}, geom.Point{X: 2, Y: 1.75})
	frags := ov.Cut(f)
	require.Len(t, frags, 1)
	assert.Equal(t, "A", frags[0].Unit.Name)
	assert.InDelta(t, f.LengthKM, frags[0].LengthKM, 1e-9*f.LengthKM)
}

func TestCutDropsNoise(t *testing.T) {
	units := []*boundary.Unit{unitSquare("A", "PA", "RA", 0, 2)}
	ov, err := NewOverlay(units, 0.01)
	require.NoError(t, err)

	// A couple of meters per side: everything is below the 0.01 km floor.
	f := lineFeature(geom.Point{X: 0.5, Y: 1}, geom.Point{X: 5.5, Y: 1})
	assert.Empty(t, ov.Cut(f))
}
