package gis

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ggeom "github.com/twpayne/go-geom"
)

func TestSameCRS(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "identical tags", a: "EPSG:4326", b: "EPSG:4326", want: true},
		{name: "case insensitive", a: "epsg:4326", b: "EPSG:4326", want: true},
		{name: "empty defaults to WGS84", a: "", b: "EPSG:4326", want: true},
		{name: "different systems", a: "EPSG:4326", b: "EPSG:3035", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameCRS(tt.a, tt.b))
		})
	}
}

func TestNewTransformIdentity(t *testing.T) {
	tr, err := NewTransform(WGS84, "epsg:4326")
	require.NoError(t, err)
	assert.Nil(t, tr, "same-CRS transform should be a no-op")
}

func TestFromGeoJSONRoundTrip(t *testing.T) {
	mp := ggeom.NewMultiPolygon(ggeom.XY).MustSetCoords([][][]ggeom.Coord{
		{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}, {{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}},
	})
	g, err := FromGeoJSON(mp)
	require.NoError(t, err)

	cmp, ok := g.(geom.MultiPolygon)
	require.True(t, ok)
	require.Len(t, cmp, 1)
	assert.Len(t, cmp[0], 2, "outer ring plus hole")

	back, err := ToGeoJSON(g)
	require.NoError(t, err)
	out, ok := back.(*ggeom.MultiPolygon)
	require.True(t, ok)
	assert.Equal(t, mp.Coords(), out.Coords())
}

func TestFromGeoJSONUnsupported(t *testing.T) {
	_, err := FromGeoJSON(ggeom.NewGeometryCollection())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrInvalidGeometry))
}

func TestRound(t *testing.T) {
	ls := geom.LineString{{X: 9.123456, Y: 45.654321}, {X: 9.1, Y: 45.6}}
	got := Round(ls, 4).(geom.LineString)
	assert.Equal(t, geom.LineString{{X: 9.1235, Y: 45.6543}, {X: 9.1, Y: 45.6}}, got)
}

func TestRepairPolygonal(t *testing.T) {
	t.Run("drops closing duplicate and degenerate ring", func(t *testing.T) {
		p := geom.Polygon{
			{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 0}},
			{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 6, Y: 6}},
		}
		got, err := RepairPolygonal(p)
		require.NoError(t, err)
		rp := got.(geom.Polygon)
		require.Len(t, rp, 1)
		assert.Len(t, rp[0], 3)
	})

	t.Run("empty polygon rejected", func(t *testing.T) {
		_, err := RepairPolygonal(geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 1}}})
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidGeometry))
	})

	t.Run("non-polygonal rejected", func(t *testing.T) {
		_, err := RepairPolygonal(geom.LineString{{X: 0, Y: 0}, {X: 1, Y: 1}})
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidGeometry))
	})
}

func TestMeasure(t *testing.T) {
	ls := geom.LineString{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}}
	assert.InDelta(t, 7.0, Length(ls), 1e-12)

	ml := geom.MultiLineString{ls, {{X: 10, Y: 0}, {X: 10, Y: 2}}}
	assert.InDelta(t, 9.0, MultiLength(ml), 1e-12)
}

func TestPointSegmentDistance(t *testing.T) {
	a, b := geom.Point{X: 0, Y: 0}, geom.Point{X: 10, Y: 0}
	tests := []struct {
		name string
		p    geom.Point
		want float64
	}{
		{name: "perpendicular foot inside", p: geom.Point{X: 5, Y: 3}, want: 3},
		{name: "before start", p: geom.Point{X: -3, Y: 4}, want: 5},
		{name: "past end", p: geom.Point{X: 13, Y: 4}, want: 5},
		{name: "on segment", p: geom.Point{X: 7, Y: 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PointSegmentDistance(tt.p, a, b), 1e-12)
		})
	}
}

func TestPointSegmentDistanceDegenerate(t *testing.T) {
	p := geom.Point{X: 3, Y: 4}
	a := geom.Point{X: 0, Y: 0}
	assert.InDelta(t, 5.0, PointSegmentDistance(p, a, a), 1e-12)
}
