package access

import (
	"context"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histrail/railatlas/internal/gis"
	"github.com/histrail/railatlas/internal/rail"
)

func segFeature(year int, pts ...geom.Point) *rail.Feature {
	ml := geom.MultiLineString{geom.LineString(pts)}
	return &rail.Feature{ID: "f", Year: year, Geom: ml, LengthKM: gis.MultiLength(ml) / 1000}
}

func TestDefaultYears(t *testing.T) {
	ys := DefaultYears()
	require.NotEmpty(t, ys)
	assert.Equal(t, 1839, ys[0])
	assert.Equal(t, 1913, ys[len(ys)-1])
	assert.Contains(t, ys, 1909)
	assert.NotContains(t, ys, 1914)
}

// Distances shrink as the network grows: at 1850 only the 1840 line exists,
// by 1870 a nearer line has opened.
func TestRunSnapshotGrowth(t *testing.T) {
	features := []*rail.Feature{
		segFeature(1840, geom.Point{X: 0, Y: 0}, geom.Point{X: 10000, Y: 0}),
		segFeature(1870, geom.Point{X: 0, Y: 2000}, geom.Point{X: 10000, Y: 2000}),
	}
	points := []QueryPoint{{
		ID: "p1", Name: "Alfa", Region: "R", Province: "P",
		Kind: KindMunicipality, Point: geom.Point{X: 5000, Y: 3000},
	}}

	recs, err := Run(context.Background(), features, points, Options{Years: []int{1850, 1870}})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 1850, recs[0].Year)
	assert.InDelta(t, 3.0, recs[0].DistanceKM, 1e-9, "only the 1840 line exists in 1850")
	assert.Equal(t, 1870, recs[1].Year)
	assert.InDelta(t, 1.0, recs[1].DistanceKM, 1e-9)
	assert.LessOrEqual(t, recs[1].DistanceKM, recs[0].DistanceKM, "snapshots are monotone")
}

func TestRunSkipsEmptyYears(t *testing.T) {
	features := []*rail.Feature{
		segFeature(1861, geom.Point{X: 0, Y: 0}, geom.Point{X: 1000, Y: 0}),
		segFeature(0, geom.Point{X: 0, Y: 500}, geom.Point{X: 1000, Y: 500}), // unknown year
	}
	points := []QueryPoint{{ID: "p1", Kind: KindMunicipality, Point: geom.Point{X: 500, Y: 100}}}

	recs, err := Run(context.Background(), features, points, Options{Years: []int{1850, 1855, 1861}})
	require.NoError(t, err)
	require.Len(t, recs, 1, "years before any construction produce no records")
	assert.Equal(t, 1861, recs[0].Year)
	assert.InDelta(t, 0.1, recs[0].DistanceKM, 1e-9, "the unknown-year line never counts")
}

func TestRunOrdersByYear(t *testing.T) {
	features := []*rail.Feature{
		segFeature(1840, geom.Point{X: 0, Y: 0}, geom.Point{X: 1000, Y: 0}),
		segFeature(1900, geom.Point{X: 0, Y: 5000}, geom.Point{X: 1000, Y: 5000}),
	}
	var points []QueryPoint
	for _, name := range []string{"a", "b", "c"} {
		points = append(points, QueryPoint{ID: name, Kind: KindMunicipality, Point: geom.Point{X: 100, Y: 100}})
	}

	recs, err := Run(context.Background(), features, points,
		Options{Years: []int{1900, 1850, 1880}, Workers: 3})
	require.NoError(t, err)
	require.Len(t, recs, 9)
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, recs[i-1].Year, recs[i].Year, "records merge in year order")
	}
}

// Once construction stops the snapshots stop changing, so sample years past
// the last construction year collapse into the final one.
func TestRunTruncatesAfterLastConstruction(t *testing.T) {
	features := []*rail.Feature{
		segFeature(1844, geom.Point{X: 0, Y: 0}, geom.Point{X: 1000, Y: 0}),
	}
	points := []QueryPoint{{ID: "p1", Kind: KindMunicipality, Point: geom.Point{X: 500, Y: 100}}}

	recs, err := Run(context.Background(), features, points, Options{})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	years := map[int]bool{}
	for _, r := range recs {
		years[r.Year] = true
	}
	assert.True(t, years[1844])
	assert.False(t, years[1849], "no sample years between the last construction and the final year")
	assert.False(t, years[1909])
	assert.True(t, years[1913], "the final year is always reported")
}

func TestSnapshotDistanceExact(t *testing.T) {
	// The nearest segment by bounding box is not the nearest by geometry;
	// the expanding search must still find the true minimum.
	features := []*rail.Feature{
		segFeature(1840, geom.Point{X: -50, Y: 60}, geom.Point{X: 50, Y: 60}),
		segFeature(1840, geom.Point{X: 3000, Y: 0}, geom.Point{X: 3001, Y: 0}),
	}
	snap := newSnapshot(features, 1900)
	require.False(t, snap.Empty())
	assert.InDelta(t, 60.0, snap.Distance(geom.Point{X: 0, Y: 0}), 1e-9)
	assert.InDelta(t, 60.0, snap.Distance(geom.Point{X: 0, Y: 120}), 1e-9)
}

func TestRunNoPoints(t *testing.T) {
	_, err := Run(context.Background(), nil, nil, Options{})
	require.Error(t, err)
}
