package raster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histrail/railatlas/internal/gis"
)

// testGrid builds a rows x cols grid with unit cells, top-left at (0, rows),
// filled from vals in row-major order.
func testGrid(t *testing.T, rows, cols int, vals []float64) *Grid {
	t.Helper()
	g, err := NewGrid(rows, cols, Transform{X0: 0, Y0: float64(rows), Dx: 1, Dy: 1}, -9999, gis.Metric)
	require.NoError(t, err)
	copy(g.Data.Elements, vals)
	return g
}

func TestReadASCII(t *testing.T) {
	src := `ncols 3
nrows 2
xllcorner 100
yllcorner 200
cellsize 10
NODATA_value -1
1 2 3
4 -1 6
`
	g, err := ReadASCII(strings.NewReader(src), gis.Metric)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Rows())
	assert.Equal(t, 3, g.Cols())
	assert.Equal(t, Transform{X0: 100, Y0: 220, Dx: 10, Dy: 10}, g.Tr)
	assert.Equal(t, float64(-1), g.NoData)
	assert.Equal(t, 1.0, g.Value(0, 0), "first value is the northern row")
	assert.Equal(t, 6.0, g.Value(1, 2))
	assert.True(t, g.IsNoData(1, 1))
}

func TestReadASCIITruncated(t *testing.T) {
	src := "ncols 2\nnrows 2\ncellsize 1\n1 2 3\n"
	_, err := ReadASCII(strings.NewReader(src), gis.Metric)
	require.Error(t, err)
	assert.True(t, eris.Is(err, gis.ErrSourceUnavailable))
}

func TestClipMasksAndCrops(t *testing.T) {
	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	g := testGrid(t, 4, 4, vals)

	// Square over the 2x2 cell block at rows 1..2, cols 1..2.
	mask := geom.Polygon{{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 1, Y: 3}}}
	out, err := Clip(g, mask, gis.Metric)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Rows())
	assert.Equal(t, 2, out.Cols())
	assert.Equal(t, Transform{X0: 1, Y0: 3, Dx: 1, Dy: 1}, out.Tr)
	// Original values survive exactly inside the mask.
	assert.Equal(t, g.Value(1, 1), out.Value(0, 0))
	assert.Equal(t, g.Value(2, 2), out.Value(1, 1))
}

func TestClipIdempotent(t *testing.T) {
	vals := make([]float64, 25)
	for i := range vals {
		vals[i] = float64(i)
	}
	g := testGrid(t, 5, 5, vals)
	// Triangle so some window cells fall outside the mask.
	mask := geom.Polygon{{{X: 0.2, Y: 0.2}, {X: 4.8, Y: 0.2}, {X: 0.2, Y: 4.8}}}

	once, err := Clip(g, mask, gis.Metric)
	require.NoError(t, err)
	twice, err := Clip(once, mask, gis.Metric)
	require.NoError(t, err)
	assert.True(t, once.Equal(twice), "reclipping with the same mask must be a no-op")
}

func TestClipOutsideExtent(t *testing.T) {
	g := testGrid(t, 2, 2, []float64{1, 2, 3, 4})
	mask := geom.Polygon{{{X: 100, Y: 100}, {X: 101, Y: 100}, {X: 101, Y: 101}}}
	_, err := Clip(g, mask, gis.Metric)
	require.Error(t, err)
	assert.True(t, eris.Is(err, gis.ErrEmptyIntersection))
}

func TestClassifierTables(t *testing.T) {
	tri := TRIClassifier()
	wheat := WheatClassifier()
	tests := []struct {
		name string
		c    *Classifier
		v    float64
		want int
		ok   bool
	}{
		{name: "tri extreme", c: tri, v: 400000, want: 4, ok: true},
		{name: "tri boundary 350000 stays class 3", c: tri, v: 350000, want: 3, ok: true},
		{name: "tri boundary 150000 stays class 2", c: tri, v: 150000, want: 2, ok: true},
		{name: "tri floor inclusive", c: tri, v: 80000, want: 2, ok: true},
		{name: "tri below floor", c: tri, v: 79999, ok: false},
		{name: "wheat high", c: wheat, v: 7000, want: 3, ok: true},
		{name: "wheat mid", c: wheat, v: 3500, want: 2, ok: true},
		{name: "wheat low", c: wheat, v: 1000, want: 1, ok: true},
		{name: "wheat below floor", c: wheat, v: 999, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.c.Classify(tt.v)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLoadClassifiersRejectsUnordered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"tri:\n  threshold: 10\n  bins:\n    - {class: 1, min: 10}\n    - {class: 2, min: 20}\n"), 0o644))
	_, err := LoadClassifiers(path)
	require.Error(t, err)
}

// A 3x3 block of ruggedness 500000 inside a larger empty grid must come out
// as a single highest-class square, with no feature for any other class.
func TestVectorizeSingleBlock(t *testing.T) {
	g := testGrid(t, 5, 5, nil)
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			g.Data.Set(500000, r, c)
		}
	}

	seq, err := Vectorize(g, TRIClassifier(), 0, gis.Metric)
	require.NoError(t, err)
	require.Equal(t, []int{4}, seq.Classes())

	f, ok := seq.Next()
	require.True(t, ok)
	assert.Equal(t, 4, f.Class)
	assert.Equal(t, gis.Metric, f.CRS)

	mp, ok := f.Geom.(geom.MultiPolygon)
	require.True(t, ok)
	require.Len(t, mp, 1)
	assert.InDelta(t, 9.0, mp.Area(), 1e-9, "surface covers exactly the nine block cells")

	_, ok = seq.Next()
	assert.False(t, ok, "sequence is exhausted after the single class")
}

func TestVectorizeHole(t *testing.T) {
	g := testGrid(t, 5, 5, nil)
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			if r == 2 && c == 2 {
				continue // nodata center
			}
			g.Data.Set(500000, r, c)
		}
	}

	seq, err := Vectorize(g, TRIClassifier(), 0, gis.Metric)
	require.NoError(t, err)
	f, ok := seq.Next()
	require.True(t, ok)

	mp := f.Geom.(geom.MultiPolygon)
	require.Len(t, mp, 1)
	assert.Len(t, mp[0], 2, "ring region keeps its hole")
	assert.InDelta(t, 8.0, mp.Area(), 1e-9)
}

// Every eligible cell lands in exactly one class surface, so the class
// areas sum to the eligible cell count.
func TestVectorizeTotality(t *testing.T) {
	g := testGrid(t, 4, 4, []float64{
		500000, 500000, 200000, 200000,
		500000, -9999, 200000, 90000,
		90000, 90000, 50000, 50000,
		400000, 100000, 90000, -9999,
	})

	seq, err := Vectorize(g, TRIClassifier(), 0, gis.Metric)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, seq.Classes())

	var total float64
	for {
		f, ok := seq.Next()
		if !ok {
			break
		}
		total += f.Geom.(geom.MultiPolygon).Area()
	}
	// 12 of 16 cells classify: two are nodata and two sit below the
	// eligibility floor.
	assert.InDelta(t, 12.0, total, 1e-9)
}

func TestNetCDFRoundTrip(t *testing.T) {
	g := testGrid(t, 3, 4, []float64{
		1.5, 2, 3, -9999,
		4, 5.25, 6, 7,
		8, 9, -9999, 12,
	})

	path := filepath.Join(t.TempDir(), "grid.nc")
	w, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, g.WriteNetCDF(w, "test grid"))
	require.NoError(t, w.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	back, err := ReadNetCDF(r)
	require.NoError(t, err)
	assert.True(t, g.Equal(back), "netcdf round trip must be lossless")
}

// A NetCDF file from elsewhere may carry the grid variable without the
// georeferencing attributes; that is a load error, not a panic.
func TestReadNetCDFMissingAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.nc")
	w, err := os.Create(path)
	require.NoError(t, err)
	h := cdf.NewHeader([]string{"y", "x"}, []int{2, 2})
	h.AddVariable("value", []string{"y", "x"}, []float64{0})
	h.Define()
	f, err := cdf.Create(w, h)
	require.NoError(t, err)
	_, err = f.Writer("value", []int{0, 0}, f.Header.Lengths("value")).Write([]float64{1, 2, 3, 4})
	require.NoError(t, err)
	require.NoError(t, cdf.UpdateNumRecs(w))
	require.NoError(t, w.Close())

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = ReadNetCDF(r)
	require.Error(t, err)
	assert.True(t, eris.Is(err, gis.ErrSourceUnavailable))
}
