// Package raster holds the gridded half of the pipeline: the georeferenced
// Grid model, the ESRI ASCII reader, the NetCDF artifact codec, the clipper
// and the vectorizer that turns a classified grid into polygon features.
package raster

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/rotisserie/eris"

	"github.com/histrail/railatlas/internal/gis"
)

// Transform maps cell indices to geographic coordinates. X0/Y0 is the
// top-left corner of cell (0,0); Dx and Dy are positive cell sizes, rows
// advance towards smaller y.
type Transform struct {
	X0, Y0 float64
	Dx, Dy float64
}

// Invertible reports whether the transform can round-trip between cell and
// geographic space.
func (t Transform) Invertible() bool {
	return t.Dx != 0 && t.Dy != 0 &&
		!math.IsNaN(t.Dx) && !math.IsNaN(t.Dy) &&
		!math.IsInf(t.Dx, 0) && !math.IsInf(t.Dy, 0)
}

// Grid is a georeferenced 2-D array of cell values with a nodata sentinel.
// The backing array is indexed (row, col) with row 0 at the northern edge.
type Grid struct {
	Data   *sparse.DenseArray
	Tr     Transform
	NoData float64
	CRS    string
}

// NewGrid allocates a nodata-filled grid of the given shape.
func NewGrid(rows, cols int, tr Transform, nodata float64, crs string) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, eris.Errorf("raster: invalid grid shape %dx%d", rows, cols)
	}
	if !tr.Invertible() {
		return nil, eris.New("raster: transform is not invertible")
	}
	g := &Grid{
		Data:   sparse.ZerosDense(rows, cols),
		Tr:     tr,
		NoData: nodata,
		CRS:    crs,
	}
	for i := range g.Data.Elements {
		g.Data.Elements[i] = nodata
	}
	return g, nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.Data.Shape[0] }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.Data.Shape[1] }

// Value returns the cell value at (row, col).
func (g *Grid) Value(row, col int) float64 { return g.Data.Get(row, col) }

// IsNoData reports whether the cell at (row, col) holds the nodata sentinel.
func (g *Grid) IsNoData(row, col int) bool {
	v := g.Data.Get(row, col)
	return v == g.NoData || math.IsNaN(v)
}

// CellCenter returns the geographic center of cell (row, col).
func (g *Grid) CellCenter(row, col int) geom.Point {
	return geom.Point{
		X: g.Tr.X0 + (float64(col)+0.5)*g.Tr.Dx,
		Y: g.Tr.Y0 - (float64(row)+0.5)*g.Tr.Dy,
	}
}

// Vertex returns the geographic position of the cell-corner lattice point
// (col, row), where (0,0) is the grid's top-left corner.
func (g *Grid) Vertex(col, row int) geom.Point {
	return geom.Point{
		X: g.Tr.X0 + float64(col)*g.Tr.Dx,
		Y: g.Tr.Y0 - float64(row)*g.Tr.Dy,
	}
}

// Bounds returns the geographic extent of the whole grid.
func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.Tr.X0, Y: g.Tr.Y0 - float64(g.Rows())*g.Tr.Dy},
		Max: geom.Point{X: g.Tr.X0 + float64(g.Cols())*g.Tr.Dx, Y: g.Tr.Y0},
	}
}

// Equal reports whether two grids carry identical georeferencing and cell
// values. Used to verify that reclipping a clipped grid is a no-op.
func (g *Grid) Equal(o *Grid) bool {
	if g.Rows() != o.Rows() || g.Cols() != o.Cols() {
		return false
	}
	if g.Tr != o.Tr || g.NoData != o.NoData || !gis.SameCRS(g.CRS, o.CRS) {
		return false
	}
	for i, v := range g.Data.Elements {
		w := o.Data.Elements[i]
		if v != w && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	return true
}
