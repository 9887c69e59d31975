package raster

import (
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/gis"
)

// windowEps absorbs floating-point noise when snapping a geographic extent
// to cell indices, keeping Clip idempotent.
const windowEps = 1e-9

// Clip crops g to the bounding window of mask and sets every cell whose
// center falls outside the mask to nodata. Cells inside the mask keep their
// original values bit for bit and the affine transform is shifted so
// georeferencing stays exact. The mask is reprojected to the grid CRS when
// the two disagree; an impossible reprojection is a GeometryMismatch because
// the clipper cannot fall back the way vector stages can.
func Clip(g *Grid, mask geom.Polygonal, maskCRS string) (*Grid, error) {
	lg := zap.L().With(zap.String("component", "raster.clip"))

	if !g.Tr.Invertible() {
		return nil, eris.New("raster: grid transform is not invertible")
	}
	if !gis.SameCRS(g.CRS, maskCRS) {
		mg, err := gis.Transform(mask, maskCRS, g.CRS)
		if err != nil {
			return nil, eris.Wrapf(gis.ErrGeometryMismatch, "raster: mask %s vs grid %s: %v", maskCRS, g.CRS, err)
		}
		p, err := gis.RepairPolygonal(mg)
		if err != nil {
			return nil, err
		}
		mask = p
	}

	mb := mask.Bounds()
	gb := g.Bounds()
	if mb.Min.X >= gb.Max.X || mb.Max.X <= gb.Min.X || mb.Min.Y >= gb.Max.Y || mb.Max.Y <= gb.Min.Y {
		return nil, eris.Wrap(gis.ErrEmptyIntersection, "raster: mask outside grid extent")
	}

	// Minimal cell window fully containing the mask, clamped to the grid.
	col0 := clampIdx(math.Floor((mb.Min.X-g.Tr.X0)/g.Tr.Dx+windowEps), g.Cols()-1)
	col1 := clampIdx(math.Ceil((mb.Max.X-g.Tr.X0)/g.Tr.Dx-windowEps)-1, g.Cols()-1)
	row0 := clampIdx(math.Floor((g.Tr.Y0-mb.Max.Y)/g.Tr.Dy+windowEps), g.Rows()-1)
	row1 := clampIdx(math.Ceil((g.Tr.Y0-mb.Min.Y)/g.Tr.Dy-windowEps)-1, g.Rows()-1)
	rows, cols := row1-row0+1, col1-col0+1

	out := &Grid{
		Data: sparse.ZerosDense(rows, cols),
		Tr: Transform{
			X0: g.Tr.X0 + float64(col0)*g.Tr.Dx,
			Y0: g.Tr.Y0 - float64(row0)*g.Tr.Dy,
			Dx: g.Tr.Dx,
			Dy: g.Tr.Dy,
		},
		NoData: g.NoData,
		CRS:    g.CRS,
	}

	kept := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sr, sc := row0+r, col0+c
			if g.IsNoData(sr, sc) {
				out.Data.Set(g.NoData, r, c)
				continue
			}
			if out.CellCenter(r, c).Within(mask) == geom.Outside {
				out.Data.Set(g.NoData, r, c)
				continue
			}
			out.Data.Set(g.Value(sr, sc), r, c)
			kept++
		}
	}
	lg.Debug("clipped grid",
		zap.Int("rows", rows), zap.Int("cols", cols), zap.Int("cells_kept", kept))
	return out, nil
}

func clampIdx(v float64, max int) int {
	i := int(v)
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
