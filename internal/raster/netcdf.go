package raster

import (
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"github.com/rotisserie/eris"

	"github.com/histrail/railatlas/internal/gis"
)

// gridVar is the single NetCDF variable a grid artifact carries.
const gridVar = "value"

// WriteNetCDF writes the grid to w as a NetCDF artifact. Values are stored
// as float64 so the round trip through ReadNetCDF is exact.
func (g *Grid) WriteNetCDF(w *os.File, comment string) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Rows(), g.Cols()})
	if comment != "" {
		h.AddAttribute("", "comment", comment)
	}
	h.AddAttribute("", "x0", []float64{g.Tr.X0})
	h.AddAttribute("", "y0", []float64{g.Tr.Y0})
	h.AddAttribute("", "dx", []float64{g.Tr.Dx})
	h.AddAttribute("", "dy", []float64{g.Tr.Dy})
	h.AddAttribute("", "nodata", []float64{g.NoData})
	h.AddAttribute("", "crs", g.CRS)
	h.AddVariable(gridVar, []string{"y", "x"}, []float64{0})
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return eris.Wrap(err, "raster: create netcdf")
	}
	end := f.Header.Lengths(gridVar)
	start := make([]int, len(end))
	if _, err := f.Writer(gridVar, start, end).Write(g.Data.Elements); err != nil {
		return eris.Wrap(err, "raster: write netcdf values")
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return eris.Wrap(err, "raster: finalize netcdf")
	}
	return nil
}

// ReadNetCDF loads a grid artifact previously written by WriteNetCDF.
func ReadNetCDF(rw cdf.ReaderWriterAt) (*Grid, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: open netcdf: %v", err)
	}

	var tr Transform
	var nodata float64
	for _, a := range []struct {
		name string
		dst  *float64
	}{
		{"x0", &tr.X0}, {"y0", &tr.Y0}, {"dx", &tr.Dx}, {"dy", &tr.Dy}, {"nodata", &nodata},
	} {
		vs, ok := f.Header.GetAttribute("", a.name).([]float64)
		if !ok || len(vs) == 0 {
			return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: netcdf attribute %s missing", a.name)
		}
		*a.dst = vs[0]
	}
	crs, _ := f.Header.GetAttribute("", "crs").(string)

	dims := f.Header.Lengths(gridVar)
	if len(dims) != 2 {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: variable %s has %d dims, want 2", gridVar, len(dims))
	}
	data := sparse.ZerosDense(dims...)
	buf := make([]float64, len(data.Elements))
	if _, err := f.Reader(gridVar, nil, nil).Read(buf); err != nil {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: read netcdf values: %v", err)
	}
	copy(data.Elements, buf)

	return &Grid{Data: data, Tr: tr, NoData: nodata, CRS: crs}, nil
}
