package raster

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/rotisserie/eris"

	"github.com/histrail/railatlas/internal/gis"
)

// defaultNoData is assumed when an ASCII grid header omits NODATA_value.
const defaultNoData = -9999

// ReadASCII parses an ESRI ASCII grid. The header keys are case-insensitive
// and may appear in any order before the first value row; values are
// row-major starting at the northern edge. The CRS is not part of the format
// and must be supplied by the caller.
func ReadASCII(r io.Reader, crs string) (*Grid, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	sc.Split(bufio.ScanWords)

	hdr := map[string]float64{}
	nodata := float64(defaultNoData)
	var first float64
	haveFirst := false
	for sc.Scan() {
		tok := sc.Text()
		if v, err := strconv.ParseFloat(tok, 64); err == nil {
			first = v
			haveFirst = true
			break
		}
		key := strings.ToLower(tok)
		if !sc.Scan() {
			return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: header key %q has no value", tok)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: header %q: %v", tok, err)
		}
		if key == "nodata_value" {
			nodata = v
		} else {
			hdr[key] = v
		}
	}

	for _, k := range []string{"ncols", "nrows", "cellsize"} {
		if _, ok := hdr[k]; !ok {
			return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: header missing %s", k)
		}
	}
	cols, rows := int(hdr["ncols"]), int(hdr["nrows"])
	cell := hdr["cellsize"]
	if cols <= 0 || rows <= 0 || cell <= 0 {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: degenerate header %dx%d cell %g", rows, cols, cell)
	}

	// The corner may be given as the lower-left cell corner or cell center.
	xll, yll := hdr["xllcorner"], hdr["yllcorner"]
	if cx, ok := hdr["xllcenter"]; ok {
		xll = cx - cell/2
	}
	if cy, ok := hdr["yllcenter"]; ok {
		yll = cy - cell/2
	}

	data := sparse.ZerosDense(rows, cols)
	n := 0
	put := func(v float64) {
		if n < len(data.Elements) {
			data.Elements[n] = v
		}
		n++
	}
	if haveFirst {
		put(first)
	}
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: cell %d: %v", n, err)
		}
		put(v)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "raster: read ascii grid")
	}
	if n != rows*cols {
		return nil, eris.Wrapf(gis.ErrSourceUnavailable, "raster: expected %d cells, got %d", rows*cols, n)
	}

	return &Grid{
		Data:   data,
		Tr:     Transform{X0: xll, Y0: yll + float64(rows)*cell, Dx: cell, Dy: cell},
		NoData: nodata,
		CRS:    crs,
	}, nil
}
