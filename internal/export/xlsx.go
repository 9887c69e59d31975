package export

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/histrail/railatlas/internal/stats"
)

// StatsWorkbook bundles the aggregate tables going into one XLSX file.
type StatsWorkbook struct {
	DistanceByRegion   []stats.DistanceSummary
	DistanceByProvince []stats.DistanceSummary
	NetworkByRegion    []stats.NetworkSummary
	NetworkByProvince  []stats.NetworkSummary
}

// WriteStatsWorkbook writes the aggregate tables as one sheet each.
func WriteStatsWorkbook(wb StatsWorkbook, name string, opts Options) (string, error) {
	f := xlsx.NewFile()

	if err := distanceSheet(f, "Distance by region", wb.DistanceByRegion); err != nil {
		return "", err
	}
	if err := distanceSheet(f, "Distance by province", wb.DistanceByProvince); err != nil {
		return "", err
	}
	if err := networkSheet(f, "Network by region", wb.NetworkByRegion); err != nil {
		return "", err
	}
	if err := networkSheet(f, "Network by province", wb.NetworkByProvince); err != nil {
		return "", err
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create output dir")
	}
	path := filepath.Join(opts.Dir, name+".xlsx")
	if err := f.Save(path); err != nil {
		return "", eris.Wrapf(err, "export: save workbook %s", path)
	}
	return path, nil
}

func distanceSheet(f *xlsx.File, name string, sums []stats.DistanceSummary) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	header(sheet, "key", "year", "mean_km", "points")
	for _, s := range sums {
		row := sheet.AddRow()
		row.AddCell().Value = s.Key
		row.AddCell().SetInt(s.Year)
		row.AddCell().SetFloat(s.MeanKM)
		row.AddCell().SetInt(s.Points)
	}
	return nil
}

func networkSheet(f *xlsx.File, name string, sums []stats.NetworkSummary) error {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrapf(err, "export: add sheet %s", name)
	}
	header(sheet, "key", "year", "total_km", "primary_km", "primary_share",
		"standard_km", "standard_share", "density_m_per_km2")
	for _, s := range sums {
		row := sheet.AddRow()
		row.AddCell().Value = s.Key
		row.AddCell().SetInt(s.Year)
		row.AddCell().SetFloat(s.TotalKM)
		row.AddCell().SetFloat(s.PrimaryKM)
		row.AddCell().SetFloat(s.PrimaryShare)
		row.AddCell().SetFloat(s.StandardKM)
		row.AddCell().SetFloat(s.StandardShare)
		row.AddCell().SetFloat(s.DensityMPerKM2)
	}
	return nil
}

func header(sheet *xlsx.Sheet, cols ...string) {
	row := sheet.AddRow()
	for _, c := range cols {
		row.AddCell().Value = c
	}
}
