package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/export"
	"github.com/histrail/railatlas/internal/gis"
	"github.com/histrail/railatlas/internal/raster"
)

var (
	vecInput string
	vecTable string
	vecName  string
)

var vectorizeCmd = &cobra.Command{
	Use:   "vectorize",
	Short: "Vectorize a raster into a classified GeoJSON surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		input := vecInput
		if input == "" {
			input = cfg.Raster.TRIPath
		}

		classifier, err := pickClassifier(vecTable)
		if err != nil {
			return err
		}

		g, err := readRaster(input)
		if err != nil {
			return err
		}

		seq, err := raster.Vectorize(g, classifier, cfg.Raster.SimplifyTolerance, gis.WGS84)
		if err != nil {
			return eris.Wrap(err, "vectorize raster")
		}

		name := vecName
		if name == "" {
			name = vecTable + "_classes"
		}
		path, err := export.WriteClassFeatures(seq, name, export.Options{
			Dir:            cfg.Output.Dir,
			CoordPrecision: cfg.Output.CoordPrecision,
		})
		if err != nil {
			return eris.Wrap(err, "write class features")
		}

		zap.L().Info("raster vectorized",
			zap.String("input", input),
			zap.String("output", path),
			zap.Ints("classes", seq.Classes()),
		)
		return nil
	},
}

func init() {
	vectorizeCmd.Flags().StringVar(&vecInput, "input", "", "raster path, ESRI ASCII or a clipped .nc artifact (default: configured TRI raster)")
	vectorizeCmd.Flags().StringVar(&vecTable, "table", "tri", "classification table: tri or wheat")
	vectorizeCmd.Flags().StringVar(&vecName, "name", "", "output artifact name")
	rootCmd.AddCommand(vectorizeCmd)
}

func pickClassifier(table string) (*raster.Classifier, error) {
	if cfg.Raster.BinsPath != "" {
		tables, err := raster.LoadClassifiers(cfg.Raster.BinsPath)
		if err != nil {
			return nil, eris.Wrap(err, "load classification tables")
		}
		if c, ok := tables[table]; ok {
			return c, nil
		}
	}
	switch table {
	case "tri":
		return raster.TRIClassifier(), nil
	case "wheat":
		return raster.WheatClassifier(), nil
	default:
		return nil, eris.Errorf("unknown classification table: %s", table)
	}
}

func readRaster(path string) (*raster.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open raster %q", path)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".nc") {
		g, err := raster.ReadNetCDF(f)
		if err != nil {
			return nil, eris.Wrap(err, "read netcdf raster")
		}
		return g, nil
	}
	g, err := raster.ReadASCII(f, cfg.Raster.CRS)
	if err != nil {
		return nil, eris.Wrap(err, "read ascii raster")
	}
	return g, nil
}
