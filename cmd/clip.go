package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/raster"
)

var (
	clipInput  string
	clipOutput string
)

var clipCmd = &cobra.Command{
	Use:   "clip",
	Short: "Clip a raster to the national outline and write a NetCDF artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := clipInput
		if input == "" {
			input = cfg.Raster.TRIPath
		}
		output := clipOutput
		if output == "" {
			base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
			output = filepath.Join(cfg.Output.Dir, base+"_clip.nc")
		}

		regions, err := boundaryLoader().Load(ctx, boundary.LevelRegion)
		if err != nil {
			return eris.Wrap(err, "load regions")
		}
		outline, err := regions.Dissolve()
		if err != nil {
			return eris.Wrap(err, "dissolve national outline")
		}

		f, err := os.Open(input)
		if err != nil {
			return eris.Wrapf(err, "open raster %q", input)
		}
		defer f.Close()
		g, err := raster.ReadASCII(f, cfg.Raster.CRS)
		if err != nil {
			return eris.Wrap(err, "read raster")
		}

		clipped, err := raster.Clip(g, outline, regions.CRS)
		if err != nil {
			return eris.Wrap(err, "clip raster")
		}

		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}
		out, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "create %q", output)
		}
		defer out.Close()
		if err := clipped.WriteNetCDF(out, "clipped "+filepath.Base(input)); err != nil {
			return eris.Wrap(err, "write netcdf")
		}

		zap.L().Info("raster clipped",
			zap.String("input", input),
			zap.String("output", output),
			zap.Int("rows", clipped.Rows()),
			zap.Int("cols", clipped.Cols()),
		)
		return nil
	},
}

func init() {
	clipCmd.Flags().StringVar(&clipInput, "input", "", "ESRI ASCII raster path (default: configured TRI raster)")
	clipCmd.Flags().StringVar(&clipOutput, "output", "", "NetCDF output path")
	rootCmd.AddCommand(clipCmd)
}
