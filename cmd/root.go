package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/histrail/railatlas/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "railatlas",
	Short: "Historical railway accessibility pipeline",
	Long:  "Clips terrain and crop suitability rasters to the Italian national outline, classifies them into suitability surfaces, and tracks railway accessibility of every municipality from 1839 to 1913.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
