package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/histrail/railatlas/internal/pipeline"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run the rail stages: overlay, accessibility, aggregate tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(cfg, st).RunStats(ctx)
		printResult(res)
		return err
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
