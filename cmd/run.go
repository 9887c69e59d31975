package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/pipeline"
	"github.com/histrail/railatlas/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := pipeline.New(cfg, st).Run(ctx)
		printResult(res)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func printResult(res *pipeline.Result) {
	if res == nil {
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func boundaryLoader() *boundary.Loader {
	return boundary.NewLoader(boundary.LoaderOptions{
		Sources:   cfg.Boundary.Sources(),
		SourceCRS: cfg.Boundary.SourceCRS,
		MetricCRS: cfg.Boundary.MetricCRS,
		UserAgent: cfg.Boundary.UserAgent,
		Timeout:   time.Duration(cfg.Boundary.TimeoutSecs) * time.Second,
		RateLimit: rate.Limit(cfg.Boundary.RatePerSec),
	})
}
