// Package pipeline wires the processing stages together: boundaries,
// suitability surfaces, the railway overlay, temporal accessibility and the
// aggregate tables. Stages are tracked as phases of a store run so a partial
// failure still leaves an inspectable record of what did and did not produce
// output.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/histrail/railatlas/internal/access"
	"github.com/histrail/railatlas/internal/boundary"
	"github.com/histrail/railatlas/internal/config"
	"github.com/histrail/railatlas/internal/export"
	"github.com/histrail/railatlas/internal/rail"
	"github.com/histrail/railatlas/internal/store"
)

// Phase statuses recorded in the store.
const (
	PhaseComplete = "complete"
	PhaseFailed   = "failed"
	PhaseSkipped  = "skipped"
)

// PhaseResult is the outcome of one tracked stage.
type PhaseResult struct {
	Name     string
	Status   string
	Detail   string
	Duration int64 // milliseconds
}

// Result summarizes a pipeline run.
type Result struct {
	RunID     string
	Phases    []PhaseResult
	Artifacts []string
	Fragments int
	Records   int
}

// Pipeline executes the full analysis against a config and a store.
type Pipeline struct {
	cfg *config.Config
	st  store.Store
}

// New creates a Pipeline.
func New(cfg *config.Config, st store.Store) *Pipeline {
	return &Pipeline{cfg: cfg, st: st}
}

// Run executes every stage. Boundary data is the only hard prerequisite:
// without it nothing downstream can proceed, so a boundary failure fails the
// run. Every other stage failure is isolated to that stage's dependents and
// the run finishes with whatever partial output the surviving stages
// produced.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	return p.run(ctx, true)
}

// RunStats executes the rail stages only: boundaries, network overlay,
// accessibility and aggregates, leaving the suitability surfaces out.
func (p *Pipeline) RunStats(ctx context.Context) (*Result, error) {
	return p.run(ctx, false)
}

func (p *Pipeline) run(ctx context.Context, withSurfaces bool) (*Result, error) {
	lg := zap.L().With(zap.String("component", "pipeline"))

	run, err := p.st.CreateRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	res := &Result{RunID: run.ID}
	lg.Info("pipeline: run started", zap.String("run_id", run.ID))

	setStatus := func(status store.RunStatus) {
		if statusErr := p.st.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			lg.Warn("pipeline: update run status", zap.Error(statusErr))
		}
	}

	opts := export.Options{Dir: p.cfg.Output.Dir, CoordPrecision: p.cfg.Output.CoordPrecision}

	// Stage 1: administrative boundaries. The three levels are independent
	// downloads, fetched concurrently.
	var regions, provinces, municipalities *boundary.Set
	if err := p.track(ctx, run.ID, res, "boundaries", func() (string, error) {
		loader := boundary.NewLoader(boundary.LoaderOptions{
			Sources:   p.cfg.Boundary.Sources(),
			SourceCRS: p.cfg.Boundary.SourceCRS,
			MetricCRS: p.cfg.Boundary.MetricCRS,
			UserAgent: p.cfg.Boundary.UserAgent,
			Timeout:   time.Duration(p.cfg.Boundary.TimeoutSecs) * time.Second,
			RateLimit: rate.Limit(p.cfg.Boundary.RatePerSec),
		})
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			s, loadErr := loader.Load(gCtx, boundary.LevelRegion)
			regions = s
			return loadErr
		})
		g.Go(func() error {
			s, loadErr := loader.Load(gCtx, boundary.LevelProvince)
			provinces = s
			return loadErr
		})
		g.Go(func() error {
			s, loadErr := loader.Load(gCtx, boundary.LevelMunicipality)
			municipalities = s
			return loadErr
		})
		if waitErr := g.Wait(); waitErr != nil {
			return "", waitErr
		}
		return fmt.Sprintf("%d regions, %d provinces, %d municipalities",
			len(regions.Units), len(provinces.Units), len(municipalities.Units)), nil
	}); err != nil {
		setStatus(store.RunStatusFailed)
		return res, eris.Wrap(err, "pipeline: boundary stage")
	}

	// Stage 2: suitability surfaces clipped to the national outline. A
	// failure here leaves the rail stages untouched.
	var surfaceErr error
	if withSurfaces {
		surfaceErr = p.track(ctx, run.ID, res, "surfaces", func() (string, error) {
			return p.runSurfaces(regions, opts, res)
		})
	}

	// Stage 3: railway network load and boundary overlay.
	var features []*rail.Feature
	var regionFrags, provinceFrags []*rail.Fragment
	networkErr := p.track(ctx, run.ID, res, "network", func() (string, error) {
		fs, rf, pf, detail, stageErr := p.runNetwork(ctx, run.ID, regions, provinces, opts, res)
		features, regionFrags, provinceFrags = fs, rf, pf
		return detail, stageErr
	})

	// Stages 4 and 5 need the network.
	var records []access.DistanceRecord
	if networkErr != nil {
		p.skip(ctx, run.ID, res, "access", "network stage failed")
		p.skip(ctx, run.ID, res, "aggregate", "network stage failed")
	} else {
		accessErr := p.track(ctx, run.ID, res, "access", func() (string, error) {
			points := access.MunicipalityPoints(municipalities)
			recs, runErr := access.Run(ctx, features, points, access.Options{
				Years:   p.cfg.Access.Years(),
				Workers: p.cfg.Access.Workers,
			})
			if runErr != nil {
				return "", runErr
			}
			records = recs
			if storeErr := p.st.InsertDistanceRecords(ctx, run.ID, records); storeErr != nil {
				return "", storeErr
			}
			res.Records = len(records)
			return fmt.Sprintf("%d records over %d points", len(records), len(points)), nil
		})

		if accessErr != nil {
			p.skip(ctx, run.ID, res, "aggregate", "access stage failed")
		} else {
			_ = p.track(ctx, run.ID, res, "aggregate", func() (string, error) {
				return p.runAggregate(ctx, run.ID, records, regionFrags, provinceFrags,
					regions, provinces, municipalities, opts, res)
			})
		}
	}

	if networkErr != nil && (!withSurfaces || surfaceErr != nil) {
		setStatus(store.RunStatusFailed)
		lg.Warn("pipeline: run produced no output", zap.String("run_id", run.ID))
		return res, eris.New("pipeline: all processing stages failed")
	}

	setStatus(store.RunStatusComplete)
	lg.Info("pipeline: run complete",
		zap.String("run_id", run.ID),
		zap.Int("fragments", res.Fragments),
		zap.Int("records", res.Records),
		zap.Int("artifacts", len(res.Artifacts)),
	)
	return res, nil
}

// track runs fn as a named phase, records its outcome in the store and on
// the result, and returns fn's error so the caller can gate dependents.
func (p *Pipeline) track(ctx context.Context, runID string, res *Result, name string, fn func() (string, error)) error {
	lg := zap.L().With(zap.String("component", "pipeline"), zap.String("phase", name))

	phase, phaseErr := p.st.CreatePhase(ctx, runID, name)
	if phaseErr != nil {
		lg.Warn("pipeline: create phase", zap.Error(phaseErr))
	}

	start := time.Now()
	detail, err := fn()
	duration := time.Since(start).Milliseconds()

	status := PhaseComplete
	if err != nil {
		status = PhaseFailed
		detail = err.Error()
		lg.Error("pipeline: phase failed", zap.Int64("duration_ms", duration), zap.Error(err))
	} else {
		lg.Info("pipeline: phase complete", zap.Int64("duration_ms", duration), zap.String("detail", detail))
	}

	if phase != nil {
		if completeErr := p.st.CompletePhase(ctx, phase.ID, status, detail); completeErr != nil {
			lg.Warn("pipeline: complete phase", zap.Error(completeErr))
		}
	}
	res.Phases = append(res.Phases, PhaseResult{Name: name, Status: status, Detail: detail, Duration: duration})
	return err
}

// skip records a phase that never ran because a prerequisite failed.
func (p *Pipeline) skip(ctx context.Context, runID string, res *Result, name, reason string) {
	zap.L().With(zap.String("component", "pipeline")).Info("pipeline: phase skipped",
		zap.String("phase", name), zap.String("reason", reason))
	if phase, err := p.st.CreatePhase(ctx, runID, name); err == nil {
		_ = p.st.CompletePhase(ctx, phase.ID, PhaseSkipped, reason)
	}
	res.Phases = append(res.Phases, PhaseResult{Name: name, Status: PhaseSkipped, Detail: reason})
}
