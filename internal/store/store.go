// Package store persists pipeline runs and their outputs in a single-file
// SQLite database.
package store

import (
	"context"
	"time"

	"github.com/histrail/railatlas/internal/access"
	"github.com/histrail/railatlas/internal/rail"
	"github.com/histrail/railatlas/internal/stats"
)

// RunStatus tracks a pipeline run's lifecycle.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID        string
	Status    RunStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Phase is one tracked stage of a run.
type Phase struct {
	ID        string
	RunID     string
	Name      string
	Status    string
	Detail    string
	StartedAt time.Time
}

// Store is the persistence interface the pipeline writes through.
type Store interface {
	Migrate(ctx context.Context) error
	Close() error

	CreateRun(ctx context.Context) (*Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error
	GetRun(ctx context.Context, runID string) (*Run, error)

	CreatePhase(ctx context.Context, runID, name string) (*Phase, error)
	CompletePhase(ctx context.Context, phaseID, status, detail string) error

	InsertFragments(ctx context.Context, runID string, frags []*rail.Fragment) error
	InsertDistanceRecords(ctx context.Context, runID string, recs []access.DistanceRecord) error
	InsertDistanceSummaries(ctx context.Context, runID, table string, sums []stats.DistanceSummary) error
	InsertNetworkSummaries(ctx context.Context, runID, table string, sums []stats.NetworkSummary) error
}
