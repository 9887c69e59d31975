package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histrail/railatlas/internal/access"
	"github.com/histrail/railatlas/internal/rail"
	"github.com/histrail/railatlas/internal/stats"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "railatlas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func (s *SQLiteStore) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, err := s.CreateRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)

	ph, err := s.CreatePhase(ctx, run.ID, "overlay")
	require.NoError(t, err)
	require.NoError(t, s.CompletePhase(ctx, ph.ID, "complete", "42 fragments"))

	require.NoError(t, s.UpdateRunStatus(ctx, run.ID, RunStatusComplete))
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusComplete, got.Status)
}

func TestUpdateMissingRun(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRunStatus(context.Background(), "nope", RunStatusFailed)
	require.Error(t, err)
}

func TestInsertOutputs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	run, err := s.CreateRun(ctx)
	require.NoError(t, err)

	f := &rail.Feature{ID: "rail-1", Label: "Torino-Genova", Year: 1853,
		Class: rail.ClassPrimary, Gauge: rail.GaugeStandard}
	frags := []*rail.Fragment{
		{Feature: f, Region: "Piemonte", Province: "Torino", LengthKM: 12.345},
		{Feature: f, Region: rail.OutsideRegion, Province: rail.OutsideProvince, LengthKM: 0.5},
	}
	require.NoError(t, s.InsertFragments(ctx, run.ID, frags))
	assert.Equal(t, 2, s.count(t, "fragments"))

	recs := []access.DistanceRecord{
		{Year: 1850, PointID: "p1", Name: "Alfa", Region: "Piemonte", Province: "Torino",
			Kind: access.KindMunicipality, DistanceKM: 3.25},
	}
	require.NoError(t, s.InsertDistanceRecords(ctx, run.ID, recs))
	assert.Equal(t, 1, s.count(t, "distance_records"))

	require.NoError(t, s.InsertDistanceSummaries(ctx, run.ID, "regions",
		[]stats.DistanceSummary{{Key: "Piemonte", Year: 1850, MeanKM: 3.25, Points: 1}}))
	require.NoError(t, s.InsertNetworkSummaries(ctx, run.ID, "regions",
		[]stats.NetworkSummary{{Key: "Piemonte", Year: 1850, TotalKM: 12.345}}))
	assert.Equal(t, 1, s.count(t, "distance_summaries"))
	assert.Equal(t, 1, s.count(t, "network_summaries"))
}
