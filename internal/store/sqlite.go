package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/histrail/railatlas/internal/access"
	"github.com/histrail/railatlas/internal/rail"
	"github.com/histrail/railatlas/internal/stats"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	detail     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS fragments (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	feature_id TEXT NOT NULL,
	label      TEXT,
	year       INTEGER NOT NULL,
	region     TEXT NOT NULL,
	province   TEXT NOT NULL,
	line_class TEXT NOT NULL,
	gauge      TEXT NOT NULL,
	length_km  REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS distance_records (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	year        INTEGER NOT NULL,
	point_id    TEXT NOT NULL,
	name        TEXT NOT NULL,
	region      TEXT NOT NULL,
	province    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	distance_km REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS distance_summaries (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	tbl        TEXT NOT NULL,
	key        TEXT NOT NULL,
	year       INTEGER NOT NULL,
	mean_km    REAL NOT NULL,
	points     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS network_summaries (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	tbl              TEXT NOT NULL,
	key              TEXT NOT NULL,
	year             INTEGER NOT NULL,
	total_km         REAL NOT NULL,
	primary_km       REAL NOT NULL,
	primary_share    REAL NOT NULL,
	standard_km      REAL NOT NULL,
	standard_share   REAL NOT NULL,
	density_m_per_km2 REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_fragments_run_id ON fragments(run_id);
CREATE INDEX IF NOT EXISTS idx_fragments_region_year ON fragments(region, year);
CREATE INDEX IF NOT EXISTS idx_distance_records_run_id ON distance_records(run_id);
CREATE INDEX IF NOT EXISTS idx_distance_records_year ON distance_records(year);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &Run{ID: id, Status: RunStatusRunning, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, created_at, updated_at FROM runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return &r, nil
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID, name string) (*Phase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, "running", now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}
	return &Phase{ID: id, RunID: runID, Name: name, Status: "running", StartedAt: now}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID, status, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, detail = ? WHERE id = ?`,
		status, detail, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

func (s *SQLiteStore) InsertFragments(ctx context.Context, runID string, frags []*rail.Fragment) error {
	return s.batch(ctx, "sqlite: insert fragments", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO fragments (run_id, feature_id, label, year, region, province, line_class, gauge, length_km)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, fr := range frags {
			f := fr.Feature
			if _, err := stmt.ExecContext(ctx,
				runID, f.ID, f.Label, f.Year, fr.Region, fr.Province,
				string(f.Class), string(f.Gauge), fr.LengthKM); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertDistanceRecords(ctx context.Context, runID string, recs []access.DistanceRecord) error {
	return s.batch(ctx, "sqlite: insert distance records", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO distance_records (run_id, year, point_id, name, region, province, kind, distance_km)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range recs {
			if _, err := stmt.ExecContext(ctx,
				runID, r.Year, r.PointID, r.Name, r.Region, r.Province,
				string(r.Kind), r.DistanceKM); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertDistanceSummaries(ctx context.Context, runID, table string, sums []stats.DistanceSummary) error {
	return s.batch(ctx, "sqlite: insert distance summaries", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO distance_summaries (run_id, tbl, key, year, mean_km, points) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, su := range sums {
			if _, err := stmt.ExecContext(ctx, runID, table, su.Key, su.Year, su.MeanKM, su.Points); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertNetworkSummaries(ctx context.Context, runID, table string, sums []stats.NetworkSummary) error {
	return s.batch(ctx, "sqlite: insert network summaries", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO network_summaries
			 (run_id, tbl, key, year, total_km, primary_km, primary_share, standard_km, standard_share, density_m_per_km2)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, su := range sums {
			if _, err := stmt.ExecContext(ctx,
				runID, table, su.Key, su.Year, su.TotalKM, su.PrimaryKM, su.PrimaryShare,
				su.StandardKM, su.StandardShare, su.DensityMPerKM2); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) batch(ctx context.Context, what string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, what)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return eris.Wrap(err, what)
	}
	return eris.Wrap(tx.Commit(), what)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
