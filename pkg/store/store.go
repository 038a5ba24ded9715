// Package store persists pipeline runs, representative selections and
// sub-cluster memberships to a SQLite database, next to the TSV outputs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gilchrisn/protein-representatives/pkg/output"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

// Run describes one pipeline invocation.
type Run struct {
	ID         string
	Mode       string
	Strategy   string
	Config     string // YAML snapshot of the effective settings
	StartedAt  time.Time
	FinishedAt time.Time
	Clusters   int
	Failures   int
}

// SelectionRow is one stored pick. Score and Centroid are NULL when
// undefined.
type SelectionRow struct {
	Cluster    string
	SubCluster string
	Strategy   string
	Role       string
	Item       string
	Score      sql.NullFloat64
	Centroid   sql.NullFloat64
}

// SQLiteStore implements the result sink on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	strategy    TEXT NOT NULL DEFAULT '',
	config      TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	clusters    INTEGER NOT NULL DEFAULT 0,
	failures    INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS selections (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	cluster    TEXT NOT NULL,
	subcluster TEXT NOT NULL DEFAULT '',
	strategy   TEXT NOT NULL,
	role       TEXT NOT NULL,
	item       TEXT NOT NULL DEFAULT '',
	score      REAL,
	centroid   REAL
);
CREATE INDEX IF NOT EXISTS idx_selections_run ON selections(run_id, cluster, subcluster);
CREATE TABLE IF NOT EXISTS memberships (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	cluster    TEXT NOT NULL,
	subcluster TEXT NOT NULL,
	position   INTEGER NOT NULL,
	item       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memberships_run ON memberships(run_id, cluster, subcluster);
`

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	for _, p := range []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// BeginRun records the start of a run.
func (s *SQLiteStore) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, strategy, config, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.Strategy, run.Config, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun records the end of a run and its counters.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, finished time.Time, clusters, failures int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, clusters = ?, failures = ? WHERE id = ?`,
		finished.UTC(), clusters, failures, id)
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing run %s: no such run", id)
	}
	return nil
}

// SaveSelections stores every pick of sels in one transaction. A selection
// without picks is stored as a single row with an empty role so that
// undefined groups stay visible.
func (s *SQLiteStore) SaveSelections(ctx context.Context, runID string, sels []representative.Selection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin selections transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO selections (run_id, cluster, subcluster, strategy, role, item, score, centroid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing selection insert: %w", err)
	}
	defer stmt.Close()

	for _, sel := range sels {
		centroid := nullable(sel.Centroid)
		if len(sel.Picks) == 0 {
			if _, err := stmt.ExecContext(ctx, runID, sel.Cluster, sel.SubCluster, sel.Strategy, "", "", nil, centroid); err != nil {
				return fmt.Errorf("inserting selection for %s: %w", sel.Cluster, err)
			}
			continue
		}
		for _, p := range sel.Picks {
			if _, err := stmt.ExecContext(ctx, runID, sel.Cluster, sel.SubCluster, sel.Strategy,
				string(p.Role), p.Item, nullable(p.Score), centroid); err != nil {
				return fmt.Errorf("inserting selection for %s: %w", sel.Cluster, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit selections: %w", err)
	}
	return nil
}

// SaveMemberships stores every (cluster, sub-cluster) member list.
func (s *SQLiteStore) SaveMemberships(ctx context.Context, runID string, cols []output.Membership) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin memberships transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cols {
		for i, item := range c.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memberships (run_id, cluster, subcluster, position, item) VALUES (?, ?, ?, ?, ?)`,
				runID, c.Cluster, c.SubCluster, i, item); err != nil {
				return fmt.Errorf("inserting membership %s/%s: %w", c.Cluster, c.SubCluster, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit memberships: %w", err)
	}
	return nil
}

// GetRun loads a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mode, strategy, config, started_at, finished_at, clusters, failures FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Mode, &run.Strategy, &run.Config, &run.StartedAt, &finished, &run.Clusters, &run.Failures)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// Selections lists the stored picks of a run in insertion order.
func (s *SQLiteStore) Selections(ctx context.Context, runID string) ([]SelectionRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cluster, subcluster, strategy, role, item, score, centroid
		 FROM selections WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying selections: %w", err)
	}
	defer rows.Close()

	var out []SelectionRow
	for rows.Next() {
		var r SelectionRow
		if err := rows.Scan(&r.Cluster, &r.SubCluster, &r.Strategy, &r.Role, &r.Item, &r.Score, &r.Centroid); err != nil {
			return nil, fmt.Errorf("scanning selection: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Memberships returns the stored members of one (cluster, sub-cluster) in
// their original order.
func (s *SQLiteStore) Memberships(ctx context.Context, runID, cluster, subcluster string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item FROM memberships WHERE run_id = ? AND cluster = ? AND subcluster = ? ORDER BY position`,
		runID, cluster, subcluster)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullable(s representative.Score) interface{} {
	if !s.Valid {
		return nil
	}
	return s.Value
}
