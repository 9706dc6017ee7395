// Package history persists run summaries to SQLite so divergence can be
// tracked across runs. Storage is an observer: a failing history store never
// affects the run's results.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/vrc"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	passed     INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	errored    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_results (
	run_id            TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	page_path         TEXT NOT NULL,
	outcome           TEXT NOT NULL,
	percentage        REAL NOT NULL DEFAULT 0,
	mismatched_pixels INTEGER NOT NULL DEFAULT 0,
	message           TEXT NOT NULL DEFAULT '',
	staging_image     TEXT NOT NULL DEFAULT '',
	prod_image        TEXT NOT NULL DEFAULT '',
	diff_image        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results(run_id);
`

// Store is a run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database with the production
// pragmas applied and the schema ensured.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts the run and all its results in one transaction.
func (s *Store) RecordRun(ctx context.Context, startedAt time.Time, sum *vrc.Summary) error {
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (run_id, started_at, passed, failed, errored)
			VALUES (?,?,?,?,?)`,
			sum.RunID, startedAt.Unix(), sum.Passed, sum.Failed, sum.Errored)
		if err != nil {
			return fmt.Errorf("history: insert run: %w", err)
		}

		for _, r := range sum.Results {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_results (
					run_id, page_path, outcome, percentage,
					mismatched_pixels, message,
					staging_image, prod_image, diff_image
				) VALUES (?,?,?,?,?,?,?,?,?)`,
				sum.RunID, r.Target.Path, string(r.Outcome.Kind), r.Outcome.Percentage,
				r.Outcome.MismatchedPixels, r.Outcome.Message,
				r.StagingImage, r.ProdImage, r.DiffImage)
			if err != nil {
				return fmt.Errorf("history: insert result %s: %w", r.Target.Path, err)
			}
		}
		return nil
	})
}

// RunRecord is one stored run's header row.
type RunRecord struct {
	RunID     string
	StartedAt time.Time
	Passed    int
	Failed    int
	Errored   int
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, passed, failed, errored
		FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var ts int64
		if err := rows.Scan(&rec.RunID, &ts, &rec.Passed, &rec.Failed, &rec.Errored); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		rec.StartedAt = time.Unix(ts, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Results returns the stored per-page results of one run, in stored order.
func (s *Store) Results(ctx context.Context, runID string) ([]vrc.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_path, outcome, percentage, mismatched_pixels, message,
		       staging_image, prod_image, diff_image
		FROM run_results WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: results: %w", err)
	}
	defer rows.Close()

	var out []vrc.Result
	for rows.Next() {
		var r vrc.Result
		var kind string
		if err := rows.Scan(&r.Target.Path, &kind, &r.Outcome.Percentage,
			&r.Outcome.MismatchedPixels, &r.Outcome.Message,
			&r.StagingImage, &r.ProdImage, &r.DiffImage); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		r.Outcome.Kind = vrc.OutcomeKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Cleanup deletes runs older than retentionDays. Zero or negative disables
// cleanup.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).Unix()
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM run_results WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)`,
			cutoff); err != nil {
			return fmt.Errorf("history: cleanup results: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
			return fmt.Errorf("history: cleanup runs: %w", err)
		}
		return nil
	})
}
