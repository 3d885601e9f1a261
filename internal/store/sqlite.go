// Package store keeps a history of cleaning runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/contactkeval/chain-clean/internal/arb"
)

var ErrRunNotFound = errors.New("run not found")

type Store struct {
	db *sql.DB
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	Tables       int       `json:"tables"`
	TotalInitial int       `json:"total_initial"`
	TotalFinal   int       `json:"total_final"`
	TotalRemoved int       `json:"total_removed"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/runs.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			tables INTEGER NOT NULL,
			total_initial INTEGER NOT NULL,
			total_final INTEGER NOT NULL,
			total_removed INTEGER NOT NULL,
			report_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);`,
		`CREATE TABLE IF NOT EXISTS run_tables (
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			name TEXT,
			side TEXT,
			state TEXT,
			initial INTEGER,
			removed INTEGER,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_tables_state ON run_tables(state);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveRun stores rep and its per-table rows in one transaction.
func (s *Store) SaveRun(ctx context.Context, rep arb.Report) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, tables, total_initial, total_final, total_removed, report_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.CreatedAt.UnixMilli(), len(rep.Tables), rep.TotalInitial, rep.TotalFinal, rep.TotalRemoved, string(raw))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}
	for _, tr := range rep.Tables {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_tables (run_id, idx, name, side, state, initial, removed) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rep.RunID, tr.Index, tr.Name, string(tr.Side), string(tr.State), tr.Initial, tr.Removed)
		if err != nil {
			return fmt.Errorf("insert run table %s/%d: %w", rep.RunID, tr.Index, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the newest runs first. limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, created_at, tables, total_initial, total_final, total_removed
		 FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var ms int64
		if err := rows.Scan(&r.RunID, &ms, &r.Tables, &r.TotalInitial, &r.TotalFinal, &r.TotalRemoved); err != nil {
			return nil, err
		}
		r.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns the full stored report.
func (s *Store) GetRun(ctx context.Context, runID string) (arb.Report, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return arb.Report{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return arb.Report{}, err
	}

	var rep arb.Report
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return arb.Report{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return rep, nil
}

// CountStates tallies terminal states across every stored table run.
func (s *Store) CountStates(ctx context.Context) (map[arb.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM run_tables GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[arb.State]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[arb.State(state)] = n
	}
	return out, rows.Err()
}
