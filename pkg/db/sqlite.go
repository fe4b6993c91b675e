// Package db keeps operational bookkeeping for ingestion runs in SQLite.
// The email and profile stores themselves are flat JSON files; this store
// only records what happened when.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sqlx.DB
}

type IngestRun struct {
	ID        string `db:"id"`
	Processed int    `db:"processed"`
	Persisted int    `db:"persisted"`
	Companies int    `db:"companies"`
	CreatedAt string `db:"created_at"`
	Faults    []IngestFault
}

type IngestFault struct {
	RunID    string `db:"run_id"`
	Filename string `db:"filename"`
	Reason   string `db:"reason"`
}

// NewStore opens (and if needed creates) the SQLite database and its
// tables.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode=WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ingest_runs (
			id TEXT PRIMARY KEY,
			processed INTEGER NOT NULL,
			persisted INTEGER NOT NULL,
			companies INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS ingest_faults (
			run_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			reason TEXT,
			FOREIGN KEY (run_id) REFERENCES ingest_runs(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_faults_run_id ON ingest_faults(run_id);
	`)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a run and its faults.
func (s *Store) RecordRun(ctx context.Context, run IngestRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, processed, persisted, companies) VALUES (?, ?, ?, ?)
	`, run.ID, run.Processed, run.Persisted, run.Companies)
	if err != nil {
		return err
	}
	for _, f := range run.Faults {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO ingest_faults (run_id, filename, reason) VALUES (?, ?, ?)
		`, run.ID, f.Filename, f.Reason)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetRuns returns the most recent runs, newest first.
func (s *Store) GetRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	var runs []IngestRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, processed, persisted, companies, created_at
		FROM ingest_runs ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// GetFaults returns the skipped files of one run.
func (s *Store) GetFaults(ctx context.Context, runID string) ([]IngestFault, error) {
	var faults []IngestFault
	err := s.db.SelectContext(ctx, &faults, `
		SELECT run_id, filename, reason FROM ingest_faults WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, err
	}
	return faults, nil
}
