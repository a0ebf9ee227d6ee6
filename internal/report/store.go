// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report persists verification runs so past outcomes can be listed
// and re-examined without re-running the pipeline.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/refcheck/pkg/types"
)

const dbFile = "runs.db"

// Run is one recorded verification run with its outcome tallies.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Source     string    `json:"source" yaml:"source"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Total      int       `json:"total" yaml:"total"`
	Verified   int       `json:"verified" yaml:"verified"`
	Unverified int       `json:"unverified" yaml:"unverified"`
	Errors     int       `json:"errors" yaml:"errors"`
	NeedsHuman int       `json:"needs_human" yaml:"needs_human"`
}

// Store manages the verification run SQLite database.
type Store struct {
	db      *sql.DB
	maxRuns int
}

// NewStore opens or creates the run database at cfg.Dir/runs.db, creating
// the schema if it does not exist.
func NewStore(cfg types.ReportConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxRuns := cfg.MaxRuns
	if maxRuns <= 0 {
		maxRuns = 20
	}

	s := &Store{db: db, maxRuns: maxRuns}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			total INTEGER NOT NULL,
			verified INTEGER NOT NULL,
			unverified INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			needs_human INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_references (
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			reference_id TEXT NOT NULL,
			title TEXT,
			status TEXT NOT NULL,
			verification_source TEXT,
			message TEXT,
			record TEXT NOT NULL,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_references_status ON run_references(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save records one completed run and its references in a single
// transaction. The returned Run carries the generated ID and tallies.
func (s *Store) Save(ctx context.Context, source string, startedAt, finishedAt time.Time, refs []types.Reference) (Run, error) {
	run := Summarize(refs)
	run.ID = uuid.NewString()
	run.Source = source
	run.StartedAt = startedAt.UTC()
	run.FinishedAt = finishedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, started_at, finished_at, total, verified, unverified, errors, needs_human)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source,
		run.StartedAt.Format(time.RFC3339Nano), run.FinishedAt.Format(time.RFC3339Nano),
		run.Total, run.Verified, run.Unverified, run.Errors, run.NeedsHuman,
	)
	if err != nil {
		return Run{}, fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_references (run_id, position, reference_id, title, status, verification_source, message, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, ref := range refs {
		record, err := json.Marshal(ref)
		if err != nil {
			return Run{}, fmt.Errorf("encoding reference %s: %w", ref.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			run.ID, i, ref.ID, ref.Title,
			string(ref.Status), ref.VerificationSource, ref.Message, string(record),
		)
		if err != nil {
			return Run{}, fmt.Errorf("inserting reference %s: %w", ref.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing run: %w", err)
	}
	return run, nil
}

// ListRuns returns recorded runs, newest first, capped at the configured
// maximum.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at, finished_at, total, verified, unverified, errors, needs_human
		 FROM runs ORDER BY started_at DESC LIMIT ?`, s.maxRuns)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Source, &started, &finished,
			&run.Total, &run.Verified, &run.Unverified, &run.Errors, &run.NeedsHuman); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunReferences returns the references recorded for a run in their original
// order.
func (s *Store) RunReferences(ctx context.Context, runID string) ([]types.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM run_references WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying run references: %w", err)
	}
	defer rows.Close()

	var refs []types.Reference
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("scanning reference: %w", err)
		}
		var ref types.Reference
		if err := json.Unmarshal([]byte(record), &ref); err != nil {
			return nil, fmt.Errorf("decoding reference record: %w", err)
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return refs, rows.Err()
}

// Summarize tallies reference outcomes into a Run record without touching
// the database.
func Summarize(refs []types.Reference) Run {
	run := Run{Total: len(refs)}
	for _, ref := range refs {
		switch ref.Status {
		case types.StatusVerified:
			run.Verified++
		case types.StatusUnverified:
			run.Unverified++
		case types.StatusNeedsHuman:
			run.NeedsHuman++
		default:
			run.Errors++
		}
	}
	return run
}
