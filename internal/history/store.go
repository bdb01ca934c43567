// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps an audit ledger of finished conversion runs in a
// SQLite database. It records what happened; it is not a work queue and
// nothing is resumed from it.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

const dbFile = "history.db"

// Run is one recorded conversion run.
type Run struct {
	ID          int64              `json:"id" yaml:"id"`
	StartedAt   time.Time          `json:"started_at" yaml:"started_at"`
	Elapsed     time.Duration      `json:"elapsed" yaml:"elapsed"`
	Source      string             `json:"source" yaml:"source"`
	Destination string             `json:"destination" yaml:"destination"`
	Format      types.TargetFormat `json:"format" yaml:"format"`
	Discovered  int                `json:"discovered" yaml:"discovered"`
	Converted   int                `json:"converted" yaml:"converted"`
	Failed      int                `json:"failed" yaml:"failed"`
	Unsupported int                `json:"unsupported" yaml:"unsupported"`
	Quarantined int                `json:"quarantined" yaml:"quarantined"`
	Cancelled   int                `json:"cancelled" yaml:"cancelled"`
	Interrupted bool               `json:"interrupted" yaml:"interrupted"`
	ReportPath  string             `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	Failures    []types.Failure    `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates cfg.Dir/history.db and its schema.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("history directory is not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
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
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_ns INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			source TEXT NOT NULL,
			destination TEXT NOT NULL,
			format TEXT NOT NULL,
			discovered INTEGER NOT NULL,
			converted INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			unsupported INTEGER NOT NULL,
			quarantined INTEGER NOT NULL,
			cancelled INTEGER NOT NULL,
			interrupted INTEGER NOT NULL,
			report_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS failures (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run_id ON failures(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_ns ON runs(started_ns)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores a finished run and its failures in one transaction.
func (s *Store) RecordRun(ctx context.Context, r types.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_ns, elapsed_ms, source, destination, format,
			discovered, converted, failed, unsupported, quarantined, cancelled, interrupted, report_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UnixNano(), r.Elapsed.Milliseconds(),
		r.Source, r.Destination, string(r.Format),
		r.Discovered, r.Converted, r.FailedCount(), r.SkippedCount(), r.QuarantinedCount(), r.Cancelled,
		boolInt(r.Interrupted), r.ReportPath,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading run id: %w", err)
	}

	if len(r.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO failures (run_id, name, kind, detail) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing failure insert: %w", err)
		}
		defer stmt.Close()
		for _, f := range r.Failures {
			if _, err := stmt.ExecContext(ctx, runID, f.Name, string(f.Kind), f.Detail); err != nil {
				return fmt.Errorf("inserting failure %s: %w", f.Name, err)
			}
		}
	}
	return tx.Commit()
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_ns, elapsed_ms, source, destination, format,
			discovered, converted, failed, unsupported, quarantined, cancelled, interrupted, report_path
		FROM runs ORDER BY started_ns DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			startedNS   int64
			elapsedMS   int64
			format      string
			interrupted int
			reportPath  sql.NullString
		)
		if err := rows.Scan(&r.ID, &startedNS, &elapsedMS, &r.Source, &r.Destination, &format,
			&r.Discovered, &r.Converted, &r.Failed, &r.Unsupported, &r.Quarantined, &r.Cancelled,
			&interrupted, &reportPath); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedNS).UTC()
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.Format = types.TargetFormat(format)
		r.Interrupted = interrupted != 0
		r.ReportPath = reportPath.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Failures returns the failures recorded for a run.
func (s *Store) Failures(ctx context.Context, runID int64) ([]types.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, kind, detail FROM failures WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var out []types.Failure
	for rows.Next() {
		var (
			f      types.Failure
			kind   string
			detail sql.NullString
		)
		if err := rows.Scan(&f.Name, &kind, &detail); err != nil {
			return nil, fmt.Errorf("scanning failure: %w", err)
		}
		f.Kind = types.ErrorKind(kind)
		f.Detail = detail.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_ns DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

// ExportYAML writes up to limit runs, with their failures, as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, limit int) error {
	runs, err := s.detailedRuns(ctx, limit)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes up to limit runs, with their failures, as indented JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, limit int) error {
	runs, err := s.detailedRuns(ctx, limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []Run{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) detailedRuns(ctx context.Context, limit int) ([]Run, error) {
	runs, err := s.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		failures, err := s.Failures(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Failures = failures
	}
	return runs, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
