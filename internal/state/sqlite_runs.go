package state

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/leapstack-labs/leapcheck/internal/analysis"
	"github.com/leapstack-labs/leapcheck/internal/compile"
)

// Run is the summary of one saved compile run.
type Run struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
	Nodes     int           `json:"nodes"`
	Errors    int           `json:"errors"`
	Warnings  int           `json:"warnings"`
	// Fingerprint hashes the run's diagnostics and catalog. Equal
	// fingerprints mean the project compiled to the same result.
	Fingerprint string `json:"fingerprint"`
}

const runColumns = `id, created_at, duration_ms, node_count, error_count, warning_count, fingerprint`

// SaveRun persists a compile result and returns its summary.
func (s *Store) SaveRun(ctx context.Context, res *compile.Result) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	fp, err := res.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint run: %w", err)
	}
	sum := sha256.Sum256(fp)
	summary := res.Summary()
	run := &Run{
		ID:          res.RunID,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		Duration:    res.Duration.Truncate(time.Millisecond),
		Nodes:       summary.Nodes,
		Errors:      summary.Errors,
		Warnings:    summary.Warnings,
		Fingerprint: hex.EncodeToString(sum[:]),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UnixMilli(), run.Duration.Milliseconds(),
		run.Nodes, run.Errors, run.Warnings, run.Fingerprint,
	); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for i, d := range res.Diagnostics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO diagnostics (run_id, seq, code, severity, node, column_name, message, hint, pass)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, d.Code, d.Severity.String(), d.Node, d.Column, d.Message, d.Hint, d.Pass,
		); err != nil {
			return nil, fmt.Errorf("failed to insert diagnostic %s: %w", d.Code, err)
		}
	}

	if err := saveCatalog(ctx, tx, run.ID, res); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Debug("saved run",
		slog.String("run_id", run.ID),
		slog.Int("diagnostics", len(res.Diagnostics)),
		slog.Int("nodes", run.Nodes))
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently saved run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunDiagnostics returns the diagnostics of a run in their saved order.
func (s *Store) RunDiagnostics(ctx context.Context, runID string) ([]analysis.Diagnostic, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT code, severity, node, column_name, message, hint, pass
		 FROM diagnostics WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []analysis.Diagnostic{}
	for rows.Next() {
		var d analysis.Diagnostic
		var sev string
		if err := rows.Scan(&d.Code, &sev, &d.Node, &d.Column, &d.Message, &d.Hint, &d.Pass); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		if err := d.Severity.UnmarshalText([]byte(sev)); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var createdMs, durationMs int64
	err := row.Scan(&run.ID, &createdMs, &durationMs, &run.Nodes, &run.Errors, &run.Warnings, &run.Fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt = time.UnixMilli(createdMs).UTC()
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
