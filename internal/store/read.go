package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/tutorprobe/internal/harness"
	"github.com/roach88/tutorprobe/internal/probe"
)

// runColumns selects a run with its per-status tally.
const runColumns = `
	r.id, r.scenario, r.base_url, r.started_at, r.seq,
	COUNT(o.step_index),
	COALESCE(SUM(o.status = 'succeeded'), 0),
	COALESCE(SUM(o.status = 'failed'), 0),
	COALESCE(SUM(o.status = 'skipped'), 0)
`

// ListRuns returns the most recent limit runs without their outcomes,
// oldest first. A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) if nothing has been recorded.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		WHERE r.id IN (SELECT id FROM runs ORDER BY seq DESC LIMIT ?)
		GROUP BY r.id
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadRun returns one run with its outcomes in step order.
// Returns ErrNotFound if no run has the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	run.Outcomes, err = s.readOutcomes(ctx, id)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) readOutcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_index, step_name, status, kind, status_code, body, message, reason, elapsed_ms
		FROM outcomes
		WHERE run_id = ?
		ORDER BY step_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		var (
			o            Outcome
			status, kind string
		)
		if err := rows.Scan(
			&o.StepIndex,
			&o.StepName,
			&status,
			&kind,
			&o.StatusCode,
			&o.Body,
			&o.Message,
			&o.Reason,
			&o.ElapsedMS,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = harness.StepStatus(status)
		o.Kind = probe.Kind(kind)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return outcomes, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		startedAt string
	)
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&run.BaseURL,
		&startedAt,
		&run.Seq,
		&run.Summary.Total,
		&run.Summary.Succeeded,
		&run.Summary.Failed,
		&run.Summary.Skipped,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: parse started_at: %w", run.ID, err)
	}
	run.Summary.Attempted = run.Summary.Succeeded + run.Summary.Failed

	return run, nil
}
