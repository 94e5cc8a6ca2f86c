package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordRun inserts a run and its outcomes in one transaction.
//
// An empty ID is filled with a fresh UUIDv7 and a zero StartedAt with the
// store clock. Seq is always assigned here: one more than the highest seq
// recorded so far. The stored run is returned.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = s.newID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	run.StartedAt = run.StartedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&maxSeq); err != nil {
		return Run{}, fmt.Errorf("record run: next seq: %w", err)
	}
	run.Seq = maxSeq.Int64 + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, base_url, started_at, seq)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.BaseURL,
		run.StartedAt.Format(time.RFC3339Nano),
		run.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run %s: %w", run.ID, err)
	}

	for _, o := range run.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes
			(run_id, step_index, step_name, status, kind, status_code, body, message, reason, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID,
			o.StepIndex,
			o.StepName,
			string(o.Status),
			string(o.Kind),
			o.StatusCode,
			o.Body,
			o.Message,
			o.Reason,
			o.ElapsedMS,
		)
		if err != nil {
			return Run{}, fmt.Errorf("record run %s: step %d: %w", run.ID, o.StepIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run %s: commit: %w", run.ID, err)
	}

	return run, nil
}
