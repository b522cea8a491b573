package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/store"
)

// UpsertJobStart inserts a running job_runs row; replays are no-ops.
func (s *Store) UpsertJobStart(ctx context.Context, jobID string, startedAt time.Time, assigned int) error {
	query := `
		INSERT INTO job_runs (job_id, status, started_at, assigned, success, failure)
		VALUES ($1, $2, $3, $4, 0, 0)
		ON CONFLICT (job_id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query, jobID, store.RunRunning, startedAt, assigned); err != nil {
		return fmt.Errorf("failed to upsert job start: %w", err)
	}
	return nil
}

// CompleteJob stores the final status and counters. A run whose start row is
// missing is inserted whole.
func (s *Store) CompleteJob(ctx context.Context, run store.JobRun) error {
	query := `
		UPDATE job_runs
		SET status = $2, finished_at = $3, assigned = $4, success = $5, failure = $6, error_message = $7
		WHERE job_id = $1;
	`
	res, err := s.pool.Exec(ctx, query,
		run.JobID, run.Status, run.FinishedAt, run.Assigned, run.Success, run.Failure, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if res.RowsAffected() > 0 {
		return nil
	}
	query = `
		INSERT INTO job_runs (job_id, status, started_at, finished_at, assigned, success, failure, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (job_id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query,
		run.JobID, run.Status, run.StartedAt, run.FinishedAt, run.Assigned, run.Success, run.Failure, run.ErrorMessage,
	); err != nil {
		return fmt.Errorf("failed to insert completed job: %w", err)
	}
	return nil
}
