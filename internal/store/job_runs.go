package store

import (
	"context"
	"time"
)

// JobRunStatus mirrors the job_runs status column.
type JobRunStatus string

// Job run statuses persisted in job_runs.status.
const (
	RunRunning   JobRunStatus = "running"
	RunCompleted JobRunStatus = "completed"
	RunError     JobRunStatus = "error"
)

// JobRun is one row of the job_runs audit table. The in-memory registry stays
// authoritative while the process lives; job_runs outlives restarts.
type JobRun struct {
	JobID      string
	Status     JobRunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Assigned   int
	Success    int
	Failure    int
	// ErrorMessage holds the joined worker errors for failed runs.
	ErrorMessage *string
}

// JobRunRepository records the start and end of every job.
type JobRunRepository interface {
	// UpsertJobStart inserts the run idempotently.
	UpsertJobStart(ctx context.Context, jobID string, startedAt time.Time, assigned int) error
	// CompleteJob stores the final status and counters.
	CompleteJob(ctx context.Context, run JobRun) error
}
