// Package registry holds the in-process record of every submitted job.
//
// The registry is the single source of truth for job state. Writers are the
// per-job supervisors in the orchestrator; readers are the HTTP handlers.
// Every read returns a deep copy, so callers can never observe a half-applied
// update or mutate stored state. Jobs are retained for the life of the process.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

var (
	// ErrUnknownWorker is returned for a worker index outside the job.
	ErrUnknownWorker = errors.New("unknown worker")
	// ErrWorkerTerminal is returned when mutating a worker that already finished.
	ErrWorkerTerminal = errors.New("worker already terminal")
)

const defaultWorkerError = "worker failed"

// Filter narrows List results.
type Filter struct {
	Status *scrape.JobStatus
	Limit  int
	Offset int
}

// Registry is a mutex-guarded map of jobs.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*scrape.Job
	order []string
	idGen scrape.IDGenerator
	clock scrape.Clock
}

// New constructs a Registry.
func New(idGen scrape.IDGenerator, clock scrape.Clock) *Registry {
	return &Registry{
		jobs:  make(map[string]*scrape.Job),
		idGen: idGen,
		clock: clock,
	}
}

// Create records a new job with one pending worker per partition. The job
// starts in running status.
func (r *Registry) Create(partitions []scrape.Partition) (scrape.Job, error) {
	if len(partitions) == 0 {
		return scrape.Job{}, fmt.Errorf("create job: no partitions: %w", scrape.ErrInvalidInput)
	}
	id, err := r.idGen.NewID()
	if err != nil {
		return scrape.Job{}, fmt.Errorf("generate job id: %w", err)
	}

	job := &scrape.Job{
		ID:        id,
		Status:    scrape.JobRunning,
		CreatedAt: r.clock.Now(),
		Workers:   make([]scrape.WorkerRecord, len(partitions)),
		Errors:    []scrape.JobFailure{},
	}
	for i, p := range partitions {
		job.Workers[i] = scrape.WorkerRecord{
			Index:      i,
			Credential: p.Credential.Masked(),
			Assigned:   len(p.Items),
			State:      scrape.WorkerPending,
		}
	}
	recomputeTotals(job)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[id]; exists {
		return scrape.Job{}, fmt.Errorf("create job %s: duplicate id", id)
	}
	r.jobs[id] = job
	r.order = append(r.order, id)
	return job.Clone(), nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(jobID string) (scrape.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return scrape.Job{}, fmt.Errorf("job %s: %w", jobID, scrape.ErrNotFound)
	}
	return job.Clone(), nil
}

// List returns snapshots newest first (by submission order).
func (r *Registry) List(filter Filter) []scrape.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scrape.Job, 0)
	skipped := 0
	for i := len(r.order) - 1; i >= 0; i-- {
		job := r.jobs[r.order[i]]
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, job.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// MarkRunning moves a pending worker to running.
func (r *Registry) MarkRunning(jobID string, idx int) (scrape.Job, error) {
	return r.mutate(jobID, idx, func(_ *scrape.Job, rec *scrape.WorkerRecord) error {
		if rec.State != scrape.WorkerPending {
			return nil
		}
		rec.State = scrape.WorkerRunning
		return nil
	})
}

// ApplyProgress overwrites a worker's cumulative counters. A pending worker is
// implicitly running once it reports.
func (r *Registry) ApplyProgress(jobID string, idx, success, failure int) (scrape.Job, error) {
	return r.mutate(jobID, idx, func(_ *scrape.Job, rec *scrape.WorkerRecord) error {
		rec.Success = success
		rec.Failure = failure
		if rec.State == scrape.WorkerPending {
			rec.State = scrape.WorkerRunning
		}
		return nil
	})
}

// ApplyTerminal sets a worker's final state. An error outcome appends one job
// error entry. When this was the last running worker the job status is
// decided and completedAt is stamped.
func (r *Registry) ApplyTerminal(jobID string, idx int, outcome scrape.WorkerState, errText string) (scrape.Job, error) {
	if !outcome.Terminal() {
		return scrape.Job{}, fmt.Errorf("apply terminal %q: %w", outcome, scrape.ErrInvalidInput)
	}
	return r.mutate(jobID, idx, func(job *scrape.Job, rec *scrape.WorkerRecord) error {
		rec.State = outcome
		if outcome == scrape.WorkerError {
			if errText == "" {
				errText = defaultWorkerError
			}
			job.Errors = append(job.Errors, scrape.JobFailure{
				Worker:     rec.Index,
				Credential: rec.Credential,
				Error:      errText,
			})
		}
		r.maybeFinish(job)
		return nil
	})
}

func (r *Registry) mutate(
	jobID string,
	idx int,
	apply func(job *scrape.Job, rec *scrape.WorkerRecord) error,
) (scrape.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return scrape.Job{}, fmt.Errorf("job %s: %w", jobID, scrape.ErrNotFound)
	}
	if idx < 0 || idx >= len(job.Workers) {
		return scrape.Job{}, fmt.Errorf("job %s worker %d: %w", jobID, idx, ErrUnknownWorker)
	}
	rec := &job.Workers[idx]
	if rec.State.Terminal() {
		return job.Clone(), fmt.Errorf("job %s worker %d: %w", jobID, idx, ErrWorkerTerminal)
	}
	if err := apply(job, rec); err != nil {
		return scrape.Job{}, err
	}
	recomputeTotals(job)
	return job.Clone(), nil
}

func (r *Registry) maybeFinish(job *scrape.Job) {
	if job.Status.Terminal() {
		return
	}
	failed := false
	for _, w := range job.Workers {
		if !w.State.Terminal() {
			return
		}
		if w.State == scrape.WorkerError {
			failed = true
		}
	}
	job.Status = scrape.JobCompleted
	if failed {
		job.Status = scrape.JobError
	}
	job.CompletedAt = pointerTime(r.clock.Now())
}

func recomputeTotals(job *scrape.Job) {
	var totals scrape.Totals
	for _, w := range job.Workers {
		totals.Assigned += w.Assigned
		totals.Success += w.Success
		totals.Failure += w.Failure
	}
	job.Totals = totals
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
