// Package orchestrator accepts batch scrape submissions, fans each job out to
// one worker per credential, and supervises the workers until the job is
// terminal.
//
// Every job gets a single supervisor goroutine. Workers never touch the
// registry; their messages are funneled through the supervisor, which applies
// them in arrival order. Messages from one worker therefore reach the registry
// in the order the worker emitted them, and registry mutations for one job
// never race each other.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/distributor"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/registry"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

const defaultEventBuffer = 64

// Request is one batch submission.
type Request struct {
	Credentials []scrape.Credential
	Targets     []scrape.WorkItem
	Options     scrape.Options
}

// Receipt is returned as soon as the job is accepted.
type Receipt struct {
	JobID         string `json:"jobId"`
	JobCount      int    `json:"jobCount"`
	TotalAssigned int    `json:"totalAssigned"`
}

// Config tunes the orchestrator.
type Config struct {
	// BaseContext is handed to every launched worker. Cancelling it is the
	// only way to stop running workers (process shutdown).
	BaseContext context.Context
	// EventBuffer sizes the per-job message channel.
	EventBuffer int
}

// Orchestrator owns the registry writes for every job it launches.
type Orchestrator struct {
	registry *registry.Registry
	launcher scrape.Launcher
	emitter  progress.Emitter
	clock    scrape.Clock
	cfg      Config
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// New constructs an Orchestrator.
func New(
	reg *registry.Registry,
	launcher scrape.Launcher,
	emitter progress.Emitter,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		registry: reg,
		launcher: launcher,
		emitter:  emitter,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
	}
}

// Validate reports every problem with a request at once.
func Validate(req Request) error {
	var problems []string
	if len(req.Credentials) == 0 {
		problems = append(problems, "at least one credential is required")
	}
	seen := make(map[string]struct{}, len(req.Credentials))
	for i, cred := range req.Credentials {
		id := strings.TrimSpace(cred.Identifier)
		if id == "" {
			problems = append(problems, fmt.Sprintf("credential %d: identifier is required", i))
			continue
		}
		if _, dup := seen[id]; dup {
			problems = append(problems, fmt.Sprintf("duplicate credential %s", id))
		}
		seen[id] = struct{}{}
		if cred.Secret == "" {
			problems = append(problems, fmt.Sprintf("credential %s: secret is required", id))
		}
	}
	if len(distributor.Dedupe(req.Targets)) == 0 {
		problems = append(problems, "at least one target is required")
	}
	if req.Options.Mode != "" {
		if _, ok := scrape.ParseMode(string(req.Options.Mode)); !ok {
			problems = append(problems, fmt.Sprintf("unknown mode %q", req.Options.Mode))
		}
	}
	return scrape.Validation(problems)
}

// Submit validates and partitions the request, records the job, launches the
// workers, and returns without waiting for them.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("submit: %w", err)
	}
	if err := Validate(req); err != nil {
		return Receipt{}, err
	}
	if req.Options.Mode == "" {
		req.Options.Mode = scrape.ModeProfile
	}

	creds := make([]scrape.Credential, len(req.Credentials))
	for i, cred := range req.Credentials {
		creds[i] = scrape.Credential{Identifier: strings.TrimSpace(cred.Identifier), Secret: cred.Secret}
	}
	partitions, err := distributor.Partition(distributor.Dedupe(req.Targets), creds)
	if err != nil {
		return Receipt{}, fmt.Errorf("partition targets: %w", err)
	}
	job, err := o.registry.Create(partitions)
	if err != nil {
		return Receipt{}, fmt.Errorf("register job: %w", err)
	}

	o.emit(job, progress.StageJobStart, -1, "")
	o.logger.Info("job accepted",
		zap.String("job_id", job.ID),
		zap.Int("workers", len(partitions)),
		zap.Int("assigned", job.Totals.Assigned),
		zap.String("mode", string(req.Options.Mode)))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.supervise(job, partitions, req.Options)
	}()

	return Receipt{
		JobID:         job.ID,
		JobCount:      len(partitions),
		TotalAssigned: job.Totals.Assigned,
	}, nil
}

// Wait blocks until every supervisor has returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// envelope is what a worker goroutine sends to its job's supervisor. The exit
// envelope is always the last one a worker sends.
type envelope struct {
	worker  int
	msg     scrape.Message
	exited  bool
	exitErr error
}

func (o *Orchestrator) supervise(job scrape.Job, partitions []scrape.Partition, opts scrape.Options) {
	logger := o.logger.With(zap.String("job_id", job.ID))
	inbox := make(chan envelope, o.cfg.EventBuffer)

	for i, p := range partitions {
		if snap, err := o.registry.MarkRunning(job.ID, i); err != nil {
			logger.Error("mark worker running failed", zap.Int("worker", i), zap.Error(err))
		} else {
			o.emit(snap, progress.StageWorkerStart, i, "")
		}
		assignment := scrape.Assignment{
			JobID:       job.ID,
			WorkerIndex: i,
			Credential:  p.Credential,
			Items:       p.Items,
			Options:     opts,
		}
		go o.runWorker(assignment, inbox)
	}

	sv := &supervisor{
		o:        o,
		jobID:    job.ID,
		logger:   logger,
		terminal: make([]bool, len(partitions)),
	}
	for remaining := len(partitions); remaining > 0; {
		env := <-inbox
		if env.exited {
			remaining--
			sv.handleExit(env)
			continue
		}
		sv.handleMessage(env.worker, env.msg)
	}
	logger.Debug("supervisor finished")
}

func (o *Orchestrator) runWorker(a scrape.Assignment, inbox chan<- envelope) {
	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: launcher panic: %v", scrape.ErrWorkerCrash, rec)
		}
		inbox <- envelope{worker: a.WorkerIndex, exited: true, exitErr: err}
	}()
	err = o.launcher.Launch(o.cfg.BaseContext, a, func(msg scrape.Message) {
		inbox <- envelope{worker: a.WorkerIndex, msg: msg}
	})
}

// supervisor is the per-job state only the supervise goroutine touches.
type supervisor struct {
	o        *Orchestrator
	jobID    string
	logger   *zap.Logger
	terminal []bool
}

func (s *supervisor) handleMessage(idx int, msg scrape.Message) {
	logger := s.logger.With(zap.Int("worker", idx))
	if idx < 0 || idx >= len(s.terminal) {
		logger.Warn("message from unknown worker dropped", zap.String("type", string(msg.Type)))
		return
	}
	if s.terminal[idx] {
		logger.Debug("message after terminal ignored", zap.String("type", string(msg.Type)))
		return
	}

	switch msg.Type {
	case scrape.MessageProgress:
		snap, err := s.o.registry.ApplyProgress(s.jobID, idx, msg.Success, msg.Failure)
		if err != nil {
			logger.Warn("apply progress failed", zap.Error(err))
			return
		}
		s.o.emit(snap, progress.StageWorkerProgress, idx, "")
	case scrape.MessageDone:
		if _, err := s.o.registry.ApplyProgress(s.jobID, idx, msg.Success, msg.Failure); err != nil {
			logger.Warn("apply final counters failed", zap.Error(err))
		}
		s.finish(idx, scrape.WorkerDone, "")
	case scrape.MessageError:
		s.finish(idx, scrape.WorkerError, msg.Error)
	default:
		logger.Warn("unknown worker message dropped", zap.String("type", string(msg.Type)))
	}
}

// handleExit synthesizes a terminal outcome for a worker that exited without
// sending one, keeping its last reported counters.
func (s *supervisor) handleExit(env envelope) {
	logger := s.logger.With(zap.Int("worker", env.worker))
	if env.exitErr != nil {
		logger.Warn("worker exited with error", zap.Error(env.exitErr))
	}
	if env.worker < 0 || env.worker >= len(s.terminal) || s.terminal[env.worker] {
		return
	}
	if env.exitErr != nil {
		s.finish(env.worker, scrape.WorkerError, exitMessage(env.exitErr))
		return
	}
	logger.Warn("worker exited cleanly without a terminal message")
	s.finish(env.worker, scrape.WorkerDone, "")
}

func (s *supervisor) finish(idx int, outcome scrape.WorkerState, errText string) {
	s.terminal[idx] = true
	snap, err := s.o.registry.ApplyTerminal(s.jobID, idx, outcome, errText)
	if err != nil {
		s.logger.Error("apply terminal failed", zap.Int("worker", idx), zap.Error(err))
		return
	}
	stage := progress.StageWorkerDone
	if outcome == scrape.WorkerError {
		stage = progress.StageWorkerError
	}
	s.o.emit(snap, stage, idx, errText)

	if !snap.Status.Terminal() {
		return
	}
	jobStage := progress.StageJobDone
	if snap.Status == scrape.JobError {
		jobStage = progress.StageJobError
	}
	s.o.emit(snap, jobStage, -1, joinErrors(snap.Errors))
	s.logger.Info("job finished",
		zap.String("status", string(snap.Status)),
		zap.Int("success", snap.Totals.Success),
		zap.Int("failure", snap.Totals.Failure),
		zap.Int("errors", len(snap.Errors)))
}

func (o *Orchestrator) emit(job scrape.Job, stage progress.Stage, idx int, note string) {
	evt := progress.Event{
		JobID:    job.ID,
		TS:       o.clock.Now(),
		Stage:    stage,
		Assigned: job.Totals.Assigned,
		Success:  job.Totals.Success,
		Failure:  job.Totals.Failure,
		Note:     note,
	}
	if idx >= 0 && idx < len(job.Workers) {
		rec := job.Workers[idx]
		evt.Worker = idx
		evt.Credential = rec.Credential
		evt.Assigned = rec.Assigned
		evt.Success = rec.Success
		evt.Failure = rec.Failure
	}
	if job.CompletedAt != nil && evt.JobLevel() {
		evt.TS = *job.CompletedAt
		evt.Dur = job.CompletedAt.Sub(job.CreatedAt)
	}
	o.emitter.Emit(evt)
}

func exitMessage(err error) string {
	if errors.Is(err, scrape.ErrWorkerCrash) {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", scrape.ErrWorkerCrash, err)
}

func joinErrors(errs []scrape.JobFailure) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("worker %d (%s): %s", e.Worker, e.Credential, e.Error))
	}
	return strings.Join(parts, "; ")
}
