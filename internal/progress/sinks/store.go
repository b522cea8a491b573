package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress"
	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/store"
)

// StoreSink writes job start and completion to the job-run audit table.
// Worker-level events are ignored.
type StoreSink struct {
	repo   store.JobRunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.JobRunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards job-level events to the repository and returns the first
// repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStart:
			if err := s.repo.UpsertJobStart(ctx, evt.JobID, evt.TS, evt.Assigned); err != nil {
				return fmt.Errorf("upsert job start: %w", err)
			}
		case progress.StageJobDone, progress.StageJobError:
			if err := s.repo.CompleteJob(ctx, toJobRun(evt)); err != nil {
				return fmt.Errorf("complete job: %w", err)
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

func toJobRun(evt progress.Event) store.JobRun {
	finished := evt.TS
	run := store.JobRun{
		JobID:      evt.JobID,
		Status:     store.RunCompleted,
		StartedAt:  evt.TS.Add(-evt.Dur),
		FinishedAt: &finished,
		Assigned:   evt.Assigned,
		Success:    evt.Success,
		Failure:    evt.Failure,
	}
	if evt.Stage == progress.StageJobError {
		run.Status = store.RunError
		if evt.Note != "" {
			note := evt.Note
			run.ErrorMessage = &note
		}
	}
	return run
}
