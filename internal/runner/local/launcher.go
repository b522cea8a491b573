// Package local runs workers as goroutines inside the orchestrator process.
package local

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// Runner executes one assignment. *worker.Worker satisfies it.
type Runner interface {
	Run(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error
}

// Launcher implements scrape.Launcher in-process.
type Launcher struct {
	runner Runner
	logger *zap.Logger
}

// New constructs a Launcher.
func New(runner Runner, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{runner: runner, logger: logger.Named("local_runner")}
}

// Launch runs the assignment on the calling goroutine. A panic inside the
// worker becomes scrape.ErrWorkerCrash rather than taking the process down.
func (l *Launcher) Launch(ctx context.Context, a scrape.Assignment, emit scrape.Emit) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("worker panicked",
				zap.String("job_id", a.JobID),
				zap.Int("worker", a.WorkerIndex),
				zap.Any("panic", rec))
			err = fmt.Errorf("%w: %v", scrape.ErrWorkerCrash, rec)
		}
	}()
	l.logger.Debug("launching worker",
		zap.String("job_id", a.JobID),
		zap.Int("worker", a.WorkerIndex),
		zap.String("credential", a.Credential.Masked()),
		zap.Int("items", len(a.Items)))
	return l.runner.Run(ctx, a, emit)
}
