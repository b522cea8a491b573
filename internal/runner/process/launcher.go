// Package process runs each worker in its own OS process.
//
// The parent writes the assignment as one JSON document to the child's stdin
// and reads newline-delimited JSON messages back from its stdout. The child's
// stderr carries its logs. A child that dies without sending a terminal
// message surfaces as scrape.ErrWorkerCrash.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// Config describes how to start a worker process.
type Config struct {
	// Command defaults to the running executable.
	Command string
	Args    []string
	// Env is appended to the parent's environment.
	Env []string
	// Stderr receives the child's logs; defaults to os.Stderr.
	Stderr io.Writer
}

// Launcher implements scrape.Launcher by spawning processes.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs a Launcher.
func New(cfg Config, logger *zap.Logger) (*Launcher, error) {
	if cfg.Command == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker executable: %w", err)
		}
		cfg.Command = exe
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.Named("process_runner")}, nil
}

// Launch starts one worker process and relays its messages until it exits.
func (l *Launcher) Launch(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error {
	logger := l.logger.With(zap.String("job_id", a.JobID), zap.Int("worker", a.WorkerIndex))
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode assignment: %w", err)
	}

	cmd := exec.CommandContext(ctx, l.cfg.Command, l.cfg.Args...)
	cmd.Env = append(os.Environ(), l.cfg.Env...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = l.cfg.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start worker process: %w", scrape.ErrWorkerCrash, err)
	}
	logger.Debug("worker process started", zap.Int("pid", cmd.Process.Pid))

	relay(stdout, emit, logger)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: worker process: %w", scrape.ErrWorkerCrash, err)
	}
	return nil
}

// relay forwards decoded messages until EOF. Undecodable output ends the relay
// and the rest of the stream is discarded so the child never blocks on a full
// pipe.
func relay(r io.Reader, emit scrape.Emit, logger *zap.Logger) {
	dec := json.NewDecoder(r)
	for {
		var msg scrape.Message
		if err := dec.Decode(&msg); err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("worker output undecodable", zap.Error(err))
				_, _ = io.Copy(io.Discard, r)
			}
			return
		}
		emit(msg)
	}
}
