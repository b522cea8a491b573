package process

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

// Runner executes one assignment inside the child process.
type Runner interface {
	Run(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error
}

// Serve is the child side of the protocol: it reads one assignment from in,
// runs it, and writes every message to out as a JSON line. When the runner
// fails without reporting, Serve reports the failure itself so the parent
// always sees a terminal message from a live child.
func Serve(ctx context.Context, in io.Reader, out io.Writer, runner Runner) error {
	var a scrape.Assignment
	if err := json.NewDecoder(in).Decode(&a); err != nil {
		return fmt.Errorf("decode assignment: %w", err)
	}

	var (
		mu       sync.Mutex
		enc      = json.NewEncoder(out)
		terminal bool
		writeErr error
	)
	emit := func(msg scrape.Message) {
		mu.Lock()
		defer mu.Unlock()
		if terminal || writeErr != nil {
			return
		}
		if err := enc.Encode(msg); err != nil {
			writeErr = fmt.Errorf("write message: %w", err)
			return
		}
		terminal = msg.Terminal()
	}

	runErr := runner.Run(ctx, a, emit)
	mu.Lock()
	sent := terminal
	mu.Unlock()
	if !sent {
		if runErr != nil {
			emit(scrape.ErrorMessage(runErr))
		} else {
			emit(scrape.ErrorMessage(fmt.Errorf("%w: worker returned without a result", scrape.ErrWorkerCrash)))
		}
	}
	mu.Lock()
	defer mu.Unlock()
	return writeErr
}
