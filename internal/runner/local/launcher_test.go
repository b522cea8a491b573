package local

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/scrape"
)

type runnerFunc func(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error

func (f runnerFunc) Run(ctx context.Context, a scrape.Assignment, emit scrape.Emit) error {
	return f(ctx, a, emit)
}

func TestLaunchForwardsMessagesAndErrors(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("login rejected")
	var got []scrape.Message
	l := New(runnerFunc(func(_ context.Context, a scrape.Assignment, emit scrape.Emit) error {
		emit(scrape.ProgressMessage(len(a.Items), 0))
		emit(scrape.ErrorMessage(wantErr))
		return wantErr
	}), zap.NewNop())

	err := l.Launch(context.Background(), scrape.Assignment{Items: []scrape.WorkItem{"a", "b"}}, func(m scrape.Message) {
		got = append(got, m)
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, []scrape.Message{scrape.ProgressMessage(2, 0), scrape.ErrorMessage(wantErr)}, got)
}

func TestLaunchRecoversPanics(t *testing.T) {
	t.Parallel()

	l := New(runnerFunc(func(context.Context, scrape.Assignment, scrape.Emit) error {
		panic("nil session")
	}), nil)

	err := l.Launch(context.Background(), scrape.Assignment{JobID: "job-1"}, func(scrape.Message) {})
	require.ErrorIs(t, err, scrape.ErrWorkerCrash)
	require.Contains(t, err.Error(), "nil session")
}
