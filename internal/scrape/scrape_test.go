package scrape

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMaskIdentifier(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                     "",
		"jane.doe@example.com": "ja******@example.com",
		"ab@example.com":       "a***@example.com",
		"operator":             "op******",
		"x":                    "x***",
	}
	for in, want := range cases {
		require.Equal(t, want, MaskIdentifier(in), "input %q", in)
	}
	require.NotContains(t, Credential{Identifier: "secret.user@corp.io"}.Masked(), "secret.user")
}

func TestValidationErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validation(nil))

	err := fmt.Errorf("submit: %w", Validation([]string{"a", "b"}))
	require.ErrorIs(t, err, ErrValidation)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Equal(t, []string{"a", "b"}, vErr.Problems)
	require.Contains(t, err.Error(), "a; b")
}

func TestJobCloneSharesNoMemory(t *testing.T) {
	t.Parallel()

	done := time.Unix(10, 0)
	job := Job{
		ID:          "job-1",
		CompletedAt: &done,
		Workers:     []WorkerRecord{{Index: 0, State: WorkerDone}},
		Errors:      []JobFailure{{Worker: 0, Error: "boom"}},
	}
	clone := job.Clone()
	clone.Workers[0].State = WorkerError
	clone.Errors[0].Error = "changed"
	*clone.CompletedAt = time.Unix(20, 0)

	require.Equal(t, WorkerDone, job.Workers[0].State)
	require.Equal(t, "boom", job.Errors[0].Error)
	require.Equal(t, time.Unix(10, 0), *job.CompletedAt)

	empty := Job{}.Clone()
	require.NotNil(t, empty.Workers)
	require.NotNil(t, empty.Errors)
}

func TestStatesAndModes(t *testing.T) {
	t.Parallel()

	require.False(t, WorkerPending.Terminal())
	require.False(t, WorkerRunning.Terminal())
	require.True(t, WorkerDone.Terminal())
	require.True(t, WorkerError.Terminal())
	require.True(t, JobCompleted.Terminal())
	require.False(t, JobRunning.Terminal())

	mode, ok := ParseMode("")
	require.True(t, ok)
	require.Equal(t, ModeProfile, mode)
	_, ok = ParseMode("likes")
	require.False(t, ok)

	status, ok := ParseJobStatus("completed")
	require.True(t, ok)
	require.Equal(t, JobCompleted, status)

	require.True(t, DoneMessage(1, 2).Terminal())
	require.False(t, ProgressMessage(1, 2).Terminal())
	require.Equal(t, "worker failed", ErrorMessage(nil).Error)
}
