package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress"
)

func TestPrometheusSinkRecordsLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{JobID: "job-1", TS: now, Stage: progress.StageJobStart, Assigned: 4},
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerStart, Worker: 0},
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerStart, Worker: 1},
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerProgress, Worker: 0, Success: 1},
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerProgress, Worker: 0, Success: 1, Failure: 1},
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerDone, Worker: 0, Success: 1, Failure: 1},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.workersRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.workersDone.WithLabelValues("done")))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerProgress, Worker: 1, Success: 2},
		{JobID: "job-1", TS: now, Stage: progress.StageWorkerError, Worker: 1, Success: 2, Note: "authentication failed"},
		{JobID: "job-1", TS: now, Stage: progress.StageJobError, Dur: 90 * time.Second, Success: 3, Failure: 1},
	}))

	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.workersRunning))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.items.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.workersDone.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsFinished.WithLabelValues("error")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.jobRuntime, "scrape_job_runtime_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
