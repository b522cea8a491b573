package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ashishsingh-beep/dreamforce-bot-playwright/internal/progress"
)

// LogSink writes one structured line per event. Per-item progress is logged at
// debug so production logs only carry lifecycle transitions.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("assigned", evt.Assigned),
			zap.Int("success", evt.Success),
			zap.Int("failure", evt.Failure),
		}
		if !evt.JobLevel() {
			fields = append(fields, zap.Int("worker", evt.Worker), zap.String("credential", evt.Credential))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Log(levelFor(evt.Stage), "progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func levelFor(stage progress.Stage) zapcore.Level {
	switch stage {
	case progress.StageWorkerProgress:
		return zapcore.DebugLevel
	case progress.StageWorkerError, progress.StageJobError:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
