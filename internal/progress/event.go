package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the lifecycle milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart       Stage = "JOB_START"
	StageWorkerStart    Stage = "WORKER_START"
	StageWorkerProgress Stage = "WORKER_PROGRESS"
	StageWorkerDone     Stage = "WORKER_DONE"
	StageWorkerError    Stage = "WORKER_ERROR"
	StageJobDone        Stage = "JOB_DONE"
	StageJobError       Stage = "JOB_ERROR"
)

// Event is one milestone of a job or one of its workers. Counters are the
// cumulative values at the time of the event.
type Event struct {
	JobID string
	TS    time.Time
	Stage Stage
	// Worker is the worker index; ignored for job-level stages.
	Worker int
	// Credential is the masked identifier of the worker's credential.
	Credential string
	Assigned   int
	Success    int
	Failure    int
	// Dur is the job wall time on JOB_DONE and JOB_ERROR.
	Dur time.Duration
	// Note carries error text for the failure stages.
	Note string
}

// JobLevel reports whether the event describes the job as a whole.
func (e Event) JobLevel() bool {
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError:
		return true
	default:
		return false
	}
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == "" {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError:
	case StageWorkerStart, StageWorkerProgress, StageWorkerDone, StageWorkerError:
		if e.Worker < 0 {
			return errors.New("worker index must be >= 0")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Success < 0 || e.Failure < 0 || e.Assigned < 0 {
		return errors.New("counters must be >= 0")
	}
	return nil
}
