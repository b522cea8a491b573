package scrape

import (
	"time"
)

// WorkItem is one addressable unit of work, normally a profile or post URL.
type WorkItem string

// Credential is a login pair borrowed by exactly one worker for the lifetime of a job.
type Credential struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

// Masked returns the identifier in a form that is safe to log and expose.
func (c Credential) Masked() string {
	return MaskIdentifier(c.Identifier)
}

// Partition is the ordered slice of work handed to one credential.
type Partition struct {
	Credential Credential
	Items      []WorkItem
}

// WorkerState is the lifecycle state of one worker inside a job.
type WorkerState string

const (
	// WorkerPending means the record exists but the worker has not been launched.
	WorkerPending WorkerState = "pending"
	// WorkerRunning means the worker is launched and reporting progress.
	WorkerRunning WorkerState = "running"
	// WorkerDone means the worker finished its partition.
	WorkerDone WorkerState = "done"
	// WorkerError means the worker stopped on an unrecoverable failure.
	WorkerError WorkerState = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s WorkerState) Terminal() bool {
	return s == WorkerDone || s == WorkerError
}

// JobStatus is the aggregate status of a job.
type JobStatus string

const (
	// JobPending is reserved for jobs that have been recorded but not launched.
	JobPending JobStatus = "pending"
	// JobRunning means at least one worker has not reached a terminal state.
	JobRunning JobStatus = "running"
	// JobCompleted means every worker finished without a fatal error.
	JobCompleted JobStatus = "completed"
	// JobError means every worker is terminal and at least one failed.
	JobError JobStatus = "error"
)

// Terminal reports whether the job status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// ParseJobStatus validates a textual status.
func ParseJobStatus(raw string) (JobStatus, bool) {
	switch status := JobStatus(raw); status {
	case JobPending, JobRunning, JobCompleted, JobError:
		return status, true
	default:
		return "", false
	}
}

// WorkerRecord tracks one worker inside a job.
type WorkerRecord struct {
	Index      int         `json:"index"`
	Credential string      `json:"credential"`
	Assigned   int         `json:"assigned"`
	Success    int         `json:"success"`
	Failure    int         `json:"failure"`
	State      WorkerState `json:"state"`
}

// Totals aggregates worker counters. Always derived, never stored independently.
type Totals struct {
	Assigned int `json:"assigned"`
	Success  int `json:"success"`
	Failure  int `json:"failure"`
}

// JobFailure records the fatal failure of one worker.
type JobFailure struct {
	Worker     int    `json:"worker"`
	Credential string `json:"credential"`
	Error      string `json:"error"`
}

// Job is the aggregate handle returned to callers.
type Job struct {
	ID          string         `json:"jobId"`
	Status      JobStatus      `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt"`
	Workers     []WorkerRecord `json:"workers"`
	Totals      Totals         `json:"totals"`
	Errors      []JobFailure   `json:"errors"`
}

// Clone returns a deep copy that shares no memory with the receiver.
func (j Job) Clone() Job {
	out := j
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	out.Workers = append([]WorkerRecord(nil), j.Workers...)
	out.Errors = append([]JobFailure(nil), j.Errors...)
	if out.Workers == nil {
		out.Workers = []WorkerRecord{}
	}
	if out.Errors == nil {
		out.Errors = []JobFailure{}
	}
	return out
}

// Mode selects how a worker interprets its work items.
type Mode string

const (
	// ModeProfile treats each item as a profile page and extracts one record.
	ModeProfile Mode = "profile"
	// ModeReactions treats each item as a post and harvests everyone who reacted.
	ModeReactions Mode = "reactions"
)

// ParseMode validates a textual mode. Empty input maps to ModeProfile.
func ParseMode(raw string) (Mode, bool) {
	switch Mode(raw) {
	case "", ModeProfile:
		return ModeProfile, true
	case ModeReactions:
		return ModeReactions, true
	default:
		return "", false
	}
}

// Options are per-job knobs forwarded to every worker.
type Options struct {
	Mode         Mode `json:"mode"`
	Headless     bool `json:"headless"`
	WriteJSON    bool `json:"writeJson"`
	MinutePacing bool `json:"minutePacing"`
}

// Assignment is everything a worker needs to run its partition. It is the
// payload handed to subprocess workers on stdin.
type Assignment struct {
	JobID       string     `json:"jobId"`
	WorkerIndex int        `json:"workerIndex"`
	Credential  Credential `json:"credential"`
	Items       []WorkItem `json:"items"`
	Options     Options    `json:"options"`
}

// ExtractedRecord is one structured result produced while processing an item.
type ExtractedRecord struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	Headline    string    `json:"headline,omitempty"`
	Location    string    `json:"location,omitempty"`
	Text        string    `json:"text,omitempty"`
	SourceURL   string    `json:"sourceUrl"`
	JobID       string    `json:"jobId,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// TargetFilter narrows the candidate targets returned by a TargetStore.
type TargetFilter struct {
	From time.Time
	To   time.Time
	Tags []string
}
