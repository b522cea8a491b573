// Package progress carries orchestration lifecycle events from the job
// supervisors to pluggable sinks. Emitting never blocks a supervisor: events
// are buffered, batched on a background goroutine, and fanned out to sinks
// such as structured logs, Prometheus collectors, or the job-run audit table.
package progress
