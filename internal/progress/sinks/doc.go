// Package sinks implements concrete progress consumers: structured logging,
// Prometheus collectors, and the job-run audit store.
package sinks
