// Package scrape defines the core types shared by the orchestrator, the job
// registry, and the browser workers: credentials, work items, partitions, job
// snapshots, the worker message protocol, and the collaborator interfaces the
// orchestrator depends on.
package scrape
