// Package api hosts the HTTP server, middleware, and REST handlers for job
// submission and polling. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/jobs/batch and /v1/jobs/multi to submit jobs.
//   - GET /v1/jobs and /v1/jobs/{job_id} to poll job snapshots.
package api
