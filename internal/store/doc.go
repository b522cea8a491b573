// Package store declares the persistence contract for the job-run audit trail.
// Implementations live in other packages; this package must not import
// database drivers or concrete clients.
package store
