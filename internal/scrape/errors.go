package scrape

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput is returned for structurally unusable input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a job or stored entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAuthentication means the worker could not log in. Fatal to that worker only.
	ErrAuthentication = errors.New("authentication failed")
	// ErrItemExtraction means one work item failed; the worker continues.
	ErrItemExtraction = errors.New("item extraction failed")
	// ErrWorkerCrash means a worker exited abnormally.
	ErrWorkerCrash = errors.New("worker crashed")
	// ErrTimeout means an operation exceeded its bound.
	ErrTimeout = errors.New("operation timed out")
)

// ValidationError lists every problem found in a submission.
type ValidationError struct {
	Problems []string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// Unwrap lets callers match with errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validation returns nil when problems is empty, otherwise a *ValidationError.
func Validation(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: append([]string(nil), problems...)}
}
