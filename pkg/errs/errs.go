// Package errs defines the error kinds shared across services so that
// callers can distinguish bad input, upstream model failures, missing
// project data and task state conflicts without string matching.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller mistakes: empty chunk sets, missing
	// outline sections, malformed requests. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrUpstream marks embedding/chat/formatter call failures.
	ErrUpstream = errors.New("upstream call failed")

	// ErrNotFound marks missing project data (e.g. no vector index yet).
	// Distinct from an empty search result.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict marks an operation refused because of current
	// state, e.g. starting a task that is already running.
	ErrStateConflict = errors.New("state conflict")
)

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps a failed upstream call, keeping the cause in the chain.
func Upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}

// NotFoundf builds a not-found error with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf builds a state-conflict error with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}
