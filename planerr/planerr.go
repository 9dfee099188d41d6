// Package planerr provides the structured error taxonomy used across the
// planner.
//
// Error is the base type that captures the failure kind, the component and
// operation that produced it, and an optional cause. It implements the error
// and Unwrap interfaces for seamless integration with Go's errors package.
//
// Usage:
//
//	err := planerr.New(planerr.KindEngine, "engine", "Generate", cause)
//	if planerr.IsKind(err, planerr.KindEngine) { ... }
package planerr

import (
	"errors"
	"fmt"
)

// Kind classifies a planner failure and determines how the orchestrator
// reacts to it: engine and schema failures are retried within a stage,
// everything else is fatal to the invocation.
type Kind string

// Failure kinds.
const (
	// KindInput marks an empty or unparseable request.
	KindInput Kind = "input_error"
	// KindEngine marks a reasoning-engine failure: timeout, non-conforming
	// response, or exhausted fixture script.
	KindEngine Kind = "engine_error"
	// KindSchema marks a plan or question list that failed structural
	// validation. Treated as an engine failure for retry purposes.
	KindSchema Kind = "schema_violation"
	// KindStateConflict marks an invalid transition, unknown workflow id,
	// resume of a terminal workflow, or a store compare-and-swap mismatch.
	KindStateConflict Kind = "state_conflict"
	// KindRevisionLimit marks a critic loop that exceeded max revisions.
	KindRevisionLimit Kind = "revision_limit_exceeded"
	// KindStore marks a workflow-store I/O failure. The only kind allowed
	// to surface as a non-zero process exit.
	KindStore Kind = "store_error"
)

// Error is a structured planner error.
type Error struct {
	// Kind classifies the failure for retry and reporting policy.
	Kind Kind

	// Component identifies the package that produced the error
	// (e.g. "orchestrator", "engine", "store", "bridge").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// Cause is the underlying error, if any.
	Cause error
}

// New creates an Error with the given kind, component, operation, and cause.
func New(kind Kind, component, operation string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Cause: cause}
}

// Newf creates an Error whose cause is a formatted message.
func Newf(kind Kind, component, operation, format string, args ...any) *Error {
	return New(kind, component, operation, fmt.Errorf(format, args...))
}

// Error returns a human-readable representation of the error.
func (e *Error) Error() string {
	base := fmt.Sprintf("[%s] %s: %s", e.Component, e.Operation, e.Kind)
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind carried by err, or KindStore if err is not a
// planner error (an unclassified failure is treated as infrastructure).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindStore
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// Retryable reports whether the failure may be retried within the same
// stage. Only engine failures and schema violations are retryable.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindEngine || k == KindSchema
}

// Reason returns a short human-readable reason string for err, suitable for
// the workflow error descriptor.
func Reason(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Cause != nil {
		return pe.Cause.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
