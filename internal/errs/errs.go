// Package errs defines the error kinds surfaced by the reconciliation engine.
//
// Callers match on kinds with errors.Is:
//
//	if errors.Is(err, errs.ErrVerificationContradiction) { ... }
//
// Lost races, already-completed payments and held locks are not errors and never
// appear here; they are reported as outcome values by the packages that produce them.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned when a webhook signature is missing or invalid.
	ErrAuthentication = errors.New("authentication failed")

	// ErrMalformedInput is returned when a request body cannot be parsed.
	ErrMalformedInput = errors.New("malformed input")

	// ErrResolution is returned when no local payment can be derived from an event.
	ErrResolution = errors.New("payment could not be resolved")

	// ErrVerificationContradiction is returned when the processor affirmatively
	// reports a payment as not completed.
	ErrVerificationContradiction = errors.New("processor contradicts completion")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when a record is not in a state that allows the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnavailable is returned when a required collaborator is not configured or unreachable.
	ErrUnavailable = errors.New("unavailable")
)

// Error carries the operation that failed alongside its kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error or matches the wrapped error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// New builds an Error of the given kind with a formatted message.
func New(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an Error of the given kind around err.
func Wrap(op string, kind error, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}
