// Package ferrors implements the error taxonomy of spec §7: transport,
// validation, state-machine, not-found, auth, and internal failures,
// each carrying an integer code an HTTP layer can map to a status
// without inspecting message text.
package ferrors

import "fmt"

// Code groups error kinds so callers (mainly pkg/api) can decide the
// HTTP status without string-matching messages.
type Code int

const (
	// CodeTransport covers database connectivity, HTTP and subprocess
	// exec failures. Retried with backoff when the caller runs
	// in-cluster; surfaced immediately to the CLI.
	CodeTransport Code = 5001
	// CodeValidation covers a malformed pipeline spec, unsupported
	// glob, or bad URI. Never retried.
	CodeValidation Code = 4001
	// CodeStateMachine covers an operation that violates the Job/Datum
	// state machine (e.g. retrying a non-error job).
	CodeStateMachine Code = 4002
	// CodeNotFound covers a missing Job/Datum by id or name.
	CodeNotFound Code = 4004
	// CodeAuth covers a failed or missing Basic-auth credential.
	CodeAuth Code = 4003
	// CodeInternal is the catch-all for errors the caller can't
	// usefully act on beyond retrying.
	CodeInternal Code = 5000
)

// Error wraps an underlying cause with a Code the API layer maps to an
// HTTP status, and a human message safe to return in a response body.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New starts a builder for an Error with no code set yet.
func New() *Error {
	return &Error{}
}

func (e *Error) WithCode(c Code) *Error {
	e.Code = c
	return e
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) WithMessagef(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// Validation is a shorthand for the common case of a validation failure.
func Validation(format string, args ...interface{}) *Error {
	return New().WithCode(CodeValidation).WithMessagef(format, args...)
}

// StateMachine is a shorthand for a state-machine-violation failure.
func StateMachine(format string, args ...interface{}) *Error {
	return New().WithCode(CodeStateMachine).WithMessagef(format, args...)
}

// NotFound is a shorthand for a missing-resource failure.
func NotFound(format string, args ...interface{}) *Error {
	return New().WithCode(CodeNotFound).WithMessagef(format, args...)
}

// Transport wraps a lower-level transport error (DB, HTTP, exec).
func Transport(err error) *Error {
	return New().WithCode(CodeTransport).WithMessage("transport error").WithError(err)
}

// Internal wraps an unexpected internal error.
func Internal(err error) *Error {
	return New().WithCode(CodeInternal).WithMessage("internal error").WithError(err)
}

// CodeOf extracts the Code from err if it (or something it wraps) is an
// *Error, defaulting to CodeInternal otherwise.
func CodeOf(err error) Code {
	var fe *Error
	if AsError(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// AsError is a small helper mirroring errors.As without importing the
// stdlib package name twice at call sites that already alias "errors".
func AsError(err error, target **Error) bool {
	for err != nil {
		if fe, ok := err.(*Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
