// Package apperr defines the error taxonomy the command surface and room
// runtime use to tell callers how to react: retry, reject with a 4xx-style
// response, log and alert, or surface a state conflict. It wraps errors
// the way the rest of this codebase does — fmt.Errorf with %w — rather
// than introducing a parallel error model; Kind is additive metadata.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller should respond to it.
type Kind int

const (
	// Unknown is the zero value; Wrap and New never produce it.
	Unknown Kind = iota

	// Unauthorized means the caller's identity could not be established
	// or verified (missing/invalid session).
	Unauthorized

	// ForbiddenPolicy means the caller is known but not permitted to
	// perform the requested action (not the room owner, unverified
	// email, an owner kicking themselves, etc).
	ForbiddenPolicy

	// ConflictState means the request is individually well-formed but
	// cannot be applied given the current state (room already started,
	// seat already taken).
	ConflictState

	// NotFound means the referenced room, player, or resource does not
	// exist.
	NotFound

	// InvalidInput means the request is malformed independent of state
	// (bad JSON, missing required field, out-of-range config value).
	InvalidInput

	// InvalidAction means the request is well-formed but is not a legal
	// poker action given the current betting state (raising under the
	// minimum, acting with insufficient chips).
	InvalidAction

	// StoreFailure means the persistence layer returned an error
	// unrelated to the caller's request (I/O failure, corrupt record).
	StoreFailure

	// Internal means an invariant the engine itself is responsible for
	// was violated; it indicates a bug, not caller error.
	Internal
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case ForbiddenPolicy:
		return "forbidden_policy"
	case ConflictState:
		return "conflict_state"
	case NotFound:
		return "not_found"
	case InvalidInput:
		return "invalid_input"
	case InvalidAction:
		return "invalid_action"
	case StoreFailure:
		return "store_failure"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is an apperr-classified error. It always carries a Kind and a
// human-readable Message, and may wrap an underlying cause.
type Error struct {
	Kind    Kind
	Code    string // short machine-readable code, e.g. "room_full"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with no wrapped cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a Kind and message to an existing error, preserving it
// for errors.Unwrap/errors.Is/errors.As.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and Unknown otherwise.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Unknown
}

// Is reports whether err (or something it wraps) is an *Error with the
// given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
