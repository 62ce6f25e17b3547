// Package apperr carries the error taxonomy shared by services, handlers,
// and the worker. The kind of an error decides both the HTTP status it maps
// to and whether a failed task attempt is worth retrying.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown is any error that never went through this package.
	// The worker treats it like KindSystem: retryable.
	KindUnknown Kind = iota

	// KindNotFound: a referenced entity does not exist. Retrying cannot
	// make it appear, so task handlers fail fast on it.
	KindNotFound

	// KindValidation: the input or configuration is wrong. Terminal.
	KindValidation

	// KindIntegration: an external system misbehaved (non-2xx, transport
	// failure). Worth retrying.
	KindIntegration

	// KindSystem: infrastructure trouble on our side (db, queue). Worth
	// retrying.
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindIntegration:
		return "integration"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Kind() Kind {
	return e.kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error while keeping it reachable
// for errors.Is/errors.As.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Integration(format string, args ...any) *Error {
	return New(KindIntegration, format, args...)
}

func System(format string, args ...any) *Error {
	return New(KindSystem, format, args...)
}

// KindOf extracts the kind from anywhere in the error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsTerminal reports whether retrying can never succeed for this error.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindValidation:
		return true
	default:
		return false
	}
}
