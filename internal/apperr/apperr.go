package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the outcomes the API reports.
type Kind string

const (
	KindConflict            Kind = "conflict"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindOutOfRange          Kind = "out_of_range"
	KindSessionClosed       Kind = "session_closed"
	KindLocationUnavailable Kind = "location_unavailable"
	KindNetwork             Kind = "network"
	KindInvalid             Kind = "invalid"
	KindInternal            Kind = "internal"
)

// Error carries a kind alongside the message so callers can branch on the
// outcome without string matching.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
