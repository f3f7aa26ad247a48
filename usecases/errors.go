package usecases

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// MsgInternal is the only message shown to clients for internal failures.
const MsgInternal = "Something went wrong"

// Error is a classified failure. Msg is safe to show to clients; Err is the
// cause and is only logged.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func validation(msg string) error   { return &Error{Kind: KindValidation, Msg: msg} }
func notFound(msg string) error     { return &Error{Kind: KindNotFound, Msg: msg} }
func unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }
func forbidden(msg string) error    { return &Error{Kind: KindForbidden, Msg: msg} }
func conflict(msg string) error     { return &Error{Kind: KindConflict, Msg: msg} }

func internal(err error) error {
	return &Error{Kind: KindInternal, Msg: MsgInternal, Err: err}
}

// KindOf returns the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return MsgInternal
}
