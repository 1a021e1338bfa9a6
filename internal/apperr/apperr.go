// Package apperr defines the stable error taxonomy surfaced by the library
// service. Callers branch on Kind, never on message text, so each protocol
// adapter can map kinds to its own status codes.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindNotFound: a referenced book, member, or borrow record does not exist.
	KindNotFound Kind = iota + 1

	// KindAlreadyExists: duplicate unique key (ISBN, email) or duplicate
	// active borrow for the same (book, member) pair.
	KindAlreadyExists

	// KindFailedPrecondition: a business rule rejected the operation — book
	// unavailable, member inactive, borrow limit reached, already returned,
	// or borrows blocking a deletion.
	KindFailedPrecondition

	// KindInvalid: malformed input that slipped past the calling layer.
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindFailedPrecondition:
		return "failed_precondition"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Kind() Kind { return e.kind }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func AlreadyExists(format string, args ...any) *Error {
	return newf(KindAlreadyExists, format, args...)
}

func FailedPrecondition(format string, args ...any) *Error {
	return newf(KindFailedPrecondition, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return newf(KindInvalid, format, args...)
}

// KindOf returns the kind carried by err, or 0 if err is not an apperr.Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

func IsAlreadyExists(err error) bool { return KindOf(err) == KindAlreadyExists }

func IsFailedPrecondition(err error) bool { return KindOf(err) == KindFailedPrecondition }

func IsInvalid(err error) bool { return KindOf(err) == KindInvalid }
