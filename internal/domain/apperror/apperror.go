// Package apperror defines the error taxonomy shared by all voucher operations.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the stable category of a domain error
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindExpired      Kind = "expired"
	KindInvalidToken Kind = "invalid_token"
	KindValidation   Kind = "validation_error"
	KindInternal     Kind = "internal"
)

// Error carries a Kind and a human readable message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors by identity, and bare-kind targets by kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e == t {
		return true
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newf(KindForbidden, format, args...)
}

func Expired(format string, args ...interface{}) *Error {
	return newf(KindExpired, format, args...)
}

func InvalidToken(format string, args ...interface{}) *Error {
	return newf(KindInvalidToken, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// Internal wraps an unexpected failure
func Internal(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// Wrap attaches a kind to an existing error
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsExpired(err error) bool      { return KindOf(err) == KindExpired }
func IsInvalidToken(err error) bool { return KindOf(err) == KindInvalidToken }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
