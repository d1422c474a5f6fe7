package donation

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a lifecycle failure. Kinds are stable and safe to expose
// to callers.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindForbidden       Kind = "forbidden"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindConflict        Kind = "conflict"
	KindInvalidState    Kind = "invalid_state"
	KindInternal        Kind = "internal_error"
)

// Error is the error type returned by every Manager operation.
type Error struct {
	Kind    Kind
	Message string
	// Fields names the offending inputs of a validation error.
	Fields []string
	Err    error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrPayloadTooLarge = &Error{Kind: KindPayloadTooLarge}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrInternal        = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = strings.ReplaceAll(string(e.Kind), "_", " ")
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindInternal for errors that did not
// come from this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func missingFields(fields []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func invalidField(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
		Fields:  []string{field},
	}
}

func internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}
