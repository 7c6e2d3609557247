package access

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure. Each kind maps to exactly one HTTP
// status at the API boundary.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindNoValidUpdates Kind = "no_valid_updates"
	KindInvalid        Kind = "invalid"
	KindInternal       Kind = "internal"
)

// NoValidUpdatesMessage is returned when an update carries no field the
// caller may change.
const NoValidUpdatesMessage = "No valid updates provided"

// Error is a typed lifecycle failure carrying a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing record or parent.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Forbidden reports a caller without a qualifying relationship.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// NoValidUpdates reports an update whose whitelist intersection is empty.
func NoValidUpdates() *Error {
	return &Error{Kind: KindNoValidUpdates, Message: NoValidUpdatesMessage}
}

// Invalid reports a malformed payload.
func Invalid(msg string) *Error { return &Error{Kind: KindInvalid, Message: msg} }

// Internal wraps an unexpected store or runtime failure. The message is
// generic; err is kept for logging only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf returns the kind of err. Errors that are not *Error are internal.
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

// AsError converts any error into an *Error, wrapping unknown errors as
// internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
