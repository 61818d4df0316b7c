// Package internaltypes holds cross-cutting types shared by every layer of
// the reservation engine, mirroring the taxonomy the HTTP transport maps to
// status codes.
package internaltypes

import (
	"errors"
	"fmt"
)

// ErrKind classifies a domain failure independent of any transport.
type ErrKind string

const (
	KindNotFound             ErrKind = "not_found"
	KindNoCapacity           ErrKind = "no_capacity"
	KindOutsideServiceWindow ErrKind = "outside_service_window"
	KindInvalidFormat        ErrKind = "invalid_format"
	KindConflict             ErrKind = "conflict"
	KindInternal             ErrKind = "internal_server_error"
)

// Error is the single error type returned across package boundaries in the
// core. Callers switch on Kind, never on message text.
type Error struct {
	Kind  ErrKind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func NotFound(msg string) *Error             { return newErr(KindNotFound, msg, nil) }
func NoCapacity(msg string) *Error           { return newErr(KindNoCapacity, msg, nil) }
func OutsideServiceWindow(msg string) *Error { return newErr(KindOutsideServiceWindow, msg, nil) }
func InvalidFormat(msg string) *Error        { return newErr(KindInvalidFormat, msg, nil) }
func Conflict(msg string) *Error             { return newErr(KindConflict, msg, nil) }
func Internal(msg string, cause error) *Error {
	return newErr(KindInternal, msg, cause)
}

// KindOf extracts the ErrKind of err, defaulting to KindInternal for any
// error the core did not itself construct (store/lock transport failures).
func KindOf(err error) ErrKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrNotFound is the sentinel a Store implementation returns for a missing
// row; the service layer translates it into internaltypes.NotFound.
var ErrNotFound = errors.New("not found")
