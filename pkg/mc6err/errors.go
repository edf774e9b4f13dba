// Package mc6err defines the error taxonomy shared by every mc6 component,
// plus the mapping from error kind to HTTP status used by the transport
// layer.
package mc6err

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which bucket of the error taxonomy an error belongs to.
type Kind int

const (
	// KindUnknown is the zero value; KindOf reports it for any error that
	// is not (and does not wrap) an *Error, so StatusFor maps such errors
	// to its default status.
	KindUnknown Kind = iota
	KindConfig
	KindStorage
	KindUtf8
	KindSerialization
	KindSignal
	KindInvalidLabel
	KindObjectNotFound
	KindObjectExistsNoReplace
	KindTimeout
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindStorage:
		return "storage"
	case KindUtf8:
		return "utf8"
	case KindSerialization:
		return "serialization"
	case KindSignal:
		return "signal"
	case KindInvalidLabel:
		return "invalid_label"
	case KindObjectNotFound:
		return "object_not_found"
	case KindObjectExistsNoReplace:
		return "object_exists_no_replace"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is an mc6 error of a known Kind, optionally wrapping a cause.
type Error struct {
	Kind  Kind
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

// New builds an *Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// StatusFor maps an error's Kind to the HTTP status the transport layer
// should respond with, per spec §7. Timeout maps to 504, the conventional
// choice, rather than the 500 the original prototype used (see SPEC_FULL.md
// Q5).
func StatusFor(err error) int {
	switch KindOf(err) {
	case KindObjectNotFound:
		return http.StatusNotFound
	case KindObjectExistsNoReplace:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

var (
	// ErrObjectNotFound is returned when an object or its metadata is
	// absent from a collection.
	ErrObjectNotFound = New(KindObjectNotFound, "object not found")
	// ErrObjectExistsNoReplace is returned by put_object(replace=false)
	// when an object already exists under that name.
	ErrObjectExistsNoReplace = New(KindObjectExistsNoReplace, "object exists and replace=false")
)
