// Package apperr defines the domain error taxonomy shared by the HTTP layer
// and the background worker. Every user-facing failure carries a stable kind
// so callers can map it to a transport status without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	// KindUnknown is an unclassified internal failure.
	KindUnknown Kind = iota

	// KindNotFound means a wiki, document, task or model row is absent.
	KindNotFound

	// KindConflict means the operation clashes with current state:
	// a duplicate pending task, a wiki without an embedding-capable
	// model, or a dimension mismatch.
	KindConflict

	// KindInvalidArgument means the caller passed something unusable,
	// such as an unregistered strategy kind or mismatched vector lengths.
	KindInvalidArgument

	// KindUpstream means an AI provider or vector-store call failed.
	// Not retried here; the caller or queue decides on retry policy.
	KindUpstream
)

// Code returns the stable string code used in HTTP error bodies.
func (k Kind) Code() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "bad_request"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "internal_error"
	}
}

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
