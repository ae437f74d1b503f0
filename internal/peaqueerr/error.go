// Package peaqueerr classifies errors into the five kinds the rest of
// this module dispatches on: config, source, not-found, transient, and
// fatal. Each kind carries a fixed disposition (log-and-continue, 4xx,
// 5xx, or process exit) decided by the caller that owns the dispatch
// point, not by this package.
package peaqueerr

import "fmt"

// Kind is one of the five error categories.
type Kind int

const (
	// Config covers malformed configuration or an unreadable project
	// root. Never fatal in dev; the caller logs and continues with
	// defaults.
	Config Kind = iota
	// Source covers a source-level failure such as a non-async export
	// in a 'use server' file. The transform fails and the dev server
	// serves a synthesized module whose body throws the diagnostic.
	Source
	// NotFound covers missing handlers, missing RPC functions, and
	// paths resolving outside the project root.
	NotFound
	// Transient covers recoverable I/O failures, such as a corrupted
	// cache file, where the caller should fall through to the uncached
	// path.
	Transient
	// Fatal covers failures that should stop the process, such as the
	// listener port already being in use.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Source:
		return "source"
	case NotFound:
		return "not-found"
	case Transient:
		return "transient"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a kind-tagged, optionally-wrapped error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a kind-tagged error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a kind-tagged error wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if e, ok := err.(*Error); ok {
		pe = e
	} else {
		return false
	}
	return pe.Kind == kind
}
