// Package failure holds the terminal error kinds a request can end with.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a terminal failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindSourceNotFound
	KindSourceUnreadable
	KindSchemaMismatch
	KindInvalidFilter
	KindEmptyResult
	KindWriteError
	KindTimeout
	KindInvalidRequest
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSourceNotFound:
		return "SourceNotFound"
	case KindSourceUnreadable:
		return "SourceUnreadable"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindInvalidFilter:
		return "InvalidFilter"
	case KindEmptyResult:
		return "EmptyResult"
	case KindWriteError:
		return "WriteError"
	case KindTimeout:
		return "Timeout"
	case KindInvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Sentinels usable with errors.Is.
var (
	SourceNotFound   = &Error{Kind: KindSourceNotFound}
	SourceUnreadable = &Error{Kind: KindSourceUnreadable}
	SchemaMismatch   = &Error{Kind: KindSchemaMismatch}
	InvalidFilter    = &Error{Kind: KindInvalidFilter}
	EmptyResult      = &Error{Kind: KindEmptyResult}
	WriteError       = &Error{Kind: KindWriteError}
	Timeout          = &Error{Kind: KindTimeout}
	InvalidRequest   = &Error{Kind: KindInvalidRequest}
)

// Error is the single structured error surfaced to callers.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Missing lists absent columns for KindSchemaMismatch.
	Missing []string
	Err     error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if len(e.Missing) > 0 {
		sb.WriteString(" [missing: ")
		sb.WriteString(strings.Join(e.Missing, ", "))
		sb.WriteString("]")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// Missing reports absent required columns.
func Missing(op string, columns []string) *Error {
	return &Error{
		Kind:    KindSchemaMismatch,
		Op:      op,
		Message: fmt.Sprintf("%d required column(s) not found", len(columns)),
		Missing: append([]string(nil), columns...),
	}
}

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
