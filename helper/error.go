package helper

import (
	"errors"
	"strings"
)

// Error wraps an error with the trace of operations that led to it.
// The trace is ordered from the outermost to the innermost operation.
type Error struct {
	Original error
	Trace    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	if len(e.Trace) == 0 {
		return e.Original.Error()
	}
	return strings.Join(e.Trace, ": ") + ": " + e.Original.Error()
}

// Unwrap returns the original error so errors.Is and errors.As see through the trace
func (e *Error) Unwrap() error {
	return e.Original
}

// NewError wraps err with the given trace.
// If err already is a traced error the trace is prepended instead of nesting.
func NewError(trace string, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}

	var traced *Error
	if errors.As(err, &traced) && traced == err {
		return &Error{
			Original: traced.Original,
			Trace:    append([]string{trace}, traced.Trace...),
		}
	}

	return &Error{
		Original: err,
		Trace:    []string{trace},
	}
}
