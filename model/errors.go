package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyClaim is returned when a claim is missing or blank after trimming
var ErrEmptyClaim = errors.New("claim is empty")

// SchemaError reports a corpus source that lacks required fields in all of its records
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("corpus source %s is missing required keys: %s", e.Source, strings.Join(e.Missing, ", "))
}

// OracleError is a failure of a single oracle call. It is degraded, never returned by Verify.
type OracleError struct {
	Oracle string
	Err    error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s oracle failed: %v", e.Oracle, e.Err)
}

func (e *OracleError) Unwrap() error {
	return e.Err
}

// PipelineError is any other failure while verifying a claim
type PipelineError struct {
	Op  string
	Err error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
