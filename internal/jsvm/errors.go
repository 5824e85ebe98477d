// Package jsvm provides a pooled JavaScript runtime based on goja.
// Script-backed tools run here.
package jsvm

import (
	"errors"
	"fmt"
)

// Sentinel errors for script execution.
var (
	// ErrTimeout indicates script execution exceeded the timeout limit.
	ErrTimeout = errors.New("jsvm: execution timeout")

	// ErrPoolExhausted indicates no VM became available before the deadline.
	ErrPoolExhausted = errors.New("jsvm: vm pool exhausted")

	// ErrClosed is returned by a closed Runtime.
	ErrClosed = errors.New("jsvm: runtime is closed")
)

// SyntaxError indicates the script could not be compiled.
type SyntaxError struct {
	Script  string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Script != "" {
		return fmt.Sprintf("jsvm: syntax error in %s: %s", e.Script, e.Message)
	}
	return "jsvm: syntax error: " + e.Message
}

// ExecutionError wraps a failure raised while the script ran, including
// uncaught JavaScript exceptions.
type ExecutionError struct {
	Script string
	Cause  error
}

func (e *ExecutionError) Error() string {
	if e.Script != "" {
		return fmt.Sprintf("jsvm: execution error in %s: %v", e.Script, e.Cause)
	}
	return fmt.Sprintf("jsvm: execution error: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
