package engine

import (
	"errors"
	"fmt"
)

// ExecutionError wraps a data-store failure. It is never retried by the
// core and its message is not shown to callers.
type ExecutionError struct {
	// Engine names the datasource that failed.
	Engine string

	// SQL is the statement that failed, if any.
	SQL string

	// Err is the driver error.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("execution failed on %s: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("execution failed: %v", e.Err)
}

// Unwrap returns the driver error.
func (e *ExecutionError) Unwrap() error { return e.Err }

// IsExecutionError returns true if err is or wraps an *ExecutionError.
func IsExecutionError(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}
