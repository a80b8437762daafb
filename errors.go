package karmatic

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-karmatic/harness"
)

// RuntimeError represents an operational failure of op-karmatic itself,
// such as an unreadable settings file or node failing to start.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// ExecutionError reports that karma finished with a non-zero exit code.
type ExecutionError struct {
	Code int
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("karma exited with code %d", e.Code)
}

// IsExecutionError checks if the error is or wraps an ExecutionError
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return err != nil && errors.As(err, &execErr)
}

// AsExecutionError returns the wrapped ExecutionError, if any.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var execErr *ExecutionError
	if err != nil && errors.As(err, &execErr) {
		return execErr, true
	}
	return nil, false
}

// IsConfigError checks if the error is or wraps a harness.ConfigError
func IsConfigError(err error) bool {
	var cfgErr *harness.ConfigError
	return err != nil && errors.As(err, &cfgErr)
}

// AsConfigError returns the wrapped harness.ConfigError, if any.
func AsConfigError(err error) (*harness.ConfigError, bool) {
	var cfgErr *harness.ConfigError
	if err != nil && errors.As(err, &cfgErr) {
		return cfgErr, true
	}
	return nil, false
}
