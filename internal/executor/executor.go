// Package executor runs shell commands on the machine hosting the tmux
// session. Backends differ in transport only; callers see a uniform
// synchronous Run that either returns the command's output or an
// *ExecutionError.
package executor

import (
	"context"
	"errors"
)

// Result is the captured output of a remote command.
type Result struct {
	Stdout string
	Stderr string
}

// Executor runs a command string on the remote host. Calls are at-most-once:
// a failed call is never retried by the executor.
type Executor interface {
	Run(ctx context.Context, command string) (Result, error)
}

// Func adapts a function to Executor.
type Func func(ctx context.Context, command string) (Result, error)

// Run calls f.
func (f Func) Run(ctx context.Context, command string) (Result, error) {
	return f(ctx, command)
}

// ExecutionError covers connection, authentication and remote command
// failures. Message is shown to HTTP callers verbatim.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Failed wraps err as an ExecutionError unless it already is one.
func Failed(err error) error {
	if err == nil {
		return nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return &ExecutionError{Message: err.Error(), Err: err}
}

// Message returns the text to surface for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Message
	}
	return err.Error()
}
