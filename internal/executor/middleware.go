package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// WithPath prepends `export PATH=<prefix>:$PATH && ` to every command. Remote
// shells are non-login, so tmux and the assistant binary are otherwise not on
// PATH. prefix is read on every call.
func WithPath(next Executor, prefix func() string) Executor {
	return Func(func(ctx context.Context, command string) (Result, error) {
		if p := prefix(); p != "" {
			command = "export PATH=" + p + ":$PATH && " + command
		}
		return next.Run(ctx, command)
	})
}

// WithTimeout bounds each call. A zero timeout leaves calls unbounded.
func WithTimeout(next Executor, timeout time.Duration) Executor {
	if timeout <= 0 {
		return next
	}
	return Func(func(ctx context.Context, command string) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next.Run(ctx, command)
	})
}

// Limited waits on limiter before every call. A cancelled wait fails the call.
func Limited(next Executor, limiter *rate.Limiter) Executor {
	return Func(func(ctx context.Context, command string) (Result, error) {
		if err := limiter.Wait(ctx); err != nil {
			return Result{}, &ExecutionError{Message: fmt.Sprintf("rate limit: %v", err), Err: err}
		}
		return next.Run(ctx, command)
	})
}
