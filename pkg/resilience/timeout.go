package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrTimeout marks an operation abandoned by WithTimeout. Errors carrying it
// also match context.DeadlineExceeded.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout gives fn at most timeout to finish. fn receives a context that
// is cancelled at the deadline; WithTimeout does not wait for an fn that
// ignores it. Cancellation of the parent is reported as the parent's error,
// so callers can tell "too slow" from "shutting down". A non-positive
// timeout runs fn inline without a deadline.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(deadlineCtx) }()

	select {
	case err := <-result:
		return err
	case <-deadlineCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		slog.Default().Warn("operation exceeded its deadline",
			"component", "timeout",
			"operation", name,
			"timeout", timeout,
		)
		return fmt.Errorf("%s: %w after %v: %w", name, ErrTimeout, timeout, context.DeadlineExceeded)
	}
}
