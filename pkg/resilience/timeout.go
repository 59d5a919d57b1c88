package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/exquisite-corpse/pkg/errors"
)

// WithTimeout runs fn with a context cancelled after timeout. An overrun is
// reported as apperrors.ErrTimeout wrapping context.DeadlineExceeded, so
// callers can map it to a status and Retry treats it as transient. Errors
// wrapping apperrors.ErrInvalidInput are returned as Permanent: a malformed
// message fails the same way on every attempt.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return classify(fn(ctx))
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()
	select {
	case err := <-done:
		return classify(err)
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: parent context cancelled: %w", name, ctx.Err())
		}
		slog.Default().Warn("operation timed out", "component", "timeout", "operation", name, "limit", timeout)
		return fmt.Errorf("%s after %v: %w: %w", name, timeout, apperrors.ErrTimeout, context.DeadlineExceeded)
	}
}

func classify(err error) error {
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return Permanent(err)
	}
	return err
}
