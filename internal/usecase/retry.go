package usecase

import (
	"context"
	"log/slog"
	"time"

	"websearch/internal/domain"
)

// runWithRetry executes call up to policy.MaxRetries+1 times. Only
// Transport and Server failures are retried; Client and Unknown
// failures return immediately. The wait before retry n doubles each
// time: BaseDelay, 2*BaseDelay, 4*BaseDelay, with no jitter and no
// cap, so the schedule is exactly reproducible. The last error is
// returned unwrapped, preserving any *domain.StatusError with its
// status code and response body.
func runWithRetry[T any](
	ctx context.Context,
	logger *slog.Logger,
	name string,
	policy domain.RetryPolicy,
	call func(context.Context) (T, error),
) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := Classify(err)
		if !kind.Retryable() {
			return zero, lastErr
		}

		if attempt < attempts-1 {
			delay := policy.BaseDelay << uint(attempt)
			logger.Warn("provider call failed, retrying",
				"provider", name,
				"kind", kind.String(),
				"attempt", attempt+1,
				"delay", delay,
				"error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
	}

	return zero, lastErr
}
