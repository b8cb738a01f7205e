package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corvidlabs/blockctl/internal/metrics"
)

// RetryPolicy configures WithRetry/WithRetryFunc.
type RetryPolicy struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries).
	MaxRetries int

	// Backoff computes the delay before each subsequent attempt.
	Backoff BackoffPolicy

	// ErrorChecker decides whether a given error is worth retrying. If
	// nil, every non-nil error is treated as retryable.
	ErrorChecker RetryableErrorChecker

	// Logger receives retry/backoff events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records attempt/backoff/final-attempt observations when set.
	Metrics *metrics.RetryMetrics

	// OperationName labels metrics and log lines for this retry loop.
	OperationName string
}

// DefaultRetryPolicy returns the module's standard retry configuration:
// up to 5 retries (6 total attempts) with the default backoff schedule.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 5,
		Backoff:    DefaultBackoffPolicy(),
	}
}

// WithRetry executes operation, retrying on retryable errors according to
// policy. Context cancellation during a backoff sleep returns ctx.Err()
// immediately.
func WithRetry(ctx context.Context, policy *RetryPolicy, operation func() error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opName := policy.OperationName
	if opName == "" {
		opName = "unknown"
	}

	var lastErr error
	attemptCount := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		attemptCount++
		attemptStart := time.Now()
		err := operation()
		attemptDuration := time.Since(attemptStart).Seconds()

		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry", "operation", opName, "attempt", attempt+1)
			}
			policy.Metrics.RecordAttempt(opName, "success", "none", attemptDuration)
			policy.Metrics.RecordFinalAttempt(opName, "success", attemptCount)
			return nil
		}

		lastErr = err

		if !shouldRetry(err, policy.ErrorChecker) {
			logger.Debug("error is non-retryable, stopping retry loop", "operation", opName, "error", err)
			policy.Metrics.RecordAttempt(opName, "failure", classifyError(err), attemptDuration)
			policy.Metrics.RecordFinalAttempt(opName, "failure", attemptCount)
			return lastErr
		}

		policy.Metrics.RecordAttempt(opName, "failure", classifyError(err), attemptDuration)

		if attempt >= policy.MaxRetries {
			logger.Error("operation failed after all retries", "operation", opName, "max_retries", policy.MaxRetries, "error", lastErr)
			policy.Metrics.RecordFinalAttempt(opName, "failure", attemptCount)
			break
		}

		delay := policy.Backoff.Delay(attempt)
		logger.Warn("operation failed, retrying", "operation", opName, "attempt", attempt+1, "delay", delay, "error", err)
		policy.Metrics.RecordBackoff(opName, delay.Seconds())

		if !waitWithContext(ctx, delay) {
			logger.Debug("context cancelled during retry delay", "operation", opName)
			policy.Metrics.RecordAttempt(opName, "cancelled", classifyError(ctx.Err()), time.Since(attemptStart).Seconds())
			policy.Metrics.RecordFinalAttempt(opName, "cancelled", attemptCount)
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation %q failed after %d attempts: %w", opName, policy.MaxRetries+1, lastErr)
}

// WithRetryFunc is WithRetry for operations returning a value.
func WithRetryFunc[T any](ctx context.Context, policy *RetryPolicy, operation func() (T, error)) (T, error) {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	logger := policy.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opName := policy.OperationName
	if opName == "" {
		opName = "unknown"
	}

	var lastResult T
	var lastErr error
	attemptCount := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		attemptCount++
		attemptStart := time.Now()
		result, err := operation()
		attemptDuration := time.Since(attemptStart).Seconds()

		if err == nil {
			if attempt > 0 {
				logger.Info("operation succeeded after retry", "operation", opName, "attempt", attempt+1)
			}
			policy.Metrics.RecordAttempt(opName, "success", "none", attemptDuration)
			policy.Metrics.RecordFinalAttempt(opName, "success", attemptCount)
			return result, nil
		}

		lastResult = result
		lastErr = err

		if !shouldRetry(err, policy.ErrorChecker) {
			logger.Debug("error is non-retryable, stopping retry loop", "operation", opName, "error", err)
			policy.Metrics.RecordAttempt(opName, "failure", classifyError(err), attemptDuration)
			policy.Metrics.RecordFinalAttempt(opName, "failure", attemptCount)
			return lastResult, lastErr
		}

		policy.Metrics.RecordAttempt(opName, "failure", classifyError(err), attemptDuration)

		if attempt >= policy.MaxRetries {
			logger.Error("operation failed after all retries", "operation", opName, "max_retries", policy.MaxRetries, "error", lastErr)
			policy.Metrics.RecordFinalAttempt(opName, "failure", attemptCount)
			break
		}

		delay := policy.Backoff.Delay(attempt)
		logger.Warn("operation failed, retrying", "operation", opName, "attempt", attempt+1, "delay", delay, "error", err)
		policy.Metrics.RecordBackoff(opName, delay.Seconds())

		if !waitWithContext(ctx, delay) {
			policy.Metrics.RecordAttempt(opName, "cancelled", classifyError(ctx.Err()), time.Since(attemptStart).Seconds())
			policy.Metrics.RecordFinalAttempt(opName, "cancelled", attemptCount)
			var zero T
			return zero, ctx.Err()
		}
	}

	return lastResult, fmt.Errorf("operation %q failed after %d attempts: %w", opName, policy.MaxRetries+1, lastErr)
}

func shouldRetry(err error, checker RetryableErrorChecker) bool {
	if err == nil {
		return false
	}
	if checker != nil {
		return checker.IsRetryable(err)
	}
	return true
}

func waitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func classifyError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case isTimeoutError(err):
		return "timeout"
	case isTransientNetworkError(err):
		return "network"
	default:
		return "other"
	}
}
