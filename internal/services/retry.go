package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy defines retry behavior for failed operations
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicy returns the policy applied at the market-data fetch
// boundary when configuration supplies nothing else.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// ExecuteWithRetry executes an operation with bounded exponential backoff.
// The retryable predicate decides whether a failure is worth another attempt;
// a nil predicate retries every failure. The last error is returned once
// attempts are exhausted or a non-retryable error occurs.
func ExecuteWithRetry(
	ctx context.Context,
	logger *logrus.Logger,
	operationName string,
	policy RetryPolicy,
	retryable func(error) bool,
	operation func() error,
) error {
	start := time.Now()
	delay := policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 0 && logger != nil {
				logger.WithFields(logrus.Fields{
					"operation": operationName,
					"attempts":  attempt + 1,
					"duration":  time.Since(start),
				}).Info("Operation recovered after retry")
			}
			return nil
		}

		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}

		if attempt == policy.MaxRetries {
			break
		}

		if logger != nil {
			logger.WithFields(logrus.Fields{
				"operation": operationName,
				"attempt":   attempt + 1,
				"error":     err.Error(),
				"delay":     delay,
			}).Warn("Operation failed, retrying")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateDelay(delay, policy)):
		}
		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"operation": operationName,
			"attempts":  policy.MaxRetries + 1,
			"duration":  time.Since(start),
			"error":     lastErr.Error(),
		}).Error("Operation failed after all retries")
	}

	return lastErr
}

// calculateDelay calculates the delay with optional jitter
func calculateDelay(baseDelay time.Duration, policy RetryPolicy) time.Duration {
	if !policy.JitterEnabled {
		return baseDelay
	}

	// Add up to 25% jitter
	jitter := time.Duration(float64(baseDelay) * 0.25 * (0.5 - float64(time.Now().UnixNano()%1000)/1000.0))
	return baseDelay + jitter
}
