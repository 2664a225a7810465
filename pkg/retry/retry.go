package retry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

// ErrMaxRetriesExceeded is wrapped into the error returned once every attempt failed
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// RetryConfig holds the configuration for retry operations
type RetryConfig struct {
	MaxRetries      int                   // Total number of attempts
	InitialDelay    time.Duration         // Delay before the second attempt
	MaxDelay        time.Duration         // Upper bound for any delay
	BackoffFactor   float64               // Multiplier for exponential backoff
	JitterFactor    float64               // Jitter added to each delay, as a fraction of it
	LogRetryAttempt bool                  // Whether to log retry attempts
	ShouldRetry     func(error, int) bool // Decides if (error, attempt number) is retried
	OnRetry         func(error, int)      // Called before sleeping for another attempt
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      5,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		BackoffFactor:   2.0,
		JitterFactor:    0.2,
		LogRetryAttempt: true,
	}
}

func (c *RetryConfig) Validate() error {
	if c.MaxRetries < 1 {
		return errors.New("MaxRetries must be >= 1")
	}
	if c.InitialDelay <= 0 {
		return errors.New("InitialDelay must be positive")
	}
	if c.MaxDelay <= 0 {
		return errors.New("MaxDelay must be positive")
	}
	if c.BackoffFactor < 1.0 {
		return errors.New("BackoffFactor must be >= 1.0")
	}
	if c.JitterFactor < 0 || c.JitterFactor > 1.0 {
		return errors.New("JitterFactor must be between 0.0 and 1.0")
	}
	return nil
}

// SecureFloat64 returns a random float64 in [0.0,1.0)
func SecureFloat64() float64 {
	var b [8]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return mathrand.Float64()
	}
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// CalculateDelayWithJitter adds up to jitterFactor*baseDelay to baseDelay
func CalculateDelayWithJitter(baseDelay time.Duration, jitterFactor float64) time.Duration {
	sleepDuration := baseDelay
	if jitterFactor > 0 {
		sleepDuration += time.Duration(jitterFactor * float64(baseDelay) * SecureFloat64())
	}
	return sleepDuration
}

// CalculateNextDelay applies the backoff factor, capped at maxDelay
func CalculateNextDelay(currentDelay time.Duration, backoffFactor float64, maxDelay time.Duration) time.Duration {
	nextDelay := time.Duration(float64(currentDelay) * backoffFactor)
	if nextDelay > maxDelay {
		nextDelay = maxDelay
	}
	return nextDelay
}

// Retry runs operation until it succeeds, ShouldRetry rejects the error, the
// context ends, or MaxRetries attempts have been made. There is no sleep after
// the final attempt.
func Retry[T any](ctx context.Context, operation func() (T, error), retryConfig *RetryConfig, logger logging.Logger) (T, error) {
	var zero T
	var err error

	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	} else if err := retryConfig.Validate(); err != nil {
		return zero, fmt.Errorf("invalid retry config: %w", err)
	}

	delay := retryConfig.InitialDelay

	for attempt := 1; attempt <= retryConfig.MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return zero, fmt.Errorf("%w (last error: %v)", ctxErr, err)
			}
			return zero, ctxErr
		}

		result, opErr := operation()
		if opErr == nil {
			return result, nil
		}
		err = opErr

		if retryConfig.ShouldRetry != nil && !retryConfig.ShouldRetry(err, attempt) {
			return zero, err
		}
		if attempt == retryConfig.MaxRetries {
			break
		}

		sleepDuration := CalculateDelayWithJitter(delay, retryConfig.JitterFactor)
		if retryConfig.LogRetryAttempt && logger != nil {
			logger.Warnf("Attempt %d/%d failed: %v. Retrying in %v...", attempt, retryConfig.MaxRetries, err, sleepDuration)
		}
		if retryConfig.OnRetry != nil {
			retryConfig.OnRetry(err, attempt)
		}

		timer := time.NewTimer(sleepDuration)
		select {
		case <-timer.C:
			delay = CalculateNextDelay(delay, retryConfig.BackoffFactor, retryConfig.MaxDelay)
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w: %w", retryConfig.MaxRetries, ErrMaxRetriesExceeded, err)
}

// RetryFunc is Retry for operations that only return an error
func RetryFunc(ctx context.Context, operation func() error, config *RetryConfig, logger logging.Logger) error {
	_, err := Retry(ctx, func() (struct{}, error) {
		return struct{}{}, operation()
	}, config, logger)
	return err
}
