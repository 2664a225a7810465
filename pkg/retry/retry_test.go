package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trigg3rX/pumpkit-operator/pkg/logging"
)

func fastConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:    maxRetries,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

func TestRetry_SuccessOnFirstAttempt_ReturnsResult(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	}, fastConfig(3), logging.NewNoOpLogger())

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterFailures_ReturnsResult(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("temporary")
		}
		return 42, nil
	}, fastConfig(5), logging.NewNoOpLogger())

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetry_AlwaysFails_StopsAtMaxRetries(t *testing.T) {
	opErr := errors.New("still broken")
	calls := 0
	retried := 0
	cfg := fastConfig(4)
	cfg.OnRetry = func(error, int) { retried++ }

	_, err := Retry(context.Background(), func() (struct{}, error) {
		calls++
		return struct{}{}, opErr
	}, cfg, logging.NewNoOpLogger())

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 3, retried)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
	assert.ErrorIs(t, err, opErr)
}

func TestRetry_ShouldRetryFalse_ReturnsImmediately(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	cfg := fastConfig(5)
	cfg.ShouldRetry = func(err error, attempt int) bool { return !errors.Is(err, permanent) }

	_, err := Retry(context.Background(), func() (int, error) {
		calls++
		return 0, permanent
	}, cfg, logging.NewNoOpLogger())

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestRetry_ContextCancelled_StopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, func() (int, error) {
		calls++
		return 0, errors.New("fail")
	}, cfg, logging.NewNoOpLogger())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetry_InvalidConfig_ReturnsError(t *testing.T) {
	cfg := fastConfig(0)
	_, err := Retry(context.Background(), func() (int, error) { return 1, nil }, cfg, logging.NewNoOpLogger())
	assert.ErrorContains(t, err, "invalid retry config")
}

func TestRetryFunc_WrapsErrorOnlyOperation(t *testing.T) {
	calls := 0
	err := RetryFunc(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New("first fails")
		}
		return nil
	}, fastConfig(2), logging.NewNoOpLogger())

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCalculateNextDelay_CapsAtMax(t *testing.T) {
	assert.Equal(t, 2*time.Second, CalculateNextDelay(time.Second, 2.0, 10*time.Second))
	assert.Equal(t, 3*time.Second, CalculateNextDelay(2*time.Second, 2.0, 3*time.Second))
}

func TestCalculateDelayWithJitter_StaysWithinBounds(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := CalculateDelayWithJitter(base, 0.5)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
	assert.Equal(t, base, CalculateDelayWithJitter(base, 0))
}
