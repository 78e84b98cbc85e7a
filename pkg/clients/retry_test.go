package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/errors"
)

func fastPolicy(attempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestExecuteRetryableRecoversFromTransientError(t *testing.T) {
	calls := 0
	err := fastPolicy(3).ExecuteRetryable(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrorTypeConnection, "connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteRetryableStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := fastPolicy(5).ExecuteRetryable(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrorTypeRejection, "policy violation")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRejection))
}

func TestExecuteRetryableExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).ExecuteRetryable(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrorTypeTimeout, "deadline exceeded")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestPlatformRetryAfterOutranksBackoff(t *testing.T) {
	calls := 0
	start := time.Now()
	err := fastPolicy(2).ExecuteRetryable(context.Background(), func() error {
		calls++
		if calls == 1 {
			return errors.New(errors.ErrorTypeRateLimit, "throttled").
				WithRetryAfter(50 * time.Millisecond)
		}
		return nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := policy.ExecuteRetryable(ctx, func() error {
		return errors.New(errors.ErrorTypeConnection, "down")
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDelayGrowsAndCaps(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2.0,
	}

	assert.Equal(t, 10*time.Millisecond, policy.GetDelay(0))
	assert.Equal(t, 20*time.Millisecond, policy.GetDelay(1))
	assert.Equal(t, 40*time.Millisecond, policy.GetDelay(2))
	// Capped
	assert.Equal(t, 40*time.Millisecond, policy.GetDelay(3))
}

func TestCloneDoesNotShareState(t *testing.T) {
	base := DefaultRetryPolicy()
	upload := base.WithMaxAttempts(5).WithDelay(time.Millisecond, time.Second)

	assert.Equal(t, 3, base.MaxAttempts)
	assert.Equal(t, 5, upload.MaxAttempts)
	assert.Equal(t, time.Second, base.InitialDelay)
	assert.Equal(t, time.Millisecond, upload.InitialDelay)
}
