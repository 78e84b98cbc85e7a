package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowConsumesBurst(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, 3)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	stats := limiter.GetStats()
	assert.Equal(t, int64(3), stats.AllowedRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(100, 1)
	require.True(t, limiter.Allow())

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	// One token at 100/s refills in about 10ms
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(0.001, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiterRegistrySharesPerAccount(t *testing.T) {
	reg := NewLimiterRegistry(10, 20)

	a := reg.For("meta", "act_1")
	b := reg.For("meta", "act_1")
	c := reg.For("meta", "act_2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestLimiterRegistryDisabled(t *testing.T) {
	reg := NewLimiterRegistry(0, 0)
	assert.Nil(t, reg.For("meta", "act_1"))
}
