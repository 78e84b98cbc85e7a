package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supercrema/adforge/pkg/errors"
)

func TestCircuitOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Hour,
	}, nil)

	boom := errors.New(errors.ErrorTypeConnection, "boom")
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return boom })
	}
	assert.Equal(t, StateOpen, cb.State())

	// Open circuit fails fast without executing
	executed := false
	err := cb.Execute(func() error { executed = true; return nil })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.False(t, executed)
}

func TestCircuitRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	}, nil)

	_ = cb.Execute(func() error { return errors.New(errors.ErrorTypeConnection, "boom") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	}, nil)

	boom := errors.New(errors.ErrorTypeConnection, "boom")
	_ = cb.Execute(func() error { return boom })
	time.Sleep(5 * time.Millisecond)

	_ = cb.Execute(func() error { return boom })
	assert.Equal(t, StateOpen, cb.State())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Hour,
	}, nil)

	boom := errors.New(errors.ErrorTypeConnection, "boom")
	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return boom })

	assert.Equal(t, StateClosed, cb.State())
}
