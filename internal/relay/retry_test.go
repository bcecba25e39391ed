package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Millisecond,
		JitterMax:   time.Millisecond,
		Budget:      2 * time.Second,
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	ref, cat, err := fastPolicy().Run(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "sig-1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-1", ref)
	assert.Equal(t, Category(""), cat)
	assert.Equal(t, 1, attempts)
}

func TestRetryTransientThenSuccess(t *testing.T) {
	attempts := 0
	ref, _, err := fastPolicy().Run(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("connection reset by peer")
		}
		return "sig-2", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-2", ref)
	assert.Equal(t, 3, attempts)
}

func TestRetryNonRetryableStopsImmediately(t *testing.T) {
	attempts := 0
	_, cat, err := fastPolicy().Run(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("nullifier already spent")
	})
	require.Error(t, err)
	assert.Equal(t, CategoryStateConflict, cat)
	assert.Equal(t, 1, attempts)
}

func TestRetryAttemptsExhausted(t *testing.T) {
	attempts := 0
	_, cat, err := fastPolicy().Run(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, CategoryTransientNetwork, cat)
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestRetryBudgetExhausted(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		Budget:      20 * time.Millisecond,
	}
	attempts := 0
	_, cat, err := p.Run(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, CategoryTransientNetwork, cat)
	// The first backoff already exceeds the budget, so exactly one
	// attempt runs and the policy refuses to sleep past the deadline.
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "budget")
}

func TestRetryContextCancelDuringBackoff(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		Budget:      time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, cat, err := p.Run(ctx, func(ctx context.Context) (string, error) {
		return "", errors.New("timeout")
	})
	require.Error(t, err)
	assert.Equal(t, CategoryTransientNetwork, cat)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffGrowsExponentially(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.backoff(4))
}

func TestBackoffJitterBounded(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, JitterMax: 50 * time.Millisecond}
	for i := 0; i < 32; i++ {
		d := p.backoff(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 150*time.Millisecond)
	}
}
