package relay

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryPolicy bounds submission retries by attempt count and an overall
// wall-clock budget. Backoff per attempt is base * 2^(attempt-1) plus
// uniform jitter in [0, jitterMax).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	JitterMax   time.Duration
	Budget      time.Duration
}

// DefaultRetryPolicy is the submission policy used unless configured
// otherwise.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		JitterMax:   250 * time.Millisecond,
		Budget:      60 * time.Second,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if p.JitterMax > 0 {
		d += time.Duration(rand.Int63n(int64(p.JitterMax)))
	}
	return d
}

// Run executes op until it succeeds, fails non-retryably, or the policy's
// bounds run out. Every attempt re-checks the remaining budget first and
// never sleeps past it; an exhausted budget converts to a timeout failure
// instead of blocking.
func (p RetryPolicy) Run(ctx context.Context, op func(ctx context.Context) (string, error)) (string, Category, error) {
	deadline := time.Now().Add(p.Budget)
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if time.Now().After(deadline) {
			return "", CategoryTransientNetwork,
				fmt.Errorf("submission timeout: retry budget exhausted after %d attempts: %w", attempt-1, lastErr)
		}

		ref, err := op(ctx)
		if err == nil {
			return ref, "", nil
		}
		lastErr = err

		cat := Classify(err)
		if !cat.Retryable() {
			return "", cat, err
		}
		if attempt == p.MaxAttempts {
			return "", cat, fmt.Errorf("submission failed after %d attempts: %w", attempt, err)
		}

		delay := p.backoff(attempt)
		if time.Now().Add(delay).After(deadline) {
			return "", CategoryTransientNetwork,
				fmt.Errorf("submission timeout: next backoff exceeds retry budget: %w", err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", CategoryTransientNetwork, fmt.Errorf("submission cancelled: %w", ctx.Err())
		}
	}
	return "", CategoryUnknown, lastErr
}
