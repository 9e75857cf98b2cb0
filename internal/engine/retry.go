package engine

import (
	"context"
	"time"
)

// attemptResult classifies one attempt of a retried operation.
type attemptResult int

const (
	attemptOK attemptResult = iota
	attemptRetryable
	attemptFatal
)

// retryPolicy is a bounded retry with exponential backoff. It never retries
// in a tight loop and never retries a fatal classification.
type retryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// execute runs op until it succeeds, fails fatally, exhausts maxAttempts, or
// ctx is done. The final classification is returned; ctx cancellation maps to
// attemptRetryable so the caller's natural next occurrence picks it up.
func (p retryPolicy) execute(ctx context.Context, op func(ctx context.Context) attemptResult) attemptResult {
	backoff := p.initialBackoff
	for attempt := 1; ; attempt++ {
		res := op(ctx)
		if res != attemptRetryable || attempt >= p.maxAttempts {
			return res
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attemptRetryable
		}
		backoff *= 2
		if backoff > p.maxBackoff {
			backoff = p.maxBackoff
		}
	}
}
