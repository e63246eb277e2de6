package chain

import (
	"context"
	"errors"
	"time"
)

// maxRetryDelay caps the exponential backoff so a long retry run keeps
// polling instead of sleeping for minutes.
const maxRetryDelay = 10 * time.Second

// withRetry runs fn until it succeeds, the retry allowance is spent, or the
// context ends. Context errors surfaced by fn are not worth retrying and
// propagate immediately.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if delay < maxRetryDelay/2 {
			delay *= 2
		} else {
			delay = maxRetryDelay
		}
	}
}
