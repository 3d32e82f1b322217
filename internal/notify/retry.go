package notify

import (
	"context"
	"time"
)

const maxRetries = 3

// backoff bounds the waits between rate-limited attempts.
type backoff struct {
	base time.Duration
	max  time.Duration
}

var defaultBackoff = backoff{base: time.Second, max: 30 * time.Second}

// retryOnRateLimit calls fn and retries while rateLimited reports that the
// error is a rate limit. A positive hint from rateLimited replaces the
// exponential wait.
func (b backoff) retryOnRateLimit(ctx context.Context, fn func() error, rateLimited func(error) (time.Duration, bool)) error {
	wait := b.base
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		hint, ok := rateLimited(err)
		if !ok || attempt == maxRetries {
			return err
		}
		d := wait
		if hint > 0 {
			d = hint
		}
		if d > b.max {
			d = b.max
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
		wait *= 2
	}
}
