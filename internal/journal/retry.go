package journal

import (
	"context"
	"time"
)

// FlushWithRetry flushes the journal to the sink, retrying with exponential
// backoff. Failed flushes keep their events, so each retry resends the full
// buffer.
func FlushWithRetry(ctx context.Context, j *Journal, sink Sink, maxRetries int, baseDelay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := j.Flush(sink)
		if err == nil {
			return nil
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

		delay *= 2
	}
}
