// Package retry provides a bounded retry combinator with linear backoff.
//
// The retry policy lives here, separated from the operations it wraps, so the
// attempt cap and backoff are testable without driving a browser.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn up to attempts times, sleeping backoff*n between attempt n and
// n+1. fn receives the 1-based attempt number. Do returns nil on the first
// success, the last error once attempts are exhausted, and the context error
// if ctx is cancelled between attempts.
func Do(ctx context.Context, attempts int, backoff time.Duration, fn func(ctx context.Context, attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry: context cancelled: %w", err)
		}
		last = fn(ctx, i)
		if last == nil {
			return nil
		}
		if i == attempts {
			break
		}
		if err := sleepCtx(ctx, time.Duration(i)*backoff); err != nil {
			return fmt.Errorf("retry: context cancelled during backoff: %w", err)
		}
	}
	return last
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
