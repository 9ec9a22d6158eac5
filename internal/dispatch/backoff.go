package dispatch

import (
	"context"
	"math/rand"
	"time"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
	maxJitter = 1 * time.Second
)

// backoffDelay returns the sleep before retry n, where n = 0 is the first
// retry after the initial failed attempt:
//
//	min(base·2ⁿ, 60s) + jitter, jitter uniform in [0, 1s]
//
// The jitter spreads retries of many simultaneously failing dispatches so
// a recovering endpoint is not hit by a synchronized storm. Callers must
// assert bounds, not exact values.
func backoffDelay(n int, base time.Duration) time.Duration {
	if base <= 0 {
		base = baseDelay
	}
	delay := maxDelay
	if n < 32 {
		if d := base << uint(n); d > 0 && d < maxDelay {
			delay = d
		}
	}
	jitter := time.Duration(rand.Int63n(int64(maxJitter) + 1))
	return delay + jitter
}

// sleep blocks for d or until the dispatch's own context is cancelled.
// Only the execution context owning this dispatch is blocked.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
