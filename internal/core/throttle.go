package core

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum wall-clock interval between successive calls.
// It is deliberately not a token bucket: only the time of the last permitted
// call matters. One instance is shared process-wide across all strategies
// and all emails, and the mutex keeps the interval guarantee when calls
// arrive concurrently.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time
}

// NewThrottle creates a throttle with the given minimum interval between
// calls. A non-positive interval disables waiting.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{minInterval: minInterval}
}

// Wait blocks until at least the minimum interval has elapsed since the
// previous permitted call, then records the new call time. The lock is held
// across the sleep so concurrent callers line up rather than racing past the
// interval check.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.minInterval > 0 && !t.lastCall.IsZero() {
		if wait := t.minInterval - time.Since(t.lastCall); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	t.lastCall = time.Now()
	return nil
}

// Interval returns the configured minimum interval.
func (t *Throttle) Interval() time.Duration {
	return t.minInterval
}
