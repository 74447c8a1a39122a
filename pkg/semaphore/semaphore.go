// Package semaphore bounds the number of WebSocket handshakes a bridge runs
// at once.
package semaphore

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	xsem "golang.org/x/sync/semaphore"
)

// DialLimiter admits at most n concurrent dials. Waiting for a slot is
// bounded by a timeout.
type DialLimiter struct {
	w        *xsem.Weighted
	timeout  time.Duration
	inFlight atomic.Int64
}

// New creates a limiter with n slots.
func New(n int, timeout time.Duration) *DialLimiter {
	if n < 1 {
		n = 1
	}
	return &DialLimiter{w: xsem.NewWeighted(int64(n)), timeout: timeout}
}

// Acquire waits for a slot. It fails when the timeout expires or ctx is
// done. A nil limiter admits everything.
func (l *DialLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.w.Acquire(timeoutCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("timeout acquiring dial slot after %v", l.timeout)
	}
	l.inFlight.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (l *DialLimiter) Release() {
	if l == nil {
		return
	}
	l.inFlight.Add(-1)
	l.w.Release(1)
}

// InFlight returns the number of slots currently held.
func (l *DialLimiter) InFlight() int {
	if l == nil {
		return 0
	}
	return int(l.inFlight.Load())
}
