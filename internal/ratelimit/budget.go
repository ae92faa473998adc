package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Budget is an in-process fixed-window budget for one outbound connector.
// Unlike the HTTP limiter it blocks: Wait parks the caller until the next
// window opens rather than rejecting, because connector calls are worth
// waiting for and upstream quotas are hard limits.
type Budget struct {
	limit  int
	window time.Duration

	mu          sync.Mutex
	used        int
	windowStart time.Time
}

// NewBudget creates a budget of limit calls per window. A non-positive
// limit disables the budget.
func NewBudget(limit int, window time.Duration) *Budget {
	if window <= 0 {
		window = time.Minute
	}
	return &Budget{limit: limit, window: window}
}

// Wait consumes one call from the budget, blocking until one is available
// or the context is done.
func (b *Budget) Wait(ctx context.Context) error {
	if b == nil || b.limit <= 0 {
		return nil
	}
	for {
		b.mu.Lock()
		now := time.Now()
		if b.windowStart.IsZero() || now.Sub(b.windowStart) >= b.window {
			b.windowStart = now
			b.used = 0
		}
		if b.used < b.limit {
			b.used++
			b.mu.Unlock()
			return nil
		}
		wakeAt := b.windowStart.Add(b.window)
		b.mu.Unlock()

		timer := time.NewTimer(time.Until(wakeAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Status reports the budget's limit, remaining calls in the current window,
// and the window length.
func (b *Budget) Status() (limit, remaining int, window time.Duration) {
	if b == nil || b.limit <= 0 {
		return 0, 0, 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	used := b.used
	if !b.windowStart.IsZero() && time.Since(b.windowStart) >= b.window {
		used = 0
	}
	remaining = b.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return b.limit, remaining, b.window
}
