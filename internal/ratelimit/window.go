// Package ratelimit holds the per-provider call window and the run-level
// call budget.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the span a provider's per-minute ceiling applies to.
const DefaultWindow = time.Minute

// Window admits at most Limit calls per window. The window starts at the
// first admitted call and resets once it has fully elapsed; a caller arriving
// at the limit sleeps for the remainder of the window.
type Window struct {
	limit  int
	period time.Duration

	mu    sync.Mutex
	count int
	start time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWindow creates a gate admitting limit calls per minute. A limit of zero
// or less disables it.
func NewWindow(limit int) *Window {
	return NewWindowPeriod(limit, DefaultWindow)
}

// NewWindowPeriod creates a gate with a custom window length.
func NewWindowPeriod(limit int, period time.Duration) *Window {
	if period <= 0 {
		period = DefaultWindow
	}
	return &Window{
		limit:  limit,
		period: period,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// WithClock replaces the clock and sleep functions. Intended for tests.
func (w *Window) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Window {
	w.now = now
	w.sleep = sleep
	return w
}

// Acquire blocks until a slot in the current window is free or ctx is done.
func (w *Window) Acquire(ctx context.Context) error {
	if w == nil || w.limit <= 0 {
		return nil
	}
	for {
		wait, ok := w.reserve()
		if ok {
			return nil
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserve takes a slot if one is free, otherwise returns how long until the
// window resets.
func (w *Window) reserve() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.start.IsZero() || now.Sub(w.start) >= w.period {
		w.start = now
		w.count = 0
	}
	if w.count < w.limit {
		w.count++
		return 0, true
	}
	return w.period - now.Sub(w.start), false
}

// Limit returns the configured ceiling.
func (w *Window) Limit() int {
	if w == nil {
		return 0
	}
	return w.limit
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
