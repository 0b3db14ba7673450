package ratelimit

import "sync/atomic"

// Budget is a hard cap on provider calls for one run. A cap of zero means
// unlimited. Reaching the cap is a clean stop, not an error.
type Budget struct {
	max  int64
	used atomic.Int64
}

// NewBudget creates a budget of max calls.
func NewBudget(max int) *Budget {
	if max < 0 {
		max = 0
	}
	return &Budget{max: int64(max)}
}

// TryAcquire takes one call from the budget, reporting false once the cap
// has been reached.
func (b *Budget) TryAcquire() bool {
	if b == nil {
		return true
	}
	if b.max == 0 {
		b.used.Add(1)
		return true
	}
	for {
		cur := b.used.Load()
		if cur >= b.max {
			return false
		}
		if b.used.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Exhausted reports whether no further calls may be made.
func (b *Budget) Exhausted() bool {
	if b == nil || b.max == 0 {
		return false
	}
	return b.used.Load() >= b.max
}

// Used returns the number of calls taken so far.
func (b *Budget) Used() int {
	if b == nil {
		return 0
	}
	return int(b.used.Load())
}

// Max returns the cap, zero meaning unlimited.
func (b *Budget) Max() int {
	if b == nil {
		return 0
	}
	return int(b.max)
}
