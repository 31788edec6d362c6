package worker

import "sync"

// Budget is the remaining-cost counter shared by every concurrent call in
// a phase. It is the only mutable state those tasks share besides the
// rate windows, and every update passes through one mutex.
type Budget struct {
	mu        sync.Mutex
	remaining float64
}

// NewBudget creates a budget with the given total cost allowance.
func NewBudget(total float64) *Budget {
	return &Budget{remaining: total}
}

// Reserve atomically deducts cost if it fits in the remaining budget.
// Returns false, deducting nothing, when the call must be skipped.
func (b *Budget) Reserve(cost float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cost > b.remaining {
		return false
	}
	b.remaining -= cost
	return true
}

// Remaining returns the unreserved budget.
func (b *Budget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
