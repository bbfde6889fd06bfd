package throttle

import (
	"sync"
	"time"

	"vigil/internal/classify"
)

// DefaultCooldown is the minimum gap between consecutive user-visible
// alerts. One global window is shared across categories so several
// conditions flipping in the same tick cannot cause an alert storm.
const DefaultCooldown = 8 * time.Second

// Throttle converts the per-tick classifier signal into discrete alerts by
// suppressing repeats inside the cooldown window. State is reset fully when
// a session ends.
type Throttle struct {
	cooldown time.Duration

	mu     sync.Mutex
	last   classify.Category
	lastAt time.Time
	counts map[classify.Category]int
}

// New creates a throttle with the given cooldown window.
func New(cooldown time.Duration) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Throttle{
		cooldown: cooldown,
		counts:   make(map[classify.Category]int),
	}
}

// Offer presents a candidate category observed at time t and reports
// whether an alert should be emitted. None never emits and never mutates
// state; a suppressed candidate is a no-op.
func (t *Throttle) Offer(c classify.Category, at time.Time) bool {
	if c == classify.None {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != classify.None && at.Sub(t.lastAt) < t.cooldown {
		return false
	}

	t.last = c
	t.lastAt = at
	t.counts[c]++
	return true
}

// SetCooldown updates the window for subsequent offers.
func (t *Throttle) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.cooldown = d
	t.mu.Unlock()
}

// Counts returns a snapshot of per-category emit counts for the session.
func (t *Throttle) Counts() map[classify.Category]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[classify.Category]int, len(t.counts))
	for c, n := range t.counts {
		out[c] = n
	}
	return out
}

// Reset clears all state. Called when a session ends.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = classify.None
	t.lastAt = time.Time{}
	t.counts = make(map[classify.Category]int)
}
