package session

import (
	"sync"
	"sync/atomic"

	"assessment-engine/internal/domain"
)

// SubmissionGuard is a one-shot latch shared by the manual submit path and timer expiry.
type SubmissionGuard struct {
	fired   atomic.Bool
	mu      sync.Mutex
	trigger domain.Trigger
}

// TryAcquire flips the latch. Only the first caller gets true; the check and the set are
// a single atomic step.
func (g *SubmissionGuard) TryAcquire(trigger domain.Trigger) bool {
	if !g.fired.CompareAndSwap(false, true) {
		return false
	}
	g.mu.Lock()
	g.trigger = trigger
	g.mu.Unlock()
	return true
}

// Fired reports whether a submission has been started.
func (g *SubmissionGuard) Fired() bool {
	return g.fired.Load()
}

// Trigger returns what won the latch, empty if nothing has.
func (g *SubmissionGuard) Trigger() domain.Trigger {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trigger
}
