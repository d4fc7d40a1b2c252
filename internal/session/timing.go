package session

import (
	"math"
	"time"

	"assessment-engine/internal/domain"
)

// TimingTracker measures dwell time per question. At most one entry is open at a time and
// revisits add to the time already recorded.
type TimingTracker struct {
	now     func() time.Time
	openID  string
	openAt  time.Time
	isOpen  bool
	entries map[string]*domain.QuestionTiming
	order   []string
}

func NewTimingTracker(now func() time.Time) *TimingTracker {
	if now == nil {
		now = time.Now
	}
	return &TimingTracker{now: now, entries: make(map[string]*domain.QuestionTiming)}
}

// Open starts timing questionID. An entry left open for another question is closed first.
func (t *TimingTracker) Open(questionID string) {
	if t.isOpen {
		if t.openID == questionID {
			return
		}
		t.Close(t.openID)
	}
	now := t.now()
	entry, ok := t.entries[questionID]
	if !ok {
		entry = &domain.QuestionTiming{QuestionID: questionID}
		t.entries[questionID] = entry
		t.order = append(t.order, questionID)
	}
	entry.StartTime = now
	t.openID, t.openAt, t.isOpen = questionID, now, true
}

// Close stops timing questionID and accumulates the visit. It is a no-op unless
// questionID is the open entry.
func (t *TimingTracker) Close(questionID string) bool {
	if !t.isOpen || t.openID != questionID {
		return false
	}
	now := t.now()
	entry := t.entries[questionID]
	visit := int(math.Round(now.Sub(t.openAt).Seconds()))
	if visit < 0 {
		visit = 0
	}
	entry.DurationSeconds += visit
	end := now
	entry.EndTime = &end
	entry.Visits++
	t.openID, t.isOpen = "", false
	return true
}

// CloseCurrent closes whichever entry is open.
func (t *TimingTracker) CloseCurrent() {
	if t.isOpen {
		t.Close(t.openID)
	}
}

// Current returns the id of the open entry.
func (t *TimingTracker) Current() (string, bool) {
	return t.openID, t.isOpen
}

// Get returns a copy of the entry for questionID.
func (t *TimingTracker) Get(questionID string) (domain.QuestionTiming, bool) {
	entry, ok := t.entries[questionID]
	if !ok {
		return domain.QuestionTiming{}, false
	}
	return copyTiming(entry), true
}

// Snapshot lists entries in first-visit order.
func (t *TimingTracker) Snapshot() []domain.QuestionTiming {
	out := make([]domain.QuestionTiming, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, copyTiming(t.entries[id]))
	}
	return out
}

func copyTiming(e *domain.QuestionTiming) domain.QuestionTiming {
	c := *e
	if e.EndTime != nil {
		end := *e.EndTime
		c.EndTime = &end
	}
	return c
}
