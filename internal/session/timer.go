package session

import (
	"context"
	"sync"
	"time"

	"assessment-engine/internal/domain"
)

// TickSource produces ticks at the given interval and a func that releases it.
type TickSource func(interval time.Duration) (<-chan time.Time, func())

func tickerSource(interval time.Duration) (<-chan time.Time, func()) {
	tk := time.NewTicker(interval)
	return tk.C, tk.Stop
}

// TimerOption customizes a Timer.
type TimerOption func(*Timer)

// WithTickSource replaces the wall-clock ticker, mainly for tests.
func WithTickSource(src TickSource) TimerOption {
	return func(t *Timer) { t.source = src }
}

// OnTick registers a hook receiving the remaining seconds after every tick.
func OnTick(fn func(remaining int)) TimerOption {
	return func(t *Timer) { t.onTick = fn }
}

// Timer counts down whole seconds for an assessment and fires its expiry hook exactly once.
type Timer struct {
	mu        sync.Mutex
	total     int
	remaining int
	armed     bool
	done      bool
	expired   bool
	stop      chan struct{}

	source   TickSource
	onTick   func(int)
	onExpire func()
}

func NewTimer(totalSeconds int, onExpire func(), opts ...TimerOption) *Timer {
	t := &Timer{
		total:     totalSeconds,
		remaining: totalSeconds,
		source:    tickerSource,
		onExpire:  onExpire,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Arm starts the countdown. A timer can be armed once; cancelling before arming
// leaves it permanently stopped.
func (t *Timer) Arm(ctx context.Context) error {
	t.mu.Lock()
	if t.armed {
		t.mu.Unlock()
		return domain.ErrTimerArmed
	}
	t.armed = true
	if t.done {
		t.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	ticks, release := t.source(time.Second)
	go t.run(ctx, ticks, release, stop)
	return nil
}

func (t *Timer) run(ctx context.Context, ticks <-chan time.Time, release func(), stop <-chan struct{}) {
	defer release()
	for {
		select {
		case <-ctx.Done():
			t.Cancel()
			return
		case <-stop:
			return
		case <-ticks:
			if !t.Tick() {
				return
			}
		}
	}
}

// Tick takes one second off the clock. It reports whether the timer is still running.
func (t *Timer) Tick() bool {
	t.mu.Lock()
	if !t.armed || t.done {
		t.mu.Unlock()
		return false
	}
	t.remaining--
	fire := t.remaining <= 0
	if fire {
		t.remaining = 0
		t.done = true
		t.expired = true
		close(t.stop)
	}
	remaining := t.remaining
	onTick, onExpire := t.onTick, t.onExpire
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if fire && onExpire != nil {
		onExpire()
	}
	return !fire
}

// Cancel stops the countdown. It is idempotent and does nothing after expiry.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	if t.stop != nil {
		close(t.stop)
	}
}

// Remaining returns the seconds left on the clock.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Expired reports whether the countdown reached zero.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Running reports whether the timer is armed and still counting.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed && !t.done
}
