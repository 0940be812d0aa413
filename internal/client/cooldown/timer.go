// Package cooldown provides the resend countdown used between verification
// PIN requests.
package cooldown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer counts whole seconds down to zero. Starting it again cancels the
// countdown in flight. A Timer is safe for concurrent use.
type Timer struct {
	clock clockwork.Clock

	mu        sync.Mutex
	deadline  time.Time
	stop      chan struct{}
	gen       uint64
	listeners []func(remaining int)
}

// New returns a stopped timer. A nil clock means the real clock.
func New(clock clockwork.Clock) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{clock: clock}
}

// Start resets the countdown to d, rounded up to whole seconds, and begins
// ticking once per second.
func (t *Timer) Start(d time.Duration) {
	secs := (d + time.Second - 1) / time.Second

	t.mu.Lock()
	t.cancelLocked()
	if secs <= 0 {
		t.mu.Unlock()
		return
	}
	t.deadline = t.clock.Now().Add(secs * time.Second)
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.clock.NewTicker(time.Second)
	t.mu.Unlock()

	go t.loop(gen, ticker, stop)
}

func (t *Timer) loop(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			t.mu.Lock()
			if gen != t.gen {
				t.mu.Unlock()
				return
			}
			left := t.remainingLocked()
			ls := append([]func(int){}, t.listeners...)
			if left == 0 {
				t.stop = nil
			}
			t.mu.Unlock()

			for _, fn := range ls {
				fn(left)
			}
			if left == 0 {
				return
			}
		}
	}
}

// Stop cancels the countdown and sets the remaining time to zero.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

func (t *Timer) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.gen++
	t.deadline = time.Time{}
}

// Remaining returns the whole seconds left, never negative.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *Timer) remainingLocked() int {
	if t.deadline.IsZero() {
		return 0
	}
	left := t.deadline.Sub(t.clock.Now())
	if left <= 0 {
		return 0
	}
	return int((left + time.Second - 1) / time.Second)
}

func (t *Timer) IsActive() bool {
	return t.Remaining() > 0
}

// OnTick registers fn to be called after every tick with the seconds left.
// The final call reports 0.
func (t *Timer) OnTick(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}
