package world

import (
	"sync"
	"time"
)

type (
	// Clock provides the current time for wait deadlines and elapsed time
	Clock func() time.Time

	// Timer represents a stoppable wait timer
	Timer interface {
		Channel() <-chan time.Time
		Stop() bool
	}

	// TimerConstructor builds a wait timer with the given delay
	TimerConstructor func(delay time.Duration) Timer

	systemTimer struct {
		*time.Timer
	}
)

// NewTimer builds the default system-backed wait timer
func NewTimer(delay time.Duration) Timer {
	return &systemTimer{
		Timer: time.NewTimer(delay),
	}
}

func (t *systemTimer) Channel() <-chan time.Time {
	return t.C
}

// FakeClock is a manually driven clock. Timers built by NewTimer advance the clock by
// their delay and fire immediately, so waits complete instantly and deterministically.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a fake clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t, backwards included.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// NewTimer advances the clock by delay and returns an already fired timer.
func (c *FakeClock) NewTimer(delay time.Duration) Timer {
	c.mu.Lock()
	c.now = c.now.Add(delay)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return firedTimer(ch)
}

type firedTimer chan time.Time

func (t firedTimer) Channel() <-chan time.Time { return t }
func (t firedTimer) Stop() bool                { return false }
