package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests. It models the
// single-threaded cooperative event handler: Advance runs every timer
// whose deadline has passed, in deadline order, synchronously on the
// calling goroutine — there is no background goroutine and no race with
// the timers it fires.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	seq     int
}

type fakeTimer struct {
	deadline time.Time
	seq      int
	f        func()
	stopped  bool
	fired    bool
}

// Stop marks the timer so it will not fire on a future Advance.
func (t *fakeTimer) Stop() bool {
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the clock's current simulated time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run when the clock is advanced past d from now.
func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{deadline: c.now.Add(d), seq: c.seq, f: f}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the clock forward by d and synchronously runs every timer
// whose deadline is now due, in deadline order (ties broken by schedule
// order). A callback that schedules a new timer with a deadline still
// within the advanced window is also run before Advance returns.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.pending, func(i, j int) bool {
			if c.pending[i].deadline.Equal(c.pending[j].deadline) {
				return c.pending[i].seq < c.pending[j].seq
			}
			return c.pending[i].deadline.Before(c.pending[j].deadline)
		})

		var due *fakeTimer
		remaining := c.pending[:0]
		for _, t := range c.pending {
			if due == nil && !t.stopped && !t.fired && !t.deadline.After(target) {
				due = t
				continue
			}
			remaining = append(remaining, t)
		}
		c.pending = remaining
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		// Run each callback at its own deadline so timers it schedules
		// are measured from there, not from the end of the window.
		if due.deadline.After(c.now) {
			c.now = due.deadline
		}
		c.mu.Unlock()

		due.fired = true
		due.f()
	}
}

// PendingCount returns the number of timers not yet fired or stopped.
func (c *Fake) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}
