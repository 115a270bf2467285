// Package repeater implements the generic packet repeater (C3) and its
// Prober (C4) and Announcer (C5) specializations: a scheduling
// primitive that repeats a send a fixed number of times with a
// caller-supplied delay function, driven by the single-threaded
// cooperative event loop the advertiser runs on (see the clock
// package's Clock seam).
package repeater

import (
	"sync"
	"time"

	"github.com/beaconmdns/beacon/internal/clock"
)

// DelayFunc computes the delay before the send at nextIndex (the
// zero-based index of the send about to happen).
type DelayFunc func(nextIndex int) time.Duration

// Callbacks are invoked by a Repeater as a scheduled send completes.
type Callbacks[T any] struct {
	// OnSent fires after each send, including the last.
	OnSent func(index int, payload T)
	// OnFinished fires once, after the last send, and never fires if the
	// send sequence was stopped early.
	OnFinished func(payload T)
}

type pendingSend[T any] struct {
	payload   T
	sentCount int
	numSends  int
	delay     DelayFunc
	cb        Callbacks[T]
	timer     clock.Timer
}

// Repeater schedules repeated sends keyed by an arbitrary id (a service
// id in this module's usage), using clk to drive timing so tests can
// advance a fake clock instead of sleeping. It is not safe for
// unsynchronized concurrent use beyond what its own mutex provides;
// callers on the advertiser's event loop only ever call it from one
// goroutine at a time in practice.
type Repeater[T any] struct {
	clk     clock.Clock
	mu      sync.Mutex
	pending map[uint64]*pendingSend[T]
}

// New returns a Repeater driven by clk.
func New[T any](clk clock.Clock) *Repeater[T] {
	return &Repeater[T]{clk: clk, pending: make(map[uint64]*pendingSend[T])}
}

// StartSending begins a new send sequence for id: numSends sends total,
// delay between sends given by delay, the first send happening after
// initialDelay. Starting a sequence for an id that already has one
// pending replaces it.
func (r *Repeater[T]) StartSending(id uint64, payload T, numSends int, delay DelayFunc, initialDelay time.Duration, cb Callbacks[T]) {
	ps := &pendingSend[T]{payload: payload, numSends: numSends, delay: delay, cb: cb}

	r.mu.Lock()
	if old, ok := r.pending[id]; ok && old.timer != nil {
		old.timer.Stop()
	}
	r.pending[id] = ps
	r.mu.Unlock()

	ps.timer = r.clk.AfterFunc(initialDelay, func() { r.fire(id) })
}

// Stop cancels id's pending send sequence. It returns true iff a
// sequence was in flight and was stopped before completing; calling
// Stop again, or on an id that already finished, returns false.
func (r *Repeater[T]) Stop(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ps, ok := r.pending[id]
	if !ok {
		return false
	}
	if ps.timer != nil {
		ps.timer.Stop()
	}
	delete(r.pending, id)
	return true
}

func (r *Repeater[T]) fire(id uint64) {
	r.mu.Lock()
	ps, ok := r.pending[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	index := ps.sentCount
	ps.sentCount++
	done := ps.sentCount >= ps.numSends
	var next time.Duration
	if !done {
		next = ps.delay(ps.sentCount)
	}
	r.mu.Unlock()

	if ps.cb.OnSent != nil {
		ps.cb.OnSent(index, ps.payload)
	}

	if done {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
		if ps.cb.OnFinished != nil {
			ps.cb.OnFinished(ps.payload)
		}
		return
	}

	r.mu.Lock()
	if _, stillPending := r.pending[id]; stillPending {
		ps.timer = r.clk.AfterFunc(next, func() { r.fire(id) })
	}
	r.mu.Unlock()
}
