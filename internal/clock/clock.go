// Package clock provides the time seam used throughout the advertiser and
// discovery engines. Every component that schedules work (the repeater,
// the reply sender, the interface advertiser) takes a Clock instead of
// calling time.Now/time.AfterFunc directly, so tests can drive the
// probe→announce→active lifecycle deterministically instead of sleeping
// on the wall clock.
package clock

import "time"

// Clock abstracts time so the single-threaded cooperative scheduling model
// (one event handler, no locks on repository state) can be exercised by
// tests without real delays.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d elapses and returns a Timer
	// that can cancel the pending call. Semantics mirror time.AfterFunc.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of time.Timer that schedulers need.
type Timer interface {
	// Stop prevents the timer from firing, returning false if it already
	// fired or was already stopped.
	Stop() bool
}

// Real is a Clock backed by the actual wall clock and Go runtime timers.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time {
	return time.Now()
}

// AfterFunc delegates to time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
