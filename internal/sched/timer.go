package sched

import "time"

// Timer is a disposable stopwatch anchored to its parent's tick time.
//
// The zero value is permanently inert: Elapsed is always 0 and Active is
// false. Deactivate puts a live timer into the same state.
type Timer struct {
	since  time.Time
	parent *TimedObject
}

// Elapsed returns the tick time elapsed since the timer was created, or 0
// for an inert timer. It advances only as the parent is ticked.
func (t Timer) Elapsed() time.Duration {
	if t.parent == nil {
		return 0
	}
	return t.parent.tickTime.Sub(t.since)
}

// Active reports whether the timer is live.
func (t Timer) Active() bool { return t.parent != nil }

// Deactivate makes the timer permanently inert.
func (t *Timer) Deactivate() { t.parent = nil }
