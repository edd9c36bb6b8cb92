package sched

import "time"

// Task is anything the manager invokes on a tick. Implementations embed
// TimedObject (or StateMachine) to satisfy the unexported method and provide
// Tick on top.
//
// Tick reads the tick's input snapshot and may mutate the shared output. It
// must not block, sleep, or call back into the manager's guarded accessors:
// it already runs with the tick holding exclusivity.
//
// Tasks are registered and removed by identity, so they should be pointer
// values.
type Task[I, O any] interface {
	Tick(in I, out *O)

	advance(now time.Time)
}

// TimedObject is the base capability for tasks driven by the manager. It
// tracks the time elapsed since its previous invocation and exposes the
// current tick timestamp, frozen for the whole tick.
type TimedObject struct {
	tickTime time.Time
	elapsed  time.Duration
}

// advance freezes the tick timestamp and derives the elapsed time since the
// previous invocation. The manager calls it immediately before Tick, on every
// invocation including the first; the first one establishes the baseline and
// reports a zero elapsed time.
func (t *TimedObject) advance(now time.Time) {
	if t.tickTime.IsZero() {
		t.elapsed = 0
	} else {
		t.elapsed = now.Sub(t.tickTime)
	}
	t.tickTime = now
}

// LastPeriod returns the time between the current tick and the previous one.
func (t *TimedObject) LastPeriod() time.Duration { return t.elapsed }

// TickTime returns the timestamp captured for the current tick. Every read
// during a single Tick call sees the same value.
func (t *TimedObject) TickTime() time.Time { return t.tickTime }

// NewTimer returns a Timer anchored at the current tick timestamp.
func (t *TimedObject) NewTimer() Timer {
	return Timer{parent: t, since: t.tickTime}
}
