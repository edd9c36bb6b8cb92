package sched

import "time"

// ResetPolicy selects how SetState treats a request naming the state the
// machine is already in.
type ResetPolicy uint8

const (
	// ResetOnChange (the default) makes SetState to the current state a
	// no-op: TimeInState keeps accumulating and no transition is recorded.
	ResetOnChange ResetPolicy = iota
	// ResetAlways restarts TimeInState and the transition marker even when
	// the requested state equals the current one.
	ResetAlways
)

type recency uint8

const (
	recThisTick recency = iota
	recPreviousTick
	recStable
)

// StateMachine extends TimedObject with a typed discrete state, a
// time-in-state counter, and one-tick-delayed transition detection. Concrete
// automatons embed it and implement Tick as a dispatch over State(), calling
// SetState to transition and NewTimer/Timer.Elapsed to gate time-based
// transitions.
//
// The zero value starts in the zero value of S, marked as freshly entered.
// Set a different initial state in the automaton's constructor.
type StateMachine[S comparable] struct {
	TimedObject

	state   S
	inState time.Duration
	changed recency
	policy  ResetPolicy
}

// advance shadows the TimedObject step: after the base bookkeeping it
// accumulates time-in-state and ages the transition marker by one stage.
func (m *StateMachine[S]) advance(now time.Time) {
	m.TimedObject.advance(now)
	m.inState += m.LastPeriod()
	switch m.changed {
	case recThisTick:
		m.changed = recPreviousTick
	case recPreviousTick:
		m.changed = recStable
	}
}

// State returns the current state.
func (m *StateMachine[S]) State() S { return m.state }

// SetState transitions the machine: the state is replaced, TimeInState
// restarts at zero, and JustTransitioned reads true during the following
// tick. Under the default ResetOnChange policy a request naming the current
// state does nothing.
func (m *StateMachine[S]) SetState(s S) {
	if m.policy == ResetOnChange && s == m.state {
		return
	}
	m.state = s
	m.inState = 0
	m.changed = recThisTick
}

// TimeInState returns the accumulated tick time since the last transition.
func (m *StateMachine[S]) TimeInState() time.Duration { return m.inState }

// JustTransitioned reports whether the machine is running its first tick in
// the current state. A transition requested during tick N reads true during
// tick N+1 and false from N+2 onward.
func (m *StateMachine[S]) JustTransitioned() bool { return m.changed == recPreviousTick }

// SetResetPolicy switches the SetState same-value behavior.
func (m *StateMachine[S]) SetResetPolicy(p ResetPolicy) { m.policy = p }
