package sched

import (
	"testing"
	"time"
)

type phase int

const (
	phaseIdle phase = iota
	phaseRun
	phaseDone
)

// tickAt drives the machine's advance step directly, the way the manager
// does immediately before Tick.
func tickAt(m *StateMachine[phase], at time.Time) { m.advance(at) }

func TestJustTransitionedWindow(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	const period = 100 * time.Millisecond

	m := &StateMachine[phase]{}

	// The initial state counts as freshly entered: true on the first tick,
	// false from the second.
	tickAt(m, base)
	if !m.JustTransitioned() {
		t.Fatal("first tick in initial state: JustTransitioned = false, want true")
	}
	tickAt(m, base.Add(period))
	if m.JustTransitioned() {
		t.Fatal("second tick: JustTransitioned = true, want false")
	}

	// A transition requested during tick N is visible during tick N+1 only.
	m.SetState(phaseRun)
	if m.JustTransitioned() {
		t.Fatal("within the requesting tick the marker must not read true yet")
	}
	tickAt(m, base.Add(2*period))
	if !m.JustTransitioned() {
		t.Fatal("tick after SetState: JustTransitioned = false, want true")
	}
	tickAt(m, base.Add(3*period))
	if m.JustTransitioned() {
		t.Fatal("two ticks after SetState: JustTransitioned = true, want false")
	}
	tickAt(m, base.Add(4*period))
	if m.JustTransitioned() {
		t.Fatal("marker must stay false once stable")
	}
}

func TestTimeInStateAccumulatesAndResets(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	const period = 100 * time.Millisecond

	m := &StateMachine[phase]{}
	tickAt(m, base) // baseline, elapsed 0
	tickAt(m, base.Add(period))
	tickAt(m, base.Add(2*period))
	if got := m.TimeInState(); got != 2*period {
		t.Fatalf("TimeInState = %v, want %v", got, 2*period)
	}

	m.SetState(phaseRun)
	if got := m.TimeInState(); got != 0 {
		t.Fatalf("TimeInState after transition = %v, want 0", got)
	}
	tickAt(m, base.Add(3*period))
	if got := m.TimeInState(); got != period {
		t.Fatalf("TimeInState one tick later = %v, want %v", got, period)
	}
	if got := m.State(); got != phaseRun {
		t.Fatalf("State = %v, want %v", got, phaseRun)
	}
}

func TestSetStateSameValueIsNoOp(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	const period = 100 * time.Millisecond

	m := &StateMachine[phase]{}
	m.SetState(phaseRun)
	tickAt(m, base)
	tickAt(m, base.Add(period))
	tickAt(m, base.Add(2*period))
	inState := m.TimeInState()
	if inState == 0 {
		t.Fatal("expected accumulated time in state")
	}
	if m.JustTransitioned() {
		t.Fatal("expected stable state before the no-op")
	}

	m.SetState(phaseRun) // same value: must not record a transition

	if got := m.TimeInState(); got != inState {
		t.Fatalf("TimeInState = %v after same-value SetState, want %v", got, inState)
	}
	tickAt(m, base.Add(3*period))
	if m.JustTransitioned() {
		t.Fatal("same-value SetState must not arm JustTransitioned")
	}
}

func TestResetAlwaysPolicy(t *testing.T) {
	t.Parallel()
	base := time.Unix(1_700_000_000, 0)
	const period = 100 * time.Millisecond

	m := &StateMachine[phase]{}
	m.SetResetPolicy(ResetAlways)
	m.SetState(phaseRun)
	tickAt(m, base)
	tickAt(m, base.Add(period))
	tickAt(m, base.Add(2*period))
	if m.TimeInState() == 0 {
		t.Fatal("expected accumulated time in state")
	}

	m.SetState(phaseRun) // same value, but ResetAlways restarts everything

	if got := m.TimeInState(); got != 0 {
		t.Fatalf("TimeInState = %v, want 0 under ResetAlways", got)
	}
	tickAt(m, base.Add(3*period))
	if !m.JustTransitioned() {
		t.Fatal("ResetAlways must arm JustTransitioned on same-value SetState")
	}
}
