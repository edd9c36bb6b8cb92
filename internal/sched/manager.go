package sched

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"automat/internal/looper"
	logx "automat/pkg/logx"
)

// Trigger is the periodic collaborator that drives ticks. Resume starts (or
// restarts) the cadence, Pause stops scheduling further callbacks without
// interrupting one already in flight, Close releases the trigger entirely.
type Trigger interface {
	Resume()
	Pause()
	Close() error
}

// TriggerFactory builds the manager's trigger. fire is invoked once per
// period on the trigger's own goroutine; it is the manager's tick.
type TriggerFactory func(period time.Duration, fire func(), startPaused bool) Trigger

var (
	// ErrRunning reports a registry or trigger-hook mutation attempted while
	// the manager is not paused.
	ErrRunning = errors.New("sched: manager is running")

	// ErrNotPaused reports an Unpause call on a manager that is already
	// running. Unpausing past depth zero is forbidden by contract.
	ErrNotPaused = errors.New("sched: manager is not paused")

	// ErrPeriodNotMultiple reports a task period that is not an exact
	// multiple of the base period. Truncating the divisor would silently run
	// the task faster than requested, so registration refuses instead.
	ErrPeriodNotMultiple = errors.New("sched: period is not a multiple of the base period")

	// ErrPeriodTooShort reports a task period below the base period.
	ErrPeriodTooShort = errors.New("sched: period is shorter than the base period")

	// ErrTaskNotFound reports a Remove call for a task that was never
	// registered (or was already removed).
	ErrTaskNotFound = errors.New("sched: task is not registered")
)

// Config configures a Manager.
type Config struct {
	// BasePeriod is the fundamental tick interval. Every task period must be
	// an exact multiple of it.
	BasePeriod time.Duration

	// Trigger overrides the periodic trigger factory; by default the manager
	// runs off a looper.Looper. Tests substitute a hand-driven trigger to
	// fire ticks deterministically.
	Trigger TriggerFactory

	// Now overrides the tick clock (defaults to time.Now). Tests use it to
	// step automaton time without waiting on the wall clock.
	Now func() time.Time
}

type entry[I, O any] struct {
	divisor uint64
	task    Task[I, O]
}

// Manager owns the task registry and the live Input/Output buffers and runs
// the per-tick algorithm. See the package documentation for the execution
// and concurrency model.
type Manager[I, O any] struct {
	log logx.Logger

	basePeriod time.Duration
	trigger    Trigger
	now        func() time.Time

	// Registry. Mutated only while paused, traversed only by the tick
	// goroutine, so it needs no lock of its own.
	entries []entry[I, O]

	inMu  sync.Mutex
	input I

	outMu  sync.Mutex
	output O

	ticks atomic.Uint64

	pauseMu    sync.Mutex
	pauseDepth int

	inputTrigger  func(*I)
	outputTrigger func(O)
}

// New constructs a paused manager owning copies of the given buffers. The
// periodic trigger is created immediately but fires nothing until Unpause.
func New[I, O any](input I, output O, cfg Config, log logx.Logger) (*Manager[I, O], error) {
	if cfg.BasePeriod <= 0 {
		return nil, fmt.Errorf("sched: base period must be positive, got %v", cfg.BasePeriod)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager[I, O]{
		log:        log,
		basePeriod: cfg.BasePeriod,
		now:        now,
		input:      input,
		output:     output,
		pauseDepth: 1,
	}
	factory := cfg.Trigger
	if factory == nil {
		factory = func(period time.Duration, fire func(), startPaused bool) Trigger {
			return looper.New(period, fire, startPaused, log)
		}
	}
	m.trigger = factory(cfg.BasePeriod, m.tick, true)
	return m, nil
}

// Add registers a task firing every period, appended after previously
// registered tasks. Registration order is execution order within a tick,
// which also defines which writes a task can observe from its predecessors.
// Valid only while paused.
func (m *Manager[I, O]) Add(period time.Duration, task Task[I, O]) error {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.pauseDepth == 0 {
		return ErrRunning
	}
	if period < m.basePeriod {
		return fmt.Errorf("%w: %v < %v", ErrPeriodTooShort, period, m.basePeriod)
	}
	if period%m.basePeriod != 0 {
		return fmt.Errorf("%w: %v is not divisible by %v", ErrPeriodNotMultiple, period, m.basePeriod)
	}
	div := uint64(period / m.basePeriod)
	m.entries = append(m.entries, entry[I, O]{divisor: div, task: task})
	m.log.Debug("task registered",
		logx.Duration("period", period),
		logx.Uint64("divisor", div),
		logx.Int("tasks", len(m.entries)))
	return nil
}

// Remove drops every registry entry holding exactly this task, compared by
// identity. Valid only while paused.
func (m *Manager[I, O]) Remove(task Task[I, O]) error {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.pauseDepth == 0 {
		return ErrRunning
	}
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if e.task == task {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = entry[I, O]{}
	}
	m.entries = kept
	if removed == 0 {
		return ErrTaskNotFound
	}
	m.log.Debug("task removed", logx.Int("tasks", len(m.entries)))
	return nil
}

// Pause suspends ticking. Pausing nests: every Pause call past the first
// only deepens the count, and the manager resumes after a matching number of
// Unpause calls. A tick already in flight completes; Pause does not wait for
// it.
func (m *Manager[I, O]) Pause() {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.pauseDepth == 0 {
		m.trigger.Pause()
		m.pauseDepth = 1
		m.log.Debug("paused")
		return
	}
	m.pauseDepth++
}

// Unpause undoes one level of pausing; at depth one it starts the periodic
// trigger at the base period. Managers are constructed at depth one, so a
// freshly built manager runs after a single Unpause. Calling Unpause on a
// running manager returns ErrNotPaused.
func (m *Manager[I, O]) Unpause() error {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	switch m.pauseDepth {
	case 0:
		return ErrNotPaused
	case 1:
		m.pauseDepth = 0
		m.trigger.Resume()
		m.log.Debug("running", logx.Duration("base_period", m.basePeriod))
	default:
		m.pauseDepth--
	}
	return nil
}

// Paused reports whether ticking is currently suspended.
func (m *Manager[I, O]) Paused() bool {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	return m.pauseDepth > 0
}

// Ticks returns the number of completed scheduler cycles.
func (m *Manager[I, O]) Ticks() uint64 { return m.ticks.Load() }

// Input acquires the input buffer and returns a guard with direct read/write
// access. The next tick's input snapshot blocks until the guard is released.
func (m *Manager[I, O]) Input() *Guard[I] {
	m.inMu.Lock()
	return newGuard(&m.input, m.inMu.Unlock)
}

// Output acquires the most recently published output and returns a guard
// over it. Treat the buffer as read-only; the tick path replaces it
// wholesale on publish. The next tick's publish step (and its baseline
// snapshot) blocks until the guard is released.
func (m *Manager[I, O]) Output() *Guard[O] {
	m.outMu.Lock()
	return newGuard(&m.output, m.outMu.Unlock)
}

// SetInputTrigger installs fn, run on the tick goroutine once per cycle
// under the input lock, just before the input snapshot is taken. It receives
// the live input buffer and may mutate it directly. Valid only while paused.
func (m *Manager[I, O]) SetInputTrigger(fn func(*I)) error {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.pauseDepth == 0 {
		return ErrRunning
	}
	m.inputTrigger = fn
	return nil
}

// SetOutputTrigger installs fn, run on the tick goroutine once per cycle
// after publish with the just-published output. Valid only while paused.
func (m *Manager[I, O]) SetOutputTrigger(fn func(O)) error {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.pauseDepth == 0 {
		return ErrRunning
	}
	m.outputTrigger = fn
	return nil
}

// Close pauses the manager and releases the periodic trigger. The manager
// must not be used afterwards.
func (m *Manager[I, O]) Close() error {
	m.pauseMu.Lock()
	defer m.pauseMu.Unlock()
	if m.pauseDepth == 0 {
		m.trigger.Pause()
		m.pauseDepth = 1
	}
	return m.trigger.Close()
}

// tick runs one scheduler cycle. It executes on the trigger's goroutine,
// which is the only context that reads the registry or calls into tasks.
func (m *Manager[I, O]) tick() {
	// Baseline: the last published output. Taken under the output lock so a
	// held Output guard defers the cycle, symmetric with the input snapshot.
	m.outMu.Lock()
	out := m.output
	m.outMu.Unlock()

	m.inMu.Lock()
	if m.inputTrigger != nil {
		m.inputTrigger(&m.input)
	}
	in := m.input
	m.inMu.Unlock()

	now := m.now()
	seq := m.ticks.Load()
	for i := range m.entries {
		e := &m.entries[i]
		if seq%e.divisor == 0 {
			e.task.advance(now)
			e.task.Tick(in, &out)
		}
	}
	m.ticks.Add(1)

	m.outMu.Lock()
	m.output = out
	m.outMu.Unlock()

	if m.outputTrigger != nil {
		m.outputTrigger(out)
	}
}
