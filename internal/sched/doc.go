// Package sched implements a periodic, divisor-multiplexed task scheduler for
// cooperative automatons sharing a common input/output snapshot, the pattern
// used by PLC/automation-style control loops.
//
// # Overview
//
// A Manager owns an ordered registry of tasks, one live Input buffer and one
// live Output buffer. A periodic trigger fires the manager's tick on a single
// dedicated goroutine: the tick snapshots the input, runs every task whose
// period divisor is due this cycle (in registration order, against one shared
// mutable output so later tasks observe earlier tasks' writes), and publishes
// the result atomically.
//
// Tasks embed TimedObject (or StateMachine, which adds a typed discrete state
// with one-tick-delayed transition detection) and implement Tick. Task periods
// are exact multiples of the manager's base period; a task with divisor d
// fires on ticks 0, d, 2d, ...
//
// # Concurrency
//
// All ticks run sequentially on the trigger's goroutine; tasks never run
// concurrently with each other. Other goroutines exchange data through the
// Input() and Output() guards: holding a guard defers the tick step that
// needs the corresponding buffer until Release. The two buffers are guarded
// independently, so holding one never blocks access to the other. A value
// written through Input() is visible to the next tick's snapshot, never to a
// tick whose snapshot was already taken.
//
// # Lifecycle
//
// Managers are constructed paused. Register tasks, then call Unpause to start
// the trigger. Pausing is reentrant: a manager paused n times (plus the
// initial construction depth) needs n+1 Unpause calls to run. Registry and
// trigger-hook mutation is valid only while paused and reports ErrRunning
// otherwise.
package sched
