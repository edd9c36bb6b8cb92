package sched

import "sync"

// noCopy makes `go vet -copylocks` flag value copies of a Guard.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Guard is a scoped exclusivity handle over one of the manager's buffers.
// While it is held, the tick step that needs the buffer is deferred, so hold
// it as briefly as possible and release it with defer.
//
// Guards are created only by the manager and must not be copied; Release is
// idempotent, so double releases (an explicit call plus a defer) are safe.
// Calling back into the manager while holding a guard over the buffer it
// needs deadlocks; that is a caller bug, not a recoverable state.
type Guard[T any] struct {
	noCopy noCopy

	value   *T
	release func()
	once    sync.Once
}

func newGuard[T any](v *T, release func()) *Guard[T] {
	return &Guard[T]{value: v, release: release}
}

// Value returns the guarded buffer. The pointer must not be retained past
// Release.
func (g *Guard[T]) Value() *T { return g.value }

// Release relinquishes exclusivity. Exactly one release reaches the manager
// no matter how many times it is called.
func (g *Guard[T]) Release() { g.once.Do(g.release) }
