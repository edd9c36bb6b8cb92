// Package eventbus fans out control-loop events to in-process observers
// (history recording, log taps, UIs) without coupling them to the scheduler.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the automat daemon.
const (
	TypeTickPublished = "loop.tick"
	TypeLoopPaused    = "loop.paused"
	TypeLoopResumed   = "loop.resumed"
)

// Event is a lightweight, in-memory signal emitted by the control loop.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// For TypeTickPublished, Seq is the tick counter value and Data carries the
// published output. Data should be small and ideally JSON-serializable.
type Event struct {
	Type string
	Time time.Time
	Seq  uint64
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())

	// Dropped returns the number of events discarded because a subscriber's
	// buffer was full.
	Dropped() uint64
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines: Publish runs on
// the caller's goroutine, which for tick events is the scheduler's own, so
// delivery must never block.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	chs := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If a subscriber is slow, we drop.
		// If a subscriber unsubscribes concurrently and the channel closes,
		// recover from a possible panic (send on closed channel).
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- e:
			default:
				b.dropped.Add(1)
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}

func (b *memBus) Dropped() uint64 { return b.dropped.Load() }
