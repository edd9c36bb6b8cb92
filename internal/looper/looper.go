// Package looper provides the periodic wall-clock trigger behind the
// scheduler: one goroutine firing a callback on a fixed best-effort cadence,
// with pause/resume control.
package looper

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "automat/pkg/logx"
)

// Looper owns a single goroutine that invokes a callback once per period
// while running. Timing is best effort (time.Ticker underneath): a slow
// callback delays subsequent firings, it is never run concurrently with
// itself.
type Looper struct {
	period time.Duration
	fn     func()
	log    logx.Logger

	mu      sync.Mutex
	running bool
	closed  bool

	wake chan struct{}
	done chan struct{}

	overrun rate.Sometimes
}

// New builds the looper and starts its goroutine. With startPaused the
// callback does not fire until Resume.
func New(period time.Duration, fn func(), startPaused bool, log logx.Logger) *Looper {
	if period <= 0 {
		period = time.Millisecond
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	l := &Looper{
		period:  period,
		fn:      fn,
		log:     log,
		running: !startPaused,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		overrun: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	go l.run()
	return l
}

// Period returns the configured cadence.
func (l *Looper) Period() time.Duration { return l.period }

// Resume starts (or restarts) the cadence. The first callback fires one full
// period after Resume. No-op when already running or closed.
func (l *Looper) Resume() { l.setRunning(true) }

// Pause stops scheduling further callbacks. A callback already in flight
// completes; Pause does not wait for it.
func (l *Looper) Pause() { l.setRunning(false) }

func (l *Looper) setRunning(v bool) {
	l.mu.Lock()
	changed := !l.closed && l.running != v
	if changed {
		l.running = v
	}
	l.mu.Unlock()
	if changed {
		l.kick()
	}
}

// Close stops the goroutine and waits for it to exit. The looper must not be
// reused afterwards. Safe to call more than once.
func (l *Looper) Close() error {
	l.mu.Lock()
	already := l.closed
	l.closed = true
	l.mu.Unlock()
	if !already {
		l.kick()
	}
	<-l.done
	return nil
}

// kick nudges the run loop to re-read its control state. The buffer of one
// coalesces bursts of control changes.
func (l *Looper) kick() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Looper) run() {
	defer close(l.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		l.mu.Lock()
		running, closed := l.running, l.closed
		l.mu.Unlock()

		if closed {
			return
		}
		if running && ticker == nil {
			ticker = time.NewTicker(l.period)
			tick = ticker.C
		} else if !running && ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}

		select {
		case <-l.wake:
		case <-tick:
			l.fire()
		}
	}
}

func (l *Looper) fire() {
	start := time.Now()
	l.fn()
	if took := time.Since(start); took > l.period {
		l.overrun.Do(func() {
			l.log.Warn("loop callback overran its period",
				logx.Duration("period", l.period),
				logx.Duration("took", took))
		})
	}
}
