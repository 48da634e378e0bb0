// Package loop implements the serial event loop that owns all model and
// view state in a Prism session.
//
// Every model mutation, view notification, and inbound host message runs
// as a callback on a single goroutine, so packages model and view need no
// internal locking. Code on other goroutines hands work to the loop with
// Post; blocking work started from the loop posts its result back instead
// of blocking the loop goroutine.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/go-prism/prism/pkg/errors"
)

// Loop is a serial executor for session callbacks.
//
// Drive it either with Run on a dedicated goroutine, or manually with
// Pump (tests, embedders with their own scheduler). Do not mix the two.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// New returns an empty loop. It does not start a goroutine; call Run or
// drain it with Pump.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
	}
}

// Post enqueues fn to run on the loop goroutine. Callbacks run in FIFO
// order. Post is safe to call from any goroutine, including loop
// callbacks themselves. A nil fn is ignored.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// PostWait enqueues fn and blocks until it has run. It is intended for
// request handlers on transport goroutines that need a result computed on
// the loop. Calling PostWait from a loop callback deadlocks.
func (l *Loop) PostWait(fn func()) {
	if fn == nil {
		return
	}
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

// Run processes callbacks on the calling goroutine until ctx is done,
// then returns ctx.Err(). A panicking callback is reported through the
// errors package and does not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			l.drain()
		}
	}
}

// Pump runs queued callbacks on the calling goroutine until the queue is
// empty, including callbacks enqueued while pumping, and returns how many
// ran. It is the manual alternative to Run.
func (l *Loop) Pump() int {
	ran := 0
	for {
		fn, ok := l.next()
		if !ok {
			return ran
		}
		l.invoke(fn)
		ran++
	}
}

// Pending reports how many callbacks are queued.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) drain() {
	for {
		fn, ok := l.next()
		if !ok {
			return
		}
		l.invoke(fn)
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			errors.ReportPanic(&errors.PanicError{
				Op:         "loop.invoke",
				Value:      r,
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			})
		}
	}()
	fn()
}
