// Package nativeloop implements the native event-loop bridge spec.md §6
// describes: "loop.ref()/loop.unref()", and either a POSIX-style
// get_timeout query or, on platforms with a dedicated timer handle, a
// handle.init/start/ref/unref shape. internal/timerscheduler depends
// only on the NativeLoop interface it declares; this package supplies
// the concrete implementations selected by build tag.
package nativeloop

import (
	"sync"
	"time"

	"github.com/cryguy/jstimers/internal/timeval"
)

// PollLoop is the default, POSIX-style bridge (spec §6 "a get_timeout
// query that feeds the loop's wait call"): it has no dedicated timer
// handle, so Reschedule is a no-op and the caller is expected to
// re-derive its wait deadline from TimerScheduler.GetTimeout on every
// iteration.
type PollLoop struct {
	mu       sync.Mutex
	refCount int
	onRef    func()
	onUnref  func()
}

// NewPollLoop creates a PollLoop. onRef/onUnref may be nil; they are
// invoked on a 0<->positive transition of the loop's own reference
// count, letting a host wire this into whatever keeps its process alive
// (e.g. an os.Exit guard, a WaitGroup, a channel close).
func NewPollLoop(onRef, onUnref func()) *PollLoop {
	return &PollLoop{onRef: onRef, onUnref: onUnref}
}

// Ref implements NativeLoop.
func (l *PollLoop) Ref() {
	l.mu.Lock()
	before := l.refCount
	l.refCount++
	l.mu.Unlock()
	if before == 0 && l.onRef != nil {
		l.onRef()
	}
}

// Unref implements NativeLoop.
func (l *PollLoop) Unref() {
	l.mu.Lock()
	l.refCount--
	if l.refCount < 0 {
		l.refCount = 0
	}
	after := l.refCount
	l.mu.Unlock()
	if after == 0 && l.onUnref != nil {
		l.onUnref()
	}
}

// Reschedule is a no-op for PollLoop: POSIX-style loops re-derive their
// wait deadline from TimerScheduler.GetTimeout on every wake rather than
// being pushed a new one.
func (l *PollLoop) Reschedule(_ timeval.Time) {}

// RefCount reports the current reference count, for diagnostics/tests.
func (l *PollLoop) RefCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refCount
}

// Wait blocks for at most timeout, or until stop is closed. When
// hasTimeout is false (the "no timer-bounded wait" case of GetTimeout's
// false return) it ignores timeout and waits only for stop. It is the minimal POSIX wait-call
// analogue spec §6 describes as the consumer of get_timeout.
func Wait(timeout time.Duration, hasTimeout bool, stop <-chan struct{}) {
	if !hasTimeout {
		<-stop
		return
	}
	select {
	case <-time.After(timeout):
	case <-stop:
	}
}
