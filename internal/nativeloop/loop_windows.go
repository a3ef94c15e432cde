//go:build windows

package nativeloop

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"github.com/cryguy/jstimers/internal/timeval"
)

// HandleLoop is the Windows-flavored native bridge (spec §6: "On
// platforms with a dedicated timer handle: handle.init(loop),
// handle.start(ms, 0, callback), handle.ref/unref"). Unlike PollLoop it
// does not rely on the caller re-deriving a wait deadline every
// iteration — Reschedule re-arms the waitable timer handle directly.
type HandleLoop struct {
	mu       sync.Mutex
	refCount int
	handle   windows.Handle
	onRef    func()
	onUnref  func()
}

// NewHandleLoop creates a waitable timer handle via CreateWaitableTimer
// and wraps it as a NativeLoop.
func NewHandleLoop(onRef, onUnref func()) (*HandleLoop, error) {
	h, err := windows.CreateWaitableTimer(nil, false, nil)
	if err != nil {
		return nil, err
	}
	return &HandleLoop{handle: h, onRef: onRef, onUnref: onUnref}, nil
}

// Ref implements NativeLoop.
func (l *HandleLoop) Ref() {
	l.mu.Lock()
	before := l.refCount
	l.refCount++
	l.mu.Unlock()
	if before == 0 && l.onRef != nil {
		l.onRef()
	}
}

// Unref implements NativeLoop.
func (l *HandleLoop) Unref() {
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

// Reschedule re-arms the waitable timer for next (spec §4.2: "on
// Windows, refresh the native loop's deadline"). SetWaitableTimer takes
// a negative 100ns-tick relative due time for a relative deadline.
func (l *HandleLoop) Reschedule(next timeval.Time) {
	d := next.Sub(timeval.Now())
	if d < 0 {
		d = 0
	}
	due := -int64(d / 100)
	ft := windows.Filetime{LowDateTime: uint32(due), HighDateTime: uint32(due >> 32)}
	_ = windows.SetWaitableTimer(l.handle, &ft, 0, 0, 0, false)
}

// Close releases the underlying handle.
func (l *HandleLoop) Close() error {
	return windows.CloseHandle(l.handle)
}

// Wait blocks on the handle becoming signaled, or until timeout elapses,
// whichever comes first — the Windows analogue of PollLoop's Wait.
func (l *HandleLoop) Wait(timeout time.Duration) error {
	ms := uint32(windows.INFINITE)
	if timeout >= 0 {
		ms = uint32(timeout.Milliseconds())
	}
	_, err := windows.WaitForSingleObject(l.handle, ms)
	return err
}
