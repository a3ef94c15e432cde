package timercore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryguy/jstimers/internal/timeval"
)

// ImminentSlot is the atomic pointer shared between a set of WTFTimers and
// the native event loop's fast path (spec §4.6, GLOSSARY "Imminent
// timer"). The event loop checks Load() before doing anything else on
// each wake: a non-nil result is a zero-delay host-runloop timer that can
// be fired inline without touching the TimerStore at all.
type ImminentSlot struct {
	p atomic.Pointer[WTFTimer]
}

// Load returns the currently-imminent timer, or nil.
func (s *ImminentSlot) Load() *WTFTimer { return s.p.Load() }

func (s *ImminentSlot) store(w *WTFTimer) { s.p.Store(w) }

func (s *ImminentSlot) clear(w *WTFTimer) {
	// Only clear if we're still the published pointer — a racing Update
	// from a different timer may have already overwritten the slot.
	s.p.CompareAndSwap(w, nil)
}

// WTFTimer is the lower-level timer integrated with a host runloop (spec
// §2 component 7, §4.6) — e.g. a GC scheduler's own periodic tick. It is
// distinguished from JS-visible timers by the zero-delay fast path (the
// ImminentSlot) and by having its own leaf mutex instead of relying on
// TimerScheduler's.
type WTFTimer struct {
	Timer

	mu       sync.Mutex
	imminent *ImminentSlot
	repeat   time.Duration // 0 = one-shot
	fire     func(now timeval.Time)
}

// NewWTFTimer creates a WTFTimer that publishes itself into slot when
// armed with a zero delay, and invokes fireFn on expiry.
func NewWTFTimer(slot *ImminentSlot, fireFn func(now timeval.Time)) *WTFTimer {
	w := &WTFTimer{imminent: slot, fire: fireFn}
	w.Timer.Init(TagWTF, w)
	return w
}

// Update arms the timer for delay from now, rearming the repeat interval
// if repeating is true. A zero (or negative) delay publishes the timer
// into the ImminentSlot for lock-free fast-path firing; a positive delay
// clears it
// (spec §4.6: "update(seconds=0, _) stores self into imminent; any
// non-zero update clears it").
func (w *WTFTimer) Update(delay time.Duration, repeating bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if repeating {
		w.repeat = delay
	} else {
		w.repeat = 0
	}
	w.FireAt = timeval.Now().AddMs(delay.Milliseconds())
	if delay <= 0 {
		w.imminent.store(w)
	} else {
		w.imminent.clear(w)
	}
}

// Cancel disarms the timer. Safe to call from any thread; guarded by the
// timer's own leaf mutex, never the scheduler's (spec §5 "Lock
// hierarchy").
func (w *WTFTimer) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.imminent.clear(w)
	w.State = StateCancelled
}

// SecondsUntilTimer reports the time remaining until expiry, safe to call
// from any thread.
func (w *WTFTimer) SecondsUntilTimer() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.FireAt.Sub(timeval.Now())
	if d < 0 {
		return 0
	}
	return d.Seconds()
}

// FireTimer implements Owner. It sets state FIRED, clears the imminent
// slot, invokes the external firing function, and reports whether the
// scheduler should rearm it (spec §4.6 "fire").
func (w *WTFTimer) FireTimer(now timeval.Time, _ any) Outcome {
	w.mu.Lock()
	w.State = StateFired
	w.imminent.clear(w)
	repeat := w.repeat
	w.mu.Unlock()

	w.fire(now)

	if repeat > 0 {
		next := now.AddMs(repeat.Milliseconds())
		w.mu.Lock()
		w.FireAt = next
		w.State = StateActive
		w.mu.Unlock()
		return Rearm(next)
	}
	return Disarm()
}
