package webapi

import (
	"fmt"
	"sync/atomic"

	"github.com/cryguy/jstimers/internal/asyncid"
	"github.com/cryguy/jstimers/internal/core"
	"github.com/cryguy/jstimers/internal/inspector"
	"github.com/cryguy/jstimers/internal/timerobj"
)

// EngineHost adapts a core.JSRuntime plus an optional inspector.Bridge into
// the internal/timerobj.Host collaborator every TimeoutObject/ImmediateObject
// needs (spec.md §6 "Host-JS binding" and the four inspector hooks).
// Callbacks are represented as plain numeric timer ids — the actual JS
// function value lives JS-side in globalThis.__timerCallbacks, matching the
// teacher's eventloop.go fireTimer idiom of never round-tripping a JS
// function value through Go.
type EngineHost struct {
	RT     core.JSRuntime
	Bridge *inspector.Bridge // nil disables inspector notifications

	// runnable is written by engine.go's watchdog goroutine and read on
	// the event-loop goroutine from FireTimer's dispatch check, the same
	// cross-goroutine shape as engine.go's own timedOut atomic.Bool.
	runnable atomic.Bool
}

// NewEngineHost wraps rt (and, optionally, bridge) as a timerobj.Host.
func NewEngineHost(rt core.JSRuntime, bridge *inspector.Bridge) *EngineHost {
	h := &EngineHost{RT: rt, Bridge: bridge}
	h.runnable.Store(true)
	return h
}

// Invoke looks up globalThis.__timerCallbacks[id] and calls it (spec §6
// "invokeTimeoutCallback"). callback is the plain int32 timer id boxed as
// timerobj.Callback by timers.go's __timerCreate.
func (h *EngineHost) Invoke(callback timerobj.Callback, _ []any) {
	id, ok := callback.(int32)
	if !ok {
		return
	}
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		try {
			entry.fn.apply(null, entry.args || []);
		} catch (e) {
			if (typeof reportError === 'function') reportError(e);
		}
	})()`, id, id)
	if err := h.RT.Eval(js); err != nil {
		core.AddLog("error", fmt.Sprintf("timer callback %d: %v", id, err))
	}
	h.RT.RunMicrotasks()
}

// Runnable reports whether fired timers may still be dispatched (spec
// §4.4 step 1). engine.go flips this false once a run's watchdog trips, so
// a timer that fires after the deadline is disarmed rather than invoked.
func (h *EngineHost) Runnable() bool { return h.runnable.Load() }

// SetRunnable is called by engine.go's watchdog.
func (h *EngineHost) SetRunnable(v bool) { h.runnable.Store(v) }

// ScheduleAsync, WillDispatch, DidDispatch and CancelAsync forward to the
// inspector bridge when one is attached; CancelAsync additionally clears
// the JS-side callback entry so a cancelled timer's closure isn't retained.
func (h *EngineHost) ScheduleAsync(asyncID int64) {
	if h.Bridge != nil {
		h.Bridge.ScheduleAsync(asyncID)
	}
}

func (h *EngineHost) WillDispatch(asyncID int64) {
	if h.Bridge != nil {
		h.Bridge.WillDispatch(asyncID)
	}
}

func (h *EngineHost) DidDispatch(asyncID int64) {
	if h.Bridge != nil {
		h.Bridge.DidDispatch(asyncID)
	}
}

func (h *EngineHost) CancelAsync(asyncID int64) {
	if h.Bridge != nil {
		h.Bridge.CancelAsync(asyncID)
	}
	id, _ := asyncid.Unpack(asyncID)
	_ = h.RT.Eval(fmt.Sprintf("delete globalThis.__timerCallbacks[%d];", id))
}
