// Package timerobj implements the JS-visible timer wrappers (spec.md
// §2 components 5 and 6: "TimerObjectInternals" and "TimeoutObject /
// ImmediateObject"). TimeoutObject covers both setTimeout and
// setInterval — they differ only by Kind and by whether fire() rearms —
// and ImmediateObject covers setImmediate, which never touches the
// TimerStore and instead lives on a separate FIFO ImmediateQueue.
package timerobj

import (
	"sync"
	"sync/atomic"

	"github.com/cryguy/jstimers/internal/asyncid"
	"github.com/cryguy/jstimers/internal/timercore"
	"github.com/cryguy/jstimers/internal/timerscheduler"
	"github.com/cryguy/jstimers/internal/timeval"
)

// Callback is whatever the host bridge needs to invoke the user's JS
// function; this package never inspects it.
type Callback any

// Host is the external collaborator set spec.md §6 describes as
// "Host-JS binding" and the inspector hooks. internal/webapi's
// EngineHost is the concrete Host for either JS runtime; this package only
// depends on the shape, matching spec.md §1's "only their interfaces
// are specified" boundary for the JS engine.
type Host interface {
	// Invoke calls callback with args, swallowing/reporting any thrown
	// JS exception (spec §6 "invokeTimeoutCallback").
	Invoke(callback Callback, args []any)
	// Runnable reports whether the script execution environment can
	// still accept a dispatched callback (spec §4.4 step 1). Hosts that
	// have no such concept may always return true.
	Runnable() bool
	// ScheduleAsync, WillDispatch, DidDispatch and CancelAsync are the
	// inspector hooks (spec §6 "didScheduleAsyncCall" etc.), each keyed
	// by the packed async id.
	ScheduleAsync(asyncID int64)
	WillDispatch(asyncID int64)
	DidDispatch(asyncID int64)
	CancelAsync(asyncID int64)
}

func tagForKind(kind timerscheduler.Kind) timercore.Tag {
	if kind == timerscheduler.KindInterval {
		return timercore.TagInterval
	}
	return timercore.TagTimeout
}

// TimeoutObject is the JS-visible wrapper behind setTimeout and
// setInterval (spec §3 "TimeoutObject / ImmediateObject"). It embeds an
// EventLoopTimer for TimerStore membership and carries the
// TimerObjectInternals state described in spec §4.4 directly (Go has no
// separate-allocation reason to split them into two structs).
type TimeoutObject struct {
	timercore.Timer

	mu sync.Mutex

	id         int32
	kind       timerscheduler.Kind
	intervalMs int32

	hasClearedTimer         bool
	isKeepingEventLoopAlive bool
	hasAccessedPrimitive    bool
	hasJSRef                bool
	inCallback              bool
	strongHandle            bool

	callback Callback
	args     []any

	refcount int32 // atomic; see acquireRef/release

	sched *timerscheduler.Scheduler
	host  Host
}

// NewTimeoutObject constructs and schedules id/kind's timer (spec §4.4
// "Construction"). The caller is expected to have already obtained id
// from sched.NextID().
func NewTimeoutObject(sched *timerscheduler.Scheduler, host Host, id int32, kind timerscheduler.Kind, intervalMs int32, cb Callback, args []any) *TimeoutObject {
	o := &TimeoutObject{
		id:         id,
		kind:       kind,
		intervalMs: intervalMs,
		callback:   cb,
		args:       args,
		sched:      sched,
		host:       host,
	}
	o.Timer.Init(tagForKind(kind), o)
	o.strongHandle = true
	o.acquireRef() // memory model ref (b): the JS wrapper's strong handle
	o.reschedule()
	host.ScheduleAsync(asyncid.Pack(id, uint32(kind)))
	return o
}

func (o *TimeoutObject) acquireRef() { atomic.AddInt32(&o.refcount, 1) }

func (o *TimeoutObject) release() {
	if atomic.AddInt32(&o.refcount, -1) == 0 {
		o.deinit()
	}
}

// reschedule implements spec §4.4 "reschedule": compute now+interval; if
// currently ACTIVE, scheduler.Update removes and reinserts with no
// refcount change; otherwise this call is the transition into the
// store, so it acquires memory-model ref (a).
func (o *TimeoutObject) reschedule() {
	next := timeval.MsFromNow(int64(o.intervalMs))
	if o.Timer.State != timercore.StateActive {
		o.acquireRef()
	}
	o.sched.Update(&o.Timer, next)
	o.mu.Lock()
	o.hasClearedTimer = false
	hasRef := o.hasJSRef
	o.mu.Unlock()
	if hasRef {
		o.engageKeepAlive()
	}
}

// engageKeepAlive / disengageKeepAlive implement
// setEnableKeepingEventLoopAlive (spec §4.4 "ref/unref"):
// is_keeping_event_loop_alive is a boolean latch, not a refcount (spec
// §9) — flips adjust active_timer_count by exactly ±1 and are
// idempotent.
func (o *TimeoutObject) engageKeepAlive() {
	o.mu.Lock()
	already := o.isKeepingEventLoopAlive
	o.isKeepingEventLoopAlive = true
	o.mu.Unlock()
	if !already {
		o.sched.IncrementTimerRef(1)
	}
}

func (o *TimeoutObject) disengageKeepAlive() {
	o.mu.Lock()
	was := o.isKeepingEventLoopAlive
	o.isKeepingEventLoopAlive = false
	o.mu.Unlock()
	if was {
		o.sched.IncrementTimerRef(-1)
	}
}

func (o *TimeoutObject) dropStrongHandle() {
	o.mu.Lock()
	had := o.strongHandle
	o.strongHandle = false
	o.mu.Unlock()
	if had {
		o.release()
	}
}

// deinit runs once, at the last deref (spec §4.4 "Finalization (GC)"):
// remove from the store if still ACTIVE, drop the id-map entry if
// present, disengage keep-alive. Freeing memory is left to the Go
// garbage collector — there is no separate "free" step to perform.
func (o *TimeoutObject) deinit() {
	if o.Timer.State == timercore.StateActive {
		o.sched.Remove(&o.Timer)
	}
	o.mu.Lock()
	hadAccessed := o.hasAccessedPrimitive
	o.mu.Unlock()
	if hadAccessed {
		o.sched.UnbindID(o.kind, o.id)
	}
	o.disengageKeepAlive()
}

// Ref implements the JS-visible ref() method (spec §6, §4.4).
func (o *TimeoutObject) Ref() { o.setHasJSRef(true) }

// Unref implements the JS-visible unref() method.
func (o *TimeoutObject) Unref() { o.setHasJSRef(false) }

// HasRef implements hasRef().
func (o *TimeoutObject) HasRef() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hasJSRef
}

func (o *TimeoutObject) setHasJSRef(v bool) {
	o.mu.Lock()
	changed := o.hasJSRef != v
	o.hasJSRef = v
	o.mu.Unlock()
	if !changed {
		return
	}
	if v {
		o.engageKeepAlive()
	} else {
		o.disengageKeepAlive()
	}
}

// Refresh implements the JS-visible refresh() method: re-arm from
// now+interval (spec §6, §4.4 "reschedule"). A no-op once the timer has
// been cleared, matching host semantics.
func (o *TimeoutObject) Refresh() {
	o.mu.Lock()
	cleared := o.hasClearedTimer
	o.mu.Unlock()
	if cleared {
		return
	}
	o.reschedule()
}

// Cancel implements spec §4.4 "cancel". Idempotent (spec §5).
func (o *TimeoutObject) Cancel() {
	o.disengageKeepAlive()
	o.mu.Lock()
	already := o.hasClearedTimer
	o.hasClearedTimer = true
	o.mu.Unlock()
	if already {
		return
	}
	o.host.CancelAsync(asyncid.Pack(o.id, uint32(o.kind)))
	wasActive := o.Timer.State == timercore.StateActive
	if wasActive {
		o.sched.Remove(&o.Timer)
		o.release() // balances memory-model ref (a)
	}
	o.Timer.State = timercore.StateCancelled
	o.dropStrongHandle()
}

// ToPrimitive implements [Symbol.toPrimitive](): returns the numeric id,
// lazily inserting into the scheduler's id map the first time it's
// accessed (spec §4.4 "Primitive coercion").
func (o *TimeoutObject) ToPrimitive() int32 {
	o.mu.Lock()
	already := o.hasAccessedPrimitive
	o.hasAccessedPrimitive = true
	o.mu.Unlock()
	if !already {
		o.sched.BindID(o.kind, o.id, o)
	}
	return o.id
}

// Dispose implements [Symbol.dispose](), equivalent to clearTimeout.
func (o *TimeoutObject) Dispose() { o.Cancel() }

// Destroyed implements the _destroyed property (spec §4.3).
func (o *TimeoutObject) Destroyed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.hasClearedTimer {
		return true
	}
	if o.inCallback {
		return false
	}
	return o.Timer.State == timercore.StateFired || o.Timer.State == timercore.StateCancelled
}

// ID returns the timer's numeric id without the primitive-coercion side
// effect of ToPrimitive — used by the webapi layer to log/compare ids
// without forcing an id-map insertion.
func (o *TimeoutObject) ID() int32 { return o.id }

// FireTimer implements spec §4.4 "fire" and satisfies timercore.Owner —
// Timer.Fire dispatches here for TagTimeout/TagInterval. Snapshots id
// and kind up front since the instance may be destroyed mid-callback.
func (o *TimeoutObject) FireTimer(now timeval.Time, vm any) timercore.Outcome {
	id, kind := o.id, o.kind
	aid := asyncid.Pack(id, uint32(kind))

	o.mu.Lock()
	cancelled := o.Timer.State == timercore.StateCancelled || o.hasClearedTimer
	o.mu.Unlock()
	if cancelled || !o.host.Runnable() {
		o.host.CancelAsync(aid)
		o.mu.Lock()
		o.hasClearedTimer = true
		o.mu.Unlock()
		o.dropStrongHandle()
		return timercore.Disarm()
	}

	o.Timer.State = timercore.StateFired
	isInterval := kind == timerscheduler.KindInterval
	var timeBeforeCall timeval.Time
	if isInterval {
		// Sampled before the callback runs so drift is bounded by
		// callback duration, never compounded across ticks (spec
		// §4.4 step 2, testable property 6).
		timeBeforeCall = now.AddMs(int64(o.intervalMs))
	} else {
		o.dropStrongHandle()
	}

	o.mu.Lock()
	o.inCallback = true
	cb, args := o.callback, o.args
	o.mu.Unlock()

	o.acquireRef() // scoped self-ref around the invocation (memory model ref (c))
	o.host.WillDispatch(aid)
	o.host.Invoke(cb, args)
	o.host.DidDispatch(aid)
	o.release()

	o.mu.Lock()
	o.inCallback = false
	o.mu.Unlock()

	done := false
	if isInterval {
		switch o.Timer.State {
		case timercore.StateFired:
			o.sched.Update(&o.Timer, timeBeforeCall)
			o.Timer.State = timercore.StateActive
		case timercore.StateActive:
			// refresh() ran synchronously from the callback.
			o.sched.Update(&o.Timer, timeBeforeCall)
			o.release() // balance the transient ref refresh() acquired
		default:
			done = true
		}
	} else {
		done = true
	}

	if done {
		o.disengageKeepAlive()
		o.release() // releases memory-model ref (a)
	}
	return timercore.Disarm()
}
