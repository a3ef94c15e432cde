package timerobj

import (
	"sync"
	"sync/atomic"

	"github.com/cryguy/jstimers/internal/asyncid"
	"github.com/cryguy/jstimers/internal/timercore"
	"github.com/cryguy/jstimers/internal/timerscheduler"
	"github.com/cryguy/jstimers/internal/timeval"
)

// ImmediateQueue is the FIFO immediate-task queue (spec §4.4 "Immediate
// task"), drained separately from the time-ordered TimerStore.
type ImmediateQueue struct {
	mu    sync.Mutex
	items []*ImmediateObject
}

// Enqueue appends o to the queue.
func (q *ImmediateQueue) Enqueue(o *ImmediateObject) {
	q.mu.Lock()
	q.items = append(q.items, o)
	q.mu.Unlock()
}

// Len reports how many immediates are currently queued.
func (q *ImmediateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain runs every immediate currently queued, in FIFO order (spec §6
// scenario 4: "immediates drain first... preserving insertion order
// among immediates"). Immediates enqueued by a callback running during
// this Drain are left for the next call, matching the once-per-iteration
// semantics of a real immediate-task queue.
func (q *ImmediateQueue) Drain(vm any) {
	q.mu.Lock()
	batch := q.items
	q.items = nil
	q.mu.Unlock()
	for _, o := range batch {
		o.runImmediateTask(vm)
	}
}

// ImmediateObject is the JS-visible wrapper for setImmediate tasks (spec
// §3, §4.4 "Immediate task"). It embeds an EventLoopTimer purely for tag
// dispatch uniformity with TimeoutObject — an immediate is never
// inserted into a TimerStore.
type ImmediateObject struct {
	timercore.Timer

	mu sync.Mutex

	id              int32
	hasClearedTimer bool
	strongHandle    bool
	inCallback      bool

	callback Callback
	args     []any

	refcount int32

	sched *timerscheduler.Scheduler
	host  Host
}

// NewImmediateObject constructs an immediate and enqueues it on queue
// (spec §4.4 "Construction": "For immediates, the object is enqueued on
// the immediate-task queue... rather than into the TimerStore").
func NewImmediateObject(sched *timerscheduler.Scheduler, host Host, queue *ImmediateQueue, id int32, cb Callback, args []any) *ImmediateObject {
	o := &ImmediateObject{id: id, callback: cb, args: args, sched: sched, host: host}
	o.Timer.Init(timercore.TagImmediate, o)
	o.strongHandle = true
	o.refcount = 1
	queue.Enqueue(o)
	host.ScheduleAsync(asyncid.Pack(id, uint32(timerscheduler.KindImmediate)))
	return o
}

func (o *ImmediateObject) acquireRef() { atomic.AddInt32(&o.refcount, 1) }

func (o *ImmediateObject) release() {
	if atomic.AddInt32(&o.refcount, -1) == 0 {
		o.deinit()
	}
}

// deinit runs at the last deref: drop the id-map entry if present
// (UnbindID is a safe no-op when the id was never bound).
func (o *ImmediateObject) deinit() {
	o.sched.UnbindID(timerscheduler.KindImmediate, o.id)
}

func (o *ImmediateObject) dropStrongHandle() {
	o.mu.Lock()
	had := o.strongHandle
	o.strongHandle = false
	o.mu.Unlock()
	if had {
		o.release()
	}
}

// FireTimer satisfies timercore.Owner so Timer.Fire's TagImmediate arm has
// an owner to dispatch to: it runs the immediate task and disarms.
func (o *ImmediateObject) FireTimer(_ timeval.Time, vm any) timercore.Outcome {
	o.runImmediateTask(vm)
	return timercore.Disarm()
}

// ID returns the immediate's numeric id.
func (o *ImmediateObject) ID() int32 { return o.id }

// ToPrimitive implements [Symbol.toPrimitive]() for an immediate,
// binding it into the scheduler's immediate id map on first access
// (spec §4.4 "Primitive coercion").
func (o *ImmediateObject) ToPrimitive() int32 {
	o.sched.BindID(timerscheduler.KindImmediate, o.id, o)
	return o.id
}

// Dispose implements [Symbol.dispose](), equivalent to clearImmediate.
func (o *ImmediateObject) Dispose() { o.Cancel() }

// Cancel implements clearImmediate's effect on this object (spec §4.4
// "cancel": "for immediates, return" after disengaging keep-alive and
// setting has_cleared_timer — immediates never engage keep-alive or
// live in the TimerStore, so there is nothing further to remove here).
// The strong handle is dropped later, in runImmediateTask's cleared
// branch, not here — Cancel only records that the immediate was
// cleared. Idempotent.
func (o *ImmediateObject) Cancel() {
	o.mu.Lock()
	already := o.hasClearedTimer
	o.hasClearedTimer = true
	o.mu.Unlock()
	if already {
		return
	}
	o.host.CancelAsync(asyncid.Pack(o.id, uint32(timerscheduler.KindImmediate)))
	o.Timer.State = timercore.StateCancelled
}

// Destroyed implements the _destroyed property for an immediate.
func (o *ImmediateObject) Destroyed() bool {
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

// runImmediateTask is invoked by ImmediateQueue.Drain (spec §4.4
// "Immediate task"). If the immediate was cleared before it ran, the
// strong handle acquired at construction is dropped here and nothing
// fires; otherwise it fires exactly once. Unlike TimeoutObject, an
// immediate has only one standing reference (the strong handle) rather
// than a separate store ref — the scoped ref below is acquired before
// that handle is dropped so the object never hits a transient zero
// refcount while its callback is still running.
func (o *ImmediateObject) runImmediateTask(vm any) {
	o.mu.Lock()
	cleared := o.hasClearedTimer
	o.mu.Unlock()
	if cleared {
		o.dropStrongHandle()
		return
	}
	o.Timer.State = timercore.StateFired

	aid := asyncid.Pack(o.id, uint32(timerscheduler.KindImmediate))
	o.mu.Lock()
	o.inCallback = true
	cb, args := o.callback, o.args
	o.mu.Unlock()

	o.acquireRef() // scoped ref around dropStrongHandle + invocation
	o.dropStrongHandle()
	o.host.WillDispatch(aid)
	o.host.Invoke(cb, args)
	o.host.DidDispatch(aid)
	o.release()

	o.mu.Lock()
	o.inCallback = false
	o.mu.Unlock()
}
