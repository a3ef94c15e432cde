package timerobj

import (
	"sync"
	"testing"
	"time"

	"github.com/cryguy/jstimers/internal/timercore"
	"github.com/cryguy/jstimers/internal/timerscheduler"
)

type fakeHost struct {
	mu        sync.Mutex
	invoked   []Callback
	scheduled []int64
	cancelled []int64
}

func newFakeHost() *fakeHost { return &fakeHost{} }

func (h *fakeHost) Invoke(cb Callback, args []any) {
	if fn, ok := cb.(func([]any)); ok {
		fn(args)
	}
	h.mu.Lock()
	h.invoked = append(h.invoked, cb)
	h.mu.Unlock()
}
func (h *fakeHost) Runnable() bool { return true }
func (h *fakeHost) ScheduleAsync(id int64) {
	h.mu.Lock()
	h.scheduled = append(h.scheduled, id)
	h.mu.Unlock()
}
func (h *fakeHost) WillDispatch(int64) {}
func (h *fakeHost) DidDispatch(int64)  {}
func (h *fakeHost) CancelAsync(id int64) {
	h.mu.Lock()
	h.cancelled = append(h.cancelled, id)
	h.mu.Unlock()
}

func TestSetTimeoutFiresOnceAndDisengagesKeepAlive(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	var fired int
	cb := func([]any) { fired++ }

	id := sched.NextID()
	o := NewTimeoutObject(sched, host, id, timerscheduler.KindTimeout, 1, cb, nil)
	o.Ref()

	time.Sleep(5 * time.Millisecond)
	sched.DrainTimers(nil)

	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if !o.Destroyed() {
		t.Fatalf("one-shot timer should report destroyed after firing")
	}
	if sched.ActiveTimerCount() != 0 {
		t.Fatalf("ActiveTimerCount() = %d, want 0 after a ref'd one-shot fires", sched.ActiveTimerCount())
	}
}

func TestClearTimeoutPreventsFire(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	fired := false
	cb := func([]any) { fired = true }

	id := sched.NextID()
	o := NewTimeoutObject(sched, host, id, timerscheduler.KindTimeout, 20, cb, nil)
	before := sched.ActiveTimerCount()
	o.Ref()
	o.Cancel()

	sched.DrainTimers(nil)
	if fired {
		t.Fatalf("cancelled timer should never fire")
	}
	if sched.ActiveTimerCount() != before {
		t.Fatalf("ActiveTimerCount() = %d, want back to pre-setTimeout value %d", sched.ActiveTimerCount(), before)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	o := NewTimeoutObject(sched, host, sched.NextID(), timerscheduler.KindTimeout, 10, func([]any) {}, nil)
	o.Ref()
	o.Cancel()
	o.Cancel()
	o.Cancel()
	if !o.Destroyed() {
		t.Fatalf("expected destroyed after cancel")
	}
}

func TestIntervalFiresRepeatedlyUntilClearedFromWithin(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	var o *TimeoutObject
	count := 0
	cb := func([]any) {
		count++
		if count == 3 {
			o.Cancel()
		}
	}
	o = NewTimeoutObject(sched, host, sched.NextID(), timerscheduler.KindInterval, 1, cb, nil)
	o.Ref()

	for i := 0; i < 6; i++ {
		time.Sleep(2 * time.Millisecond)
		sched.DrainTimers(nil)
	}

	if count != 3 {
		t.Fatalf("interval invoked %d times, want exactly 3", count)
	}
}

func TestRefreshDuringCallbackRearms(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	var o *TimeoutObject
	calls := 0
	cb := func([]any) {
		calls++
		o.Refresh()
	}
	o = NewTimeoutObject(sched, host, sched.NextID(), timerscheduler.KindInterval, 5, cb, nil)
	o.Ref()

	time.Sleep(8 * time.Millisecond)
	sched.DrainTimers(nil)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (refresh during callback should not cause a double-fire in the same drain)", calls)
	}
	if o.Timer.State != timercore.StateActive {
		t.Fatalf("state = %v, want active after refresh-during-callback", o.Timer.State)
	}
}

func TestImmediateQueueDrainsInFIFOOrder(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	var queue ImmediateQueue
	var order []string

	NewImmediateObject(sched, host, &queue, sched.NextID(), func([]any) { order = append(order, "a") }, nil)
	NewImmediateObject(sched, host, &queue, sched.NextID(), func([]any) { order = append(order, "b") }, nil)

	queue.Drain(nil)

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestImmediateCancelledBeforeDrainNeverRuns(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	var queue ImmediateQueue
	ran := false

	imm := NewImmediateObject(sched, host, &queue, sched.NextID(), func([]any) { ran = true }, nil)
	imm.Cancel()
	if imm.refcount != 1 {
		t.Fatalf("refcount after Cancel() alone = %d, want 1 (the strong handle drop is deferred to runImmediateTask)", imm.refcount)
	}
	queue.Drain(nil)

	if ran {
		t.Fatalf("cancelled immediate should never run")
	}
	if imm.refcount != 0 {
		t.Fatalf("refcount after drain of a cancelled immediate = %d, want 0 (exactly one balanced release)", imm.refcount)
	}
}

// TestImmediateFiredRefcountReturnsToZero guards against the
// acquire/release imbalance a prior version of runImmediateTask had:
// every fired (non-cancelled) immediate must end at refcount 0 with
// deinit running exactly once, never going negative.
func TestImmediateFiredRefcountReturnsToZero(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	var queue ImmediateQueue

	imm := NewImmediateObject(sched, host, &queue, sched.NextID(), func([]any) {}, nil)
	queue.Drain(nil)

	if imm.refcount != 0 {
		t.Fatalf("refcount after a fired immediate = %d, want exactly 0", imm.refcount)
	}
}

func TestToPrimitiveReturnsIDAndBindsLazily(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	id := sched.NextID()
	o := NewTimeoutObject(sched, host, id, timerscheduler.KindTimeout, 100, func([]any) {}, nil)

	if got := o.ToPrimitive(); got != id {
		t.Fatalf("ToPrimitive() = %d, want %d", got, id)
	}
	sched.ClearTimeout(id)
	if !o.Destroyed() {
		t.Fatalf("clearTimeout(id) after ToPrimitive coercion should cancel the timer")
	}
}

func TestClearTimeoutWithoutPriorCoercionIsNoOp(t *testing.T) {
	sched := timerscheduler.New(nil)
	host := newFakeHost()
	id := sched.NextID()
	o := NewTimeoutObject(sched, host, id, timerscheduler.KindTimeout, 100, func([]any) {}, nil)

	sched.ClearTimeout(id) // never coerced, so never bound into the id map
	if o.Destroyed() {
		t.Fatalf("clearTimeout by a raw id that was never coerced to a primitive must be a no-op")
	}
}
