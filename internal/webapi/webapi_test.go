package webapi_test

import (
	"testing"
	"time"

	"github.com/cryguy/jstimers/internal/core"
	"github.com/cryguy/jstimers/internal/nativeloop"
	"github.com/cryguy/jstimers/internal/quickjsengine"
	"github.com/cryguy/jstimers/internal/timerobj"
	"github.com/cryguy/jstimers/internal/timerscheduler"
	"github.com/cryguy/jstimers/internal/webapi"
)

// newTestRuntime wires a fresh QuickJS runtime with the full webapi
// surface, mirroring pool.go's newWorker but without pooling — this
// package's tests exercise the JS polyfills directly rather than through
// the demo Engine.
func newTestRuntime(t *testing.T) (core.JSRuntime, *timerscheduler.Scheduler, *timerobj.ImmediateQueue) {
	t.Helper()
	rt, err := quickjsengine.New(0)
	if err != nil {
		t.Fatalf("quickjsengine.New: %v", err)
	}
	t.Cleanup(rt.Close)

	loop := nativeloop.NewPollLoop(nil, nil)
	sched := timerscheduler.New(loop)
	queue := &timerobj.ImmediateQueue{}
	host := webapi.NewEngineHost(rt, nil)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	must(webapi.SetupGlobals(rt))
	must(webapi.SetupAbort(rt))
	must(webapi.SetupReportError(rt))
	must(webapi.SetupConsole(rt))
	must(webapi.SetupConsoleExt(rt))
	must(webapi.SetupTimers(rt, sched, queue, host))
	must(webapi.SetupScheduler(rt))

	return rt, sched, queue
}

func TestSetupGlobals_StructuredCloneDeepCopies(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ok, err := rt.EvalBool(`(function() {
		var a = { x: 1, nested: { y: 2 } };
		var b = structuredClone(a);
		b.nested.y = 99;
		return a.nested.y === 2 && b.nested.y === 99;
	})()`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("structuredClone did not produce an independent deep copy")
	}
}

func TestSetupGlobals_StructuredCloneRejectsFunctions(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ok, err := rt.EvalBool(`(function() {
		try {
			structuredClone(function() {});
			return false;
		} catch (e) {
			return e instanceof DOMException;
		}
	})()`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("structuredClone should throw a DOMException for function values")
	}
}

func TestSetupGlobals_PerformanceNowIsMonotonic(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ok, err := rt.EvalBool(`(function() {
		var a = performance.now();
		var b = performance.now();
		return b >= a;
	})()`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("performance.now() should be non-decreasing")
	}
}

func TestSetupAbort_ControllerAbortsSignal(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ok, err := rt.EvalBool(`(function() {
		var c = new AbortController();
		var fired = false;
		c.signal.addEventListener('abort', function() { fired = true; });
		c.abort('because');
		return fired && c.signal.aborted && c.signal.reason === 'because';
	})()`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("AbortController.abort() did not fire the abort event with the given reason")
	}
}

func TestSetupAbort_AnyFiresWhenOneSourceAborts(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ok, err := rt.EvalBool(`(function() {
		var c1 = new AbortController();
		var c2 = new AbortController();
		var combined = AbortSignal.any([c1.signal, c2.signal]);
		c2.abort('from c2');
		return combined.aborted && combined.reason === 'from c2';
	})()`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ok {
		t.Error("AbortSignal.any() did not propagate abort from a member signal")
	}
}

func TestSetupReportError_ReportsUncaughtCallbackThrow(t *testing.T) {
	rt, sched, queue := newTestRuntime(t)
	if err := rt.Eval(`
		globalThis.__seen = null;
		globalThis.addEventListener('error', function(e) { globalThis.__seen = e.message; });
		setTimeout(function() { throw new Error("kaboom"); }, 0);
	`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	drainOnce(rt, sched, queue)

	msg, err := rt.EvalString("String(globalThis.__seen)")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if msg != "kaboom" {
		t.Errorf("__seen = %q, want \"kaboom\"", msg)
	}
}

func TestSetupConsoleExt_CountIncrementsPerLabel(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	n, err := rt.EvalInt(`(function() {
		var logs = [];
		var orig = console.log;
		console.log = function(msg) { logs.push(msg); };
		console.count('x');
		console.count('x');
		console.count('x');
		console.log = orig;
		return logs.length;
	})()`)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 console.count logs, got %d", n)
	}
}

// drainOnce fires due timers and pumps microtasks once — enough for a
// zero-delay setTimeout scheduled immediately before the call.
func drainOnce(rt core.JSRuntime, sched *timerscheduler.Scheduler, queue *timerobj.ImmediateQueue) {
	queue.Drain(nil)
	sched.DrainTimers(nil)
	rt.RunMicrotasks()
}

func TestSetupTimers_ClearTimeoutAcceptsCanonicalStringID(t *testing.T) {
	rt, sched, queue := newTestRuntime(t)
	if err := rt.Eval(`
		globalThis.__ran = false;
		var id = setTimeout(function() { globalThis.__ran = true; }, 100);
		clearTimeout(String(id));
	`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	drainOnce(rt, sched, queue)

	ran, err := rt.EvalBool("globalThis.__ran")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if ran {
		t.Error("clearTimeout(String(id)) did not cancel the timer")
	}
}

func TestSetupTimers_ClearTimeoutIgnoresNonCanonicalStringID(t *testing.T) {
	rt, sched, queue := newTestRuntime(t)
	if err := rt.Eval(`
		globalThis.__ran = false;
		setTimeout(function() { globalThis.__ran = true; }, 1);
		clearTimeout("not-a-number");
		clearTimeout("007");
	`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	time.Sleep(5 * time.Millisecond) // let the 1ms timer come due
	drainOnce(rt, sched, queue)

	ran, err := rt.EvalBool("globalThis.__ran")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ran {
		t.Error("a malformed id string wrongly cancelled an unrelated timer")
	}
}

func TestSetupTimers_NonPositiveDelayClampsToOneMillisecond(t *testing.T) {
	rt, sched, queue := newTestRuntime(t)
	if err := rt.Eval(`
		globalThis.__ran = false;
		setTimeout(function() { globalThis.__ran = true; }, -5);
	`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	drainOnce(rt, sched, queue)

	ran, err := rt.EvalBool("globalThis.__ran")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !ran {
		t.Error("negative delay should clamp to 1ms and still fire, not be dropped or stall indefinitely")
	}
}

func TestSetupTimers_BareSetTimeoutZeroCreatesAnImmediate(t *testing.T) {
	rt, sched, queue := newTestRuntime(t)
	if err := rt.Eval(`
		var id = setTimeout(function() {}, 0);
		globalThis.__id = id;
	`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	id, err := rt.EvalInt("globalThis.__id")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}

	if err := rt.Eval(`globalThis.__ran = false; globalThis.__timerCallbacks[globalThis.__id] = { fn: function() { globalThis.__ran = true; }, args: [] };`); err != nil {
		t.Fatalf("eval: %v", err)
	}
	if err := rt.Eval(`clearImmediate(globalThis.__id);`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	queue.Drain(nil)
	sched.DrainTimers(nil)
	rt.RunMicrotasks()

	ran, err := rt.EvalBool("globalThis.__ran")
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if ran {
		t.Errorf("clearImmediate(%d) did not cancel a bare setTimeout(fn, 0), meaning it wasn't bound as an immediate", id)
	}
}
