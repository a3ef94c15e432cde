package webapi

import (
	"math"

	"github.com/cryguy/jstimers/internal/core"
	"github.com/cryguy/jstimers/internal/timerobj"
	"github.com/cryguy/jstimers/internal/timerscheduler"
)

// timersJS is the JavaScript polyfill for setTimeout/setInterval/
// setImmediate and their clear* counterparts, generalized from the
// teacher's timers.go to cover all three kinds atop the new scheduler.
const timersJS = `
(function() {
	globalThis.__timerCallbacks = globalThis.__timerCallbacks || {};
	globalThis.setTimeout = function(fn, delay) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		// A bare (fn, 0) call — no trailing args — creates an immediate
		// rather than a zero-delay timer.
		if (arguments.length === 2 && delay === 0) {
			var iid = __immediateCreate();
			globalThis.__timerCallbacks[iid] = { fn: fn, args: args };
			return iid;
		}
		var id = __timerCreate(arguments.length > 1 ? Number(delay) : 1, false);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args };
		return id;
	};
	globalThis.setInterval = function(fn, interval) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 2);
		var id = __timerCreate(arguments.length > 1 ? Number(interval) : 1, true);
		globalThis.__timerCallbacks[id] = { fn: fn, args: args, interval: true };
		return id;
	};
	globalThis.setImmediate = function(fn) {
		if (typeof fn !== 'function') return 0;
		var args = Array.prototype.slice.call(arguments, 1);
		var id = __immediateCreate();
		globalThis.__timerCallbacks[id] = { fn: fn, args: args };
		return id;
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (typeof id !== 'number' && typeof id !== 'string') return;
		__timerClear(String(id));
		delete globalThis.__timerCallbacks[id];
	};
	globalThis.clearImmediate = function(id) {
		if (typeof id !== 'number' && typeof id !== 'string') return;
		__immediateClear(String(id));
		delete globalThis.__timerCallbacks[id];
	};
})();
`

// clampDelayMs applies spec.md §6's delay-coercion rule: a delay under 1
// clamps up to 1, and a non-finite or i32-overflowing delay clamps down
// to 1 — both ends of the JS-to-native-int32 boundary saturate to the
// same safe minimum rather than wrapping or truncating. delay is taken
// as a float64 (not an int) specifically so Infinity/NaN survive the JS
// marshalling boundary far enough to be detected here; an int parameter
// would already have lost that information to the engine's own numeric
// coercion.
func clampDelayMs(delay float64) int32 {
	if math.IsNaN(delay) || math.IsInf(delay, 0) || delay < 1 || delay > math.MaxInt32 {
		return 1
	}
	return int32(delay)
}

// SetupTimers registers Go-backed setTimeout/setInterval/setImmediate and
// their clear* counterparts atop sched, queue and host. Unlike the
// teacher's EventLoop-backed version, timer ids are allocated and bound
// through internal/timerscheduler so clearTimeout/clearInterval/
// clearImmediate obey spec.md §4.5's per-Kind lookup rules immediately,
// without waiting for a later coercion to primitive.
func SetupTimers(rt core.JSRuntime, sched *timerscheduler.Scheduler, queue *timerobj.ImmediateQueue, host *EngineHost) error {
	if err := rt.RegisterFunc("__timerCreate", func(delayMs float64, isInterval bool) int {
		id := sched.NextID()
		kind := timerscheduler.KindTimeout
		if isInterval {
			kind = timerscheduler.KindInterval
		}
		o := timerobj.NewTimeoutObject(sched, host, id, kind, clampDelayMs(delayMs), id, nil)
		o.ToPrimitive() // bind into the id map now — the JS API always returns a plain number
		o.Ref()         // JS timers keep the event loop alive until cleared or fired
		return int(id)
	}); err != nil {
		return err
	}

	// __timerClear takes the id as a string so clearTimeout/clearInterval
	// can route both the number and the canonical-decimal-string forms
	// (spec.md §4.5/§6) through the same ParseCanonicalID parse; an
	// unparseable id is a silent no-op, matching clear*'s unknown-id
	// contract.
	if err := rt.RegisterFunc("__timerClear", func(idStr string) {
		if id, ok := timerscheduler.ParseCanonicalID(idStr); ok {
			sched.ClearTimeout(id)
		}
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__immediateCreate", func() int {
		id := sched.NextID()
		o := timerobj.NewImmediateObject(sched, host, queue, id, id, nil)
		o.ToPrimitive()
		return int(id)
	}); err != nil {
		return err
	}

	if err := rt.RegisterFunc("__immediateClear", func(idStr string) {
		if id, ok := timerscheduler.ParseCanonicalID(idStr); ok {
			sched.ClearImmediate(id)
		}
	}); err != nil {
		return err
	}

	return rt.Eval(timersJS)
}
