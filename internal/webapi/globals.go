package webapi

import (
	"fmt"
	"time"

	"github.com/cryguy/jstimers/internal/core"
)

// globalsJS defines pure-JS polyfills for simple global APIs, trimmed from
// the teacher's globals.go down to what this module's tests and demo
// scripts actually exercise — navigator/sendBeacon needed real outbound
// HTTP, which is out of scope here (spec.md's Non-goals: no real network
// collaborators, only opaque tags).
const globalsJS = `
globalThis.structuredClone = (function() {
	function cloneError(msg) {
		return new DOMException(msg, 'DataCloneError');
	}
	function deepClone(value, seen) {
		if (value === undefined) throw cloneError('value could not be cloned');
		if (value === null) return null;
		var type = typeof value;
		if (type === 'boolean' || type === 'number' || type === 'string' || type === 'bigint') return value;
		if (type === 'function' || type === 'symbol') throw cloneError('value could not be cloned');
		if (seen.has(value)) throw cloneError('value could not be cloned: circular reference');
		seen.set(value, true);
		if (value instanceof Date) return new Date(value.getTime());
		if (value instanceof RegExp) return new RegExp(value.source, value.flags);
		if (Array.isArray(value)) {
			var arr = new Array(value.length);
			for (var i = 0; i < value.length; i++) arr[i] = deepClone(value[i], seen);
			return arr;
		}
		var result = {};
		var keys = Object.keys(value);
		for (var j = 0; j < keys.length; j++) result[keys[j]] = deepClone(value[keys[j]], seen);
		return result;
	}
	return function structuredClone(value) {
		return deepClone(value, new WeakMap());
	};
})();

globalThis.queueMicrotask = function(fn) {
	Promise.resolve().then(fn);
};
`

// SetupGlobals registers structuredClone, queueMicrotask and a Go-backed
// performance.now(), matching the teacher's globals.go timing idiom (real
// wall-clock via time.Since rather than a JS Date.now() approximation).
func SetupGlobals(rt core.JSRuntime) error {
	startTime := time.Now()
	if err := rt.RegisterFunc("__performanceNow", func() float64 {
		return float64(time.Since(startTime).Nanoseconds()) / 1e6
	}); err != nil {
		return err
	}

	if err := rt.Eval(globalsJS); err != nil {
		return fmt.Errorf("evaluating globals.js: %w", err)
	}

	return rt.Eval(`globalThis.performance = { now: function() { return __performanceNow(); } };`)
}
