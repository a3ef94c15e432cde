package webapi

import (
	"github.com/cryguy/jstimers/internal/core"
)

// SetupConsole replaces globalThis.console with a Go-backed version that
// captures output into internal/core's log buffer (SPEC_FULL.md §3
// "Logging"), adapted from the teacher's per-request __requestID-keyed
// version — this module has no request lifecycle, so captured logs are
// simply accumulated and drained by the demo harness.
func SetupConsole(rt core.JSRuntime) error {
	if err := rt.RegisterFunc("__console", func(level, message string) {
		core.AddLog(level, message)
	}); err != nil {
		return err
	}

	consoleJS := `
(function() {
	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) {
					var arg = arguments[j];
					if (typeof arg === 'object' && arg !== null) {
						parts.push('[object Object]');
					} else {
						parts.push(String(arg));
					}
				}
				__console(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	globalThis.console = con;
})();
`
	return rt.Eval(consoleJS)
}

// consoleExtJS adds extended console methods (time, count, assert, table,
// etc.), carried verbatim from the teacher — console.time/timeEnd lean on
// performance.now() from globals.go, so SetupConsoleExt must run after both
// SetupConsole and SetupGlobals.
const consoleExtJS = `
(function() {
var __timers = {};
var __counters = {};
var __groupDepth = 0;

console.time = function(label) {
	__timers[label || 'default'] = performance.now();
};
console.timeEnd = function(label) {
	var l = label || 'default';
	var start = __timers[l];
	if (start === undefined) { console.warn('Timer "' + l + '" does not exist'); return; }
	var elapsed = performance.now() - start;
	delete __timers[l];
	console.log(l + ': ' + elapsed.toFixed(3) + 'ms');
};
console.timeLog = function(label) {
	var l = label || 'default';
	var start = __timers[l];
	if (start === undefined) { console.warn('Timer "' + l + '" does not exist'); return; }
	var elapsed = performance.now() - start;
	var args = Array.prototype.slice.call(arguments, 1);
	if (args.length > 0) {
		console.log(l + ': ' + elapsed.toFixed(3) + 'ms', args.join(' '));
	} else {
		console.log(l + ': ' + elapsed.toFixed(3) + 'ms');
	}
};
console.count = function(label) {
	var l = label || 'default';
	__counters[l] = (__counters[l] || 0) + 1;
	console.log(l + ': ' + __counters[l]);
};
console.countReset = function(label) {
	__counters[label || 'default'] = 0;
};
console.assert = function(cond) {
	if (!cond) {
		var args = Array.prototype.slice.call(arguments, 1);
		if (args.length > 0) {
			console.error('Assertion failed:', args.join(' '));
		} else {
			console.error('Assertion failed');
		}
	}
};
console.table = function(data) {
	console.log(JSON.stringify(data, null, 2));
};
console.trace = function() {
	var args = Array.prototype.slice.call(arguments);
	if (args.length > 0) {
		console.log('Trace:', args.join(' '));
	} else {
		console.log('Trace');
	}
};
console.group = function(label) {
	if (label) console.log(label);
	__groupDepth++;
};
console.groupEnd = function() {
	if (__groupDepth > 0) __groupDepth--;
};
console.dir = function(obj) {
	console.log(JSON.stringify(obj, null, 2));
};
})();
`

// SetupConsoleExt evaluates the extended console methods polyfill.
func SetupConsoleExt(rt core.JSRuntime) error {
	return rt.Eval(consoleExtJS)
}
