package webapi

import (
	"fmt"

	"github.com/cryguy/jstimers/internal/core"
)

// abortJS defines Event, EventTarget, AbortSignal, AbortController and
// DOMException, trimmed from the teacher's abort.go — ScheduledEvent and
// CustomEvent were cron-trigger-specific (SPEC_FULL.md §7 Non-goals: no
// scheduled-event surface) and are dropped. AbortSignal.timeout and
// AbortSignal.any are kept; scheduler.postTask composes with AbortSignal
// through its abort event, not through either of them.
const abortJS = `
globalThis.DOMException = function(message, name) {
	var err = new Error(message || '');
	err.name = name || 'Error';
	Object.setPrototypeOf(err, DOMException.prototype);
	return err;
};
globalThis.DOMException.prototype = Object.create(Error.prototype);
globalThis.DOMException.prototype.constructor = DOMException;

globalThis.Event = function(type, init) {
	this.type = type;
	this.bubbles = !!(init && init.bubbles);
	this.cancelable = !!(init && init.cancelable);
	this.defaultPrevented = false;
	this.target = null;
	this.currentTarget = null;
};
globalThis.Event.prototype.preventDefault = function() {
	if (this.cancelable) this.defaultPrevented = true;
};
globalThis.Event.prototype.stopPropagation = function() {};
globalThis.Event.prototype.stopImmediatePropagation = function() {};

globalThis.EventTarget = function() {
	this.__listeners = {};
};
globalThis.EventTarget.prototype.addEventListener = function(type, listener, options) {
	if (typeof listener !== 'function') return;
	this.__listeners = this.__listeners || {};
	this.__listeners[type] = this.__listeners[type] || [];
	var once = !!(options && options.once);
	this.__listeners[type].push({ fn: listener, once: once });
};
globalThis.EventTarget.prototype.removeEventListener = function(type, listener) {
	if (!this.__listeners || !this.__listeners[type]) return;
	this.__listeners[type] = this.__listeners[type].filter(function(l) { return l.fn !== listener; });
};
globalThis.EventTarget.prototype.dispatchEvent = function(event) {
	event.target = this;
	event.currentTarget = this;
	if (!this.__listeners || !this.__listeners[event.type]) return true;
	var handlers = this.__listeners[event.type].slice();
	for (var i = 0; i < handlers.length; i++) {
		handlers[i].fn.call(this, event);
	}
	this.__listeners[event.type] = this.__listeners[event.type].filter(function(l) { return !l.once; });
	return !event.defaultPrevented;
};

globalThis.AbortSignal = function() {
	EventTarget.call(this);
	this.aborted = false;
	this.reason = undefined;
	this.onabort = null;
};
globalThis.AbortSignal.prototype = Object.create(EventTarget.prototype);
globalThis.AbortSignal.prototype.constructor = AbortSignal;
globalThis.AbortSignal.prototype.throwIfAborted = function() {
	if (this.aborted) throw this.reason;
};
globalThis.AbortSignal.prototype.__fire = function(reason) {
	if (this.aborted) return;
	this.aborted = true;
	this.reason = reason !== undefined ? reason : new DOMException('signal is aborted without reason', 'AbortError');
	var ev = new Event('abort');
	if (typeof this.onabort === 'function') this.onabort(ev);
	this.dispatchEvent(ev);
};
globalThis.AbortSignal.abort = function(reason) {
	var s = new AbortSignal();
	s.__fire(reason);
	return s;
};
globalThis.AbortSignal.timeout = function(ms) {
	var s = new AbortSignal();
	setTimeout(function() {
		s.__fire(new DOMException('signal timed out', 'TimeoutError'));
	}, ms);
	return s;
};
globalThis.AbortSignal.any = function(signals) {
	var s = new AbortSignal();
	for (var i = 0; i < signals.length; i++) {
		if (signals[i].aborted) { s.__fire(signals[i].reason); break; }
		(function(sig) {
			sig.addEventListener('abort', function() { s.__fire(sig.reason); });
		})(signals[i]);
	}
	return s;
};

globalThis.AbortController = function() {
	this.signal = new AbortSignal();
};
globalThis.AbortController.prototype.abort = function(reason) {
	this.signal.__fire(reason);
};
`

// SetupAbort registers Event/EventTarget/AbortSignal/AbortController/
// DOMException. Must run before SetupTimers (AbortSignal.timeout calls
// setTimeout) and before SetupScheduler.
func SetupAbort(rt core.JSRuntime) error {
	if err := rt.Eval(abortJS); err != nil {
		return fmt.Errorf("evaluating abort.js: %w", err)
	}
	return nil
}
