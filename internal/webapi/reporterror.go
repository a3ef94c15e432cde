package webapi

import (
	"fmt"

	"github.com/cryguy/jstimers/internal/core"
)

// reportErrorJS defines ErrorEvent and a global reportError(), adapted from
// the teacher's globals.go tail section. host.go's Invoke calls
// reportError() when a timer callback throws, so this must run before any
// timer fires — in practice, before SetupTimers.
const reportErrorJS = `
globalThis.ErrorEvent = function(type, init) {
	Event.call(this, type, init);
	this.message = (init && init.message) || '';
	this.filename = (init && init.filename) || '';
	this.lineno = (init && init.lineno) || 0;
	this.colno = (init && init.colno) || 0;
	this.error = init && init.error;
};
globalThis.ErrorEvent.prototype = Object.create(Event.prototype);
globalThis.ErrorEvent.prototype.constructor = ErrorEvent;

(function() {
	if (!(globalThis instanceof EventTarget)) {
		EventTarget.call(globalThis);
		globalThis.addEventListener = EventTarget.prototype.addEventListener;
		globalThis.removeEventListener = EventTarget.prototype.removeEventListener;
		globalThis.dispatchEvent = EventTarget.prototype.dispatchEvent;
	}
})();

globalThis.reportError = function(err) {
	var message = (err && err.message) || String(err);
	__reportError(message);
	var ev = new ErrorEvent('error', { message: message, error: err });
	globalThis.dispatchEvent(ev);
};
`

// SetupReportError registers __reportError (logging the error via
// internal/core) and evaluates the reportError/ErrorEvent polyfill. Must
// run after SetupAbort (needs Event/EventTarget).
func SetupReportError(rt core.JSRuntime) error {
	if err := rt.RegisterFunc("__reportError", func(message string) {
		core.AddLog("error", message)
	}); err != nil {
		return err
	}

	if err := rt.Eval(reportErrorJS); err != nil {
		return fmt.Errorf("evaluating reporterror.js: %w", err)
	}
	return nil
}
