package webapi

import (
	"fmt"

	"github.com/cryguy/jstimers/internal/core"
)

// schedulerJS defines globalThis.scheduler with wait() and postTask(),
// carried from the teacher's scheduler.go — SPEC_FULL.md §5 keeps this as
// a supplemented feature since it composes setTimeout + AbortSignal rather
// than touching the scheduler directly, and that composition is worth
// preserving as a worked example of the new setTimeout atop the real
// timer core.
const schedulerJS = `
globalThis.scheduler = {
	wait: function(ms) {
		return new Promise(function(resolve) {
			setTimeout(resolve, ms || 0);
		});
	},
	postTask: function(callback, options) {
		var delay = (options && options.delay) || 0;
		var signal = options && options.signal;
		return new Promise(function(resolve, reject) {
			if (signal && signal.aborted) {
				reject(signal.reason || new DOMException('The operation was aborted', 'AbortError'));
				return;
			}
			var id = setTimeout(function() {
				try { resolve(callback()); }
				catch(e) { reject(e); }
			}, delay);
			if (signal) {
				signal.addEventListener('abort', function() {
					clearTimeout(id);
					reject(signal.reason || new DOMException('The operation was aborted', 'AbortError'));
				});
			}
		});
	},
};
`

// SetupScheduler registers the scheduler global. Must run after
// SetupTimers and SetupAbort, both of which it depends on.
func SetupScheduler(rt core.JSRuntime) error {
	if err := rt.Eval(schedulerJS); err != nil {
		return fmt.Errorf("evaluating scheduler.js: %w", err)
	}
	return nil
}
