// Package jstimers is a minimal embedding harness around the internal
// timer-scheduling core: it loads a JS script into a pooled runtime, then
// drains timers, immediates and microtasks until the script's event loop
// goes quiet or a watchdog trips, mirroring the teacher's engine.go
// Execute/watchdog shape with the CF-Worker-specific request/response,
// site/deploy and fetch-routing machinery removed (SPEC_FULL.md §7
// Non-goals: no fetch handler surface).
package jstimers

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cryguy/jstimers/internal/core"
	"github.com/cryguy/jstimers/internal/inspector"
)

// RunResult carries the outcome of one Engine.Run call.
type RunResult struct {
	Error    error
	Duration time.Duration
	Logs     []core.LogEntry
	TimedOut bool
}

// Engine owns a pool of pre-warmed JS runtimes, each with its own
// independent timer scheduler (spec.md §2: "one loop per runtime, no
// cross-loop timer migration" — a Non-goal carried forward).
type Engine struct {
	pool   *pool
	config core.EngineConfig
}

// NewEngine builds cfg.PoolSize runtimes, each with the full webapi
// surface wired in. bridge may be nil to disable inspector notifications.
func NewEngine(cfg core.EngineConfig, bridge *inspector.Bridge) (*Engine, error) {
	p, err := newPool(cfg, bridge)
	if err != nil {
		return nil, err
	}
	return &Engine{pool: p, config: cfg}, nil
}

// Shutdown closes every runtime in the pool.
func (e *Engine) Shutdown() {
	e.pool.dispose()
}

// Run evaluates source in a pooled runtime, then drives the event loop —
// firing due timers, draining immediates, pumping microtasks — until
// nothing remains active or the configured execution timeout elapses
// (spec.md §4.2's "drain_timers" / "get_timeout" cycle, adapted from the
// teacher's Execute watchdog via time.AfterFunc).
func (e *Engine) Run(source string) (result *RunResult) {
	start := time.Now()
	result = &RunResult{}

	w, err := e.pool.get()
	if err != nil {
		result.Error = fmt.Errorf("acquiring worker: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	var timedOut atomic.Bool
	timeout := time.Duration(e.config.ExecutionTimeoutMS) * time.Millisecond
	deadline := start.Add(timeout)
	watchdog := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		w.host.SetRunnable(false)
	})

	defer func() {
		watchdog.Stop()
		result.TimedOut = timedOut.Load()
		result.Duration = time.Since(start)
		result.Logs = core.DrainLogs()
		if timedOut.Load() {
			w.closer()
			return
		}
		e.pool.put(w)
	}()

	if err := w.rt.Eval(source); err != nil {
		result.Error = fmt.Errorf("evaluating script: %w", err)
		return result
	}
	w.rt.RunMicrotasks()

	e.drainLoop(w, deadline, &timedOut)
	return result
}

// drainLoop repeatedly fires due timers, drains pending immediates and
// pumps microtasks (spec.md §4.2's per-tick ordering: immediates before
// timers, microtasks after each callback) until GetTimeout reports no
// active timer, the immediate queue is empty, and no microtask is
// runnable — or the watchdog trips.
func (e *Engine) drainLoop(w *worker, deadline time.Time, timedOut *atomic.Bool) {
	for {
		if timedOut.Load() {
			return
		}

		w.queue.Drain(nil)
		w.rt.RunMicrotasks()

		d, ok := w.sched.GetTimeout(nil)
		if !ok && w.queue.Len() == 0 {
			return
		}

		if ok && d > 0 {
			sleep := d
			if remaining := time.Until(deadline); remaining < sleep {
				sleep = remaining
			}
			if sleep > 0 {
				time.Sleep(sleep)
			}
		}

		if time.Now().After(deadline) {
			timedOut.Store(true)
			w.host.SetRunnable(false)
			return
		}

		w.sched.DrainTimers(nil)
		w.rt.RunMicrotasks()
	}
}
