package jstimers

import (
	"fmt"
	"sync"

	"github.com/cryguy/jstimers/internal/core"
	"github.com/cryguy/jstimers/internal/inspector"
	"github.com/cryguy/jstimers/internal/nativeloop"
	"github.com/cryguy/jstimers/internal/quickjsengine"
	"github.com/cryguy/jstimers/internal/timerobj"
	"github.com/cryguy/jstimers/internal/timerscheduler"
	"github.com/cryguy/jstimers/internal/webapi"
)

// globalThisCleanupJS clears per-run JS state before a worker is returned
// to the pool, trimmed from the teacher's pool.go equivalent down to the
// global names this module's webapi layer actually creates.
const globalThisCleanupJS = `
(function() {
	if (globalThis.__timerCallbacks) globalThis.__timerCallbacks = {};
})();
`

// worker is a single JS runtime plus the timer collaborators wired into it
// (spec.md §3's TimerScheduler/TimerStore/ImmediateQueue, and the
// EngineHost bridging them to JS). One worker corresponds to one
// independent event loop: its own scheduler, its own id space.
type worker struct {
	rt     core.JSRuntime
	closer func()
	sched  *timerscheduler.Scheduler
	queue  *timerobj.ImmediateQueue
	host   *webapi.EngineHost
	loop   *nativeloop.PollLoop
}

// pool manages a fixed-size set of pre-warmed workers (adapted from the
// teacher's qjsPool — one pool per process here, rather than one pool per
// site/deploy key, since there is no multi-tenant worker-script routing in
// this module's domain).
type pool struct {
	workers chan *worker
	size    int
	mu      sync.Mutex
}

// newPool creates size pre-warmed workers, each with the full webapi
// surface wired in.
func newPool(cfg core.EngineConfig, bridge *inspector.Bridge) (*pool, error) {
	p := &pool{
		workers: make(chan *worker, cfg.PoolSize),
		size:    cfg.PoolSize,
	}

	for i := 0; i < cfg.PoolSize; i++ {
		w, err := newWorker(cfg, bridge)
		if err != nil {
			p.dispose()
			return nil, fmt.Errorf("creating pool worker %d: %w", i, err)
		}
		p.workers <- w
	}

	return p, nil
}

// newWorker builds one JS runtime (always the quickjs backend; the
// v8engine package is not used here), its Scheduler/ImmediateQueue/EngineHost
// triple, and wires every webapi Setup* function in the dependency order
// each one's doc comment requires.
func newWorker(cfg core.EngineConfig, bridge *inspector.Bridge) (*worker, error) {
	qrt, err := quickjsengine.New(cfg.MemoryLimitMB)
	if err != nil {
		return nil, fmt.Errorf("creating JS runtime: %w", err)
	}
	rt := core.JSRuntime(qrt)

	loop := nativeloop.NewPollLoop(nil, nil)
	sched := timerscheduler.New(loop)
	queue := &timerobj.ImmediateQueue{}
	host := webapi.NewEngineHost(rt, bridge)

	setups := []func() error{
		func() error { return webapi.SetupGlobals(rt) },
		func() error { return webapi.SetupAbort(rt) },
		func() error { return webapi.SetupReportError(rt) },
		func() error { return webapi.SetupConsole(rt) },
		func() error { return webapi.SetupConsoleExt(rt) },
		func() error { return webapi.SetupTimers(rt, sched, queue, host) },
		func() error { return webapi.SetupScheduler(rt) },
	}
	for _, setup := range setups {
		if err := setup(); err != nil {
			qrt.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	return &worker{
		rt:     rt,
		closer: qrt.Close,
		sched:  sched,
		queue:  queue,
		host:   host,
		loop:   loop,
	}, nil
}

// get acquires a worker from the pool, blocking until one is available.
func (p *pool) get() (*worker, error) {
	w, ok := <-p.workers
	if !ok {
		return nil, fmt.Errorf("worker pool is closed")
	}
	return w, nil
}

// put resets a worker's per-run JS state and returns it to the pool.
func (p *pool) put(w *worker) {
	_ = w.rt.Eval(globalThisCleanupJS)
	w.host.SetRunnable(true)
	select {
	case p.workers <- w:
	default:
		w.closer()
	}
}

// dispose closes every worker currently sitting in the pool.
func (p *pool) dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		select {
		case w := <-p.workers:
			w.closer()
		default:
			return
		}
	}
}
