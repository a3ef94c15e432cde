package core

// EngineConfig holds runtime configuration for the demonstration harness
// (SPEC_FULL.md §3 "Configuration"), trimmed from the teacher's richer
// CF-worker config down to what a JS timer core embedding actually needs.
type EngineConfig struct {
	PoolSize           int    // number of JS runtime instances in the pool
	MemoryLimitMB      int    // per-runtime memory limit (QuickJS backend only)
	ExecutionTimeoutMS int    // milliseconds before a run is interrupted
	TickIntervalMS     int    // not read by engine.go, which sleeps for GetTimeout's duration
	Backend            string // "quickjs" or "v8", informational only — the pool
	// always builds QuickJS runtimes
}

// DefaultConfig returns sane defaults for the demo harness.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		PoolSize:           4,
		ExecutionTimeoutMS: 5000,
		TickIntervalMS:     1,
		Backend:            "quickjs",
	}
}
