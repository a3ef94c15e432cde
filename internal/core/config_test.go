package core

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PoolSize <= 0 {
		t.Errorf("PoolSize = %d, want > 0", cfg.PoolSize)
	}
	if cfg.ExecutionTimeoutMS <= 0 {
		t.Errorf("ExecutionTimeoutMS = %d, want > 0", cfg.ExecutionTimeoutMS)
	}
	if cfg.Backend == "" {
		t.Error("Backend should have a default value")
	}
}
