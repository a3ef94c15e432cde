package core

import (
	"sync"
	"time"
)

// LogEntry is a single console.log/warn/error/etc. call captured from a
// running script. Grounded on the teacher's types.go LogEntry/WorkerResult.Logs
// idiom, adapted from per-HTTP-request accumulation to per-engine-run: this
// module has no request lifecycle, so logs are simply collected into a
// package-level buffer and drained by the demo harness after a run.
type LogEntry struct {
	Level   string
	Message string
	Time    time.Time
}

var (
	logMu  sync.Mutex
	logBuf []LogEntry
)

// AddLog appends a captured console call or reported error. level is
// "log", "warn", "error", "info" or "debug"; callers are internal/webapi's
// console.go and reporterror.go.
func AddLog(level, message string) {
	logMu.Lock()
	logBuf = append(logBuf, LogEntry{Level: level, Message: message, Time: time.Now()})
	logMu.Unlock()
}

// DrainLogs returns everything captured since the last call and clears the
// buffer, matching the teacher's clearRequestState "collect then clear"
// pattern (helpers.go / engine.go).
func DrainLogs() []LogEntry {
	logMu.Lock()
	defer logMu.Unlock()
	out := logBuf
	logBuf = nil
	return out
}
