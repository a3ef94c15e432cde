// Package timerscheduler implements the thread-safe façade described in
// spec.md §4.2 as "TimerScheduler (All)": the mediator between callers on
// any thread and the event-loop-thread-only timer dispatch. It owns the
// TimerStore, the active-timer keep-alive count, the monotonic id
// counter, the three id→timer maps (one per JS-visible Kind), and a
// handle to the native event-loop bridge.
package timerscheduler

import (
	"strconv"
	"sync"
	"time"

	"github.com/cryguy/jstimers/internal/timercore"
	"github.com/cryguy/jstimers/internal/timerstore"
	"github.com/cryguy/jstimers/internal/timeval"
)

// Kind discriminates the three JS-visible timer id spaces (spec §3,
// §4.5). It is defined here rather than in internal/timerobj because the
// scheduler's id maps are keyed by it directly.
type Kind uint8

const (
	KindTimeout Kind = iota
	KindInterval
	KindImmediate
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindInterval:
		return "interval"
	case KindImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// NativeLoop is the bridge to the host event loop's wait primitive (spec
// §6 "Native event-loop bridge"). internal/nativeloop provides the POSIX
// and Windows implementations; this package only depends on the shape.
type NativeLoop interface {
	Ref()
	Unref()
	// Reschedule notifies the loop of a new earliest deadline. POSIX
	// bridges typically no-op this (they re-derive the deadline from
	// GetTimeout on every wait); the Windows handle bridge uses it to
	// re-arm its waitable timer (spec §4.2 "on Windows, refresh the
	// native loop's deadline").
	Reschedule(next timeval.Time)
}

// IDTimer is the minimal surface the scheduler needs from a JS-visible
// timer wrapper to support clearTimeout/clearInterval/clearImmediate by
// id. Kept minimal so this package never has to import internal/timerobj
// (spec §2's "leaves first" dependency order).
type IDTimer interface {
	Cancel()
}

const (
	approxIDMapEntryBytes = 48
	idMapShrinkSlackBytes = 256 * 1024
)

// Scheduler is the "All" façade (spec §3 "TimerScheduler"). The zero
// value is not ready to use; construct with New.
type Scheduler struct {
	mu               sync.Mutex
	store            timerstore.Store
	lastID           int32
	activeTimerCount int32
	idMaps           [numKinds]map[int32]IDTimer
	idMapHighWater   [numKinds]int
	loop             NativeLoop
}

// New creates a Scheduler backed by loop. loop may be nil, in which case
// ref/unref/reschedule notifications are simply dropped (useful for
// tests that never touch a real native loop).
func New(loop NativeLoop) *Scheduler {
	return &Scheduler{loop: loop}
}

// Insert adds t to the store and marks it ACTIVE (spec §4.2).
func (s *Scheduler) Insert(t *timercore.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Entry.Holder = t
	s.store.Insert(&t.Entry)
	t.State = timercore.StateActive
	if s.loop != nil {
		s.loop.Reschedule(t.FireAt)
	}
}

// Remove unlinks t from the store and marks it CANCELLED (spec §4.2).
// The unlink is a no-op if t is not currently bucketed
// (timerstore.Store.Remove is defensive); the state is set to CANCELLED
// either way.
func (s *Scheduler) Remove(t *timercore.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Remove(&t.Entry)
	t.State = timercore.StateCancelled
}

// Update reschedules t to newTime: remove first if currently ACTIVE,
// then reinsert (spec §4.2). Since Go passes timeval.Time by value,
// newTime can never alias t.FireAt's storage the way spec §9's aliasing
// hazard describes for a pointer-based port.
func (s *Scheduler) Update(t *timercore.Timer, newTime timeval.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.State == timercore.StateActive {
		s.store.Remove(&t.Entry)
	}
	t.FireAt = newTime
	t.State = timercore.StateActive
	t.Entry.Holder = t
	s.store.Insert(&t.Entry)
	if s.loop != nil {
		s.loop.Reschedule(newTime)
	}
}

// IncrementTimerRef adjusts the keep-alive count by delta, ref/unrefing
// the native loop on a 0<->positive transition (spec §4.2). Must only be
// called from the event-loop thread (spec §5 "Keep-alive accounting").
func (s *Scheduler) IncrementTimerRef(delta int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := s.activeTimerCount
	s.activeTimerCount += delta
	if s.activeTimerCount < 0 {
		// Never negative, release or debug (spec §5).
		s.activeTimerCount = 0
	}
	switch {
	case before == 0 && s.activeTimerCount > 0:
		if s.loop != nil {
			s.loop.Ref()
		}
	case before > 0 && s.activeTimerCount == 0:
		if s.loop != nil {
			s.loop.Unref()
		}
	}
}

// ActiveTimerCount returns the current keep-alive count.
func (s *Scheduler) ActiveTimerCount() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTimerCount
}

// NextID returns the next monotonically increasing (wrapping) timer id,
// skipping zero (spec §3, §4.5: "IDs start at 1 and wrap"). Contract:
// event-loop-thread only — spec §9 notes the source reads last_id
// without the scheduler mutex from some public entry points; this port
// instead requires single-threaded callers and documents the contract
// here rather than reproducing the race.
func (s *Scheduler) NextID() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	if s.lastID == 0 {
		s.lastID = 1
	}
	return s.lastID
}

// GetTimeout computes the duration until the earliest-due timer for the
// native loop's wait call (spec §4.2). ok is false when no timer is
// keeping the loop alive or the store is empty, meaning the caller
// should not bound its wait on timers at all.
//
// As a side effect, a head-of-store WTFTimer is popped and fired in
// place rather than reported as a wait duration — spec §9 marks this as
// a deliberate, localized anti-starvation hack carried over from the
// source for parity, not a general pattern to imitate elsewhere.
func (s *Scheduler) GetTimeout(vm any) (d time.Duration, ok bool) {
	for {
		s.mu.Lock()
		if s.activeTimerCount == 0 {
			s.mu.Unlock()
			return 0, false
		}
		e := s.store.Peek()
		if e == nil {
			s.mu.Unlock()
			return 0, false
		}
		t, _ := e.Holder.(*timercore.Timer)
		if t != nil && t.Tag == timercore.TagWTF {
			s.store.PopMin()
			s.mu.Unlock()
			s.fireOne(t, timeval.Now(), vm)
			continue
		}
		remaining := e.FireAt.Sub(timeval.Now())
		s.mu.Unlock()
		if remaining <= 0 {
			return 0, true
		}
		return remaining, true
	}
}

// DrainTimers fires every currently-due timer on the event-loop thread
// (spec §4.2 "drain_timers"). Wall time is sampled at most once per
// drain cycle, and only lazily — if the store is empty, Now is never
// called (spec §4.2 "Time sampling").
func (s *Scheduler) DrainTimers(vm any) {
	var now timeval.Time
	sampled := false
	for {
		s.mu.Lock()
		e := s.store.Peek()
		if e == nil {
			s.mu.Unlock()
			return
		}
		if !sampled {
			now = timeval.Now()
			sampled = true
		}
		if e.FireAt.After(now) {
			s.mu.Unlock()
			return
		}
		s.store.PopMin()
		t, _ := e.Holder.(*timercore.Timer)
		s.mu.Unlock()
		if t == nil {
			continue
		}
		s.fireOne(t, now, vm)
	}
}

// fireOne invokes t's tag dispatch without the scheduler mutex held
// (spec §4.2 "Locking discipline"), then honours a rearm outcome by
// reinserting through Update.
func (s *Scheduler) fireOne(t *timercore.Timer, now timeval.Time, vm any) {
	outcome := t.Fire(now, vm)
	if next, rearm := outcome.Unpack(); rearm {
		s.Update(t, next)
	}
}

// BindID inserts id into the Kind-specific map, creating the map lazily
// on first use (spec §4.4 "Primitive coercion": the map entry only
// exists once a timer id has actually been needed as a lookup key).
func (s *Scheduler) BindID(kind Kind, id int32, timer IDTimer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idMaps[kind] == nil {
		s.idMaps[kind] = make(map[int32]IDTimer)
	}
	s.idMaps[kind][id] = timer
	if len(s.idMaps[kind]) > s.idMapHighWater[kind] {
		s.idMapHighWater[kind] = len(s.idMaps[kind])
	}
}

// UnbindID removes id from the Kind-specific map, shrinking the map if
// the slack between its high-water size and its live size exceeds the
// 256 KiB policy threshold (spec §4.4, §9 "ID map shrink policy"). The
// per-entry byte estimate is necessarily approximate — Go map internals
// aren't introspectable — but the policy only needs to avoid unbounded
// growth, not hit an exact byte count.
func (s *Scheduler) UnbindID(kind Kind, id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.idMaps[kind]
	if m == nil {
		return
	}
	delete(m, id)
	hw := s.idMapHighWater[kind]
	live := len(m)
	if hw <= live {
		return
	}
	slack := int64(hw-live) * approxIDMapEntryBytes
	if slack <= idMapShrinkSlackBytes {
		return
	}
	fresh := make(map[int32]IDTimer, live)
	for k, v := range m {
		fresh[k] = v
	}
	s.idMaps[kind] = fresh
	s.idMapHighWater[kind] = live
}

func (s *Scheduler) lookupTimeoutOrInterval(id int32) IDTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.idMaps[KindTimeout]; m != nil {
		if t, ok := m[id]; ok {
			return t
		}
	}
	if m := s.idMaps[KindInterval]; m != nil {
		if t, ok := m[id]; ok {
			return t
		}
	}
	return nil
}

func (s *Scheduler) lookupImmediate(id int32) IDTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.idMaps[KindImmediate]; m != nil {
		if t, ok := m[id]; ok {
			return t
		}
	}
	return nil
}

// ClearTimeout cancels whatever is bound to id in the timeout map, or
// failing that the interval map (spec §4.5: clearTimeout/clearInterval
// share a fallback lookup order; only clearImmediate is map-exclusive).
// An unknown id is a silent no-op (spec §7).
func (s *Scheduler) ClearTimeout(id int32) {
	if t := s.lookupTimeoutOrInterval(id); t != nil {
		t.Cancel()
	}
}

// ClearInterval is ClearTimeout's mirror; both share a lookup order.
func (s *Scheduler) ClearInterval(id int32) { s.ClearTimeout(id) }

// ClearImmediate cancels whatever is bound to id in the immediate map
// only — an interval or timeout id can never be cleared this way (spec
// §4.5).
func (s *Scheduler) ClearImmediate(id int32) {
	if t := s.lookupImmediate(id); t != nil {
		t.Cancel()
	}
}

// ParseCanonicalID validates s as a canonical non-negative decimal
// integer id: no sign, no leading zero (a bare "0" is rejected too,
// since ids start at 1 and wrap — it was never assigned), no whitespace,
// no trailing characters (spec §4.5). Any deviation reports ok=false,
// matching clear*'s silent no-op contract rather than returning an
// error.
func ParseCanonicalID(s string) (id int32, ok bool) {
	if s == "" || s[0] == '0' {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

// Stats is a diagnostic snapshot (SPEC_FULL §5 "process.hrtime-style
// diagnostics"), grounded on the teacher's EventLoop.HasPending/Reset
// surface.
type Stats struct {
	ActiveTimerCount int32
	BucketCount      int
	OldestFireAt     timeval.Time
	HasOldest        bool
}

// Stats snapshots the scheduler's current load for operational
// visibility; not part of the hot path.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{ActiveTimerCount: s.activeTimerCount, BucketCount: s.store.Len()}
	if e := s.store.Peek(); e != nil {
		st.OldestFireAt = e.FireAt
		st.HasOldest = true
	}
	return st
}
