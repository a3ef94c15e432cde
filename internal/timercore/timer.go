// Package timercore implements the generic scheduled-timer record (spec
// §2 component 3 "EventLoopTimer") and its closed-world tag dispatch
// (spec §4.7), plus the host-runloop WTFTimer (spec §2 component 7,
// §4.6). Every timer-producing subsystem — JS setTimeout/setInterval/
// setImmediate, the host runloop's GC timer, and opaque non-JS
// subsystems (DNS, DB, file watcher, test runner) — embeds a Timer and
// is reached back from it through an explicit Owner handle rather than
// pointer-offset arithmetic (spec §9).
package timercore

import (
	"github.com/cryguy/jstimers/internal/timerstore"
	"github.com/cryguy/jstimers/internal/timeval"
)

// Tag is the closed-world discriminator identifying which subsystem owns
// a Timer (spec §4.7 GLOSSARY "Tag"). New timer-producing subsystems are
// added by extending this enumeration and providing an Owner
// implementation — never by re-introducing virtual dispatch over a
// heap-allocated object on the hot path.
type Tag uint8

const (
	// TagTimeout marks a setTimeout-created timer.
	TagTimeout Tag = iota
	// TagInterval marks a setInterval-created timer.
	TagInterval
	// TagImmediate marks a setImmediate task. Immediates are never
	// inserted into a TimerStore (spec §4.4); the tag exists so ID maps
	// and inspector correlation can discriminate them.
	TagImmediate
	// TagWTF marks a WTFTimer (host runloop, e.g. a GC scheduler).
	TagWTF
	// TagDNSLookup marks an opaque DNS-resolution timeout, owned by a
	// subsystem outside this module's scope (spec §1).
	TagDNSLookup
	// TagDBConnTimeout marks an opaque database connection timeout.
	TagDBConnTimeout
	// TagGCRunloop marks an opaque GC-runloop housekeeping timer,
	// distinct from TagWTF in that it is driven through the generic
	// EventLoopTimer path rather than the WTFTimer fast path.
	TagGCRunloop
	// TagFileWatcher marks an opaque file-watcher poll timer.
	TagFileWatcher
	// TagTestRunner marks an opaque test-runner deadline timer.
	TagTestRunner
)

func (t Tag) String() string {
	switch t {
	case TagTimeout:
		return "timeout"
	case TagInterval:
		return "interval"
	case TagImmediate:
		return "immediate"
	case TagWTF:
		return "wtf"
	case TagDNSLookup:
		return "dns-lookup"
	case TagDBConnTimeout:
		return "db-conn-timeout"
	case TagGCRunloop:
		return "gc-runloop"
	case TagFileWatcher:
		return "file-watcher"
	case TagTestRunner:
		return "test-runner"
	default:
		return "unknown"
	}
}

// State is the timer lifecycle state (spec §4.3).
type State uint8

const (
	// StatePending is the initial state, before the timer has ever been
	// inserted into a store.
	StatePending State = iota
	// StateActive means the timer is present in exactly one TimerStore
	// bucket.
	StateActive
	// StateCancelled means the timer was removed without firing.
	StateCancelled
	// StateFired means the timer has been invoked (for intervals, this
	// is transient: a normal callback completion or refresh() moves it
	// back to StateActive).
	StateFired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateCancelled:
		return "cancelled"
	case StateFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Outcome is the result of firing a timer: either disarm (the scheduler
// does nothing further with it) or rearm at a new instant. Per spec
// §4.4 step 6, JS-kind timers always return disarm from Fire and
// reschedule directly via TimerScheduler.Update instead — Outcome's
// Rearm case is used by the lower-level owners (WTFTimer, and the
// opaque subsystem tags) that rely on the scheduler's drain loop to
// re-insert them.
type Outcome struct {
	rearm bool
	next  timeval.Time
}

// Disarm returns the "do not reschedule" outcome.
func Disarm() Outcome { return Outcome{} }

// Rearm returns the "reschedule at next" outcome.
func Rearm(next timeval.Time) Outcome { return Outcome{rearm: true, next: next} }

// Unpack returns (next, true) if the outcome requests a rearm, or
// (zero-value, false) for disarm.
func (o Outcome) Unpack() (timeval.Time, bool) { return o.next, o.rearm }

// Owner is implemented by whatever concrete object embeds a Timer.
// FireTimer is reached through Timer.Fire, which TimerScheduler.DrainTimers
// calls without the scheduler mutex held (spec §4.2 "Locking discipline").
type Owner interface {
	FireTimer(now timeval.Time, vm any) Outcome
}

// Timer is the generic scheduled-timer record (spec §3 "EventLoopTimer").
// It embeds timerstore.Entry for store membership (next/prev linkage and
// the bucketing key live there) and adds the state machine, the tag, and
// the Owner back-reference that Fire dispatch uses.
type Timer struct {
	timerstore.Entry
	State State
	Tag   Tag
	Owner Owner
}

// Init prepares a zero-value Timer for first use under the given tag and
// owner. Must only be called once, before the timer is ever inserted.
func (t *Timer) Init(tag Tag, owner Owner) {
	t.State = StatePending
	t.Tag = tag
	t.Owner = owner
}

// Fire dispatches to t.Owner via the tag switch described in spec §4.7.
// The switch is a closed world by design: the scheduler knows the
// complete set of timer-producing subsystems, and every Tag value above
// must have an arm here.
func (t *Timer) Fire(now timeval.Time, vm any) Outcome {
	switch t.Tag {
	case TagTimeout, TagInterval, TagImmediate, TagWTF,
		TagDNSLookup, TagDBConnTimeout, TagGCRunloop, TagFileWatcher, TagTestRunner:
		return t.Owner.FireTimer(now, vm)
	default:
		// Unknown tag: nothing to dispatch to. Disarm rather than panic,
		// since a corrupted tag must not wedge the drain loop.
		return Disarm()
	}
}
