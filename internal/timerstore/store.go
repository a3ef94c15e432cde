// Package timerstore implements the time-indexed ordered structure backing
// the scheduler (spec §4.1 "TimerStore"): an ordered sequence of buckets,
// one per distinct millisecond instant, each holding a FIFO list of
// pending timers. Buckets are kept in an ordered array rather than a
// balanced tree — small constants and locality over asymptotically
// optimal complexity, as spec §4.1 allows.
//
// The store never owns a timer's memory: it holds the intrusive Entry
// embedded in the timer record and a weak Holder back-reference, mirroring
// the "fixed-offset back-reference" design spec §9 describes, expressed
// here as an explicit handle rather than pointer arithmetic (Go disallows
// the latter).
package timerstore

import (
	"sort"

	"github.com/cryguy/jstimers/internal/timeval"
)

// Entry is the intrusive linkage embedded by any timer that participates
// in a TimerStore. Only the owning TimerStore mutates next/prev/bucket;
// everything else is the embedder's.
//
// Go has no pointer-offset arithmetic to recover the embedding struct
// from an *Entry (spec §9's "fixed-offset back-reference"), so Entry
// carries an explicit Holder handle instead — set by the caller before
// Insert (TimerScheduler does this) — the same shape as the standard
// library's container/list, whose *Element carries a Value the caller
// casts back.
type Entry struct {
	FireAt timeval.Time // the timer's next scheduled instant
	Holder any          // the embedding timer record, set by the caller before Insert

	ms   int64 // truncated-ms key under which this entry is currently bucketed
	next *Entry
	prev *Entry
	b    *bucket
}

// InStore reports whether the entry is currently linked into a bucket.
func (e *Entry) InStore() bool { return e.b != nil }

// bucket holds every timer due at the same truncated-millisecond instant,
// in FIFO (insertion) order — spec §3 invariant "within a single bucket,
// fire order equals insertion order".
type bucket struct {
	instant int64
	head    *Entry
	tail    *Entry
}

func (b *bucket) empty() bool { return b.head == nil }

func (b *bucket) append(e *Entry) {
	e.prev = b.tail
	e.next = nil
	if b.tail != nil {
		b.tail.next = e
	} else {
		b.head = e
	}
	b.tail = e
	e.b = b
	e.ms = b.instant
}

func (b *bucket) unlink(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		b.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		b.tail = e.prev
	}
	e.next, e.prev, e.b = nil, nil, nil
}

// Store is the ordered bucket sequence. Zero value is ready to use. Not
// safe for concurrent use — callers (TimerScheduler) provide locking.
type Store struct {
	buckets []*bucket
}

// search returns the index of the bucket for instant ms, and whether it
// was found. Buckets are kept sorted ascending, so this is a binary
// search (spec §4.1: O(log B)).
func (s *Store) search(ms int64) (int, bool) {
	i := sort.Search(len(s.buckets), func(i int) bool {
		return s.buckets[i].instant >= ms
	})
	if i < len(s.buckets) && s.buckets[i].instant == ms {
		return i, true
	}
	return i, false
}

// Insert adds e to the bucket for truncate_ms(e.FireAt), creating the
// bucket if absent. e must not already be in a store. Callers set
// e.Holder before calling Insert so that Peek/PopMin can hand back the
// owning timer record.
func (s *Store) Insert(e *Entry) {
	ms := e.FireAt.TruncMs()
	i, found := s.search(ms)
	var b *bucket
	if found {
		b = s.buckets[i]
	} else {
		b = &bucket{instant: ms}
		s.buckets = append(s.buckets, nil)
		copy(s.buckets[i+1:], s.buckets[i:])
		s.buckets[i] = b
	}
	b.append(e)
}

// Remove unlinks e from its bucket, dropping the bucket if it becomes
// empty. Removal is a no-op if e is not currently in the store (spec
// §4.1: "must be a no-op in release mode if the bucket is not found").
func (s *Store) Remove(e *Entry) {
	if e.b == nil {
		return
	}
	i, found := s.search(e.ms)
	if !found || s.buckets[i] != e.b {
		// Defensive: bucket bookkeeping disagrees with e's cached key.
		// Still safe to unlink directly since e carries its own bucket
		// pointer; just skip the array compaction lookup.
		b := e.b
		b.unlink(e)
		return
	}
	b := s.buckets[i]
	b.unlink(e)
	if b.empty() {
		s.buckets = append(s.buckets[:i], s.buckets[i+1:]...)
	}
}

// Peek returns the head of the earliest non-empty bucket without
// removing it, or nil if the store is empty.
func (s *Store) Peek() *Entry {
	if len(s.buckets) == 0 {
		return nil
	}
	return s.buckets[0].head
}

// PopMin removes and returns the head of the earliest non-empty bucket,
// dropping the bucket if it becomes empty. Returns nil if the store is
// empty.
func (s *Store) PopMin() *Entry {
	if len(s.buckets) == 0 {
		return nil
	}
	b := s.buckets[0]
	e := b.head
	b.unlink(e)
	if b.empty() {
		s.buckets = s.buckets[1:]
	}
	return e
}

// Len returns the number of distinct buckets (instants), not the number
// of timers — useful only for diagnostics.
func (s *Store) Len() int { return len(s.buckets) }
