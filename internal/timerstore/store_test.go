package timerstore

import (
	"testing"

	"github.com/cryguy/jstimers/internal/timeval"
)

func newEntry(ms int64) *Entry {
	e := &Entry{FireAt: timeval.New(ms/1000, int32(ms%1000)*1_000_000)}
	e.Holder = e
	return e
}

func TestPeekOrdersByInstant(t *testing.T) {
	var s Store
	a := newEntry(20)
	b := newEntry(10)
	c := newEntry(30)
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	if got := s.Peek(); got != b {
		t.Fatalf("Peek() = %v, want earliest entry b", got)
	}
}

func TestFIFOWithinBucket(t *testing.T) {
	var s Store
	a := newEntry(10)
	b := newEntry(10)
	c := newEntry(10)
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	for i, want := range []*Entry{a, b, c} {
		got := s.PopMin()
		if got != want {
			t.Fatalf("pop %d = %v, want %v", i, got, want)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("store should be empty, Len() = %d", s.Len())
	}
}

func TestRemoveDropsEmptyBucket(t *testing.T) {
	var s Store
	a := newEntry(10)
	b := newEntry(20)
	s.Insert(a)
	s.Insert(b)

	s.Remove(a)
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if s.Peek() != b {
		t.Fatalf("Peek() = %v, want b", s.Peek())
	}
	if a.InStore() {
		t.Fatalf("a should no longer be in store")
	}
}

func TestRemoveIsNoOpForUnlinkedEntry(t *testing.T) {
	var s Store
	a := newEntry(10)
	s.Remove(a) // never inserted
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestPopMinEmptyStore(t *testing.T) {
	var s Store
	if got := s.PopMin(); got != nil {
		t.Fatalf("PopMin() on empty store = %v, want nil", got)
	}
	if got := s.Peek(); got != nil {
		t.Fatalf("Peek() on empty store = %v, want nil", got)
	}
}

func TestInsertThenRemoveThenReinsert(t *testing.T) {
	var s Store
	a := newEntry(10)
	s.Insert(a)
	s.Remove(a)
	a.FireAt = timeval.New(0, 20_000_000)
	s.Insert(a)
	if s.Peek() != a {
		t.Fatalf("expected a reinserted and visible")
	}
}
