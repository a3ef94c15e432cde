package timeval

import "testing"

func TestCompare(t *testing.T) {
	a := New(10, 500)
	b := New(10, 600)
	c := New(11, 0)

	if a.Compare(b) >= 0 {
		t.Fatalf("expected a before b")
	}
	if !a.Before(b) {
		t.Fatalf("expected a.Before(b)")
	}
	if !c.After(b) {
		t.Fatalf("expected c.After(b)")
	}
	if !a.Equal(New(10, 500)) {
		t.Fatalf("expected equal")
	}
}

func TestAddMs(t *testing.T) {
	base := New(10, 0)
	got := base.AddMs(1500)
	want := New(11, 500_000_000)
	if !got.Equal(want) {
		t.Fatalf("AddMs(1500) = %v, want %v", got, want)
	}
}

func TestAddMsNegativeCarriesBorrow(t *testing.T) {
	base := New(10, 200_000_000)
	got := base.AddMs(-300)
	want := New(9, 900_000_000)
	if !got.Equal(want) {
		t.Fatalf("AddMs(-300) = %v, want %v", got, want)
	}
}

func TestTruncMs(t *testing.T) {
	tm := New(1, 2_500_000) // 1.0025s
	if got, want := tm.TruncMs(), int64(1002); got != want {
		t.Fatalf("TruncMs() = %d, want %d", got, want)
	}
}

func TestSub(t *testing.T) {
	a := New(10, 0)
	b := New(9, 500_000_000)
	d := a.Sub(b)
	if d.Milliseconds() != 500 {
		t.Fatalf("Sub = %v, want 500ms", d)
	}
}
