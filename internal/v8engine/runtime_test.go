//go:build v8

package v8engine

import "testing"

func TestEvalString(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	s, err := rt.EvalString(`"hello" + " " + "world"`)
	if err != nil {
		t.Fatalf("EvalString: %v", err)
	}
	if s != "hello world" {
		t.Errorf("EvalString = %q, want %q", s, "hello world")
	}
}

func TestRegisterFuncUnwrapsErrorReturn(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if err := rt.RegisterFunc("double", func(n int) (int, error) {
		return n * 2, nil
	}); err != nil {
		t.Fatalf("RegisterFunc: %v", err)
	}

	n, err := rt.EvalInt("double(21)")
	if err != nil {
		t.Fatalf("EvalInt: %v", err)
	}
	if n != 42 {
		t.Errorf("double(21) = %d, want 42", n)
	}
}

func TestRunMicrotasksPumpsPromiseCallbacks(t *testing.T) {
	rt, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if err := rt.Eval(`
		globalThis.__seen = false;
		Promise.resolve().then(function() { globalThis.__seen = true; });
	`); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	rt.RunMicrotasks()

	seen, err := rt.EvalBool("globalThis.__seen")
	if err != nil {
		t.Fatalf("EvalBool: %v", err)
	}
	if !seen {
		t.Error("RunMicrotasks did not run the pending Promise.then callback")
	}
}
