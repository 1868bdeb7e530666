package registry

import (
	"testing"
)

func TestCompleteInvokesExactlyOnce(t *testing.T) {
	r := New(nil)

	var calls int
	var got any
	r.Register(1, func(value any) {
		calls++
		got = value
	})

	if !r.Complete(1, "reply") {
		t.Fatal("Complete should report an invocation")
	}
	if r.Complete(1, "again") {
		t.Error("second Complete should be a no-op")
	}

	if calls != 1 {
		t.Errorf("completion invoked %d times, want 1", calls)
	}
	if got != "reply" {
		t.Errorf("completion got %v, want reply", got)
	}
}

func TestCompleteUnknownIDIsNoOp(t *testing.T) {
	r := New(nil)

	if r.Complete(42, "value") {
		t.Error("unknown id should be a no-op")
	}
}

func TestDuplicateRegisterKeepsOriginal(t *testing.T) {
	r := New(nil)

	var first, second bool
	r.Register(1, func(any) { first = true })
	if r.Register(1, func(any) { second = true }) {
		t.Error("duplicate register should fail")
	}

	r.Complete(1, nil)
	if !first || second {
		t.Errorf("original completion should win: first=%v second=%v", first, second)
	}
}

func TestDrainResolvesPendingToCancelled(t *testing.T) {
	r := New(nil)

	values := make(map[int]any)
	r.Register(1, func(v any) { values[1] = "invoked" })
	r.Register(2, func(v any) {
		if v != nil {
			t.Errorf("drained completion got %v, want nil", v)
		}
		values[2] = "invoked"
	})

	r.Complete(1, "done")
	r.Drain()

	if len(values) != 2 {
		t.Errorf("expected both completions invoked, got %v", values)
	}
	if r.Len() != 0 {
		t.Errorf("registry should be empty after drain, has %d", r.Len())
	}

	// drained ids are gone for good
	if r.Complete(2, "late") {
		t.Error("completing a drained id should be a no-op")
	}
}

func TestIDReusableAfterCompletion(t *testing.T) {
	r := New(nil)

	r.Register(5, func(any) {})
	r.Complete(5, nil)

	if !r.Register(5, func(any) {}) {
		t.Error("id should be reusable once completed")
	}
}
