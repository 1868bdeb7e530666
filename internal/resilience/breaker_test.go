package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func passing() error { return nil }

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 10; i++ {
		if err := b.Execute(passing); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
	}

	if b.State() != StateClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %v", b.State())
	}

	if err := b.Execute(passing); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 3, Timeout: time.Minute})

	b.Execute(failing)
	b.Execute(failing)
	b.Execute(passing)
	b.Execute(failing)
	b.Execute(failing)

	if b.State() != StateClosed {
		t.Errorf("expected closed, got %v", b.State())
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, Timeout: 10 * time.Millisecond})

	b.Execute(failing)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %v", b.State())
	}

	time.Sleep(20 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after timeout, got %v", b.State())
	}

	if err := b.Execute(passing); err != nil {
		t.Fatalf("probe should be allowed: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after successful probe, got %v", b.State())
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, Timeout: 10 * time.Millisecond})

	b.Execute(failing)
	time.Sleep(20 * time.Millisecond)

	b.Execute(failing)
	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %v", b.State())
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	var transitions []State
	b := New("test", Settings{
		FailureThreshold: 1,
		Timeout:          time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, to)
		},
	})

	b.Execute(failing)

	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("expected single transition to open, got %v", transitions)
	}
}
