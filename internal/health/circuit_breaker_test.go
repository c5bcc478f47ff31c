package health

import (
	"errors"
	"testing"
	"time"

	"github.com/harpy-platform/harpy-core/internal/model"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 10*time.Second)

	for i := 0; i < 3; i++ {
		_ = cb.Call("p1", func() error { return errors.New("boom") })
	}

	if cb.State() != model.CircuitOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}
}

func TestCircuitBreaker_ResetsOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(3, 10*time.Second)

	_ = cb.Call("p1", func() error { return errors.New("boom") })
	_ = cb.Call("p1", func() error { return nil })

	if cb.State() != model.CircuitClosed {
		t.Fatalf("state = %v, want CLOSED", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Fatalf("failure count = %d, want 0", cb.FailureCount())
	}
}

func TestCircuitBreaker_StaysClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, 10*time.Second)

	for i := 0; i < 10; i++ {
		_ = cb.Call("p1", func() error { return nil })
	}

	if cb.State() != model.CircuitClosed {
		t.Fatalf("state = %v, want CLOSED", cb.State())
	}
}

func TestCircuitBreaker_FailsFastWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)

	_ = cb.Call("p1", func() error { return errors.New("boom") })

	called := false
	err := cb.Call("p1", func() error {
		called = true
		return nil
	})

	if called {
		t.Fatal("thunk should not be invoked while circuit is open")
	}
	var openErr ErrCircuitOpen
	if !errors.As(err, &openErr) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	_ = cb.Call("p1", func() error { return errors.New("boom") })
	if cb.State() != model.CircuitOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	called := false
	err := cb.Call("p1", func() error {
		called = true
		return nil
	})
	if !called {
		t.Fatal("thunk should be invoked once reset timeout elapses")
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.State() != model.CircuitClosed {
		t.Fatalf("state = %v, want CLOSED after half-open success", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	_ = cb.Call("p1", func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	err := cb.Call("p1", func() error { return errors.New("boom again") })
	if err == nil {
		t.Fatal("expected error from half-open failure")
	}
	if cb.State() != model.CircuitOpen {
		t.Fatalf("state = %v, want OPEN after half-open failure", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	_ = cb.Call("p1", func() error { return errors.New("boom") })

	cb.Reset()

	if cb.State() != model.CircuitClosed {
		t.Fatalf("state = %v, want CLOSED after reset", cb.State())
	}
	if cb.FailureCount() != 0 {
		t.Fatalf("failure count = %d, want 0 after reset", cb.FailureCount())
	}
}
