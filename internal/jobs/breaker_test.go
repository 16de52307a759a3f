package jobs

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute, 1)
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return failing }); !errors.Is(err, failing) {
			t.Fatalf("attempt %d: expected passthrough error, got %v", i, err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected breaker to be open after 3 failures, got %s", cb.State())
	}
	if err := cb.Call(func() error { t.Fatal("fn should not run while open"); return nil }); err != ErrCircuitOpen {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond, 2)
	_ = cb.Call(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("half-open call 1 should pass: %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected half-open after one success, got %s", cb.State())
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("half-open call 2 should pass: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed after halfOpenSuccess successes, got %s", cb.State())
	}
}

func TestCircuitBreaker_FailureInHalfOpenReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond, 2)
	_ = cb.Call(func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)
	_ = cb.Call(func() error { return errors.New("still broken") })
	if cb.State() != StateOpen {
		t.Fatalf("expected reopen after half-open failure, got %s", cb.State())
	}
}
