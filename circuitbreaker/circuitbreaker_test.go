package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	failing := func() error { return errors.New("provider down") }

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), failing); err == nil {
			t.Fatal("Expected failure to propagate")
		}
	}

	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}
	if err := cb.Execute(context.Background(), failing); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return errors.New("boom") }); err == nil {
		t.Fatal("Expected failure")
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("Expected half-open probe to run, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after successful probe, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)

	cb.Execute(context.Background(), func() error { return errors.New("boom") })
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return errors.New("still down") }); err == nil {
		t.Fatal("Expected probe failure to propagate")
	}
	if cb.GetState() != StateOpen {
		t.Errorf("Expected open state after failed probe, got %v", cb.GetState())
	}
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	if err == nil {
		t.Fatal("Expected context error")
	}
	if called {
		t.Error("Expected fn not to run with cancelled context")
	}
}
