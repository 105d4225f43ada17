package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("Expected errBoom, got %v", err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state open, got %s", cb.GetState())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Expected fn not to run while open")
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, 30*time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected state open, got %s", cb.GetState())
	}

	now = now.Add(31 * time.Second)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("Expected probe to succeed, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state closed after probe, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, 10*time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	now = now.Add(11 * time.Second)
	_ = cb.Execute(ctx, fail)
	if cb.GetState() != StateOpen {
		t.Errorf("Expected state open after failed probe, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state closed, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_CancellationNotCounted(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected state closed, got %s", cb.GetState())
	}
}
