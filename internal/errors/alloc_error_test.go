package errors

import (
	"errors"
	"testing"
)

func TestAllocErrorError(t *testing.T) {
	e := ArenaExhausted(128, 32)
	if e.Kind != KindArenaExhausted {
		t.Fatalf("kind = %v, want %v", e.Kind, KindArenaExhausted)
	}

	msg := e.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestAllocErrorIs(t *testing.T) {
	a := BudgetExceeded("render", 1024, 512)
	b := BudgetExceeded("physics", 2048, 1024)

	if !errors.Is(a, b) {
		t.Fatal("expected two BudgetExceeded errors to match by Kind")
	}

	c := ArenaExhausted(1, 1)
	if errors.Is(a, c) {
		t.Fatal("expected errors of different Kind not to match")
	}
}

func TestAllocErrorUnwrap(t *testing.T) {
	cause := ArenaExhausted(64, 0)
	wrapped := ScratchPoolFull("ui", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}

	var target *AllocError
	if !errors.As(wrapped, &target) {
		t.Fatal("expected errors.As to extract an *AllocError")
	}

	if target.Kind != KindScratchPoolFull {
		t.Fatalf("kind = %v, want %v", target.Kind, KindScratchPoolFull)
	}
}

func TestNewAllocErrorCapturesCaller(t *testing.T) {
	e := NewAllocError(KindInvalidHandle, "test", nil)
	if e.Caller == "" || e.Caller == "unknown" {
		t.Fatalf("expected a resolved caller name, got %q", e.Caller)
	}
}

func TestQueueFullConstructor(t *testing.T) {
	e := QueueFull(256)
	if e.Kind != KindQueueFull {
		t.Fatalf("kind = %v, want %v", e.Kind, KindQueueFull)
	}

	if e.Context["capacity"] != uint64(256) {
		t.Fatalf("context[capacity] = %v, want 256", e.Context["capacity"])
	}
}
