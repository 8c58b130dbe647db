package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind enumerates the allocator failure taxonomy as a closed set, checked
// with errors.Is rather than string comparison.
type Kind string

const (
	KindArenaExhausted     Kind = "ARENA_EXHAUSTED"
	KindAllocationFailed   Kind = "ALLOCATION_FAILED"
	KindBudgetExceeded     Kind = "BUDGET_EXCEEDED"
	KindInvalidHandle      Kind = "INVALID_HANDLE"
	KindBudgetWarning      Kind = "BUDGET_WARNING"
	KindScratchPoolNotFound Kind = "SCRATCH_POOL_NOT_FOUND"
	KindScratchPoolFull    Kind = "SCRATCH_POOL_FULL"
	KindStreamingBudgetFull Kind = "STREAMING_BUDGET_FULL"
	KindQueueFull          Kind = "QUEUE_FULL"
)

// AllocError is the structured error type returned by allocator operations
// that use Go's (T, error) idiom instead of (T, bool). It carries a closed
// Kind, a human-readable message, arbitrary diagnostic context, the
// immediate caller, and an optional wrapped error so a ScratchPoolFull can
// carry the scratch arena's own exhaustion error, and so on.
type AllocError struct {
	Kind    Kind
	Message string
	Context map[string]interface{}
	Caller  string
	Err     error
}

// Error implements the error interface.
func (e *AllocError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s (caller: %s): %v", e.Kind, e.Message, e.Caller, e.Err)
	}

	return fmt.Sprintf("[%s] %s (caller: %s)", e.Kind, e.Message, e.Caller)
}

// Unwrap exposes the wrapped error, if any, for errors.Is/errors.As.
func (e *AllocError) Unwrap() error { return e.Err }

// Is reports whether target is an *AllocError with the same Kind, so
// callers can write errors.Is(err, &AllocError{Kind: KindBudgetExceeded}).
func (e *AllocError) Is(target error) bool {
	var other *AllocError
	if !errors.As(target, &other) {
		return false
	}

	return other.Kind == e.Kind
}

// NewAllocError builds an AllocError of the given kind, capturing the
// immediate caller via runtime.Caller.
func NewAllocError(kind Kind, message string, context map[string]interface{}) *AllocError {
	return &AllocError{
		Kind:    kind,
		Message: message,
		Context: context,
		Caller:  callerName(2),
	}
}

// WrapAllocError builds an AllocError that wraps an underlying error via %w
// semantics (exposed through Unwrap), for cases like a ScratchPoolFull that
// is really the scratch arena's own ArenaExhausted surfacing one level up.
func WrapAllocError(kind Kind, message string, context map[string]interface{}, err error) *AllocError {
	e := NewAllocError(kind, message, context)
	e.Err = err

	return e
}

func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}

	return fn.Name()
}

// ArenaExhausted reports that a frame or scratch arena lacks capacity for a
// requested allocation.
func ArenaExhausted(requested, remaining uintptr) *AllocError {
	return NewAllocError(KindArenaExhausted,
		fmt.Sprintf("requested %d bytes but only %d remain", requested, remaining),
		map[string]interface{}{"requested": requested, "remaining": remaining})
}

// AllocationFailed reports that the underlying system allocator returned
// nil for the given layout.
func AllocationFailed(size, align uintptr) *AllocError {
	return NewAllocError(KindAllocationFailed,
		fmt.Sprintf("system allocation of %d bytes (align %d) failed", size, align),
		map[string]interface{}{"size": size, "align": align})
}

// BudgetExceeded reports a tag or global budget hard limit crossing.
func BudgetExceeded(tag string, requested, limit uintptr) *AllocError {
	return NewAllocError(KindBudgetExceeded,
		fmt.Sprintf("tag %q requested %d bytes against a %d byte hard limit", tag, requested, limit),
		map[string]interface{}{"tag": tag, "requested": requested, "limit": limit})
}

// InvalidHandle reports a generation mismatch or use of a freed handle.
func InvalidHandle(index uint32, generation uint32) *AllocError {
	return NewAllocError(KindInvalidHandle,
		fmt.Sprintf("handle index %d generation %d is not valid", index, generation),
		map[string]interface{}{"index": index, "generation": generation})
}

// ScratchPoolNotFound reports that a named scratch pool has never been
// created.
func ScratchPoolNotFound(name string) *AllocError {
	return NewAllocError(KindScratchPoolNotFound,
		fmt.Sprintf("scratch pool %q does not exist", name),
		map[string]interface{}{"name": name})
}

// ScratchPoolFull wraps a named scratch pool's own exhaustion error.
func ScratchPoolFull(name string, err error) *AllocError {
	return WrapAllocError(KindScratchPoolFull,
		fmt.Sprintf("scratch pool %q is full", name),
		map[string]interface{}{"name": name}, err)
}

// StreamingBudgetFull reports that a reservation could not be satisfied
// even after eviction.
func StreamingBudgetFull(requested, budget uintptr) *AllocError {
	return NewAllocError(KindStreamingBudgetFull,
		fmt.Sprintf("reservation of %d bytes exceeds %d byte budget even after eviction", requested, budget),
		map[string]interface{}{"requested": requested, "budget": budget})
}

// QueueFull reports that a deferred-free queue reached capacity under a
// non-growing overflow policy.
func QueueFull(capacity uint64) *AllocError {
	return NewAllocError(KindQueueFull,
		fmt.Sprintf("deferred-free queue reached its %d entry capacity", capacity),
		map[string]interface{}{"capacity": capacity})
}
