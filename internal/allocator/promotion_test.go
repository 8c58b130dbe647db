package allocator

import (
	"testing"
	"unsafe"
)

func TestPromotionProcessorPromotesToPool(t *testing.T) {
	backing := make([]byte, 64)
	src := unsafe.Pointer(&backing[0])

	dest := make([]byte, 64)

	p := NewPromotionProcessor().WithPoolAlloc(func(size, align uintptr) unsafe.Pointer {
		return unsafe.Pointer(&dest[0])
	})

	retained := []retainedAllocation{
		{ptr: src, meta: RetainedMeta{Policy: PromoteToPool, Size: 64, Tag: "a"}},
	}

	result := p.Process(retained)

	if len(result.Promoted) != 1 || !result.Promoted[0].IsSuccess() {
		t.Fatal("expected one successful promotion")
	}

	if result.Summary.PromotedPoolCount != 1 || result.Summary.PromotedPoolBytes != 64 {
		t.Fatalf("summary = %+v, want PromotedPoolCount=1 PromotedPoolBytes=64", result.Summary)
	}
}

func TestPromotionProcessorMissingDestinationFails(t *testing.T) {
	p := NewPromotionProcessor() // no destinations wired

	var failed []string
	p.SetFailureCallback(func(tag, reason string) {
		failed = append(failed, tag+":"+reason)
	})

	retained := []retainedAllocation{
		{ptr: nil, meta: RetainedMeta{Policy: PromoteToHeap, Size: 32, Tag: "b"}},
	}

	result := p.Process(retained)

	if result.Promoted[0].IsSuccess() {
		t.Fatal("expected the promotion to fail when no heap destination is wired")
	}

	if result.Summary.FailedCount != 1 {
		t.Fatalf("FailedCount = %d, want 1", result.Summary.FailedCount)
	}

	if result.Summary.FailuresByReason.InternalError != 1 {
		t.Fatalf("FailuresByReason.InternalError = %d, want 1", result.Summary.FailuresByReason.InternalError)
	}

	if len(failed) != 1 || failed[0] != "b:internal error" {
		t.Fatalf("failure callback saw %v, want [b:internal error]", failed)
	}
}

func TestPromotionProcessorScratchPoolNotFound(t *testing.T) {
	p := NewPromotionProcessor().WithScratchAlloc(func(name string, size, align uintptr) (unsafe.Pointer, bool) {
		return nil, false
	})

	retained := []retainedAllocation{
		{ptr: nil, meta: RetainedMeta{Policy: PromoteToScratch("missing"), Size: 16, Tag: "c"}},
	}

	result := p.Process(retained)

	if result.Promoted[0].FailReason != FailScratchPoolNotFound {
		t.Fatalf("FailReason = %v, want FailScratchPoolNotFound", result.Promoted[0].FailReason)
	}
}

func TestFrameSummaryDerivedStats(t *testing.T) {
	s := FrameSummary{
		PromotedPoolBytes:    100,
		PromotedPoolCount:    2,
		PromotedHeapBytes:    50,
		PromotedHeapCount:    1,
		PromotedScratchBytes: 25,
		PromotedScratchCount: 1,
		FailedCount:          1,
	}

	if s.TotalRetainedBytes() != 175 {
		t.Fatalf("TotalRetainedBytes() = %d, want 175", s.TotalRetainedBytes())
	}

	if s.TotalRetainedCount() != 4 {
		t.Fatalf("TotalRetainedCount() = %d, want 4", s.TotalRetainedCount())
	}

	if got := s.PromotionSuccessRate(); got != 0.8 {
		t.Fatalf("PromotionSuccessRate() = %v, want 0.8", got)
	}
}

func TestFrameSummaryNoAttemptsIsPerfectRate(t *testing.T) {
	var s FrameSummary
	if s.PromotionSuccessRate() != 1 {
		t.Fatalf("PromotionSuccessRate() = %v, want 1 for a frame with no promotion attempts", s.PromotionSuccessRate())
	}
}

func TestPromotionFailureString(t *testing.T) {
	cases := map[PromotionFailure]string{
		FailBudgetExceeded:      "budget exceeded",
		FailScratchPoolNotFound: "scratch pool not found",
		FailScratchPoolFull:     "scratch pool full",
		FailTooLarge:            "allocation too large",
		FailInternalError:       "internal error",
	}

	for reason, want := range cases {
		if got := reason.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", reason, got, want)
		}
	}
}
