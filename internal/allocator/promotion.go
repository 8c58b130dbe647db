package allocator

import "unsafe"

// PromotionFailure names why a retained allocation could not be promoted.
type PromotionFailure int

const (
	FailBudgetExceeded PromotionFailure = iota
	FailScratchPoolNotFound
	FailScratchPoolFull
	FailTooLarge
	FailInternalError
)

func (f PromotionFailure) String() string {
	switch f {
	case FailBudgetExceeded:
		return "budget exceeded"
	case FailScratchPoolNotFound:
		return "scratch pool not found"
	case FailScratchPoolFull:
		return "scratch pool full"
	case FailTooLarge:
		return "allocation too large"
	default:
		return "internal error"
	}
}

// PromotedAllocation is the outcome of promoting one retained allocation.
type PromotedAllocation struct {
	Kind       promotedKind
	Ptr        unsafe.Pointer
	Size       uintptr
	Tag        string
	TypeName   string
	PoolName   string
	FailReason PromotionFailure
	FailMeta   RetainedMeta
}

type promotedKind int

const (
	promotedPool promotedKind = iota
	promotedHeap
	promotedScratch
	promotedFailed
)

// IsSuccess reports whether the promotion succeeded.
func (p PromotedAllocation) IsSuccess() bool { return p.Kind != promotedFailed }

// FailureBreakdown tallies promotion failures by reason, surfaced in a
// FrameSummary.
type FailureBreakdown struct {
	BudgetExceeded       int
	ScratchPoolNotFound  int
	ScratchPoolFull      int
	TooLarge             int
	InternalError        int
}

func (b *FailureBreakdown) record(reason PromotionFailure) {
	switch reason {
	case FailBudgetExceeded:
		b.BudgetExceeded++
	case FailScratchPoolNotFound:
		b.ScratchPoolNotFound++
	case FailScratchPoolFull:
		b.ScratchPoolFull++
	case FailTooLarge:
		b.TooLarge++
	default:
		b.InternalError++
	}
}

// FrameSummary reports what happened to every allocation at one frame's
// end: how much was discarded versus promoted, broken down by
// destination and by failure reason.
type FrameSummary struct {
	DiscardedBytes uintptr
	DiscardedCount int

	PromotedPoolBytes uintptr
	PromotedPoolCount int

	PromotedHeapBytes uintptr
	PromotedHeapCount int

	PromotedScratchBytes uintptr
	PromotedScratchCount int

	FailedBytes uintptr
	FailedCount int

	FailuresByReason FailureBreakdown
}

// TotalRetainedBytes sums every successfully promoted byte count.
func (s FrameSummary) TotalRetainedBytes() uintptr {
	return s.PromotedPoolBytes + s.PromotedHeapBytes + s.PromotedScratchBytes
}

// TotalRetainedCount sums every successfully promoted allocation count.
func (s FrameSummary) TotalRetainedCount() int {
	return s.PromotedPoolCount + s.PromotedHeapCount + s.PromotedScratchCount
}

// PromotionSuccessRate returns the fraction of promotion attempts (not
// discards) that succeeded, in [0, 1]. A frame with no promotion attempts
// reports a perfect rate.
func (s FrameSummary) PromotionSuccessRate() float64 {
	total := s.TotalRetainedCount() + s.FailedCount
	if total == 0 {
		return 1
	}

	return float64(s.TotalRetainedCount()) / float64(total)
}

// PromotionResult is the outcome of processing one frame's retained
// allocations: every PromotedAllocation plus the aggregate summary.
type PromotionResult struct {
	Promoted []PromotedAllocation
	Summary  FrameSummary
}

// PoolAllocFunc allocates size bytes aligned to align from the pool
// destination, returning nil on failure.
type PoolAllocFunc func(size, align uintptr) unsafe.Pointer

// HeapAllocFunc allocates size bytes aligned to align from the heap
// destination, returning nil on failure.
type HeapAllocFunc func(size, align uintptr) unsafe.Pointer

// ScratchAllocFunc allocates size bytes aligned to align from the named
// scratch pool, returning nil on failure and ok=false if the pool itself
// does not exist.
type ScratchAllocFunc func(name string, size, align uintptr) (unsafe.Pointer, bool)

// PromotionFailureFunc is invoked for every promotion attempt that fails,
// naming the tag and a human-readable reason.
type PromotionFailureFunc func(tag, reason string)

// PromotionProcessor promotes a frame's retained allocations to their
// destination allocators, copying each allocation's bytes into its new
// home.
type PromotionProcessor struct {
	poolAlloc    PoolAllocFunc
	heapAlloc    HeapAllocFunc
	scratchAlloc ScratchAllocFunc
	onFailure    PromotionFailureFunc
}

// SetFailureCallback installs fn to be invoked for every failed promotion
// attempt, replacing any previously installed callback.
func (p *PromotionProcessor) SetFailureCallback(fn PromotionFailureFunc) {
	p.onFailure = fn
}

// NewPromotionProcessor creates a processor with no destinations wired;
// use the With* methods to wire the ones the caller's workload needs.
func NewPromotionProcessor() *PromotionProcessor {
	return &PromotionProcessor{}
}

// WithPoolAlloc wires the pool destination.
func (p *PromotionProcessor) WithPoolAlloc(fn PoolAllocFunc) *PromotionProcessor {
	p.poolAlloc = fn
	return p
}

// WithHeapAlloc wires the heap destination.
func (p *PromotionProcessor) WithHeapAlloc(fn HeapAllocFunc) *PromotionProcessor {
	p.heapAlloc = fn
	return p
}

// WithScratchAlloc wires the scratch-pool destination.
func (p *PromotionProcessor) WithScratchAlloc(fn ScratchAllocFunc) *PromotionProcessor {
	p.scratchAlloc = fn
	return p
}

// Process promotes every retained allocation and returns the combined
// result. Each successful promotion copies the allocation's bytes from
// its original frame-arena location to the new destination.
func (p *PromotionProcessor) Process(retained []retainedAllocation) PromotionResult {
	promoted := make([]PromotedAllocation, 0, len(retained))

	var summary FrameSummary

	for _, a := range retained {
		result := p.promoteOne(a.meta)

		switch result.Kind {
		case promotedPool:
			summary.PromotedPoolBytes += result.Size
			summary.PromotedPoolCount++
			copyIfPossible(result.Ptr, a.ptr, result.Size)
		case promotedHeap:
			summary.PromotedHeapBytes += result.Size
			summary.PromotedHeapCount++
			copyIfPossible(result.Ptr, a.ptr, result.Size)
		case promotedScratch:
			summary.PromotedScratchBytes += result.Size
			summary.PromotedScratchCount++
			copyIfPossible(result.Ptr, a.ptr, result.Size)
		default:
			summary.FailedBytes += result.FailMeta.Size
			summary.FailedCount++
			summary.FailuresByReason.record(result.FailReason)

			if p.onFailure != nil {
				p.onFailure(result.FailMeta.Tag, result.FailReason.String())
			}
		}

		promoted = append(promoted, result)
	}

	return PromotionResult{Promoted: promoted, Summary: summary}
}

func copyIfPossible(dst, src unsafe.Pointer, size uintptr) {
	if dst != nil && src != nil && size > 0 {
		copyMemory(dst, src, size)
	}
}

func (p *PromotionProcessor) promoteOne(meta RetainedMeta) PromotedAllocation {
	switch meta.Policy.kind {
	case retentionPromoteToPool:
		if p.poolAlloc == nil {
			return failedPromotion(FailInternalError, meta)
		}

		ptr := p.poolAlloc(meta.Size, 8)
		if ptr == nil {
			return failedPromotion(FailBudgetExceeded, meta)
		}

		return PromotedAllocation{Kind: promotedPool, Ptr: ptr, Size: meta.Size, Tag: meta.Tag, TypeName: meta.TypeName}

	case retentionPromoteToHeap:
		if p.heapAlloc == nil {
			return failedPromotion(FailInternalError, meta)
		}

		ptr := p.heapAlloc(meta.Size, 8)
		if ptr == nil {
			return failedPromotion(FailBudgetExceeded, meta)
		}

		return PromotedAllocation{Kind: promotedHeap, Ptr: ptr, Size: meta.Size, Tag: meta.Tag, TypeName: meta.TypeName}

	case retentionPromoteToScratch:
		if p.scratchAlloc == nil {
			return failedPromotion(FailInternalError, meta)
		}

		ptr, ok := p.scratchAlloc(meta.Policy.scratchName, meta.Size, 8)
		if !ok {
			return failedPromotion(FailScratchPoolNotFound, meta)
		}

		if ptr == nil {
			return failedPromotion(FailScratchPoolFull, meta)
		}

		return PromotedAllocation{
			Kind: promotedScratch, Ptr: ptr, Size: meta.Size, Tag: meta.Tag,
			TypeName: meta.TypeName, PoolName: meta.Policy.scratchName,
		}

	default:
		// Discard policies are never registered in the retention registry
		// in the first place, so reaching here indicates a caller bug.
		return failedPromotion(FailInternalError, meta)
	}
}

func failedPromotion(reason PromotionFailure, meta RetainedMeta) PromotedAllocation {
	return PromotedAllocation{Kind: promotedFailed, FailReason: reason, FailMeta: meta}
}
