package allocator

import (
	"sync"
	"sync/atomic"
)

// BudgetStatus reports the outcome of a budget check.
type BudgetStatus int

const (
	BudgetOK BudgetStatus = iota
	BudgetWarning
	BudgetExceeded
)

// BudgetEventKind names the kind of event a BudgetManager emits.
type BudgetEventKind int

const (
	EventSoftLimitExceeded BudgetEventKind = iota
	EventHardLimitExceeded
	EventGlobalLimitExceeded
	EventNewPeak
)

// BudgetEvent is emitted to a BudgetManager's event callback whenever a
// tag or global limit is crossed.
type BudgetEvent struct {
	Kind    BudgetEventKind
	Tag     string
	Current uintptr
	Limit   uintptr
}

// TagBudget tracks the configured limits and current usage for one
// allocation tag.
type TagBudget struct {
	Name              string
	SoftLimit         uintptr
	HardLimit         uintptr
	CurrentUsage      uintptr
	PeakUsage         uintptr
	AllocationCount   uint64
	DeallocationCount uint64
}

// CheckStatus reports the status of a hypothetical allocation of
// additionalSize bytes against this tag's limits, without recording it.
func (t TagBudget) CheckStatus(additionalSize uintptr) BudgetStatus {
	projected := t.CurrentUsage + additionalSize

	switch {
	case t.HardLimit > 0 && projected > t.HardLimit:
		return BudgetExceeded
	case t.SoftLimit > 0 && projected > t.SoftLimit:
		return BudgetWarning
	default:
		return BudgetOK
	}
}

// UsagePercent returns current usage as a percentage of the hard limit,
// or 0 if the tag has no hard limit.
func (t TagBudget) UsagePercent() float64 {
	if t.HardLimit == 0 {
		return 0
	}

	return float64(t.CurrentUsage) / float64(t.HardLimit) * 100
}

// BudgetEventFunc is invoked for every BudgetEvent a BudgetManager emits.
type BudgetEventFunc func(BudgetEvent)

// BudgetManager tracks global and per-tag memory budgets, emitting
// events as limits are crossed. It is the process-wide counterpart to
// ThreadBudgetManager's per-worker frame budgets.
type BudgetManager struct {
	globalLimit   uintptr
	currentUsage  atomic.Uint64

	mu      sync.Mutex
	tagData map[string]*TagBudget

	eventMu  sync.Mutex
	onEvent  BudgetEventFunc
}

// NewBudgetManager creates a manager with the given global limit (0 means
// unlimited).
func NewBudgetManager(globalLimit uintptr) *BudgetManager {
	return &BudgetManager{globalLimit: globalLimit, tagData: make(map[string]*TagBudget)}
}

// SetEventCallback installs fn to receive every BudgetEvent this manager
// emits, replacing any previously installed callback.
func (b *BudgetManager) SetEventCallback(fn BudgetEventFunc) {
	b.eventMu.Lock()
	b.onEvent = fn
	b.eventMu.Unlock()
}

// RegisterTagBudget sets explicit soft/hard limits for a named tag.
func (b *BudgetManager) RegisterTagBudget(name string, softLimit, hardLimit uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tagData[name] = &TagBudget{Name: name, SoftLimit: softLimit, HardLimit: hardLimit}
}

// CheckAllocation checks a size-byte allocation against the global limit
// given the projected new total, emitting events as appropriate.
func (b *BudgetManager) CheckAllocation(size, newTotal uintptr) BudgetStatus {
	if b.globalLimit > 0 && newTotal > b.globalLimit {
		b.emit(BudgetEvent{Kind: EventGlobalLimitExceeded, Current: newTotal, Limit: b.globalLimit})

		return BudgetExceeded
	}

	b.currentUsage.Store(uint64(newTotal))

	if b.globalLimit > 0 {
		softLimit := b.globalLimit * 9 / 10
		if newTotal > softLimit {
			return BudgetWarning
		}
	}

	_ = size

	return BudgetOK
}

// CheckTaggedAllocation checks and records a size-byte allocation under
// tag, creating an unlimited TagBudget for it on first use.
func (b *BudgetManager) CheckTaggedAllocation(tag string, size uintptr) BudgetStatus {
	b.mu.Lock()

	budget, ok := b.tagData[tag]
	if !ok {
		budget = &TagBudget{Name: tag}
		b.tagData[tag] = budget
	}

	status := budget.CheckStatus(size)
	budget.CurrentUsage += size
	budget.AllocationCount++

	newPeak := false
	if budget.CurrentUsage > budget.PeakUsage {
		budget.PeakUsage = budget.CurrentUsage
		newPeak = true
	}

	current := budget.CurrentUsage
	limit := budget.SoftLimit
	if status == BudgetExceeded {
		limit = budget.HardLimit
	}
	peak := budget.PeakUsage

	b.mu.Unlock()

	if newPeak {
		b.emit(BudgetEvent{Kind: EventNewPeak, Tag: tag, Current: peak})
	}

	switch status {
	case BudgetWarning:
		b.emit(BudgetEvent{Kind: EventSoftLimitExceeded, Tag: tag, Current: current, Limit: limit})
	case BudgetExceeded:
		b.emit(BudgetEvent{Kind: EventHardLimitExceeded, Tag: tag, Current: current, Limit: limit})
	case BudgetOK:
	}

	return status
}

// RecordTaggedDeallocation records that size bytes under tag were freed.
func (b *BudgetManager) RecordTaggedDeallocation(tag string, size uintptr) {
	b.mu.Lock()
	defer b.mu.Unlock()

	budget, ok := b.tagData[tag]
	if !ok {
		return
	}

	if size > budget.CurrentUsage {
		budget.CurrentUsage = 0
	} else {
		budget.CurrentUsage -= size
	}

	budget.DeallocationCount++
}

// CurrentUsage returns the last recorded global usage total.
func (b *BudgetManager) CurrentUsage() uintptr { return uintptr(b.currentUsage.Load()) }

// GlobalLimit returns the configured global limit.
func (b *BudgetManager) GlobalLimit() uintptr { return b.globalLimit }

// AllTagBudgets returns a snapshot of every registered tag's budget.
func (b *BudgetManager) AllTagBudgets() []TagBudget {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]TagBudget, 0, len(b.tagData))
	for _, budget := range b.tagData {
		out = append(out, *budget)
	}

	return out
}

// TagBudgetFor returns a tag's budget snapshot, or ok=false if unregistered.
func (b *BudgetManager) TagBudgetFor(tag string) (TagBudget, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	budget, ok := b.tagData[tag]
	if !ok {
		return TagBudget{}, false
	}

	return *budget, true
}

// ResetStats zeroes usage counters for every tag (and the global usage
// counter) while keeping configured limits.
func (b *BudgetManager) ResetStats() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, budget := range b.tagData {
		budget.CurrentUsage = 0
		budget.PeakUsage = 0
		budget.AllocationCount = 0
		budget.DeallocationCount = 0
	}

	b.currentUsage.Store(0)
}

func (b *BudgetManager) emit(ev BudgetEvent) {
	b.eventMu.Lock()
	cb := b.onEvent
	b.eventMu.Unlock()

	if cb != nil {
		cb(ev)
	}
}
