package allocator

import (
	"sync"
	"sync/atomic"
)

// DeferredProcessingMode selects when a worker's deferred-free queue is
// drained automatically.
type DeferredProcessingMode int

const (
	// AtFrameBegin drains the queue as the first step of BeginFrame. Default.
	AtFrameBegin DeferredProcessingMode = iota
	// AtFrameEnd drains the queue during EndFrame.
	AtFrameEnd
	// Incremental drains up to PerAlloc entries on every slab allocation.
	Incremental
	// Explicit drains only when the client calls ProcessDeferred.
	Explicit
	// Disabled never drains the queue automatically.
	Disabled
)

// QueueFullPolicy selects what happens when a bounded deferred-free queue
// reaches capacity.
type QueueFullPolicy int

const (
	// ProcessImmediately drains the queue synchronously on the freeing
	// goroutine when it is full.
	ProcessImmediately QueueFullPolicy = iota
	// DropOldest discards the oldest queued entries to make room.
	DropOldest
	// Fail returns an error to the freeing caller instead of queuing.
	Fail
	// Grow lets the queue's overflow path absorb the excess. Default.
	Grow
)

// DeferredConfig configures a worker's DeferredController.
type DeferredConfig struct {
	Mode             DeferredProcessingMode
	PerAlloc         int // only meaningful when Mode == Incremental
	Capacity         int // 0 = unbounded
	FullPolicy       QueueFullPolicy
	WarningThreshold int
}

// DefaultDeferredConfig returns the AtFrameBegin/unbounded/Grow default.
func DefaultDeferredConfig() DeferredConfig {
	return DeferredConfig{
		Mode:             AtFrameBegin,
		Capacity:         0,
		FullPolicy:       Grow,
		WarningThreshold: 1024,
	}
}

// BoundedDeferredConfig returns a capacity-bounded configuration that
// drains synchronously once full.
func BoundedDeferredConfig(capacity int) DeferredConfig {
	return DeferredConfig{
		Mode:             AtFrameBegin,
		Capacity:         capacity,
		FullPolicy:       ProcessImmediately,
		WarningThreshold: capacity * 80 / 100,
	}
}

// IncrementalDeferredConfig drains perAlloc entries on every slab
// allocation instead of all-at-once at a frame boundary.
func IncrementalDeferredConfig(perAlloc int) DeferredConfig {
	return DeferredConfig{
		Mode:             Incremental,
		PerAlloc:         perAlloc,
		Capacity:         0,
		FullPolicy:       Grow,
		WarningThreshold: 1024,
	}
}

// ExplicitDeferredConfig requires the client to call ProcessDeferred.
func ExplicitDeferredConfig() DeferredConfig {
	return DeferredConfig{Mode: Explicit, FullPolicy: Grow, WarningThreshold: 1024}
}

// DeferredStats reports cumulative and current queue behavior.
type DeferredStats struct {
	TotalQueued           uint64
	TotalProcessed         uint64
	CurrentDepth          int
	PeakDepth             int
	QueuedBytes           uintptr
	FullCount             uint64
	WarningCount          uint64
	ImmediateProcessCount uint64
}

// QueueResult reports the outcome of recordQueued.
type QueueResult int

const (
	QueueOK QueueResult = iota
	QueueWarning
	QueueFull
)

// DeferredEventKind names the kind of event a DeferredController emits to
// its diagnostics callback.
type DeferredEventKind int

const (
	DeferredQueueNearFull DeferredEventKind = iota
	DeferredQueueFull
	DeferredBatchDrained
)

// DeferredEvent is emitted to a DeferredController's event callback.
type DeferredEvent struct {
	Kind           DeferredEventKind
	Depth          int
	Capacity       int
	OverflowPolicy string
}

// DeferredEventFunc is invoked for every DeferredEvent a DeferredController
// emits.
type DeferredEventFunc func(DeferredEvent)

// DeferredController tracks queue depth/bytes against DeferredConfig and
// produces warning/full signals for the façade to act on.
type DeferredController struct {
	cfg DeferredConfig

	depth          atomic.Int64
	peak           atomic.Int64
	bytes          atomic.Int64
	warningIssued  atomic.Bool

	mu      sync.Mutex
	stats   DeferredStats
	onEvent DeferredEventFunc
}

// NewDeferredController creates a controller for the given configuration.
func NewDeferredController(cfg DeferredConfig) *DeferredController {
	return &DeferredController{cfg: cfg}
}

// SetEventCallback installs fn to receive every DeferredEvent this
// controller emits, replacing any previously installed callback.
func (c *DeferredController) SetEventCallback(fn DeferredEventFunc) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *DeferredController) emit(ev DeferredEvent) {
	c.mu.Lock()
	cb := c.onEvent
	c.mu.Unlock()

	if cb != nil {
		cb(ev)
	}
}

func (c *DeferredController) overflowPolicyName() string {
	switch c.cfg.FullPolicy {
	case ProcessImmediately:
		return "process-immediately"
	case DropOldest:
		return "drop-oldest"
	case Fail:
		return "fail"
	case Grow:
		return "grow"
	default:
		return "unknown"
	}
}

// Config returns the controller's current configuration.
func (c *DeferredController) Config() DeferredConfig { return c.cfg }

// SetConfig replaces the controller's configuration.
func (c *DeferredController) SetConfig(cfg DeferredConfig) { c.cfg = cfg }

func (c *DeferredController) recordQueued(size uintptr) QueueResult {
	depth := c.depth.Add(1)
	if depth > c.peak.Load() {
		c.peak.Store(depth)
	}

	c.bytes.Add(int64(size))

	c.mu.Lock()
	c.stats.TotalQueued++
	c.stats.CurrentDepth = int(depth)
	if int(depth) > c.stats.PeakDepth {
		c.stats.PeakDepth = int(depth)
	}
	c.stats.QueuedBytes = uintptr(c.bytes.Load())
	c.mu.Unlock()

	if c.cfg.Capacity > 0 && int(depth) >= c.cfg.Capacity {
		c.mu.Lock()
		c.stats.FullCount++
		c.mu.Unlock()

		c.emit(DeferredEvent{Kind: DeferredQueueFull, Depth: int(depth), Capacity: c.cfg.Capacity, OverflowPolicy: c.overflowPolicyName()})

		return QueueFull
	}

	if c.cfg.WarningThreshold > 0 && int(depth) >= c.cfg.WarningThreshold && !c.warningIssued.Swap(true) {
		c.mu.Lock()
		c.stats.WarningCount++
		c.mu.Unlock()

		c.emit(DeferredEvent{Kind: DeferredQueueNearFull, Depth: int(depth), Capacity: c.cfg.Capacity})

		return QueueWarning
	}

	return QueueOK
}

func (c *DeferredController) recordProcessed(count int, bytes uintptr) {
	c.depth.Add(-int64(count))
	c.bytes.Add(-int64(bytes))

	c.mu.Lock()
	c.stats.TotalProcessed += uint64(count)
	c.stats.CurrentDepth = int(c.depth.Load())
	c.stats.QueuedBytes = uintptr(c.bytes.Load())
	c.mu.Unlock()

	if count > 0 {
		c.emit(DeferredEvent{Kind: DeferredBatchDrained, Depth: count})
	}
}

// Depth returns the current number of queued entries.
func (c *DeferredController) Depth() int { return int(c.depth.Load()) }

// ShouldProcessAtFrameBegin reports whether the configured mode drains
// automatically at BeginFrame.
func (c *DeferredController) ShouldProcessAtFrameBegin() bool {
	return c.cfg.Mode == AtFrameBegin
}

// ShouldProcessAtFrameEnd reports whether the configured mode drains
// automatically at EndFrame.
func (c *DeferredController) ShouldProcessAtFrameEnd() bool {
	return c.cfg.Mode == AtFrameEnd
}

// IncrementalCount returns the per-allocation drain count and true when the
// mode is Incremental.
func (c *DeferredController) IncrementalCount() (int, bool) {
	if c.cfg.Mode == Incremental {
		return c.cfg.PerAlloc, true
	}

	return 0, false
}

// ResetWarning clears the warning-issued flag. Called at frame boundaries.
func (c *DeferredController) ResetWarning() {
	c.warningIssued.Store(false)
}

// Stats returns a snapshot of the controller's statistics.
func (c *DeferredController) Stats() DeferredStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}
