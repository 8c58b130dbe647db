package allocator

import (
	"sync"
	"sync/atomic"
)

// WorkerID identifies a worker for per-worker budget tracking. It is
// assigned explicitly at Attach time rather than derived from a
// goroutine identity, since Go does not expose one.
type WorkerID uint64

// BudgetExceededPolicy decides what happens when a worker's frame or pool
// budget would be exceeded.
type BudgetExceededPolicy int

const (
	// PolicyWarn logs and allows the allocation. Default.
	PolicyWarn BudgetExceededPolicy = iota
	// PolicyFail fails the allocation.
	PolicyFail
	// PolicyAllow silently allows the allocation.
	PolicyAllow
	// PolicyPromote attempts to promote to a larger allocator (pool -> heap).
	PolicyPromote
	// PolicyCustom invokes the manager's exceeded handler.
	PolicyCustom
)

// ThreadBudgetConfig configures one worker's frame and pool budgets.
type ThreadBudgetConfig struct {
	FrameBudget         uintptr
	PoolBudget          uintptr
	FrameExceededPolicy BudgetExceededPolicy
	PoolExceededPolicy  BudgetExceededPolicy
	WarningThresholdPct uint8
}

// DefaultThreadBudgetConfig returns the 16MiB frame / 8MiB pool, warn-only
// default configuration.
func DefaultThreadBudgetConfig() ThreadBudgetConfig {
	return ThreadBudgetConfig{
		FrameBudget:         16 * 1024 * 1024,
		PoolBudget:          8 * 1024 * 1024,
		FrameExceededPolicy: PolicyWarn,
		PoolExceededPolicy:  PolicyWarn,
		WarningThresholdPct: 80,
	}
}

// StrictThreadBudgetConfig returns a configuration that fails allocations
// once either budget, given in MiB, is exceeded.
func StrictThreadBudgetConfig(frameMiB, poolMiB uintptr) ThreadBudgetConfig {
	return ThreadBudgetConfig{
		FrameBudget:         frameMiB * 1024 * 1024,
		PoolBudget:          poolMiB * 1024 * 1024,
		FrameExceededPolicy: PolicyFail,
		PoolExceededPolicy:  PolicyFail,
		WarningThresholdPct: 90,
	}
}

// RelaxedThreadBudgetConfig returns a configuration that allows
// allocations past either budget, given in MiB.
func RelaxedThreadBudgetConfig(frameMiB, poolMiB uintptr) ThreadBudgetConfig {
	return ThreadBudgetConfig{
		FrameBudget:         frameMiB * 1024 * 1024,
		PoolBudget:          poolMiB * 1024 * 1024,
		FrameExceededPolicy: PolicyAllow,
		PoolExceededPolicy:  PolicyAllow,
		WarningThresholdPct: 95,
	}
}

// threadBudgetState is the live usage counters for one worker.
type threadBudgetState struct {
	frameUsed     atomic.Uint64
	framePeak     atomic.Uint64
	poolUsed      atomic.Uint64
	poolPeak      atomic.Uint64
	warningIssued atomic.Bool
	exceededCount atomic.Uint64
}

func (s *threadBudgetState) recordFrameAlloc(size uintptr) uintptr {
	newUsed := s.frameUsed.Add(uint64(size))
	for {
		peak := s.framePeak.Load()
		if newUsed <= peak || s.framePeak.CompareAndSwap(peak, newUsed) {
			break
		}
	}

	return uintptr(newUsed)
}

func (s *threadBudgetState) recordFrameFree(size uintptr) {
	s.frameUsed.Add(^uint64(size) + 1)
}

func (s *threadBudgetState) recordPoolAlloc(size uintptr) uintptr {
	newUsed := s.poolUsed.Add(uint64(size))
	for {
		peak := s.poolPeak.Load()
		if newUsed <= peak || s.poolPeak.CompareAndSwap(peak, newUsed) {
			break
		}
	}

	return uintptr(newUsed)
}

func (s *threadBudgetState) recordPoolFree(size uintptr) {
	s.poolUsed.Add(^uint64(size) + 1)
}

func (s *threadBudgetState) resetFrame() {
	s.frameUsed.Store(0)
	s.warningIssued.Store(false)
}

func (s *threadBudgetState) frameUsage() uintptr { return uintptr(s.frameUsed.Load()) }
func (s *threadBudgetState) poolUsage() uintptr  { return uintptr(s.poolUsed.Load()) }

// BudgetCheckResult reports the outcome of a ThreadBudgetManager check.
type BudgetCheckResult struct {
	Kind   budgetCheckKind
	Policy BudgetExceededPolicy
}

type budgetCheckKind int

const (
	CheckOK budgetCheckKind = iota
	CheckWarning
	CheckExceeded
)

// ExceededHandler is invoked when PolicyCustom is configured and a
// budget is exceeded.
type ExceededHandler func(worker WorkerID, current, limit uintptr)

// ThreadBudgetManager tracks frame and pool budget usage per worker,
// enforcing per-worker configuration and a shared default.
type ThreadBudgetManager struct {
	mu             sync.Mutex
	defaultConfig  ThreadBudgetConfig
	workerConfigs  map[WorkerID]ThreadBudgetConfig
	workerStates   map[WorkerID]*threadBudgetState

	enabled atomic.Bool

	handlerMu sync.Mutex
	handler   ExceededHandler
}

// NewThreadBudgetManager creates a disabled manager with the default
// configuration.
func NewThreadBudgetManager() *ThreadBudgetManager {
	return &ThreadBudgetManager{
		defaultConfig: DefaultThreadBudgetConfig(),
		workerConfigs: make(map[WorkerID]ThreadBudgetConfig),
		workerStates:  make(map[WorkerID]*threadBudgetState),
	}
}

// Enable turns on budget tracking.
func (m *ThreadBudgetManager) Enable() { m.enabled.Store(true) }

// Disable turns off budget tracking; checks become free no-ops.
func (m *ThreadBudgetManager) Disable() { m.enabled.Store(false) }

// IsEnabled reports whether budget tracking is active.
func (m *ThreadBudgetManager) IsEnabled() bool { return m.enabled.Load() }

// SetDefaultConfig replaces the configuration applied to workers with no
// explicit per-worker override.
func (m *ThreadBudgetManager) SetDefaultConfig(cfg ThreadBudgetConfig) {
	m.mu.Lock()
	m.defaultConfig = cfg
	m.mu.Unlock()
}

// SetWorkerConfig overrides the configuration for one worker.
func (m *ThreadBudgetManager) SetWorkerConfig(worker WorkerID, cfg ThreadBudgetConfig) {
	m.mu.Lock()
	m.workerConfigs[worker] = cfg
	m.mu.Unlock()
}

// SetExceededHandler installs the handler invoked for PolicyCustom.
func (m *ThreadBudgetManager) SetExceededHandler(fn ExceededHandler) {
	m.handlerMu.Lock()
	m.handler = fn
	m.handlerMu.Unlock()
}

func (m *ThreadBudgetManager) configFor(worker WorkerID) ThreadBudgetConfig {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg, ok := m.workerConfigs[worker]; ok {
		return cfg
	}

	return m.defaultConfig
}

func (m *ThreadBudgetManager) stateFor(worker WorkerID) *threadBudgetState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.workerStates[worker]
	if !ok {
		state = &threadBudgetState{}
		m.workerStates[worker] = state
	}

	return state
}

// CheckFrameBudget checks whether a size-byte frame allocation would
// exceed the worker's frame budget, without recording it.
func (m *ThreadBudgetManager) CheckFrameBudget(worker WorkerID, size uintptr) BudgetCheckResult {
	if !m.IsEnabled() {
		return BudgetCheckResult{Kind: CheckOK}
	}

	cfg := m.configFor(worker)
	state := m.stateFor(worker)
	newTotal := state.frameUsage() + size

	if newTotal > cfg.FrameBudget {
		state.exceededCount.Add(1)

		if cfg.FrameExceededPolicy == PolicyCustom {
			m.handlerMu.Lock()
			h := m.handler
			m.handlerMu.Unlock()

			if h != nil {
				h(worker, newTotal, cfg.FrameBudget)
			}
		}

		return BudgetCheckResult{Kind: CheckExceeded, Policy: cfg.FrameExceededPolicy}
	}

	warningThreshold := cfg.FrameBudget * uintptr(cfg.WarningThresholdPct) / 100
	if newTotal > warningThreshold && !state.warningIssued.Swap(true) {
		return BudgetCheckResult{Kind: CheckWarning}
	}

	return BudgetCheckResult{Kind: CheckOK}
}

// RecordFrameAlloc records a frame allocation after a passed budget check.
func (m *ThreadBudgetManager) RecordFrameAlloc(worker WorkerID, size uintptr) {
	if !m.IsEnabled() {
		return
	}

	m.stateFor(worker).recordFrameAlloc(size)
}

// RecordFrameFree records a frame deallocation.
func (m *ThreadBudgetManager) RecordFrameFree(worker WorkerID, size uintptr) {
	if !m.IsEnabled() {
		return
	}

	m.stateFor(worker).recordFrameFree(size)
}

// ResetFrame clears a worker's frame usage and warning flag, called at
// frame end.
func (m *ThreadBudgetManager) ResetFrame(worker WorkerID) {
	if !m.IsEnabled() {
		return
	}

	m.stateFor(worker).resetFrame()
}

// RecordPoolAlloc records a pool allocation for a worker.
func (m *ThreadBudgetManager) RecordPoolAlloc(worker WorkerID, size uintptr) {
	if !m.IsEnabled() {
		return
	}

	m.stateFor(worker).recordPoolAlloc(size)
}

// RecordPoolFree records a pool deallocation for a worker.
func (m *ThreadBudgetManager) RecordPoolFree(worker WorkerID, size uintptr) {
	if !m.IsEnabled() {
		return
	}

	m.stateFor(worker).recordPoolFree(size)
}

// ThreadBudgetStats reports one worker's budget usage.
type ThreadBudgetStats struct {
	FrameUsed     uintptr
	FrameBudget   uintptr
	FramePeak     uintptr
	PoolUsed      uintptr
	PoolBudget    uintptr
	PoolPeak      uintptr
	ExceededCount uint64
}

// FrameUsagePercent returns frame usage as a percentage of frame budget.
func (s ThreadBudgetStats) FrameUsagePercent() float64 {
	if s.FrameBudget == 0 {
		return 0
	}

	return float64(s.FrameUsed) / float64(s.FrameBudget) * 100
}

// PoolUsagePercent returns pool usage as a percentage of pool budget.
func (s ThreadBudgetStats) PoolUsagePercent() float64 {
	if s.PoolBudget == 0 {
		return 0
	}

	return float64(s.PoolUsed) / float64(s.PoolBudget) * 100
}

// Stats returns a worker's current budget statistics, or ok=false if the
// worker has never been observed.
func (m *ThreadBudgetManager) Stats(worker WorkerID) (ThreadBudgetStats, bool) {
	m.mu.Lock()
	state, ok := m.workerStates[worker]
	m.mu.Unlock()

	if !ok {
		return ThreadBudgetStats{}, false
	}

	cfg := m.configFor(worker)

	return ThreadBudgetStats{
		FrameUsed:     state.frameUsage(),
		FrameBudget:   cfg.FrameBudget,
		FramePeak:     uintptr(state.framePeak.Load()),
		PoolUsed:      state.poolUsage(),
		PoolBudget:    cfg.PoolBudget,
		PoolPeak:      uintptr(state.poolPeak.Load()),
		ExceededCount: state.exceededCount.Load(),
	}, true
}
