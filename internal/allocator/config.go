package allocator

import (
	"os"

	"github.com/kestrelframe/framealloc/internal/flog"
)

// Level re-exports flog.Level so callers configuring a Facade never need
// to import internal/flog directly.
type Level = flog.Level

// Size classes for the slab pool, in ascending order. A request is routed to
// the smallest class whose size is >= the request.
var defaultSizeClasses = []uintptr{16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

const (
	kb = 1024
	mb = 1024 * 1024
)

// Config configures a Facade instance. Build one with NewConfig and the
// With* options, or start from one of the presets.
type Config struct {
	// FrameArenaSize is the per-worker bump-arena capacity in bytes.
	FrameArenaSize uintptr

	// SlabSizeClasses is the ordered list of size-class sizes in bytes.
	SlabSizeClasses []uintptr

	// SlabPagesPerClass is the number of pages pre-reserved per class.
	SlabPagesPerClass int

	// SlabPageSize is the number of bytes carved into cells per page.
	SlabPageSize uintptr

	// EnableBudgets turns on budget checks on the global/tag paths.
	EnableBudgets bool

	// GlobalMemoryLimit is a hard cap on total bytes; 0 means unlimited.
	GlobalMemoryLimit uintptr

	// DebugMode enables freed-memory poisoning and extended checks.
	DebugMode bool

	// MinCompatVersion gates loading a configuration produced by an
	// incompatible build, when set. Empty means no gate.
	MinCompatVersion string

	// StrictMode converts any Error-severity diagnostic (a behavior-filter
	// finding or a hard budget crossing) into a panic instead of a log
	// line, carrying the diagnostic code and message.
	StrictMode bool

	// LogLevel sets the minimum severity the facade's logger emits.
	// Defaults to FRAMEALLOC_LOG_LEVEL, or info if unset.
	LogLevel Level

	// BehaviorThresholdsPath, if set, names a JSON file the diagnostics
	// manager watches for changes and reloads into the behavior filter's
	// thresholds on every write, without requiring a facade restart.
	BehaviorThresholdsPath string
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the baseline configuration matching the documented
// defaults.
func DefaultConfig() *Config {
	return &Config{
		FrameArenaSize:    16 * mb,
		SlabSizeClasses:   append([]uintptr(nil), defaultSizeClasses...),
		SlabPagesPerClass: 4,
		SlabPageSize:      64 * kb,
		EnableBudgets:     false,
		GlobalMemoryLimit: 0,
		DebugMode:         debugModeFromEnv(),
		StrictMode:        strictModeFromEnv(),
		LogLevel:          flog.ParseLevel(os.Getenv("FRAMEALLOC_LOG_LEVEL")),
	}
}

// MinimalConfig returns a constrained configuration suitable for tests or
// resource-limited environments.
func MinimalConfig() *Config {
	return &Config{
		FrameArenaSize:    1 * mb,
		SlabSizeClasses:   []uintptr{32, 128, 512, 2048},
		SlabPagesPerClass: 1,
		SlabPageSize:      16 * kb,
		EnableBudgets:     false,
		GlobalMemoryLimit: 0,
		DebugMode:         false,
		LogLevel:          flog.LevelWarn,
	}
}

// HighPerformanceConfig returns a configuration tuned for large working sets.
func HighPerformanceConfig() *Config {
	return &Config{
		FrameArenaSize:    64 * mb,
		SlabSizeClasses:   []uintptr{16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192},
		SlabPagesPerClass: 8,
		SlabPageSize:      256 * kb,
		EnableBudgets:     false,
		GlobalMemoryLimit: 0,
		DebugMode:         false,
		LogLevel:          flog.LevelInfo,
	}
}

// NewConfig builds a Config from DefaultConfig with the given options
// applied in order.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

func WithFrameArenaSize(size uintptr) Option {
	return func(c *Config) { c.FrameArenaSize = size }
}

func WithSlabSizeClasses(classes []uintptr) Option {
	return func(c *Config) { c.SlabSizeClasses = append([]uintptr(nil), classes...) }
}

func WithSlabPagesPerClass(n int) Option {
	return func(c *Config) { c.SlabPagesPerClass = n }
}

func WithSlabPageSize(size uintptr) Option {
	return func(c *Config) { c.SlabPageSize = size }
}

func WithBudgets(enabled bool) Option {
	return func(c *Config) { c.EnableBudgets = enabled }
}

func WithGlobalMemoryLimit(limit uintptr) Option {
	return func(c *Config) { c.GlobalMemoryLimit = limit }
}

func WithDebugMode(enabled bool) Option {
	return func(c *Config) { c.DebugMode = enabled }
}

func WithMinCompatVersion(version string) Option {
	return func(c *Config) { c.MinCompatVersion = version }
}

func WithStrictMode(enabled bool) Option {
	return func(c *Config) { c.StrictMode = enabled }
}

func WithLogLevel(level Level) Option {
	return func(c *Config) { c.LogLevel = level }
}

func WithBehaviorThresholdsPath(path string) Option {
	return func(c *Config) { c.BehaviorThresholdsPath = path }
}

func debugModeFromEnv() bool {
	v := os.Getenv("FRAMEALLOC_DEBUG")
	return v == "1" || v == "true"
}

func strictModeFromEnv() bool {
	switch os.Getenv("FRAMEALLOC_STRICT") {
	case "warn", "error", "warning":
		return true
	default:
		return false
	}
}

// poisonByte is written across freed frame/scratch memory in debug mode.
const poisonByte = 0xCD
