package allocator

import "testing"

func TestDefaultConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FrameArenaSize != 16*mb {
		t.Fatalf("FrameArenaSize = %d, want %d", cfg.FrameArenaSize, 16*mb)
	}

	if cfg.GlobalMemoryLimit != 0 {
		t.Fatalf("GlobalMemoryLimit = %d, want 0 (unlimited)", cfg.GlobalMemoryLimit)
	}

	if cfg.EnableBudgets {
		t.Fatal("expected EnableBudgets to default to false")
	}
}

func TestMinimalAndHighPerformanceConfigsDiffer(t *testing.T) {
	minimal := MinimalConfig()
	hp := HighPerformanceConfig()

	if minimal.FrameArenaSize >= hp.FrameArenaSize {
		t.Fatalf("expected MinimalConfig's arena to be smaller than HighPerformanceConfig's, got %d >= %d",
			minimal.FrameArenaSize, hp.FrameArenaSize)
	}

	if len(minimal.SlabSizeClasses) >= len(hp.SlabSizeClasses) {
		t.Fatal("expected HighPerformanceConfig to offer more size classes than MinimalConfig")
	}
}

func TestNewConfigAppliesOptionsInOrder(t *testing.T) {
	cfg := NewConfig(
		WithFrameArenaSize(4*mb),
		WithSlabPagesPerClass(2),
		WithSlabPageSize(8*kb),
		WithBudgets(true),
		WithGlobalMemoryLimit(1024),
		WithDebugMode(true),
		WithMinCompatVersion("1.0.0"),
		WithStrictMode(true),
		WithBehaviorThresholdsPath("/tmp/thresholds.json"),
	)

	if cfg.FrameArenaSize != 4*mb {
		t.Fatalf("FrameArenaSize = %d, want %d", cfg.FrameArenaSize, 4*mb)
	}
	if cfg.SlabPagesPerClass != 2 {
		t.Fatalf("SlabPagesPerClass = %d, want 2", cfg.SlabPagesPerClass)
	}
	if cfg.SlabPageSize != 8*kb {
		t.Fatalf("SlabPageSize = %d, want %d", cfg.SlabPageSize, 8*kb)
	}
	if !cfg.EnableBudgets {
		t.Fatal("expected EnableBudgets == true")
	}
	if cfg.GlobalMemoryLimit != 1024 {
		t.Fatalf("GlobalMemoryLimit = %d, want 1024", cfg.GlobalMemoryLimit)
	}
	if !cfg.DebugMode {
		t.Fatal("expected DebugMode == true")
	}
	if cfg.MinCompatVersion != "1.0.0" {
		t.Fatalf("MinCompatVersion = %q, want 1.0.0", cfg.MinCompatVersion)
	}
	if !cfg.StrictMode {
		t.Fatal("expected StrictMode == true")
	}
	if cfg.BehaviorThresholdsPath != "/tmp/thresholds.json" {
		t.Fatalf("BehaviorThresholdsPath = %q, want /tmp/thresholds.json", cfg.BehaviorThresholdsPath)
	}
}

func TestWithSlabSizeClassesCopiesInput(t *testing.T) {
	classes := []uintptr{16, 64}
	cfg := NewConfig(WithSlabSizeClasses(classes))

	classes[0] = 999

	if cfg.SlabSizeClasses[0] != 16 {
		t.Fatalf("SlabSizeClasses[0] = %d, want 16 (mutating the caller's slice must not affect the config)",
			cfg.SlabSizeClasses[0])
	}
}

func TestDebugModeFromEnv(t *testing.T) {
	t.Setenv("FRAMEALLOC_DEBUG", "1")
	if !debugModeFromEnv() {
		t.Fatal("expected debugModeFromEnv() == true when FRAMEALLOC_DEBUG=1")
	}

	t.Setenv("FRAMEALLOC_DEBUG", "true")
	if !debugModeFromEnv() {
		t.Fatal("expected debugModeFromEnv() == true when FRAMEALLOC_DEBUG=true")
	}

	t.Setenv("FRAMEALLOC_DEBUG", "0")
	if debugModeFromEnv() {
		t.Fatal("expected debugModeFromEnv() == false when FRAMEALLOC_DEBUG=0")
	}
}

func TestStrictModeFromEnv(t *testing.T) {
	t.Setenv("FRAMEALLOC_STRICT", "error")
	if !strictModeFromEnv() {
		t.Fatal("expected strictModeFromEnv() == true when FRAMEALLOC_STRICT=error")
	}

	t.Setenv("FRAMEALLOC_STRICT", "")
	if strictModeFromEnv() {
		t.Fatal("expected strictModeFromEnv() == false when FRAMEALLOC_STRICT is unset")
	}
}
