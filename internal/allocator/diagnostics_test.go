package allocator

import "testing"

func TestDiagnosticsIsStrict(t *testing.T) {
	f, err := New(NewConfig(WithStrictMode(true)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Diagnostics().IsStrict() {
		t.Fatal("expected IsStrict() == true when StrictMode is configured")
	}
}

func TestDiagnosticsNotStrictByDefault(t *testing.T) {
	f, err := New(NewConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if f.Diagnostics().IsStrict() {
		t.Fatal("expected IsStrict() == false by default")
	}
}

func TestDiagnosticsLoggerNonNil(t *testing.T) {
	f, err := New(NewConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if f.Diagnostics().Logger() == nil {
		t.Fatal("expected Logger() to be non-nil")
	}
}

func TestDiagnosticsAnalyzeReturnsFilterReport(t *testing.T) {
	f, err := New(NewConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	th := DefaultThresholds()
	th.MinSamples = 1
	th.HeapInHotPathCount = 1
	f.behavior.SetThresholds(th)

	f.behavior.RecordAlloc(KindHeap, "hot")

	report := f.Diagnostics().Analyze()
	if !report.HasErrors {
		t.Fatal("expected Analyze() to surface the FA530 error raised by the behavior filter")
	}
}

func TestDiagnosticsStrictModeEscalatesToPanic(t *testing.T) {
	f, err := New(NewConfig(WithStrictMode(true)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	th := DefaultThresholds()
	th.MinSamples = 1
	th.HeapInHotPathCount = 1
	f.behavior.SetThresholds(th)

	f.behavior.RecordAlloc(KindHeap, "hot")

	defer func() {
		if recover() == nil {
			t.Fatal("expected Analyze() to panic under strict mode when an error-severity issue is found")
		}
	}()

	f.Diagnostics().Analyze()
}

func TestDiagnosticsCloseWithoutWatcherIsNoop(t *testing.T) {
	f, err := New(NewConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := f.Diagnostics().Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil when no watcher was configured", err)
	}
}

func TestDiagnosticsPromotionFailureDoesNotPanicOutsideStrict(t *testing.T) {
	f, err := New(NewConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// The facade wires promotion failures to the diagnostics handler at
	// construction; driving one through should just log, never panic.
	result := f.promotion.Process([]retainedAllocation{
		{ptr: nil, meta: RetainedMeta{Policy: PromoteToScratch("missing"), Size: 8, Tag: "x"}},
	})

	if result.Promoted[0].IsSuccess() {
		t.Fatal("expected promotion to a nonexistent scratch pool to fail")
	}
}
