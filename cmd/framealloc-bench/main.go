// Command framealloc-bench exercises a framealloc Facade under synthetic,
// configurable load: a fixed number of worker goroutines each running a
// fixed number of frames, allocating a mix of frame, pool, and heap memory
// per frame, then reporting aggregate statistics and any behavior-filter
// findings.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kestrelframe/framealloc/internal/allocator"
)

func main() {
	var (
		workers        = flag.Int("workers", 4, "number of concurrent worker goroutines")
		frames         = flag.Int("frames", 1000, "number of frames each worker runs")
		frameAllocs    = flag.Int("frame-allocs", 64, "frame allocations per frame per worker")
		poolAllocs     = flag.Int("pool-allocs", 32, "pool allocations per frame per worker")
		heapAllocs     = flag.Int("heap-allocs", 2, "heap allocations per frame per worker")
		allocSize      = flag.Int("alloc-size", 64, "bytes per synthetic allocation")
		enableBudgets  = flag.Bool("budgets", false, "enable budget tracking")
		debugMode      = flag.Bool("debug", false, "enable poisoning and extended checks")
		strictMode     = flag.Bool("strict", false, "panic on error-severity diagnostics")
		jsonOutput     = flag.Bool("json", false, "print the final report as JSON")
		analyzeAtEnd   = flag.Bool("analyze", true, "run the behavior filter's analysis before exiting")
		showVersion    = flag.Bool("version", false, "print the runtime version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Synthetic load generator for the framealloc facade.\n\nOPTIONS:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(allocator.RuntimeVersion)
		os.Exit(0)
	}

	cfg := allocator.NewConfig(
		allocator.WithBudgets(*enableBudgets),
		allocator.WithDebugMode(*debugMode),
		allocator.WithStrictMode(*strictMode),
	)

	facade, err := allocator.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framealloc-bench: %v\n", err)
		os.Exit(1)
	}

	started := time.Now()
	runWorkers(facade, *workers, *frames, *frameAllocs, *poolAllocs, *heapAllocs, *allocSize)
	elapsed := time.Since(started)

	report := buildReport(facade, elapsed, *analyzeAtEnd)

	if *jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "framealloc-bench: failed to marshal report: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(string(data))

		return
	}

	printReport(report)
}

func runWorkers(facade *allocator.Facade, workerCount, frameCount, frameAllocs, poolAllocs, heapAllocs, allocSize int) {
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			w := facade.Attach()
			defer facade.Detach(w)

			for f := 0; f < frameCount; f++ {
				w.BeginFrame()

				for a := 0; a < frameAllocs; a++ {
					w.FrameAllocLayout(uintptr(allocSize), 8)
				}

				for a := 0; a < poolAllocs; a++ {
					ptr := w.PoolAllocLayout(uintptr(allocSize), 8)
					if ptr != nil {
						w.PoolFree(ptr, uintptr(allocSize))
					}
				}

				for a := 0; a < heapAllocs; a++ {
					ptr := facade.HeapAllocLayout(uintptr(allocSize), 8)
					if ptr != nil {
						facade.HeapFreeLayout(ptr, uintptr(allocSize), 8)
					}
				}

				w.EndFrame()
			}
		}()
	}

	wg.Wait()
}

// benchReport is the JSON-serializable shape printed by framealloc-bench.
type benchReport struct {
	ElapsedSeconds float64                 `json:"elapsed_seconds"`
	Stats          allocator.AllocStats    `json:"stats"`
	Issues         []allocator.BehaviorIssue `json:"issues,omitempty"`
}

func buildReport(facade *allocator.Facade, elapsed time.Duration, analyze bool) benchReport {
	report := benchReport{
		ElapsedSeconds: elapsed.Seconds(),
		Stats:          facade.Stats(),
	}

	if analyze {
		result := facade.Diagnostics().Analyze()
		report.Issues = result.Issues
	}

	return report
}

func printReport(report benchReport) {
	fmt.Printf("framealloc-bench: completed in %.3fs\n\n", report.ElapsedSeconds)
	fmt.Print(report.Stats.String())

	if len(report.Issues) == 0 {
		fmt.Println("\nbehavior filter: no issues")
		return
	}

	fmt.Printf("\nbehavior filter: %d issue(s)\n", len(report.Issues))

	for _, issue := range report.Issues {
		fmt.Printf("  [%s] tag=%s: %s\n", issue.Code, issue.Tag, issue.Message)
	}
}
