// Command benchmark runs the rv5sim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv            Output results in CSV format (default: human-readable)
//	-json           Output results in JSON format
//	-no-forwarding  Disable operand forwarding
//	-core           Run only the 3 core benchmarks
//	-max-cycles N   Cycle limit per benchmark
//	-parallel N     Number of benchmarks run at once
//	-dump DIR       Write each benchmark program to DIR/<name>.bin and exit
//	-v              Show register differences against the emulator
//
// Example:
//
//	# Compare forwarding against the stall-only pipeline
//	go run ./cmd/benchmark -csv > fwd.csv
//	go run ./cmd/benchmark -csv -no-forwarding > nofwd.csv
//
// Every benchmark is also run on the functional emulator; the command exits
// with status 1 if any result differs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sarchlab/rv5sim/benchmarks"
)

func main() {
	// Parse flags
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	noForwarding := flag.Bool("no-forwarding", false, "Disable operand forwarding")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	maxCycles := flag.Uint64("max-cycles", 0, "Cycle limit per benchmark (0: default)")
	parallel := flag.Int("parallel", 0, "Benchmarks run at once (0: default)")
	dumpDir := flag.String("dump", "", "Write benchmark programs as .bin files to this directory")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	set := benchmarks.GetMicrobenchmarks()
	if *coreOnly {
		set = benchmarks.GetCoreBenchmarks()
	}

	if *dumpDir != "" {
		if err := dump(*dumpDir, set); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Configure harness
	config := benchmarks.DefaultConfig()
	config.Forwarding = !*noForwarding
	config.Verbose = *verbose
	config.Output = os.Stdout
	if *maxCycles > 0 {
		config.MaxCycles = *maxCycles
	}
	if *parallel > 0 {
		config.Parallelism = *parallel
	}

	harness := benchmarks.NewHarness(config)
	harness.AddBenchmarks(set)

	if !*csvOutput && !*jsonOutput {
		fmt.Printf("Running %d benchmarks (max %d cycles each)\n\n", len(set), config.MaxCycles)
	}

	results, err := harness.RunAll(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		summary := benchmarks.Summarize(results)
		fmt.Println("=== Summary ===")
		fmt.Printf("Benchmarks:   %d\n", summary.TotalBenchmarks)
		fmt.Printf("Failed:       %d\n", summary.Failed)
		fmt.Printf("Average CPI:  %.3f\n", summary.AverageCPI)
	}

	if benchmarks.Summarize(results).Failed > 0 {
		os.Exit(1)
	}
}

func dump(dir string, set []benchmarks.Benchmark) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	for _, b := range set {
		path := filepath.Join(dir, b.Name+".bin")
		if err := os.WriteFile(path, benchmarks.BuildProgram(b.Program...), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Println(path)
	}

	return nil
}
