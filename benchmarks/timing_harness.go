// Package benchmarks provides RV32 microbenchmarks and a harness that runs
// them through the pipeline and checks them against the functional emulator.
package benchmarks

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/timing/config"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

// Version is reported in JSON output.
const Version = "1.0.0"

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// RunID uniquely identifies this run
	RunID string `json:"run_id"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of decode stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// LoadUseStalls is the part of StallCycles spent waiting on loads
	LoadUseStalls uint64 `json:"load_use_stalls"`

	// Forwards is the number of operands forwarded into decode
	Forwards uint64 `json:"forwards"`

	// PipelineFlushes is the number of wrong-path fetches discarded
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// Drained is false if the run hit the cycle limit
	Drained bool `json:"drained"`

	// Result is the final value of the result register
	Result int32 `json:"result"`

	// ResultOK reports whether Result matches the expected value
	ResultOK bool `json:"result_ok"`

	// ReferenceMismatch describes register differences against the
	// functional emulator; empty when they agree or validation is off
	ReferenceMismatch string `json:"reference_mismatch,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the initial state (e.g., initialize registers, memory)
	Setup func(regFile *emu.RegFile, memory *emu.Memory) error

	// Program is the RV32 machine code to execute
	Program []uint32

	// ExpectedResult is the expected final value of ResultReg
	ExpectedResult int32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Forwarding enables operand forwarding in the pipeline
	Forwarding bool

	// MaxCycles bounds each run
	MaxCycles uint64

	// MemorySize is the data memory size of each run
	MemorySize uint64

	// Parallelism bounds how many benchmarks run at once; <= 0 means one
	// per benchmark
	Parallelism int

	// Validate runs every benchmark on the functional emulator as well and
	// compares the final registers
	Validate bool

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	sim := config.DefaultConfig()
	return HarnessConfig{
		Forwarding:  sim.Forwarding,
		MaxCycles:   sim.MaxCycles,
		MemorySize:  sim.MemorySize,
		Parallelism: 4,
		Validate:    true,
		Output:      os.Stdout,
		Verbose:     false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks concurrently and returns results in the
// order the benchmarks were added. Each run owns its own register file,
// memory and pipeline. The first fault cancels the remaining runs.
func (h *Harness) RunAll(ctx context.Context) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, len(h.benchmarks))

	g, ctx := errgroup.WithContext(ctx)
	if h.config.Parallelism > 0 {
		g.SetLimit(h.config.Parallelism)
	}

	for i, bench := range h.benchmarks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result, err := h.runBenchmark(bench)
			if err != nil {
				return fmt.Errorf("benchmark %s: %w", bench.Name, err)
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (h *Harness) newState(bench Benchmark) (*emu.RegFile, *emu.Memory, error) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemoryWithSize(h.config.MemorySize)
	if bench.Setup != nil {
		if err := bench.Setup(regFile, memory); err != nil {
			return nil, nil, fmt.Errorf("setup: %w", err)
		}
	}
	return regFile, memory, nil
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	regFile, memory, err := h.newState(bench)
	if err != nil {
		return BenchmarkResult{}, err
	}

	pipe := pipeline.NewPipeline(bench.Program, regFile, memory,
		pipeline.WithForwarding(h.config.Forwarding),
		pipeline.WithMaxCycles(h.config.MaxCycles),
	)

	// Run simulation and measure time
	start := time.Now()
	res, err := pipe.Run()
	wallTime := time.Since(start)
	if err != nil {
		return BenchmarkResult{}, err
	}

	stats := res.Stats
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		RunID:               xid.New().String(),
		SimulatedCycles:     stats.Cycles,
		InstructionsRetired: stats.Instructions,
		CPI:                 stats.CPI(),
		StallCycles:         stats.Stalls,
		LoadUseStalls:       stats.LoadUseStalls,
		Forwards:            stats.Forwards,
		PipelineFlushes:     stats.Flushes,
		Drained:             res.Drained,
		Result:              regFile.ReadReg(ResultReg),
		WallTime:            wallTime,
	}
	result.ResultOK = result.Drained && result.Result == bench.ExpectedResult

	if h.config.Validate {
		mismatch, err := h.compareWithReference(bench, regFile)
		if err != nil {
			return BenchmarkResult{}, err
		}
		result.ReferenceMismatch = mismatch
	}

	return result, nil
}

// compareWithReference runs bench on the functional emulator and returns
// a diff of the final registers against regFile.
func (h *Harness) compareWithReference(bench Benchmark, regFile *emu.RegFile) (string, error) {
	refRegs, refMem, err := h.newState(bench)
	if err != nil {
		return "", err
	}
	ref := emu.NewEmulator(bench.Program,
		emu.WithRegFile(refRegs),
		emu.WithMemory(refMem),
		emu.WithMaxInstructions(h.config.MaxCycles),
	)

	if err := ref.Run(); err != nil {
		return "", fmt.Errorf("reference run: %w", err)
	}

	return cmp.Diff(refRegs.Snapshot(), regFile.Snapshot()), nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== rv5sim Timing Benchmark Results ===")
	_, _ = fmt.Fprintf(h.config.Output, "Forwarding: %v\n", h.config.Forwarding)
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		status := "ok"
		if !r.ResultOK || r.ReferenceMismatch != "" {
			status = "MISMATCH"
		}

		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s [%s]\n", r.Name, status)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Result (a0): %d\n", r.Result)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Load-Use Stalls:      %d\n", r.LoadUseStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Forwards:             %d\n", r.Forwards)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		if !r.Drained {
			_, _ = fmt.Fprintln(h.config.Output, "  Cycle limit reached before the pipeline drained")
		}

		if h.config.Verbose && r.ReferenceMismatch != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Reference mismatch (-emulator +pipeline):\n%s", r.ReferenceMismatch)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,load_use_stalls,forwards,flushes,drained,result,result_ok")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%t,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.LoadUseStalls,
			r.Forwards,
			r.PipelineFlushes,
			r.Drained,
			r.Result,
			r.ResultOK,
		)
	}
}

// BuildProgram assembles instruction words into a little-endian byte
// slice, the layout of a .bin program file.
func BuildProgram(instrs ...uint32) []byte {
	program := make([]byte, 0, len(instrs)*4)
	for _, inst := range instrs {
		program = binary.LittleEndian.AppendUint32(program, inst)
	}
	return program
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	Forwarding bool   `json:"forwarding"`
	MaxCycles  uint64 `json:"max_cycles"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks with a wrong result or a
	// reference mismatch
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if !r.ResultOK || r.ReferenceMismatch != "" {
			summary.Failed++
		}
	}

	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				Forwarding: h.config.Forwarding,
				MaxCycles:  h.config.MaxCycles,
			},
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
