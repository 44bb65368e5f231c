// Package main provides a profiling wrapper for rv5sim to identify
// simulator performance bottlenecks.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/loader"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

var (
	emulate    = flag.Bool("emulate", false, "Profile the functional emulator instead of the pipeline")
	noForward  = flag.Bool("no-forwarding", false, "Disable operand forwarding")
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	maxCycles  = flag.Uint64("max-cycles", 1000000, "cycle (or instruction) limit per run (0 = unlimited)")
	repeat     = flag.Int("repeat", 1, "number of times to run the program")
	memorySize = flag.Uint64("memory-size", emu.DefaultMemorySize, "data memory size in bytes")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Instructions: %d\n", prog.Len())

	start := time.Now()

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	var instrCount, cycleCount uint64
	for i := 0; i < *repeat; i++ {
		var instrs, cycles uint64
		if *emulate {
			instrs, err = runEmulationProfile(prog)
		} else {
			instrs, cycles, err = runTimingProfile(prog)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error in run %d: %v\n", i, err)
			os.Exit(1)
		}
		instrCount += instrs
		cycleCount += cycles
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Runs: %d\n", *repeat)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	if !*emulate {
		fmt.Printf("Cycles simulated: %d\n", cycleCount)
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}
	if cycleCount > 0 {
		fmt.Printf("Cycles/second: %.0f\n", float64(cycleCount)/elapsed.Seconds())
	}
}

// newMemory creates data memory holding the program's segments.
func newMemory(prog *loader.Program) (*emu.Memory, error) {
	memory := emu.NewMemoryWithSize(*memorySize)
	for _, seg := range prog.Segments {
		if err := memory.LoadBytes(seg.Addr, seg.Data); err != nil {
			return nil, err
		}
	}
	return memory, nil
}

// runEmulationProfile runs the program in functional emulation mode.
func runEmulationProfile(prog *loader.Program) (uint64, error) {
	memory, err := newMemory(prog)
	if err != nil {
		return 0, err
	}

	emulator := emu.NewEmulator(prog.Words(),
		emu.WithMemory(memory),
		emu.WithEntry(prog.Entry),
		emu.WithBase(prog.Base),
		emu.WithMaxInstructions(*maxCycles),
	)

	err = emulator.Run()
	if errors.Is(err, emu.ErrMaxInstructions) {
		err = nil
	}
	return emulator.InstructionCount(), err
}

// runTimingProfile runs the program on the pipeline.
func runTimingProfile(prog *loader.Program) (uint64, uint64, error) {
	memory, err := newMemory(prog)
	if err != nil {
		return 0, 0, err
	}

	pipe := pipeline.NewPipeline(
		prog.Words(),
		&emu.RegFile{},
		memory,
		pipeline.WithForwarding(!*noForward),
		pipeline.WithEntry(prog.Entry),
		pipeline.WithBase(prog.Base),
		pipeline.WithMaxCycles(*maxCycles),
	)

	result, err := pipe.Run()
	return result.Stats.Instructions, result.Cycles, err
}
