// Package main provides the entry point for rv5sim, a cycle-level
// simulator of a 5-stage in-order RV32I/M pipeline.
//
// Usage:
//
//	rv5sim [options] <program>
//
// The program is a text listing, a raw .bin file or an RV32 ELF executable.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bradleyjkemp/memviz"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/loader"
	"github.com/sarchlab/rv5sim/report"
	"github.com/sarchlab/rv5sim/timing/config"
	"github.com/sarchlab/rv5sim/timing/core"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

const (
	exitError      = 1
	exitNotDrained = 2
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML simulation config")
	forwarding = flag.Bool("forwarding", true, "Enable operand forwarding")
	maxCycles  = flag.Uint64("max-cycles", 0, "Cycle limit (overrides the config)")
	illegal    = flag.String("illegal", "", "Illegal instruction policy: bubble or abort")
	emulate    = flag.Bool("emulate", false, "Run the functional emulator instead of the pipeline")
	step       = flag.Bool("step", false, "Step through the run one cycle per key press")
	diagram    = flag.Bool("diagram", false, "Print the cycle-by-cycle diagram")
	jsonOutput = flag.Bool("json", false, "Print a JSON run summary instead of the tables")
	memvizPath = flag.String("memviz", "", "Write the final pipeline state as a Graphviz file")
	statsAddr  = flag.String("statsview", "", "Serve runtime statistics at this address (e.g. localhost:18066)")
	verbosity  = flag.Int("v", 0, "Log verbosity (1: stalls and flushes, 2: per-cycle occupancy)")

	regInits regFlag
	memInits memFlag
)

func main() {
	flag.Var(&regInits, "reg", "Initial register value, e.g. x2=16 (repeatable)")
	flag.Var(&memInits, "mem", "Initial memory word, e.g. 0x100=7 (repeatable)")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rv5sim [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(exitError)
	}

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(exitError)
	}

	programPath := flag.Arg(0)
	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(exitError)
	}

	if *verbosity > 0 {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Instructions: %d\n", prog.Len())
		fmt.Printf("Entry index: %d\n", prog.Entry)
		fmt.Printf("Code base: 0x%X\n", prog.Base)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	regFile, memory, err := initialState(prog, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initialising state: %v\n", err)
		os.Exit(exitError)
	}

	if *emulate {
		os.Exit(runEmulation(prog, cfg, regFile, memory))
	}
	os.Exit(runTiming(prog, cfg, regFile, memory))
}

// buildConfig loads the config file, if any, and applies the flags that
// were set on the command line.
func buildConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "forwarding":
			cfg.Forwarding = *forwarding
		case "max-cycles":
			cfg.MaxCycles = *maxCycles
		case "illegal":
			cfg.IllegalPolicy = config.IllegalPolicy(*illegal)
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// initialState creates the register file and memory, loads the program's
// data segments and applies the -reg and -mem initialisers.
func initialState(prog *loader.Program, cfg *config.Config) (*emu.RegFile, *emu.Memory, error) {
	regFile := &emu.RegFile{}
	memory := emu.NewMemoryWithSize(cfg.MemorySize)

	for _, seg := range prog.Segments {
		if err := memory.LoadBytes(seg.Addr, seg.Data); err != nil {
			return nil, nil, fmt.Errorf("segment at 0x%x: %w", seg.Addr, err)
		}
	}

	regInits.apply(regFile)
	if err := memInits.apply(memory); err != nil {
		return nil, nil, err
	}

	return regFile, memory, nil
}

func newLogger(verbosity int, w io.Writer) logr.Logger {
	if verbosity <= 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

// runEmulation runs the program on the functional emulator.
func runEmulation(prog *loader.Program, cfg *config.Config, regFile *emu.RegFile, memory *emu.Memory) int {
	emulator := emu.NewEmulator(prog.Words(),
		emu.WithRegFile(regFile),
		emu.WithMemory(memory),
		emu.WithEntry(prog.Entry),
		emu.WithBase(prog.Base),
		emu.WithMaxInstructions(cfg.MaxCycles),
		emu.WithHaltOnIllegal(cfg.IllegalPolicy == config.IllegalAbort),
	)

	if err := emulator.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running emulator: %v\n", err)
		return exitError
	}

	fmt.Printf("Program: %s\n", prog.Path)
	fmt.Printf("Instructions executed: %d\n", emulator.InstructionCount())
	fmt.Printf("\nRegisters:\n")
	r := &report.Report{RegFile: emulator.RegFile()}
	if err := r.WriteRegisters(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		return exitError
	}

	return 0
}

// runTiming runs the program on the pipeline and prints the report.
func runTiming(prog *loader.Program, cfg *config.Config, regFile *emu.RegFile, memory *emu.Memory) int {
	if *statsAddr != "" {
		viewer.SetConfiguration(viewer.WithAddr(*statsAddr))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		fmt.Fprintf(os.Stderr, "stats server available at http://%s/debug/statsview\n", *statsAddr)
	}

	pipe := pipeline.NewPipeline(
		prog.Words(),
		regFile,
		memory,
		pipeline.WithConfig(cfg),
		pipeline.WithEntry(prog.Entry),
		pipeline.WithBase(prog.Base),
		pipeline.WithLogger(newLogger(*verbosity, os.Stderr)),
	)

	var (
		result pipeline.Result
		err    error
	)
	if *step {
		result, err = stepRun(pipe, os.Stdout)
	} else {
		result, err = core.Run(pipe)
	}

	if *memvizPath != "" {
		if werr := writeMemviz(*memvizPath, pipe.State()); werr != nil {
			fmt.Fprintf(os.Stderr, "Error writing memviz: %v\n", werr)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running pipeline: %v\n", err)
		return exitError
	}

	if err := printReport(os.Stdout, prog, pipe, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		return exitError
	}

	if !result.Drained {
		fmt.Fprintf(os.Stderr, "Cycle limit of %d reached before the pipeline drained\n", cfg.MaxCycles)
		return exitNotDrained
	}

	return 0
}

func printReport(w io.Writer, prog *loader.Program, pipe *pipeline.Pipeline, result pipeline.Result) error {
	if *jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.NewSummary(prog.Path, result, pipe.RegFile()))
	}

	r := report.New(prog, pipe)

	_, _ = fmt.Fprintf(w, "Program: %s\n\n", prog.Path)
	if err := r.WriteStageTable(w); err != nil {
		return err
	}

	if *diagram {
		_, _ = fmt.Fprintln(w)
		if err := r.WriteDiagram(w); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintln(w)
	if err := r.WriteStats(w); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "\nRegisters:\n")
	return r.WriteRegisters(w)
}

func writeMemviz(path string, state pipeline.State) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	memviz.Map(f, &state)

	return f.Close()
}
