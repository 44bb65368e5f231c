package pipeline

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/timing/config"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64 `json:"cycles"`
	// Instructions is the number of instructions completed (retired).
	Instructions uint64 `json:"instructions"`
	// Stalls is the number of decode stall cycles.
	Stalls uint64 `json:"stalls"`
	// LoadUseStalls is the number of stall cycles spent waiting on a load.
	LoadUseStalls uint64 `json:"load_use_stalls"`
	// Flushes is the number of wrong-path fetches discarded.
	Flushes uint64 `json:"flushes"`
	// Forwards is the number of operands forwarded into decode.
	Forwards uint64 `json:"forwards"`
	// Illegal is the number of undecodable words that flowed as no-ops.
	Illegal uint64 `json:"illegal"`
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Result summarises a run.
type Result struct {
	// Cycles is the number of cycles simulated.
	Cycles uint64
	// Drained is false when the run stopped at the cycle limit with
	// instructions still in flight.
	Drained bool
	Stats   Statistics
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithForwarding enables or disables operand forwarding. Default: enabled.
func WithForwarding(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.forwarding = enabled
	}
}

// WithIllegalPolicy sets how decode treats undecodable words.
func WithIllegalPolicy(policy config.IllegalPolicy) PipelineOption {
	return func(p *Pipeline) {
		p.illegalPolicy = policy
	}
}

// WithMaxCycles bounds Run. A value of 0 means no limit.
func WithMaxCycles(max uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = max
	}
}

// WithEntry sets the index of the first instruction fetched.
func WithEntry(entry int) PipelineOption {
	return func(p *Pipeline) {
		p.entry = entry
	}
}

// WithBase sets the byte address of the first program word. auipc, link
// values and jalr targets use it. Default: 0.
func WithBase(base uint32) PipelineOption {
	return func(p *Pipeline) {
		p.base = base
	}
}

// WithLogger sets the logger for stall, flush and occupancy events.
func WithLogger(logger logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithConfig applies the forwarding, illegal-instruction and cycle-limit
// settings of cfg.
func WithConfig(cfg *config.Config) PipelineOption {
	return func(p *Pipeline) {
		p.forwarding = cfg.Forwarding
		p.illegalPolicy = cfg.IllegalPolicy
		p.maxCycles = cfg.MaxCycles
	}
}

// Pipeline implements a 5-stage in-order pipelined CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
type Pipeline struct {
	// Pipeline registers
	state State

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	hazardUnit     *HazardUnit
	branchResolver *BranchResolver

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
	program []uint32

	// Configuration
	forwarding    bool
	illegalPolicy config.IllegalPolicy
	maxCycles     uint64
	entry         int
	base          uint32
	logger        logr.Logger

	stats    Statistics
	timeline *Timeline
	fault    error
}

// NewPipeline creates a new 5-stage pipeline over program. regFile and
// memory hold the initial architectural state and receive the results.
func NewPipeline(
	program []uint32,
	regFile *emu.RegFile,
	memory *emu.Memory,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		regFile:       regFile,
		memory:        memory,
		program:       program,
		forwarding:    true,
		illegalPolicy: config.IllegalBubble,
		logger:        logr.Discard(),
		timeline:      NewTimeline(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.hazardUnit = NewHazardUnit(p.forwarding)
	p.branchResolver = NewBranchResolver(p.base)
	p.fetchStage = NewFetchStage(program, p.entry)
	p.decodeStage = NewDecodeStage(regFile, p.hazardUnit, p.branchResolver, p.illegalPolicy)
	p.executeStage = NewExecuteStage(p.hazardUnit, p.branchResolver)
	p.memoryStage = NewMemoryStage(memory, p.hazardUnit)
	p.writebackStage = NewWritebackStage(regFile)
	p.state.Clear()

	return p
}

// PC returns the index of the next instruction to fetch.
func (p *Pipeline) PC() int {
	return p.fetchStage.PC()
}

// Cycle returns the number of cycles simulated.
func (p *Pipeline) Cycle() uint64 {
	return p.stats.Cycles
}

// State returns a copy of the pipeline registers.
func (p *Pipeline) State() State {
	return p.state
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// Timeline returns the stage occupancy record.
func (p *Pipeline) Timeline() *Timeline {
	return p.timeline
}

// RegFile returns the register file the pipeline commits to.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// Forwarding reports whether operand forwarding is enabled.
func (p *Pipeline) Forwarding() bool {
	return p.hazardUnit.Forwarding()
}

// MaxCycles returns the cycle limit of Run, 0 for none.
func (p *Pipeline) MaxCycles() uint64 {
	return p.maxCycles
}

// Drained returns true once fetch has left the program and no instruction
// is in flight.
func (p *Pipeline) Drained() bool {
	return !p.fetchStage.InProgram() && p.state.Empty()
}

// Result returns the summary of the run so far.
func (p *Pipeline) Result() Result {
	return Result{
		Cycles:  p.stats.Cycles,
		Drained: p.Drained(),
		Stats:   p.stats,
	}
}

// Run ticks until the pipeline drains or the cycle limit is reached. The
// error is non-nil only for a fault; hitting the limit is reported by
// Result.Drained.
func (p *Pipeline) Run() (Result, error) {
	for !p.Drained() && (p.maxCycles == 0 || p.stats.Cycles < p.maxCycles) {
		if err := p.Tick(); err != nil {
			return p.Result(), err
		}
	}

	result := p.Result()
	if !result.Drained {
		p.logger.Info("cycle limit reached", "cycles", result.Cycles, "pc", p.PC())
	}

	return result, nil
}

// RunCycles executes the pipeline for at most the specified number of
// cycles. Returns true if instructions remain in flight.
func (p *Pipeline) RunCycles(cycles uint64) (bool, error) {
	for i := uint64(0); i < cycles && !p.Drained(); i++ {
		if err := p.Tick(); err != nil {
			return false, err
		}
	}
	return !p.Drained(), nil
}

// Tick executes one pipeline cycle.
//
// Stages run in reverse order (WB→MEM→EX→ID→IF), each overwriting its own
// output register. A stage therefore reads its upstream register as left by
// the previous cycle, while decode sees this cycle's EX and MEM registers
// and a register file that writeback has already updated.
//
// Hazard handling:
//   - Decode stalls on an EX producer, forwards from a MEM ALU producer and
//     stalls on a MEM load (see HazardUnit.Detect)
//   - Execute and memory re-apply MEM/WB forwarding on their operands
//   - Taken branches and jumps resolve in decode and flush one fetch
//
// After a fault every later Tick returns the same error.
func (p *Pipeline) Tick() error {
	if p.fault != nil {
		return p.fault
	}

	p.stats.Cycles++
	cycle := p.stats.Cycles
	s := &p.state

	if p.writebackStage.Writeback(&s.MEM, &s.WB) {
		p.stats.Instructions++
	}

	if err := p.memoryStage.Access(&s.EX, &s.WB, &s.MEM); err != nil {
		return p.abort(cycle, err)
	}

	p.executeStage.Execute(&s.ID, &s.MEM, &s.WB, &s.EX)

	decoded, err := p.decodeStage.Decode(&s.IF, &s.EX, &s.MEM, &s.ID)
	if err != nil {
		return p.abort(cycle, err)
	}
	stalledIndex := s.IF.Index

	fetched := p.fetchStage.Fetch(&s.IF)

	p.account(cycle, decoded, fetched, stalledIndex)
	p.record(cycle, decoded, fetched, stalledIndex)

	return nil
}

func (p *Pipeline) abort(cycle uint64, err error) error {
	p.fault = err
	p.logger.Error(err, "pipeline fault", "cycle", cycle)
	return err
}

func (p *Pipeline) account(cycle uint64, decoded DecodeResult, fetched FetchResult, stalledIndex int) {
	p.stats.Forwards += uint64(decoded.Forwards)

	if decoded.Stalled {
		p.stats.Stalls++
		if decoded.LoadUse {
			p.stats.LoadUseStalls++
		}
		p.logger.V(1).Info("decode stall",
			"cycle", cycle, "index", stalledIndex,
			"hazard", decoded.Hazard.String(), "loadUse", decoded.LoadUse)
	}

	if decoded.Illegal {
		p.stats.Illegal++
		p.timeline.MarkIllegal(p.state.ID.Index)
		p.logger.V(1).Info("illegal instruction", "cycle", cycle, "index", p.state.ID.Index)
	}

	if fetched.Flushed {
		p.stats.Flushes++
		p.logger.V(1).Info("flush", "cycle", cycle, "target", p.state.IF.Redirect.Target)
	}

	if fetched.Redirected {
		p.logger.V(1).Info("redirect", "cycle", cycle, "pc", p.state.IF.Index)
	}

	s := &p.state
	p.logger.V(2).Info("occupancy", "cycle", cycle,
		"if", s.IF.Index, "id", s.ID.Index, "ex", s.EX.Index,
		"mem", s.MEM.Index, "wb", s.WB.Index)
}

// record adds this cycle's occupancy to the timeline, oldest stage first.
func (p *Pipeline) record(cycle uint64, decoded DecodeResult, fetched FetchResult, stalledIndex int) {
	s := &p.state
	p.timeline.Record(s.WB.Index, cycle, StageWB)
	p.timeline.Record(s.MEM.Index, cycle, StageMEM)
	p.timeline.Record(s.EX.Index, cycle, StageEX)

	if decoded.Stalled {
		p.timeline.Record(stalledIndex, cycle, StageStall)
	} else {
		p.timeline.Record(s.ID.Index, cycle, StageID)
	}

	if fetched.Fetched {
		p.timeline.Record(s.IF.Index, cycle, StageIF)
	}
}

// Reset returns the pipeline to its initial state: empty registers, PC at
// the entry index, zero statistics and an empty timeline. The register
// file and memory are left as they are.
func (p *Pipeline) Reset() {
	p.state.Clear()
	p.fetchStage = NewFetchStage(p.program, p.entry)
	p.stats = Statistics{}
	p.timeline.Reset()
	p.fault = nil
}
