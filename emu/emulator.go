package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rv5sim/insts"
)

// ErrMaxInstructions is returned when the instruction limit is reached
// before the program leaves its instruction range.
var ErrMaxInstructions = errors.New("max instructions reached")

// ErrUnknownInstruction is returned for an undecodable word when the
// emulator halts on illegal instructions.
var ErrUnknownInstruction = errors.New("unknown instruction")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the PC left the program's instruction range.
	Exited bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32I/M instructions functionally, one instruction per
// step, with no notion of pipeline timing. The program counter is an
// instruction index into the program.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	program []uint32
	pc      int
	base    uint32

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	haltOnIllegal    bool
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithRegFile uses an existing register file.
func WithRegFile(regFile *RegFile) EmulatorOption {
	return func(e *Emulator) {
		e.regFile = regFile
	}
}

// WithMemory uses an existing memory.
func WithMemory(memory *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithHaltOnIllegal makes undecodable words an error instead of a no-op.
func WithHaltOnIllegal(halt bool) EmulatorOption {
	return func(e *Emulator) {
		e.haltOnIllegal = halt
	}
}

// WithEntry sets the index of the first instruction executed.
func WithEntry(entry int) EmulatorOption {
	return func(e *Emulator) {
		e.pc = entry
	}
}

// WithBase sets the byte address of the first program word. auipc, link
// values and jalr targets use it. Default: 0.
func WithBase(base uint32) EmulatorOption {
	return func(e *Emulator) {
		e.base = base
	}
}

// NewEmulator creates a new emulator for the given instruction words.
func NewEmulator(program []uint32, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		decoder: insts.NewDecoder(),
		program: program,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.regFile == nil {
		e.regFile = &RegFile{}
	}
	if e.memory == nil {
		e.memory = NewMemory()
	}

	e.alu = NewALU()
	e.lsu = NewLoadStoreUnit(e.memory)
	e.branchUnit = NewBranchUnit(e.base)

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the index of the next instruction.
func (e *Emulator) PC() int {
	return e.pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.pc < 0 || e.pc >= len(e.program) {
		return StepResult{Exited: true}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	inst := e.decoder.Decode(e.program[e.pc])

	if err := e.execute(inst); err != nil {
		return StepResult{Err: fmt.Errorf("index %d (%s): %w", e.pc, inst, err)}
	}

	e.instructionCount++

	return StepResult{}
}

// Run executes until the program exits or an error occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Exited {
			return nil
		}
	}
}

// execute applies one instruction to the architectural state and advances
// the PC.
func (e *Emulator) execute(inst *insts.Instruction) error {
	if inst.Illegal() {
		if e.haltOnIllegal {
			return fmt.Errorf("%w: 0x%08x", ErrUnknownInstruction, inst.Word)
		}
		e.pc++
		return nil
	}

	rs1 := e.regFile.ReadReg(inst.Rs1)
	rs2 := e.regFile.ReadReg(inst.Rs2)
	next := e.pc + 1

	switch {
	case inst.Branch != insts.BranchNone:
		if e.branchUnit.Taken(inst.Branch, rs1, rs2) {
			next = e.branchUnit.RelativeTarget(e.pc, inst.Imm)
		}

	case inst.Jump == insts.JumpJAL:
		e.regFile.WriteReg(inst.Rd, e.branchUnit.LinkValue(e.pc))
		next = e.branchUnit.RelativeTarget(e.pc, inst.Imm)

	case inst.Jump == insts.JumpJALR:
		next = e.branchUnit.IndirectTarget(rs1, inst.Imm)
		e.regFile.WriteReg(inst.Rd, e.branchUnit.LinkValue(e.pc))

	case inst.MemRead:
		value, err := e.lsu.Load(uint32(rs1+inst.Imm), inst.MemSize, inst.MemSignExtend)
		if err != nil {
			return err
		}
		e.regFile.WriteReg(inst.Rd, value)

	case inst.MemWrite:
		if err := e.lsu.Store(uint32(rs1+inst.Imm), inst.MemSize, rs2); err != nil {
			return err
		}

	default:
		op1 := rs1
		if inst.UsesPC {
			op1 = int32(e.branchUnit.Address(e.pc))
		}
		op2 := rs2
		if inst.ALUSrc {
			op2 = inst.Imm
		}
		e.regFile.WriteReg(inst.Rd, e.alu.Compute(inst.ALUOp, op1, op2))
	}

	e.pc = next
	return nil
}
