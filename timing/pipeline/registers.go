// Package pipeline provides the 5-stage pipeline model for cycle-level timing simulation.
package pipeline

import (
	"fmt"

	"github.com/sarchlab/rv5sim/insts"
)

// Bubble is the Index of an empty pipeline register.
const Bubble = -1

// RedirectState is the fetch redirect protocol state.
type RedirectState uint8

const (
	// RedirectNone means fetch proceeds sequentially.
	RedirectNone RedirectState = iota
	// RedirectPendingFlush means decode resolved a taken branch or jump this
	// cycle; fetch must discard its speculative fetch.
	RedirectPendingFlush
	// RedirectTo means fetch continues at Target in the next cycle.
	RedirectTo
)

// Redirect carries a control-flow redirect from decode to fetch.
type Redirect struct {
	State  RedirectState
	Target int
}

func (r Redirect) String() string {
	switch r.State {
	case RedirectNone:
		return "not-taken"
	case RedirectPendingFlush:
		return fmt.Sprintf("taken-pending-flush(%d)", r.Target)
	case RedirectTo:
		return fmt.Sprintf("redirect(%d)", r.Target)
	default:
		return "invalid"
	}
}

// HazardState counts the decode stall cycles still owed to a producer.
type HazardState uint8

// Hazard states.
const (
	HazardNone HazardState = iota
	HazardAwaitOne
	HazardAwaitTwo
)

// Next returns the state after one more stall cycle.
func (h HazardState) Next() HazardState {
	if h == HazardNone {
		return HazardNone
	}
	return h - 1
}

func (h HazardState) String() string {
	switch h {
	case HazardNone:
		return "none"
	case HazardAwaitOne:
		return "await-one"
	case HazardAwaitTwo:
		return "await-two"
	default:
		return "invalid"
	}
}

// Control holds the control signals an instruction carries down the pipeline.
// The zero value is the neutral control of a bubble.
type Control struct {
	RegWrite      bool
	MemRead       bool
	MemWrite      bool
	MemSize       uint8
	MemSignExtend bool
	MemToReg      bool
	ALUOp         insts.ALUOp
	ALUSrc        bool
	UsesPC        bool
	Branch        insts.BranchKind
	Jump          insts.JumpKind
}

// controlFor extracts the control signals of a decoded instruction.
func controlFor(inst *insts.Instruction) Control {
	return Control{
		RegWrite:      inst.RegWrite,
		MemRead:       inst.MemRead,
		MemWrite:      inst.MemWrite,
		MemSize:       inst.MemSize,
		MemSignExtend: inst.MemSignExtend,
		MemToReg:      inst.MemRead,
		ALUOp:         inst.ALUOp,
		ALUSrc:        inst.ALUSrc,
		UsesPC:        inst.UsesPC,
		Branch:        inst.Branch,
		Jump:          inst.Jump,
	}
}

// IFRegister holds state between Fetch and Decode stages.
type IFRegister struct {
	// Index is the program index of the fetched instruction, or Bubble.
	Index int

	// Word is the raw 32-bit instruction word.
	Word uint32

	// Redirect is set by decode when it resolves a taken branch or jump.
	Redirect Redirect

	// Stall is set by decode to make fetch hold this register and the PC
	// for one cycle.
	Stall bool
}

// Clear resets the IF register to a bubble.
func (r *IFRegister) Clear() {
	*r = IFRegister{Index: Bubble}
}

// IDRegister holds state between Decode and Execute stages.
type IDRegister struct {
	// Index is the program index of the instruction, or Bubble.
	Index int

	// Source and destination registers. Sources may be insts.RegUnused.
	Rs1 uint8
	Rs2 uint8
	Rd  uint8

	// Operand values read in decode, after forwarding.
	Rs1Value int32
	Rs2Value int32

	// Imm is the sign-extended immediate.
	Imm int32

	Control Control

	// Illegal marks an undecodable word flowing as a no-op.
	Illegal bool

	// Stall marks a bubble inserted because decode is waiting on a producer.
	Stall bool

	// Hazard is the stall countdown of the waiting instruction.
	Hazard HazardState

	// LoadUse is set when the stall waits on a load.
	LoadUse bool
}

// Clear resets the ID register to a bubble.
func (r *IDRegister) Clear() {
	*r = IDRegister{Index: Bubble, Rs1: insts.RegUnused, Rs2: insts.RegUnused}
}

// EXRegister holds state between Execute and Memory stages.
type EXRegister struct {
	// Index is the program index of the instruction, or Bubble.
	Index int

	// ALUResult is the address for loads and stores, the link value for
	// jumps and the result for everything else.
	ALUResult int32

	// Zero is set when ALUResult is zero.
	Zero bool

	// StoreData is the value a store writes, and StoreDataReg the register
	// it was read from.
	StoreData    int32
	StoreDataReg uint8

	Rd      uint8
	Control Control

	// Stall marks a bubble that entered the pipeline as a decode stall.
	Stall bool
}

// Clear resets the EX register to a bubble.
func (r *EXRegister) Clear() {
	*r = EXRegister{Index: Bubble, StoreDataReg: insts.RegUnused}
}

// MEMRegister holds state between Memory and Writeback stages.
type MEMRegister struct {
	// Index is the program index of the instruction, or Bubble.
	Index int

	// Address is the effective address of a load or store.
	Address uint32

	StoreData int32
	LoadData  int32
	ALUResult int32

	Rd      uint8
	Control Control

	// Stall marks a bubble that entered the pipeline as a decode stall.
	Stall bool
}

// Clear resets the MEM register to a bubble.
func (r *MEMRegister) Clear() {
	*r = MEMRegister{Index: Bubble}
}

// Result returns the value the instruction writes back.
func (r *MEMRegister) Result() int32 {
	if r.Control.MemToReg {
		return r.LoadData
	}
	return r.ALUResult
}

// WBRegister holds the instruction committed by the Writeback stage.
type WBRegister struct {
	// Index is the program index of the instruction, or Bubble.
	Index int

	// Value is the committed result.
	Value int32

	Rd      uint8
	Control Control
}

// Clear resets the WB register to a bubble.
func (r *WBRegister) Clear() {
	*r = WBRegister{Index: Bubble}
}

// State groups the five pipeline registers.
type State struct {
	IF  IFRegister
	ID  IDRegister
	EX  EXRegister
	MEM MEMRegister
	WB  WBRegister
}

// Clear resets every register to a bubble.
func (s *State) Clear() {
	s.IF.Clear()
	s.ID.Clear()
	s.EX.Clear()
	s.MEM.Clear()
	s.WB.Clear()
}

// Empty reports whether IF, ID, EX and MEM hold bubbles and fetch has no
// pending stall or redirect. WB is not considered: its instruction has
// already committed.
func (s *State) Empty() bool {
	return s.IF.Index == Bubble && s.IF.Redirect.State == RedirectNone && !s.IF.Stall &&
		s.ID.Index == Bubble && !s.ID.Stall &&
		s.EX.Index == Bubble &&
		s.MEM.Index == Bubble
}
