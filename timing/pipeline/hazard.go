package pipeline

import (
	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
)

// ForwardSource indicates where an operand value comes from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use the register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromMEM means forward from the MEM pipeline register.
	ForwardFromMEM
	// ForwardFromWB means forward from the WB pipeline register.
	ForwardFromWB
)

func (f ForwardSource) String() string {
	switch f {
	case ForwardNone:
		return "none"
	case ForwardFromMEM:
		return "mem"
	case ForwardFromWB:
		return "wb"
	default:
		return "invalid"
	}
}

// Producer is the view of an older in-flight instruction that the hazard
// unit needs: whether it writes a register and the value it would forward.
type Producer struct {
	Valid    bool
	Rd       uint8
	RegWrite bool
	IsLoad   bool
	Value    int32
}

// Writes reports whether the producer will write reg. Register 0 and the
// unused-operand sentinel are never written.
func (p Producer) Writes(reg uint8) bool {
	return p.Valid && p.RegWrite && reg != 0 && reg < emu.NumRegs && p.Rd == reg
}

// producerOfEX views the EX register as seen by decode. Its value is not
// forwardable yet.
func producerOfEX(r *EXRegister) Producer {
	return Producer{
		Valid:    r.Index != Bubble,
		Rd:       r.Rd,
		RegWrite: r.Control.RegWrite,
		IsLoad:   r.Control.MemRead,
		Value:    r.ALUResult,
	}
}

// producerOfMEM views the MEM register. Decode may only forward its ALU
// result; later stages see the loaded value too.
func producerOfMEM(r *MEMRegister) Producer {
	return Producer{
		Valid:    r.Index != Bubble,
		Rd:       r.Rd,
		RegWrite: r.Control.RegWrite,
		IsLoad:   r.Control.MemRead,
		Value:    r.Result(),
	}
}

func producerOfWB(r *WBRegister) Producer {
	return Producer{
		Valid:    r.Index != Bubble,
		Rd:       r.Rd,
		RegWrite: r.Control.RegWrite,
		IsLoad:   r.Control.MemRead,
		Value:    r.Value,
	}
}

// Decision is the hazard unit's verdict for one source register in decode.
type Decision struct {
	// Source tells where the operand value comes from when there is no stall.
	Source ForwardSource
	// Value is the forwarded value when Source is not ForwardNone.
	Value int32
	// Wait is the number of stall cycles owed before the value is available.
	Wait HazardState
	// LoadUse is set when the wait is caused by a load.
	LoadUse bool
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct {
	forwarding bool
}

// NewHazardUnit creates a new hazard detection unit. Without forwarding,
// every dependency on an in-flight producer stalls until it has committed.
func NewHazardUnit(forwarding bool) *HazardUnit {
	return &HazardUnit{forwarding: forwarding}
}

// Forwarding reports whether operand forwarding is enabled.
func (h *HazardUnit) Forwarding() bool {
	return h.forwarding
}

// Detect decides how decode obtains reg. ex and mem are the instructions
// one and two ahead, as they stand after this cycle's execute and memory
// stages. Writeback has already committed this cycle, so the register file
// is current for everything older.
//
//	producer in EX, ALU     -> stall 1, forward from MEM next cycle
//	producer in EX, load    -> stall 2
//	producer in MEM, ALU    -> forward its ALU result
//	producer in MEM, load   -> stall 1
//
// Without forwarding a producer in EX costs 2 cycles and one in MEM 1.
func (h *HazardUnit) Detect(reg uint8, ex, mem Producer) Decision {
	if reg == insts.RegUnused || reg == 0 {
		return Decision{}
	}

	if ex.Writes(reg) {
		switch {
		case !h.forwarding || ex.IsLoad:
			return Decision{Wait: HazardAwaitTwo, LoadUse: ex.IsLoad}
		default:
			return Decision{Wait: HazardAwaitOne}
		}
	}

	if mem.Writes(reg) {
		if !h.forwarding || mem.IsLoad {
			return Decision{Wait: HazardAwaitOne, LoadUse: mem.IsLoad}
		}
		return Decision{Source: ForwardFromMEM, Value: mem.Value}
	}

	return Decision{}
}

// Forward returns the value execute or memory should use for reg: the MEM
// producer's value if it writes reg, else the WB producer's, else current.
// It never stalls. Without forwarding there is no bypass and current is
// always returned.
func (h *HazardUnit) Forward(reg uint8, current int32, mem, wb Producer) (int32, ForwardSource) {
	if !h.forwarding || reg == insts.RegUnused || reg == 0 {
		return current, ForwardNone
	}

	if mem.Writes(reg) {
		return mem.Value, ForwardFromMEM
	}

	if wb.Writes(reg) {
		return wb.Value, ForwardFromWB
	}

	return current, ForwardNone
}
