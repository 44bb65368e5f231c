package pipeline

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/timing/config"
)

// ErrIllegalInstruction is returned when decode meets an undecodable word
// under the abort policy.
var ErrIllegalInstruction = errors.New("illegal instruction")

// FetchStage handles instruction fetch from the program.
type FetchStage struct {
	program []uint32
	pc      int
}

// NewFetchStage creates a new fetch stage starting at index entry.
func NewFetchStage(program []uint32, entry int) *FetchStage {
	return &FetchStage{program: program, pc: entry}
}

// PC returns the index of the next instruction to fetch.
func (s *FetchStage) PC() int {
	return s.pc
}

// InProgram reports whether the PC addresses an instruction.
func (s *FetchStage) InProgram() bool {
	return s.pc >= 0 && s.pc < len(s.program)
}

// FetchResult holds the result of the fetch stage.
type FetchResult struct {
	// Fetched is set when an instruction entered the IF register.
	Fetched bool
	// Held is set when a decode stall kept the IF register.
	Held bool
	// Flushed is set when the speculative fetch was discarded.
	Flushed bool
	// Redirected is set when fetch jumped to a redirect target.
	Redirected bool
}

// Fetch fills the IF register for this cycle, honouring a stall or
// redirect raised by decode.
func (s *FetchStage) Fetch(ifr *IFRegister) FetchResult {
	result := FetchResult{}

	switch ifr.Redirect.State {
	case RedirectPendingFlush:
		target := ifr.Redirect.Target
		ifr.Clear()
		ifr.Redirect = Redirect{State: RedirectTo, Target: target}
		result.Flushed = true
		return result
	case RedirectTo:
		s.pc = ifr.Redirect.Target
		result.Redirected = true
	}

	if ifr.Stall {
		ifr.Stall = false
		result.Held = true
		return result
	}

	if !s.InProgram() {
		ifr.Clear()
		return result
	}

	*ifr = IFRegister{Index: s.pc, Word: s.program[s.pc]}
	s.pc++
	result.Fetched = true

	return result
}

// DecodeStage handles instruction decode, register read, hazard detection
// and branch resolution.
type DecodeStage struct {
	regFile        *emu.RegFile
	decoder        *insts.Decoder
	hazardUnit     *HazardUnit
	branchResolver *BranchResolver
	illegalPolicy  config.IllegalPolicy
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(
	regFile *emu.RegFile,
	hazardUnit *HazardUnit,
	branchResolver *BranchResolver,
	illegalPolicy config.IllegalPolicy,
) *DecodeStage {
	return &DecodeStage{
		regFile:        regFile,
		decoder:        insts.NewDecoder(),
		hazardUnit:     hazardUnit,
		branchResolver: branchResolver,
		illegalPolicy:  illegalPolicy,
	}
}

// DecodeResult holds the result of the decode stage.
type DecodeResult struct {
	// Stalled is set when decode inserted a bubble and asked fetch to hold.
	Stalled bool
	// Hazard is the stall countdown after this cycle.
	Hazard HazardState
	// LoadUse is set when the stall waits on a load.
	LoadUse bool
	// Forwards counts operands taken from the MEM register.
	Forwards int
	// Redirect is the control transfer resolved this cycle.
	Redirect Redirect
	// Illegal is set when the word did not decode.
	Illegal bool
}

// Decode decodes the IF register into the ID register. ex and mem are this
// cycle's EX and MEM registers. A stall leaves the instruction in the IF
// register and sets its Stall flag; a taken branch or jump sets its
// Redirect.
func (s *DecodeStage) Decode(
	ifr *IFRegister,
	ex *EXRegister,
	mem *MEMRegister,
	id *IDRegister,
) (DecodeResult, error) {
	prevHazard := id.Hazard
	prevLoadUse := id.LoadUse

	if ifr.Index == Bubble {
		id.Clear()
		return DecodeResult{}, nil
	}

	// A stall already owed for this instruction runs down without
	// re-detection.
	if next := prevHazard.Next(); next != HazardNone {
		return s.stall(ifr, id, next, prevLoadUse), nil
	}

	inst := s.decoder.Decode(ifr.Word)
	if inst.Illegal() {
		if s.illegalPolicy == config.IllegalAbort {
			return DecodeResult{}, fmt.Errorf("%w: 0x%08x at index %d", ErrIllegalInstruction, ifr.Word, ifr.Index)
		}

		id.Clear()
		id.Index = ifr.Index
		id.Illegal = true
		return DecodeResult{Illegal: true}, nil
	}

	exProducer := producerOfEX(ex)
	memProducer := producerOfMEM(mem)
	d1 := s.hazardUnit.Detect(inst.Rs1, exProducer, memProducer)
	d2 := s.hazardUnit.Detect(inst.Rs2, exProducer, memProducer)

	wait := d1.Wait
	if d2.Wait > wait {
		wait = d2.Wait
	}
	if wait != HazardNone {
		return s.stall(ifr, id, wait, d1.LoadUse || d2.LoadUse), nil
	}

	result := DecodeResult{}
	rs1 := s.operand(inst.Rs1, d1, &result)
	rs2 := s.operand(inst.Rs2, d2, &result)

	*id = IDRegister{
		Index:    ifr.Index,
		Rs1:      inst.Rs1,
		Rs2:      inst.Rs2,
		Rd:       inst.Rd,
		Rs1Value: rs1,
		Rs2Value: rs2,
		Imm:      inst.Imm,
		Control:  controlFor(inst),
	}

	result.Redirect = s.branchResolver.Resolve(ifr.Index, id.Control, inst.Imm, rs1, rs2)
	if result.Redirect.State != RedirectNone {
		ifr.Redirect = result.Redirect
	}

	return result, nil
}

// operand reads reg from the register file or takes the forwarded value.
func (s *DecodeStage) operand(reg uint8, d Decision, result *DecodeResult) int32 {
	if d.Source == ForwardFromMEM {
		result.Forwards++
		return d.Value
	}
	return s.regFile.ReadReg(reg)
}

func (s *DecodeStage) stall(ifr *IFRegister, id *IDRegister, wait HazardState, loadUse bool) DecodeResult {
	id.Clear()
	id.Stall = true
	id.Hazard = wait
	id.LoadUse = loadUse
	ifr.Stall = true

	return DecodeResult{Stalled: true, Hazard: wait, LoadUse: loadUse}
}

// ExecuteStage handles ALU operations, address calculation and link values.
type ExecuteStage struct {
	alu            *emu.ALU
	hazardUnit     *HazardUnit
	branchResolver *BranchResolver
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(hazardUnit *HazardUnit, branchResolver *BranchResolver) *ExecuteStage {
	return &ExecuteStage{
		alu:            emu.NewALU(),
		hazardUnit:     hazardUnit,
		branchResolver: branchResolver,
	}
}

// Execute computes the EX register from the ID register. mem and wb are
// this cycle's MEM and WB registers; a writer there overrides the decode
// value of a source operand, MEM first.
func (s *ExecuteStage) Execute(id *IDRegister, mem *MEMRegister, wb *WBRegister, ex *EXRegister) {
	if id.Index == Bubble {
		ex.Clear()
		ex.Stall = id.Stall
		return
	}

	if id.Illegal {
		ex.Clear()
		ex.Index = id.Index
		return
	}

	memProducer := producerOfMEM(mem)
	wbProducer := producerOfWB(wb)
	rs1, _ := s.hazardUnit.Forward(id.Rs1, id.Rs1Value, memProducer, wbProducer)
	rs2, _ := s.hazardUnit.Forward(id.Rs2, id.Rs2Value, memProducer, wbProducer)

	var result int32
	if id.Control.Jump != insts.JumpNone {
		result = s.branchResolver.LinkValue(id.Index)
	} else {
		a := rs1
		if id.Control.UsesPC {
			a = s.branchResolver.Address(id.Index)
		}
		b := rs2
		if id.Control.ALUSrc {
			b = id.Imm
		}
		result = s.alu.Compute(id.Control.ALUOp, a, b)
	}

	*ex = EXRegister{
		Index:        id.Index,
		ALUResult:    result,
		Zero:         result == 0,
		StoreData:    rs2,
		StoreDataReg: id.Rs2,
		Rd:           id.Rd,
		Control:      id.Control,
	}
}

// MemoryStage handles loads and stores.
type MemoryStage struct {
	lsu        *emu.LoadStoreUnit
	hazardUnit *HazardUnit
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory, hazardUnit *HazardUnit) *MemoryStage {
	return &MemoryStage{
		lsu:        emu.NewLoadStoreUnit(memory),
		hazardUnit: hazardUnit,
	}
}

// Access performs the memory operation of the EX register into the MEM
// register. wb is this cycle's WB register, used to forward store data.
func (s *MemoryStage) Access(ex *EXRegister, wb *WBRegister, mem *MEMRegister) error {
	if ex.Index == Bubble {
		mem.Clear()
		mem.Stall = ex.Stall
		return nil
	}

	next := MEMRegister{
		Index:     ex.Index,
		ALUResult: ex.ALUResult,
		Rd:        ex.Rd,
		Control:   ex.Control,
	}

	c := ex.Control
	if c.MemRead || c.MemWrite {
		next.Address = uint32(ex.ALUResult)
	}

	switch {
	case c.MemRead:
		value, err := s.lsu.Load(next.Address, c.MemSize, c.MemSignExtend)
		if err != nil {
			return fmt.Errorf("load at index %d: %w", ex.Index, err)
		}
		next.LoadData = value

	case c.MemWrite:
		data, _ := s.hazardUnit.Forward(ex.StoreDataReg, ex.StoreData, Producer{}, producerOfWB(wb))
		if err := s.lsu.Store(next.Address, c.MemSize, data); err != nil {
			return fmt.Errorf("store at index %d: %w", ex.Index, err)
		}
		next.StoreData = data
	}

	*mem = next
	return nil
}

// WritebackStage commits results to the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback commits the MEM register and records it in the WB register.
// Returns true if an instruction retired.
func (s *WritebackStage) Writeback(mem *MEMRegister, wb *WBRegister) bool {
	if mem.Index == Bubble {
		wb.Clear()
		return false
	}

	value := mem.Result()
	if mem.Control.RegWrite && mem.Rd != 0 {
		s.regFile.WriteReg(mem.Rd, value)
	}

	*wb = WBRegister{
		Index:   mem.Index,
		Value:   value,
		Rd:      mem.Rd,
		Control: mem.Control,
	}

	return true
}
