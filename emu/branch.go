package emu

import "github.com/sarchlab/rv5sim/insts"

// NoTarget is the index returned for a control-transfer target that is not
// a word-aligned address at or above the code base. It lies outside every
// program.
const NoTarget = -1

// BranchUnit evaluates branch conditions and computes control-transfer
// targets. Program counters are instruction indices; the byte address of
// index i is base + i*4.
type BranchUnit struct {
	base uint32
}

// NewBranchUnit creates a new BranchUnit for code loaded at byte address
// base.
func NewBranchUnit(base uint32) *BranchUnit {
	return &BranchUnit{base: base}
}

// Base returns the byte address of index 0.
func (bu *BranchUnit) Base() uint32 {
	return bu.base
}

// Taken reports whether a branch of the given kind is taken for the
// operand values rs1 and rs2.
func (bu *BranchUnit) Taken(kind insts.BranchKind, rs1, rs2 int32) bool {
	switch kind {
	case insts.BranchEQ:
		return rs1 == rs2
	case insts.BranchNE:
		return rs1 != rs2
	case insts.BranchLT:
		return rs1 < rs2
	case insts.BranchGE:
		return rs1 >= rs2
	case insts.BranchLTU:
		return uint32(rs1) < uint32(rs2)
	case insts.BranchGEU:
		return uint32(rs1) >= uint32(rs2)
	default:
		return false
	}
}

// Address returns the byte address of the instruction at index.
func (bu *BranchUnit) Address(index int) uint32 {
	return bu.base + uint32(index)*4
}

// Index returns the instruction index at byte address addr, or NoTarget
// if addr is below the base or not word aligned.
func (bu *BranchUnit) Index(addr uint32) int {
	if addr < bu.base || (addr-bu.base)%4 != 0 {
		return NoTarget
	}
	return int((addr - bu.base) / 4)
}

// RelativeTarget returns the index reached by a pc-relative branch or jal
// at index with byte offset imm.
func (bu *BranchUnit) RelativeTarget(index int, imm int32) int {
	return bu.Index(bu.Address(index) + uint32(imm))
}

// IndirectTarget returns the index reached by jalr with base value rs1 and
// byte offset imm. The low bit of the sum is cleared.
func (bu *BranchUnit) IndirectTarget(rs1, imm int32) int {
	return bu.Index(uint32(rs1+imm) &^ 1)
}

// LinkValue returns the return address written by jal/jalr at index: the
// byte address of the following instruction.
func (bu *BranchUnit) LinkValue(index int) int32 {
	return int32(bu.Address(index + 1))
}
