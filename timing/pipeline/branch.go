package pipeline

import (
	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
)

// BranchResolver decides control transfers in decode, where the operands
// of branches and jalr are already resolved.
type BranchResolver struct {
	branchUnit *emu.BranchUnit
}

// NewBranchResolver creates a new branch resolver for code loaded at byte
// address base.
func NewBranchResolver(base uint32) *BranchResolver {
	return &BranchResolver{branchUnit: emu.NewBranchUnit(base)}
}

// Resolve returns the redirect for the instruction at index with control c,
// immediate imm and operand values rs1 and rs2. Sequential flow yields
// RedirectNone.
func (r *BranchResolver) Resolve(index int, c Control, imm, rs1, rs2 int32) Redirect {
	switch {
	case c.Jump == insts.JumpJAL:
		return r.redirect(r.branchUnit.RelativeTarget(index, imm))
	case c.Jump == insts.JumpJALR:
		return r.redirect(r.branchUnit.IndirectTarget(rs1, imm))
	case c.Branch != insts.BranchNone && r.branchUnit.Taken(c.Branch, rs1, rs2):
		return r.redirect(r.branchUnit.RelativeTarget(index, imm))
	default:
		return Redirect{}
	}
}

func (r *BranchResolver) redirect(target int) Redirect {
	return Redirect{State: RedirectPendingFlush, Target: target}
}

// Address returns the byte address of the instruction at index.
func (r *BranchResolver) Address(index int) int32 {
	return int32(r.branchUnit.Address(index))
}

// LinkValue returns the return address jal/jalr at index write to rd.
func (r *BranchResolver) LinkValue(index int) int32 {
	return r.branchUnit.LinkValue(index)
}
