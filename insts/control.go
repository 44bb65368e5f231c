package insts

// ALUOp selects the operation performed by the execute stage.
type ALUOp uint8

// ALU operations. The set is closed: every decoded instruction maps to one
// of these and the ALU rejects anything else.
const (
	ALUAdd ALUOp = iota
	ALUSub
	ALUAnd
	ALUOr
	ALUXor
	ALUSll
	ALUSrl
	ALUSra
	ALUSlt
	ALUSltu
	ALUMul
	ALUMulh
	ALUMulhsu
	ALUMulhu
	ALUDiv
	ALUDivu
	ALURem
	ALURemu
	ALUPassB // result is operand 2 (LUI)

	numALUOps
)

var aluOpNames = [numALUOps]string{
	ALUAdd:    "add",
	ALUSub:    "sub",
	ALUAnd:    "and",
	ALUOr:     "or",
	ALUXor:    "xor",
	ALUSll:    "sll",
	ALUSrl:    "srl",
	ALUSra:    "sra",
	ALUSlt:    "slt",
	ALUSltu:   "sltu",
	ALUMul:    "mul",
	ALUMulh:   "mulh",
	ALUMulhsu: "mulhsu",
	ALUMulhu:  "mulhu",
	ALUDiv:    "div",
	ALUDivu:   "divu",
	ALURem:    "rem",
	ALURemu:   "remu",
	ALUPassB:  "pass",
}

// Valid reports whether op is a member of the ALU operation set.
func (op ALUOp) Valid() bool {
	return op < numALUOps
}

func (op ALUOp) String() string {
	if !op.Valid() {
		return "invalid"
	}
	return aluOpNames[op]
}

// BranchKind identifies the comparison of a conditional branch.
type BranchKind uint8

// Branch kinds.
const (
	BranchNone BranchKind = iota
	BranchEQ              // rs1 == rs2
	BranchNE              // rs1 != rs2
	BranchLT              // signed rs1 < rs2
	BranchGE              // signed rs1 >= rs2
	BranchLTU             // unsigned rs1 < rs2
	BranchGEU             // unsigned rs1 >= rs2
)

func (k BranchKind) String() string {
	switch k {
	case BranchNone:
		return "none"
	case BranchEQ:
		return "eq"
	case BranchNE:
		return "ne"
	case BranchLT:
		return "lt"
	case BranchGE:
		return "ge"
	case BranchLTU:
		return "ltu"
	case BranchGEU:
		return "geu"
	default:
		return "invalid"
	}
}

// JumpKind identifies an unconditional control transfer.
type JumpKind uint8

// Jump kinds.
const (
	JumpNone JumpKind = iota
	JumpJAL           // pc-relative
	JumpJALR          // register-indirect
)

func (k JumpKind) String() string {
	switch k {
	case JumpNone:
		return "none"
	case JumpJAL:
		return "jal"
	case JumpJALR:
		return "jalr"
	default:
		return "invalid"
	}
}
