package insts

import "fmt"

// Op represents an RV32I/M opcode.
type Op uint16

// RV32I/M opcodes.
const (
	OpUnknown Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
)

func (op Op) String() string {
	if e, ok := byOp[op]; ok {
		return e.name
	}
	return "unknown"
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatI              // register-immediate, loads, jalr
	FormatS              // stores
	FormatB              // conditional branches
	FormatU              // lui, auipc
	FormatJ              // jal
)

// RegUnused marks a source register slot the instruction does not read.
const RegUnused uint8 = 0xFF

// Major opcodes, bits [6:0].
const (
	opcodeLoad   uint32 = 0b0000011
	opcodeOpImm  uint32 = 0b0010011
	opcodeAUIPC  uint32 = 0b0010111
	opcodeStore  uint32 = 0b0100011
	opcodeOp     uint32 = 0b0110011
	opcodeLUI    uint32 = 0b0110111
	opcodeBranch uint32 = 0b1100011
	opcodeJALR   uint32 = 0b1100111
	opcodeJAL    uint32 = 0b1101111
)

// encoding describes one instruction's fixed bits and the control it implies.
type encoding struct {
	op     Op
	name   string
	format Format
	opcode uint32
	funct3 uint32
	funct7 uint32

	alu      ALUOp
	memSize  uint8
	unsigned bool
	branch   BranchKind
	jump     JumpKind
}

var encodings = []encoding{
	{op: OpLUI, name: "lui", format: FormatU, opcode: opcodeLUI, alu: ALUPassB},
	{op: OpAUIPC, name: "auipc", format: FormatU, opcode: opcodeAUIPC, alu: ALUAdd},
	{op: OpJAL, name: "jal", format: FormatJ, opcode: opcodeJAL, jump: JumpJAL},
	{op: OpJALR, name: "jalr", format: FormatI, opcode: opcodeJALR, jump: JumpJALR},

	{op: OpBEQ, name: "beq", format: FormatB, opcode: opcodeBranch, funct3: 0b000, branch: BranchEQ},
	{op: OpBNE, name: "bne", format: FormatB, opcode: opcodeBranch, funct3: 0b001, branch: BranchNE},
	{op: OpBLT, name: "blt", format: FormatB, opcode: opcodeBranch, funct3: 0b100, branch: BranchLT},
	{op: OpBGE, name: "bge", format: FormatB, opcode: opcodeBranch, funct3: 0b101, branch: BranchGE},
	{op: OpBLTU, name: "bltu", format: FormatB, opcode: opcodeBranch, funct3: 0b110, branch: BranchLTU},
	{op: OpBGEU, name: "bgeu", format: FormatB, opcode: opcodeBranch, funct3: 0b111, branch: BranchGEU},

	{op: OpLB, name: "lb", format: FormatI, opcode: opcodeLoad, funct3: 0b000, memSize: 1},
	{op: OpLH, name: "lh", format: FormatI, opcode: opcodeLoad, funct3: 0b001, memSize: 2},
	{op: OpLW, name: "lw", format: FormatI, opcode: opcodeLoad, funct3: 0b010, memSize: 4},
	{op: OpLBU, name: "lbu", format: FormatI, opcode: opcodeLoad, funct3: 0b100, memSize: 1, unsigned: true},
	{op: OpLHU, name: "lhu", format: FormatI, opcode: opcodeLoad, funct3: 0b101, memSize: 2, unsigned: true},

	{op: OpSB, name: "sb", format: FormatS, opcode: opcodeStore, funct3: 0b000, memSize: 1},
	{op: OpSH, name: "sh", format: FormatS, opcode: opcodeStore, funct3: 0b001, memSize: 2},
	{op: OpSW, name: "sw", format: FormatS, opcode: opcodeStore, funct3: 0b010, memSize: 4},

	{op: OpADDI, name: "addi", format: FormatI, opcode: opcodeOpImm, funct3: 0b000, alu: ALUAdd},
	{op: OpSLTI, name: "slti", format: FormatI, opcode: opcodeOpImm, funct3: 0b010, alu: ALUSlt},
	{op: OpSLTIU, name: "sltiu", format: FormatI, opcode: opcodeOpImm, funct3: 0b011, alu: ALUSltu},
	{op: OpXORI, name: "xori", format: FormatI, opcode: opcodeOpImm, funct3: 0b100, alu: ALUXor},
	{op: OpORI, name: "ori", format: FormatI, opcode: opcodeOpImm, funct3: 0b110, alu: ALUOr},
	{op: OpANDI, name: "andi", format: FormatI, opcode: opcodeOpImm, funct3: 0b111, alu: ALUAnd},
	{op: OpSLLI, name: "slli", format: FormatI, opcode: opcodeOpImm, funct3: 0b001, funct7: 0b0000000, alu: ALUSll},
	{op: OpSRLI, name: "srli", format: FormatI, opcode: opcodeOpImm, funct3: 0b101, funct7: 0b0000000, alu: ALUSrl},
	{op: OpSRAI, name: "srai", format: FormatI, opcode: opcodeOpImm, funct3: 0b101, funct7: 0b0100000, alu: ALUSra},

	{op: OpADD, name: "add", format: FormatR, opcode: opcodeOp, funct3: 0b000, funct7: 0b0000000, alu: ALUAdd},
	{op: OpSUB, name: "sub", format: FormatR, opcode: opcodeOp, funct3: 0b000, funct7: 0b0100000, alu: ALUSub},
	{op: OpSLL, name: "sll", format: FormatR, opcode: opcodeOp, funct3: 0b001, funct7: 0b0000000, alu: ALUSll},
	{op: OpSLT, name: "slt", format: FormatR, opcode: opcodeOp, funct3: 0b010, funct7: 0b0000000, alu: ALUSlt},
	{op: OpSLTU, name: "sltu", format: FormatR, opcode: opcodeOp, funct3: 0b011, funct7: 0b0000000, alu: ALUSltu},
	{op: OpXOR, name: "xor", format: FormatR, opcode: opcodeOp, funct3: 0b100, funct7: 0b0000000, alu: ALUXor},
	{op: OpSRL, name: "srl", format: FormatR, opcode: opcodeOp, funct3: 0b101, funct7: 0b0000000, alu: ALUSrl},
	{op: OpSRA, name: "sra", format: FormatR, opcode: opcodeOp, funct3: 0b101, funct7: 0b0100000, alu: ALUSra},
	{op: OpOR, name: "or", format: FormatR, opcode: opcodeOp, funct3: 0b110, funct7: 0b0000000, alu: ALUOr},
	{op: OpAND, name: "and", format: FormatR, opcode: opcodeOp, funct3: 0b111, funct7: 0b0000000, alu: ALUAnd},

	{op: OpMUL, name: "mul", format: FormatR, opcode: opcodeOp, funct3: 0b000, funct7: 0b0000001, alu: ALUMul},
	{op: OpMULH, name: "mulh", format: FormatR, opcode: opcodeOp, funct3: 0b001, funct7: 0b0000001, alu: ALUMulh},
	{op: OpMULHSU, name: "mulhsu", format: FormatR, opcode: opcodeOp, funct3: 0b010, funct7: 0b0000001, alu: ALUMulhsu},
	{op: OpMULHU, name: "mulhu", format: FormatR, opcode: opcodeOp, funct3: 0b011, funct7: 0b0000001, alu: ALUMulhu},
	{op: OpDIV, name: "div", format: FormatR, opcode: opcodeOp, funct3: 0b100, funct7: 0b0000001, alu: ALUDiv},
	{op: OpDIVU, name: "divu", format: FormatR, opcode: opcodeOp, funct3: 0b101, funct7: 0b0000001, alu: ALUDivu},
	{op: OpREM, name: "rem", format: FormatR, opcode: opcodeOp, funct3: 0b110, funct7: 0b0000001, alu: ALURem},
	{op: OpREMU, name: "remu", format: FormatR, opcode: opcodeOp, funct3: 0b111, funct7: 0b0000001, alu: ALURemu},
}

var (
	byKey = map[uint32]*encoding{}
	byOp  = map[Op]*encoding{}
)

func init() {
	for i := range encodings {
		e := &encodings[i]
		byKey[lookupKey(e.opcode|e.funct3<<12|e.funct7<<25)] = e
		byOp[e.op] = e
	}
}

// lookupKey extracts the bits that identify an instruction: the opcode,
// plus funct3 and funct7 where the major opcode uses them.
func lookupKey(word uint32) uint32 {
	opcode := word & 0x7F         // bits [6:0]
	funct3 := (word >> 12) & 0x7  // bits [14:12]
	funct7 := (word >> 25) & 0x7F // bits [31:25]

	switch opcode {
	case opcodeLUI, opcodeAUIPC, opcodeJAL:
		return opcode
	case opcodeOp:
		return opcode | funct3<<7 | funct7<<10
	case opcodeOpImm:
		if funct3 == 0b001 || funct3 == 0b101 {
			return opcode | funct3<<7 | funct7<<10
		}
	}
	return opcode | funct3<<7
}

// Instruction represents a decoded RV32 instruction together with the
// pipeline control signals it implies.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Encoding format
	Word   uint32 // Raw encoding

	Rd  uint8 // Destination register
	Rs1 uint8 // First source register, RegUnused if not read
	Rs2 uint8 // Second source register, RegUnused if not read
	Imm int32 // Sign-extended immediate (shamt for shift-immediates)

	ALUOp  ALUOp
	ALUSrc bool // operand 2 is Imm instead of rs2
	UsesPC bool // operand 1 is the instruction's byte address

	RegWrite      bool
	MemRead       bool
	MemWrite      bool
	MemSize       uint8 // 1, 2 or 4 bytes
	MemSignExtend bool

	Branch BranchKind
	Jump   JumpKind
}

// Illegal reports whether the word did not decode to a known instruction.
func (i *Instruction) Illegal() bool {
	return i.Op == OpUnknown
}

// IsLoad reports whether the instruction reads memory into rd.
func (i *Instruction) IsLoad() bool {
	return i.MemRead
}

// Writes reports whether the instruction writes a non-zero register reg.
func (i *Instruction) Writes(reg uint8) bool {
	return i.RegWrite && reg != 0 && i.Rd == reg
}

// String returns the assembly form of the instruction.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		if i.MemRead || i.Jump == JumpJALR {
			return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	default:
		return fmt.Sprintf("unknown 0x%08x", i.Word)
	}
}

// Decoder decodes RV32 machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32I/M instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word. Words that match no known
// encoding yield an instruction with Op == OpUnknown and neutral control.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpUnknown,
		Format: FormatUnknown,
		Word:   word,
		Rs1:    RegUnused,
		Rs2:    RegUnused,
	}

	e, ok := byKey[lookupKey(word)]
	if !ok {
		return inst
	}

	inst.Op = e.op
	inst.Format = e.format
	inst.ALUOp = e.alu
	inst.Branch = e.branch
	inst.Jump = e.jump

	switch e.format {
	case FormatR:
		d.decodeR(word, inst)
	case FormatI:
		d.decodeI(word, inst, e)
	case FormatS:
		d.decodeS(word, inst, e)
	case FormatB:
		d.decodeB(word, inst)
	case FormatU:
		d.decodeU(word, inst)
	case FormatJ:
		d.decodeJ(word, inst)
	}

	return inst
}

// decodeR decodes register-register ALU and M-extension instructions.
// Format: funct7 | rs2 | rs1 | funct3 | rd | opcode
func (d *Decoder) decodeR(word uint32, inst *Instruction) {
	inst.Rd = uint8((word >> 7) & 0x1F)   // bits [11:7]
	inst.Rs1 = uint8((word >> 15) & 0x1F) // bits [19:15]
	inst.Rs2 = uint8((word >> 20) & 0x1F) // bits [24:20]
	inst.RegWrite = true
}

// decodeI decodes ALU-immediate, load and jalr instructions.
// Format: imm[11:0] | rs1 | funct3 | rd | opcode
func (d *Decoder) decodeI(word uint32, inst *Instruction, e *encoding) {
	inst.Rd = uint8((word >> 7) & 0x1F)
	inst.Rs1 = uint8((word >> 15) & 0x1F)
	inst.Imm = immI(word)
	inst.ALUSrc = true
	inst.RegWrite = true

	switch {
	case e.memSize != 0:
		inst.ALUOp = ALUAdd
		inst.MemRead = true
		inst.MemSize = e.memSize
		inst.MemSignExtend = !e.unsigned
	case e.jump == JumpJALR:
		inst.ALUOp = ALUAdd
	case e.op == OpSLLI || e.op == OpSRLI || e.op == OpSRAI:
		inst.Imm = int32((word >> 20) & 0x1F) // shamt, bits [24:20]
	}
}

// decodeS decodes store instructions.
// Format: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode
func (d *Decoder) decodeS(word uint32, inst *Instruction, e *encoding) {
	inst.Rs1 = uint8((word >> 15) & 0x1F)
	inst.Rs2 = uint8((word >> 20) & 0x1F)
	inst.Imm = immS(word)
	inst.ALUOp = ALUAdd
	inst.ALUSrc = true
	inst.MemWrite = true
	inst.MemSize = e.memSize
}

// decodeB decodes conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | opcode
func (d *Decoder) decodeB(word uint32, inst *Instruction) {
	inst.Rs1 = uint8((word >> 15) & 0x1F)
	inst.Rs2 = uint8((word >> 20) & 0x1F)
	inst.Imm = immB(word)
}

// decodeU decodes lui and auipc.
// Format: imm[31:12] | rd | opcode
func (d *Decoder) decodeU(word uint32, inst *Instruction) {
	inst.Rd = uint8((word >> 7) & 0x1F)
	inst.Imm = int32(word & 0xFFFFF000)
	inst.ALUSrc = true
	inst.RegWrite = true
	inst.UsesPC = inst.Op == OpAUIPC
}

// decodeJ decodes jal.
// Format: imm[20|10:1|11|19:12] | rd | opcode
func (d *Decoder) decodeJ(word uint32, inst *Instruction) {
	inst.Rd = uint8((word >> 7) & 0x1F)
	inst.Imm = immJ(word)
	inst.RegWrite = true
}

func immI(word uint32) int32 {
	return int32(word) >> 20
}

func immS(word uint32) int32 {
	return int32(word&0xFE000000)>>20 | int32((word>>7)&0x1F)
}

func immB(word uint32) int32 {
	imm := (word>>31)&0x1<<12 |
		(word>>7)&0x1<<11 |
		(word>>25)&0x3F<<5 |
		(word>>8)&0xF<<1
	return int32(imm<<19) >> 19
}

func immJ(word uint32) int32 {
	imm := (word>>31)&0x1<<20 |
		(word>>12)&0xFF<<12 |
		(word>>20)&0x1<<11 |
		(word>>21)&0x3FF<<1
	return int32(imm<<11) >> 11
}
