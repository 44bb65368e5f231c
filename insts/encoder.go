package insts

import "fmt"

// Encoders build instruction words from fields. They panic when op does not
// use the requested format; programs built with them are test and benchmark
// fixtures, where a mismatch is a bug in the fixture.

func mustFormat(op Op, format Format) *encoding {
	e, ok := byOp[op]
	if !ok || e.format != format {
		panic(fmt.Sprintf("insts: %v is not a format %d instruction", op, format))
	}
	return e
}

func fixedBits(e *encoding) uint32 {
	return e.opcode | e.funct3<<12 | e.funct7<<25
}

func reg(r uint8) uint32 {
	return uint32(r & 0x1F)
}

// EncodeR encodes a register-register instruction: op rd, rs1, rs2.
func EncodeR(op Op, rd, rs1, rs2 uint8) uint32 {
	e := mustFormat(op, FormatR)
	return fixedBits(e) | reg(rd)<<7 | reg(rs1)<<15 | reg(rs2)<<20
}

// EncodeI encodes a register-immediate, load or jalr instruction:
// op rd, rs1, imm. For shift-immediates imm is the shift amount.
func EncodeI(op Op, rd, rs1 uint8, imm int32) uint32 {
	e := mustFormat(op, FormatI)
	word := e.opcode | e.funct3<<12 | reg(rd)<<7 | reg(rs1)<<15

	if op == OpSLLI || op == OpSRLI || op == OpSRAI {
		return word | e.funct7<<25 | (uint32(imm)&0x1F)<<20
	}
	return word | (uint32(imm)&0xFFF)<<20
}

// EncodeS encodes a store: op rs2, imm(rs1).
func EncodeS(op Op, rs2, rs1 uint8, imm int32) uint32 {
	e := mustFormat(op, FormatS)
	u := uint32(imm)
	return fixedBits(e) | reg(rs1)<<15 | reg(rs2)<<20 |
		(u&0x1F)<<7 | (u>>5&0x7F)<<25
}

// EncodeB encodes a conditional branch: op rs1, rs2, offset. The offset
// is in bytes relative to the branch.
func EncodeB(op Op, rs1, rs2 uint8, offset int32) uint32 {
	e := mustFormat(op, FormatB)
	u := uint32(offset)
	return fixedBits(e) | reg(rs1)<<15 | reg(rs2)<<20 |
		(u>>12&0x1)<<31 | (u>>5&0x3F)<<25 |
		(u>>1&0xF)<<8 | (u>>11&0x1)<<7
}

// EncodeU encodes lui or auipc. imm is the full 32-bit value whose upper
// 20 bits are placed in the instruction.
func EncodeU(op Op, rd uint8, imm int32) uint32 {
	e := mustFormat(op, FormatU)
	return fixedBits(e) | reg(rd)<<7 | uint32(imm)&0xFFFFF000
}

// EncodeJ encodes jal rd, offset. The offset is in bytes relative to the jump.
func EncodeJ(op Op, rd uint8, offset int32) uint32 {
	e := mustFormat(op, FormatJ)
	u := uint32(offset)
	return fixedBits(e) | reg(rd)<<7 |
		(u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 |
		(u>>11&0x1)<<20 | (u>>12&0xFF)<<12
}

// NOP returns the canonical no-op, addi x0, x0, 0.
func NOP() uint32 {
	return EncodeI(OpADDI, 0, 0, 0)
}
