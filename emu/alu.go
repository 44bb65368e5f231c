package emu

import (
	"fmt"
	"math"

	"github.com/sarchlab/rv5sim/insts"
)

// ALU implements RV32I/M integer arithmetic and logic operations.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute applies op to a and b. The shift amount is the low 5 bits of b.
// Compute panics on a value outside the ALUOp set.
func (a *ALU) Compute(op insts.ALUOp, x, y int32) int32 {
	shamt := uint32(y) & 0x1F

	switch op {
	case insts.ALUAdd:
		return x + y
	case insts.ALUSub:
		return x - y
	case insts.ALUAnd:
		return x & y
	case insts.ALUOr:
		return x | y
	case insts.ALUXor:
		return x ^ y
	case insts.ALUSll:
		return x << shamt
	case insts.ALUSrl:
		return int32(uint32(x) >> shamt)
	case insts.ALUSra:
		return x >> shamt
	case insts.ALUSlt:
		return boolToInt32(x < y)
	case insts.ALUSltu:
		return boolToInt32(uint32(x) < uint32(y))
	case insts.ALUMul:
		return x * y
	case insts.ALUMulh:
		return int32((int64(x) * int64(y)) >> 32)
	case insts.ALUMulhsu:
		return int32((int64(x) * int64(uint32(y))) >> 32)
	case insts.ALUMulhu:
		return int32((uint64(uint32(x)) * uint64(uint32(y))) >> 32)
	case insts.ALUDiv:
		return a.div(x, y)
	case insts.ALUDivu:
		if y == 0 {
			return -1 // all ones
		}
		return int32(uint32(x) / uint32(y))
	case insts.ALURem:
		return a.rem(x, y)
	case insts.ALURemu:
		if y == 0 {
			return x
		}
		return int32(uint32(x) % uint32(y))
	case insts.ALUPassB:
		return y
	default:
		panic(fmt.Sprintf("emu: unknown ALU op %d", op))
	}
}

// div is signed division with the RISC-V results for a zero divisor (-1)
// and for MinInt32 / -1 (MinInt32).
func (a *ALU) div(x, y int32) int32 {
	switch {
	case y == 0:
		return -1
	case x == math.MinInt32 && y == -1:
		return math.MinInt32
	default:
		return x / y
	}
}

// rem is signed remainder with the RISC-V results for a zero divisor (the
// dividend) and for MinInt32 % -1 (0).
func (a *ALU) rem(x, y int32) int32 {
	switch {
	case y == 0:
		return x
	case x == math.MinInt32 && y == -1:
		return 0
	default:
		return x % y
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
