package benchmarks

import (
	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
)

// ResultReg is the register a benchmark leaves its result in (a0).
const ResultReg = 10

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUseChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopSum(),
		divideEdgeCases(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick validation:
// loop, matrix multiply, branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSum(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// writeWords stores words at consecutive word addresses starting at addr.
func writeWords(memory *emu.Memory, addr uint32, words ...uint32) error {
	for i, w := range words {
		if err := memory.Write32(addr+uint32(i)*4, w); err != nil {
			return err
		}
	}
	return nil
}

func addi(rd, rs1 uint8, imm int32) uint32 { return insts.EncodeI(insts.OpADDI, rd, rs1, imm) }
func lw(rd, rs1 uint8, imm int32) uint32   { return insts.EncodeI(insts.OpLW, rd, rs1, imm) }
func sw(rs2, rs1 uint8, imm int32) uint32  { return insts.EncodeS(insts.OpSW, rs2, rs1, imm) }

func rtype(op insts.Op) func(rd, rs1, rs2 uint8) uint32 {
	return func(rd, rs1, rs2 uint8) uint32 { return insts.EncodeR(op, rd, rs1, rs2) }
}

var (
	add = rtype(insts.OpADD)
	sub = rtype(insts.OpSUB)
	mul = rtype(insts.OpMUL)
)

// 1. Arithmetic Sequential - ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	program := make([]uint32, 0, 20)
	for i := 0; i < 4; i++ {
		for rd := uint8(10); rd < 15; rd++ {
			program = append(program, addi(rd, rd, 1))
		}
	}

	return Benchmark{
		Name:           "arithmetic_sequential",
		Description:    "20 independent ADDIs over 5 registers - no hazards, CPI approaches 1",
		Program:        program,
		ExpectedResult: 4,
	}
}

// 2. Dependency Chain - every instruction needs its predecessor's result
func dependencyChain() Benchmark {
	return Benchmark{
		Name:           "dependency_chain",
		Description:    "20 dependent ADDIs (a0 = a0 + 1) - one decode stall per link",
		Program:        buildDependencyChain(20),
		ExpectedResult: 20,
	}
}

func buildDependencyChain(n int) []uint32 {
	program := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		program = append(program, addi(ResultReg, ResultReg, 1))
	}
	return program
}

// 3. Load-Use Chain - pointer chasing, each load feeds the next address
func loadUseChain() Benchmark {
	return Benchmark{
		Name:        "load_use_chain",
		Description: "4-step pointer chase - two load-use stall cycles per load",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) error {
			regFile.WriteReg(1, 0x200)
			return writeWords(memory, 0x200, 0x204, 0x208, 0x20C, 7)
		},
		Program: []uint32{
			lw(1, 1, 0),
			lw(1, 1, 0),
			lw(1, 1, 0),
			lw(ResultReg, 1, 0),
		},
		ExpectedResult: 7,
	}
}

// 4. Memory Sequential - store/load pairs to sequential addresses
func memorySequential() Benchmark {
	program := []uint32{addi(ResultReg, 0, 42)}
	for i := int32(0); i < 10; i++ {
		program = append(program, sw(ResultReg, 1, i*4), lw(ResultReg, 1, i*4))
	}

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to sequential words - store data waits on each load",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) error {
			regFile.WriteReg(1, 0x800)
			return nil
		},
		Program:        program,
		ExpectedResult: 42,
	}
}

// 5. Function Calls - jal/jalr pairs
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "5 calls to a one-instruction function - two flushes per call",
		Program: []uint32{
			// main: call add_one 5 times, then jump past the end
			insts.EncodeJ(insts.OpJAL, 1, 24),
			insts.EncodeJ(insts.OpJAL, 1, 20),
			insts.EncodeJ(insts.OpJAL, 1, 16),
			insts.EncodeJ(insts.OpJAL, 1, 12),
			insts.EncodeJ(insts.OpJAL, 1, 8),
			insts.EncodeJ(insts.OpJAL, 0, 12),

			// add_one
			addi(ResultReg, ResultReg, 1),
			insts.EncodeI(insts.OpJALR, 0, 1, 0),
		},
		ExpectedResult: 5,
	}
}

// 6. Branch Taken - forward branches that always skip one instruction
func branchTaken() Benchmark {
	program := make([]uint32, 0, 15)
	for i := 0; i < 5; i++ {
		program = append(program,
			insts.EncodeB(insts.OpBEQ, 0, 0, 8), // skip next
			addi(ResultReg, ResultReg, 100),     // skipped
			addi(ResultReg, ResultReg, 1),
		)
	}

	return Benchmark{
		Name:           "branch_taken",
		Description:    "5 taken BEQs - one flushed fetch each",
		Program:        program,
		ExpectedResult: 5,
	}
}

// 7. Mixed Operations - the RV32I/M ALU operations back to back
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "Chain of ADD, SUB, MUL, AND, OR, XOR, SLLI - mixed forwarding and stalls",
		Program: []uint32{
			addi(1, 0, 12),                            // x1 = 12
			addi(2, 0, 5),                             // x2 = 5
			add(3, 1, 2),                              // x3 = 17
			sub(4, 1, 2),                              // x4 = 7
			mul(5, 3, 4),                              // x5 = 119
			insts.EncodeR(insts.OpAND, 6, 5, 1),       // x6 = 4
			insts.EncodeR(insts.OpOR, 7, 6, 2),        // x7 = 5
			insts.EncodeR(insts.OpXOR, 8, 7, 3),       // x8 = 20
			insts.EncodeI(insts.OpSLLI, 9, 8, 2),      // x9 = 80
			add(ResultReg, 9, 5),                      // a0 = 199
			insts.EncodeR(insts.OpSLT, 11, 4, 3),      // x11 = 1
			insts.EncodeI(insts.OpSRAI, 12, 11, 1),    // x12 = 0
			insts.EncodeU(insts.OpLUI, 13, 0x7000),    // x13 = 0x7000
			insts.EncodeI(insts.OpXORI, 14, 13, -1),   // x14 = ^0x7000
			insts.EncodeR(insts.OpMULHU, 15, 14, 14),  // high word
		},
		ExpectedResult: 199,
	}
}

// 8. Matrix Multiply - 2x2 integer matrix product through memory
func matrixMultiply2x2() Benchmark {
	const a, b, c = 0x100, 0x110, 0x120

	return Benchmark{
		Name:        "matrix_multiply",
		Description: "2x2 matrix product C = A*B - loads, MULs and stores",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) error {
			if err := writeWords(memory, a, 1, 2, 3, 4); err != nil {
				return err
			}
			return writeWords(memory, b, 5, 6, 7, 8)
		},
		Program: []uint32{
			lw(1, 0, a), lw(2, 0, a+4), lw(3, 0, a+8), lw(4, 0, a+12),
			lw(5, 0, b), lw(6, 0, b+4), lw(7, 0, b+8), lw(8, 0, b+12),

			mul(9, 1, 5), mul(11, 2, 7), add(12, 9, 11), sw(12, 0, c), // 19
			mul(9, 1, 6), mul(11, 2, 8), add(12, 9, 11), sw(12, 0, c+4), // 22
			mul(9, 3, 5), mul(11, 4, 7), add(12, 9, 11), sw(12, 0, c+8), // 43
			mul(9, 3, 6), mul(11, 4, 8), add(ResultReg, 9, 11), sw(ResultReg, 0, c+12), // 50
		},
		ExpectedResult: 50,
	}
}

// 9. Loop Sum - a counted loop with a backward branch
func loopSum() Benchmark {
	return Benchmark{
		Name:        "loop_sum",
		Description: "for i := 10; i > 0; i-- { sum += i } - backward BNE taken 9 times",
		Program: []uint32{
			addi(5, 0, 10),
			add(ResultReg, ResultReg, 5),
			addi(5, 5, -1),
			insts.EncodeB(insts.OpBNE, 5, 0, -8),
		},
		ExpectedResult: 55,
	}
}

// 10. Divide Edge Cases - division by zero and signed overflow
func divideEdgeCases() Benchmark {
	return Benchmark{
		Name:        "divide_edge_cases",
		Description: "DIV/REM by zero and MinInt32 / -1 - results without traps",
		Program: []uint32{
			addi(1, 0, 7),
			insts.EncodeR(insts.OpDIV, 2, 1, 0),   // -1
			insts.EncodeR(insts.OpREM, 3, 1, 0),   // 7
			insts.EncodeU(insts.OpLUI, 4, -1<<31), // MinInt32
			addi(5, 0, -1),
			insts.EncodeR(insts.OpDIV, 6, 4, 5), // MinInt32
			insts.EncodeR(insts.OpREM, 7, 4, 5), // 0
			add(ResultReg, 2, 3),                // 6
			add(ResultReg, ResultReg, 7),        // 6
		},
		ExpectedResult: 6,
	}
}
