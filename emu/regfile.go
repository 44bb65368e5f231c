// Package emu provides functional RV32I/M emulation.
package emu

// NumRegs is the number of integer registers.
const NumRegs = 32

// RegFile represents the RV32 integer register file.
// It contains 32 registers x0-x31; x0 is hard-wired to zero.
type RegFile struct {
	// X holds the register values. X[0] is never written.
	X [NumRegs]int32
}

// ReadReg reads a register value. Register 0 returns 0.
// Registers >= 32 (e.g., the 0xFF unused-operand sentinel) also return 0.
func (r *RegFile) ReadReg(reg uint8) int32 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a value to a register. Writes to register 0 and to
// out-of-range registers are ignored.
func (r *RegFile) WriteReg(reg uint8, value int32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.X[reg] = value
}

// ReadRegU reads a register as an unsigned value.
func (r *RegFile) ReadRegU(reg uint8) uint32 {
	return uint32(r.ReadReg(reg))
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.X = [NumRegs]int32{}
}

// Snapshot returns a copy of all register values.
func (r *RegFile) Snapshot() [NumRegs]int32 {
	return r.X
}
