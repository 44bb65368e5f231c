package emu

// LoadStoreUnit implements RV32 loads and stores on a Memory.
type LoadStoreUnit struct {
	memory *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given memory.
func NewLoadStoreUnit(memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{memory: memory}
}

// Load reads size (1, 2 or 4) bytes at addr and extends them to 32 bits,
// sign-extending when signExtend is set (lb, lh) and zero-extending
// otherwise (lbu, lhu).
func (lsu *LoadStoreUnit) Load(addr uint32, size uint8, signExtend bool) (int32, error) {
	raw, err := lsu.memory.Read(addr, int(size))
	if err != nil {
		return 0, err
	}

	switch {
	case size == 1 && signExtend:
		return int32(int8(raw)), nil
	case size == 2 && signExtend:
		return int32(int16(raw)), nil
	default:
		return int32(raw), nil
	}
}

// Store writes the low size (1, 2 or 4) bytes of value at addr.
func (lsu *LoadStoreUnit) Store(addr uint32, size uint8, value int32) error {
	return lsu.memory.Write(addr, int(size), uint32(value))
}
