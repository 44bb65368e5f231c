package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/rv5sim/emu"
)

// errBadInit is returned for a malformed -reg or -mem value.
var errBadInit = errors.New("malformed initialiser")

type regInit struct {
	reg   uint8
	value int32
}

// regFlag collects repeated -reg xN=V values.
type regFlag []regInit

func (f *regFlag) String() string {
	parts := make([]string, len(*f))
	for i, r := range *f {
		parts[i] = fmt.Sprintf("x%d=%d", r.reg, r.value)
	}
	return strings.Join(parts, ",")
}

func (f *regFlag) Set(s string) error {
	r, err := parseRegInit(s)
	if err != nil {
		return err
	}
	*f = append(*f, r)
	return nil
}

func (f regFlag) apply(regFile *emu.RegFile) {
	for _, r := range f {
		regFile.WriteReg(r.reg, r.value)
	}
}

func parseRegInit(s string) (regInit, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return regInit{}, fmt.Errorf("%w: %q, want xN=value", errBadInit, s)
	}

	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "x")
	reg, err := strconv.ParseUint(name, 10, 8)
	if err != nil || reg >= emu.NumRegs {
		return regInit{}, fmt.Errorf("%w: register %q", errBadInit, name)
	}
	if reg == 0 {
		return regInit{}, fmt.Errorf("%w: x0 is hardwired to zero", errBadInit)
	}

	v, err := parseWord(value)
	if err != nil {
		return regInit{}, err
	}

	return regInit{reg: uint8(reg), value: int32(v)}, nil
}

type memInit struct {
	addr  uint32
	value uint32
}

// memFlag collects repeated -mem ADDR=V values, each a 32-bit word.
type memFlag []memInit

func (f *memFlag) String() string {
	parts := make([]string, len(*f))
	for i, m := range *f {
		parts[i] = fmt.Sprintf("0x%x=%d", m.addr, int32(m.value))
	}
	return strings.Join(parts, ",")
}

func (f *memFlag) Set(s string) error {
	m, err := parseMemInit(s)
	if err != nil {
		return err
	}
	*f = append(*f, m)
	return nil
}

func (f memFlag) apply(memory *emu.Memory) error {
	for _, m := range f {
		if err := memory.Write32(m.addr, m.value); err != nil {
			return fmt.Errorf("-mem 0x%x: %w", m.addr, err)
		}
	}
	return nil
}

func parseMemInit(s string) (memInit, error) {
	addr, value, ok := strings.Cut(s, "=")
	if !ok {
		return memInit{}, fmt.Errorf("%w: %q, want addr=value", errBadInit, s)
	}

	a, err := strconv.ParseUint(strings.TrimSpace(addr), 0, 32)
	if err != nil {
		return memInit{}, fmt.Errorf("%w: address %q", errBadInit, addr)
	}

	v, err := parseWord(value)
	if err != nil {
		return memInit{}, err
	}

	return memInit{addr: uint32(a), value: v}, nil
}

// parseWord accepts a signed or unsigned 32-bit value in any base
// strconv understands (0x.., 0b.., decimal).
func parseWord(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil || v < -1<<31 || v > 1<<32-1 {
		return 0, fmt.Errorf("%w: value %q is not a 32-bit word", errBadInit, s)
	}
	return uint32(v), nil
}
