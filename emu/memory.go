package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// DefaultMemorySize is the default data memory capacity in bytes.
const DefaultMemorySize = 2000005

// ErrAddressOutOfRange is returned for an access that touches a byte
// outside the memory.
var ErrAddressOutOfRange = errors.New("address out of range")

// storageUnit is the page size handed to the backing store.
const storageUnit = 4 * mem.KB

// Memory is a flat, byte-addressable, little-endian data memory.
// Multi-byte accesses are decomposed into independent byte accesses, so
// unaligned addresses are allowed as long as every byte is in range.
type Memory struct {
	storage *mem.Storage
	size    uint64
}

// NewMemory creates a zero-initialised memory of DefaultMemorySize bytes.
func NewMemory() *Memory {
	return NewMemoryWithSize(DefaultMemorySize)
}

// NewMemoryWithSize creates a zero-initialised memory of size bytes.
func NewMemoryWithSize(size uint64) *Memory {
	capacity := (size + storageUnit - 1) / storageUnit * storageUnit
	if capacity == 0 {
		capacity = storageUnit
	}

	return &Memory{
		storage: mem.NewStorageWithUnitSize(capacity, storageUnit),
		size:    size,
	}
}

// Size returns the capacity in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

func (m *Memory) check(addr uint32, n int) error {
	if uint64(addr)+uint64(n) > m.size {
		return fmt.Errorf("%w: 0x%x+%d (size %d)", ErrAddressOutOfRange, addr, n, m.size)
	}
	return nil
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}

	data, err := m.storage.Read(uint64(addr), 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read 0x%x: %w", addr, err)
	}
	return data[0], nil
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, value uint8) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}

	if err := m.storage.Write(uint64(addr), []byte{value}); err != nil {
		return fmt.Errorf("failed to write 0x%x: %w", addr, err)
	}
	return nil
}

// Read reads size (1, 2 or 4) bytes little-endian starting at addr.
func (m *Memory) Read(addr uint32, size int) (uint32, error) {
	if err := m.check(addr, size); err != nil {
		return 0, err
	}

	var value uint32
	for i := 0; i < size; i++ {
		b, err := m.Read8(addr + uint32(i))
		if err != nil {
			return 0, err
		}
		value |= uint32(b) << (8 * i)
	}
	return value, nil
}

// Write writes the low size (1, 2 or 4) bytes of value little-endian
// starting at addr.
func (m *Memory) Write(addr uint32, size int, value uint32) error {
	if err := m.check(addr, size); err != nil {
		return err
	}

	for i := 0; i < size; i++ {
		if err := m.Write8(addr+uint32(i), uint8(value>>(8*i))); err != nil {
			return err
		}
	}
	return nil
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint32) (uint16, error) {
	v, err := m.Read(addr, 2)
	return uint16(v), err
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) (uint32, error) {
	return m.Read(addr, 4)
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint32, value uint16) error {
	return m.Write(addr, 2, uint32(value))
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, value uint32) error {
	return m.Write(addr, 4, value)
}

// LoadBytes copies data into memory starting at addr.
func (m *Memory) LoadBytes(addr uint32, data []byte) error {
	if err := m.check(addr, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if err := m.storage.Write(uint64(addr), data); err != nil {
		return fmt.Errorf("failed to load %d bytes at 0x%x: %w", len(data), addr, err)
	}
	return nil
}

// Bytes returns a copy of n bytes starting at addr.
func (m *Memory) Bytes(addr uint32, n int) ([]byte, error) {
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}

	data, err := m.storage.Read(uint64(addr), uint64(n))
	if err != nil {
		return nil, fmt.Errorf("failed to read %d bytes at 0x%x: %w", n, addr, err)
	}

	out := make([]byte, n)
	copy(out, data)
	return out, nil
}
