// Package loader reads RV32 programs from text listings, raw binaries and
// ELF executables.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/rv5sim/insts"
)

var (
	// ErrEmptyProgram is returned when a source holds no instructions.
	ErrEmptyProgram = errors.New("program has no instructions")

	// ErrMalformedLine is returned for a text line without a valid
	// instruction word.
	ErrMalformedLine = errors.New("malformed program line")

	// ErrInvalidBinary is returned for raw or ELF binaries that cannot hold
	// an RV32 program.
	ErrInvalidBinary = errors.New("invalid program binary")
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Instruction is one program instruction. It is immutable after loading.
type Instruction struct {
	// Index is the instruction's position in the program; its byte
	// address is Index*4.
	Index int
	// Word is the raw 32-bit encoding.
	Word uint32
	// Text is the printable form used in reports.
	Text string
}

// Segment is initial data memory content.
type Segment struct {
	// Addr is the byte address of the first byte.
	Addr uint32
	// Data contains the segment contents; bytes past len(Data) up to
	// MemSize are zero.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
}

// Program is a loaded program ready for simulation.
type Program struct {
	// Path is the file the program came from, empty for in-memory programs.
	Path string
	// Instructions holds the program in index order.
	Instructions []Instruction
	// Entry is the index of the first instruction to execute.
	Entry int
	// Base is the byte address of instruction 0. Text listings and raw
	// binaries are placed at 0; ELF code keeps its load address.
	Base uint32
	// Segments contains data to place in memory before the run.
	Segments []Segment
}

// Len returns the number of instructions.
func (p *Program) Len() int {
	return len(p.Instructions)
}

// Words returns the instruction encodings in index order.
func (p *Program) Words() []uint32 {
	words := make([]uint32, len(p.Instructions))
	for i, inst := range p.Instructions {
		words[i] = inst.Word
	}
	return words
}

// FromWords builds a program from instruction encodings, naming each
// instruction by its disassembly.
func FromWords(words ...uint32) *Program {
	decoder := insts.NewDecoder()
	prog := &Program{Instructions: make([]Instruction, len(words))}

	for i, w := range words {
		prog.Instructions[i] = Instruction{
			Index: i,
			Word:  w,
			Text:  decoder.Decode(w).String(),
		}
	}

	return prog
}

// Load reads a program from path. ELF files are recognised by their magic
// number, files ending in .bin are raw little-endian words and everything
// else is parsed as a text listing.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	var prog *Program
	switch {
	case bytes.HasPrefix(data, elfMagic):
		prog, err = LoadELF(path)
	case strings.EqualFold(filepath.Ext(path), ".bin"):
		prog, err = ParseBinary(data)
	default:
		prog, err = ParseText(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	prog.Path = path
	return prog, nil
}
