package loader

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
)

// LoadELF parses an RV32 ELF executable. The instructions come from the
// .text section, or from the executable segment holding the entry point
// when the file has no section headers. Every other loadable segment is
// returned as initial data.
func LoadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("%w: not a 32-bit ELF file", ErrInvalidBinary)
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: not a RISC-V ELF file (machine type: %v)", ErrInvalidBinary, f.Machine)
	}

	code, codeAddr, err := readCode(f)
	if err != nil {
		return nil, err
	}

	if len(code) < 4 {
		return nil, ErrEmptyProgram
	}

	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}

	prog := FromWords(words...)
	prog.Base = uint32(codeAddr)
	if f.Entry >= codeAddr && f.Entry < codeAddr+uint64(len(code)) {
		prog.Entry = int((f.Entry - codeAddr) / 4)
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Flags&elf.PF_X != 0 {
			continue
		}

		data, err := readSegment(phdr)
		if err != nil {
			return nil, err
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr:    uint32(phdr.Vaddr),
			Data:    data,
			MemSize: uint32(phdr.Memsz),
		})
	}

	return prog, nil
}

// readCode returns the instruction bytes and their load address.
func readCode(f *elf.File) ([]byte, uint64, error) {
	if text := f.Section(".text"); text != nil && text.Type != elf.SHT_NOBITS {
		code, err := text.Data()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read .text: %w", err)
		}
		return code, text.Addr, nil
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Flags&elf.PF_X == 0 {
			continue
		}
		if f.Entry < phdr.Vaddr || f.Entry >= phdr.Vaddr+phdr.Filesz {
			continue
		}

		code, err := readSegment(phdr)
		if err != nil {
			return nil, 0, err
		}
		return code, phdr.Vaddr, nil
	}

	return nil, 0, fmt.Errorf("%w: no executable segment contains entry 0x%x", ErrInvalidBinary, f.Entry)
}

func readSegment(phdr *elf.Prog) ([]byte, error) {
	data := make([]byte, phdr.Filesz)
	if phdr.Filesz == 0 {
		return data, nil
	}

	n, err := phdr.ReadAt(data, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
	}
	if uint64(n) != phdr.Filesz {
		return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
			phdr.Vaddr, n, phdr.Filesz)
	}

	return data, nil
}
