package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/loader"
)

const (
	machineRISCV  = 243
	machineX86_64 = 62
)

var _ = Describe("ELF Loader", func() {
	var (
		tempDir string
		code    []byte
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())

		code = wordsToBytes(
			insts.NOP(),
			insts.EncodeI(insts.OpADDI, 1, 0, 42),
			insts.EncodeI(insts.OpJALR, 0, 1, 0),
		)
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("should run pc-relative data accesses at the loaded addresses", func() {
		elfPath := filepath.Join(tempDir, "la.elf")
		code := wordsToBytes(
			insts.EncodeU(insts.OpAUIPC, 1, 0x1000), // la x1, 0x2000
			insts.EncodeI(insts.OpLW, 2, 1, 0),
		)
		createMinimalRV32ELF(elfPath, machineRISCV, 0x1000, 0x1000, code,
			0x2000, []byte{7, 0, 0, 0}, 4)

		prog, err := loader.LoadELF(elfPath)
		Expect(err).NotTo(HaveOccurred())

		memory := emu.NewMemoryWithSize(0x3000)
		for _, seg := range prog.Segments {
			Expect(memory.LoadBytes(seg.Addr, seg.Data)).To(Succeed())
		}

		e := emu.NewEmulator(prog.Words(),
			emu.WithMemory(memory),
			emu.WithEntry(prog.Entry),
			emu.WithBase(prog.Base),
		)
		Expect(e.Run()).To(Succeed())
		Expect(e.RegFile().ReadReg(1)).To(Equal(int32(0x2000)))
		Expect(e.RegFile().ReadReg(2)).To(Equal(int32(7)))
	})

	Context("with a valid RV32 ELF binary", func() {
		var elfPath string

		BeforeEach(func() {
			elfPath = filepath.Join(tempDir, "test.elf")
			createMinimalRV32ELF(elfPath, machineRISCV, 0x1000, 0x1004, code,
				0x8000, []byte{1, 2, 3, 4}, 16)
		})

		It("should load the code as instructions", func() {
			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Len()).To(Equal(3))
			Expect(prog.Instructions[1].Text).To(Equal("addi x1, x0, 42"))
		})

		It("should translate the entry point to an index", func() {
			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Entry).To(Equal(1))
		})

		It("should keep the code load address as the base", func() {
			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Base).To(Equal(uint32(0x1000)))
		})

		It("should return non-executable segments as data", func() {
			prog, err := loader.LoadELF(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Addr).To(Equal(uint32(0x8000)))
			Expect(prog.Segments[0].Data).To(Equal([]byte{1, 2, 3, 4}))
			Expect(prog.Segments[0].MemSize).To(Equal(uint32(16)))
		})

		It("should be detected by Load", func() {
			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Path).To(Equal(elfPath))
			Expect(prog.Len()).To(Equal(3))
		})
	})

	Context("with an invalid file", func() {
		It("should return error for non-existent file", func() {
			_, err := loader.LoadELF(filepath.Join(tempDir, "nope.elf"))
			Expect(err).To(HaveOccurred())
		})

		It("should return error for non-ELF file", func() {
			path := filepath.Join(tempDir, "text.elf")
			Expect(os.WriteFile(path, []byte("not an elf"), 0644)).To(Succeed())

			_, err := loader.LoadELF(path)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with a non-RISC-V ELF", func() {
		It("should reject the machine type", func() {
			path := filepath.Join(tempDir, "x86.elf")
			createMinimalRV32ELF(path, machineX86_64, 0x1000, 0x1000, code, 0, nil, 0)

			_, err := loader.LoadELF(path)
			Expect(err).To(MatchError(loader.ErrInvalidBinary))
		})
	})

	Context("with an entry outside every executable segment", func() {
		It("should fail", func() {
			path := filepath.Join(tempDir, "noentry.elf")
			createMinimalRV32ELF(path, machineRISCV, 0x1000, 0x9000, code, 0, nil, 0)

			_, err := loader.LoadELF(path)
			Expect(err).To(MatchError(loader.ErrInvalidBinary))
		})
	})
})

func wordsToBytes(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// createMinimalRV32ELF writes an ELF32 executable with one R+X code segment
// and, when data is non-nil, one R+W data segment. It has no section headers.
func createMinimalRV32ELF(
	path string,
	machine uint16,
	codeAddr, entryPoint uint32,
	code []byte,
	dataAddr uint32,
	data []byte,
	dataMemSize uint32,
) {
	phnum := 1
	if data != nil {
		phnum = 2
	}
	codeOffset := uint32(52 + 32*phnum)
	dataOffset := codeOffset + uint32(len(code))

	// ELF Header (52 bytes)
	elfHeader := make([]byte, 52)
	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	// Class: 32-bit
	elfHeader[4] = 1
	// Data: little endian
	elfHeader[5] = 1
	// Version
	elfHeader[6] = 1
	// Type: executable
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)
	binary.LittleEndian.PutUint16(elfHeader[18:20], machine)
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)
	binary.LittleEndian.PutUint32(elfHeader[24:28], entryPoint)
	// Program header offset (right after ELF header)
	binary.LittleEndian.PutUint32(elfHeader[28:32], 52)
	// Section header offset (none)
	binary.LittleEndian.PutUint32(elfHeader[32:36], 0)
	// ELF header size
	binary.LittleEndian.PutUint16(elfHeader[40:42], 52)
	// Program header entry size
	binary.LittleEndian.PutUint16(elfHeader[42:44], 32)
	binary.LittleEndian.PutUint16(elfHeader[44:46], uint16(phnum))
	// Section header entry size
	binary.LittleEndian.PutUint16(elfHeader[46:48], 40)

	file := append([]byte{}, elfHeader...)
	file = append(file, progHeader32(codeOffset, codeAddr, uint32(len(code)), uint32(len(code)), 0x5)...)
	if data != nil {
		file = append(file, progHeader32(dataOffset, dataAddr, uint32(len(data)), dataMemSize, 0x6)...)
	}
	file = append(file, code...)
	file = append(file, data...)

	Expect(os.WriteFile(path, file, 0644)).To(Succeed())
}

// progHeader32 builds a PT_LOAD program header.
func progHeader32(offset, vaddr, filesz, memsz, flags uint32) []byte {
	h := make([]byte, 32)
	binary.LittleEndian.PutUint32(h[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(h[4:8], offset)
	binary.LittleEndian.PutUint32(h[8:12], vaddr)
	binary.LittleEndian.PutUint32(h[12:16], vaddr)
	binary.LittleEndian.PutUint32(h[16:20], filesz)
	binary.LittleEndian.PutUint32(h[20:24], memsz)
	binary.LittleEndian.PutUint32(h[24:28], flags)
	binary.LittleEndian.PutUint32(h[28:32], 0x1000)
	return h
}
