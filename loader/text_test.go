package loader_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/loader"
)

var _ = Describe("Text listings", func() {
	It("should parse address, word and mnemonic columns", func() {
		prog, err := loader.ParseText(strings.NewReader(
			"0: 00500093 addi x1,x0,5\n" +
				"4: 002081b3 add x3,x1,x2\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Len()).To(Equal(2))
		Expect(prog.Instructions[0]).To(Equal(loader.Instruction{
			Index: 0, Word: 0x00500093, Text: "addi x1,x0,5",
		}))
		Expect(prog.Instructions[1].Index).To(Equal(1))
		Expect(prog.Words()).To(Equal([]uint32{0x00500093, 0x002081B3}))
	})

	It("should accept lines without an address column", func() {
		prog, err := loader.ParseText(strings.NewReader("00500093 addi x1,x0,5\n0x002081b3\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Instructions[0].Text).To(Equal("addi x1,x0,5"))
		Expect(prog.Instructions[1].Word).To(Equal(uint32(0x002081B3)))
		Expect(prog.Instructions[1].Text).To(Equal("add x3, x1, x2"))
	})

	It("should skip blank and comment lines", func() {
		prog, err := loader.ParseText(strings.NewReader(
			"# header\n\n   \n8 00000013 nop\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Len()).To(Equal(1))
		Expect(prog.Instructions[0].Index).To(Equal(0))
	})

	It("should report malformed lines with their number", func() {
		_, err := loader.ParseText(strings.NewReader("00000013\n0: zzzz addi\n"))

		Expect(err).To(MatchError(loader.ErrMalformedLine))
		Expect(err.Error()).To(ContainSubstring("line 2"))
	})

	It("should reject a listing without instructions", func() {
		_, err := loader.ParseText(strings.NewReader("# only a comment\n"))
		Expect(err).To(MatchError(loader.ErrEmptyProgram))
	})
})

var _ = Describe("Raw binaries", func() {
	It("should read little-endian words", func() {
		prog, err := loader.ParseBinary([]byte{0x93, 0x00, 0x50, 0x00})

		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Words()).To(Equal([]uint32{0x00500093}))
		Expect(prog.Instructions[0].Text).To(Equal("addi x1, x0, 5"))
	})

	It("should reject a truncated word", func() {
		_, err := loader.ParseBinary([]byte{0x93, 0x00})
		Expect(err).To(MatchError(loader.ErrInvalidBinary))
	})
})

var _ = Describe("Load", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	It("should dispatch on the .bin extension", func() {
		path := filepath.Join(tempDir, "prog.bin")
		Expect(os.WriteFile(path, []byte{0x13, 0x00, 0x00, 0x00}, 0644)).To(Succeed())

		prog, err := loader.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Path).To(Equal(path))
		Expect(prog.Words()).To(Equal([]uint32{insts.NOP()}))
	})

	It("should parse other files as text", func() {
		path := filepath.Join(tempDir, "prog.txt")
		Expect(os.WriteFile(path, []byte("0: 00000013 nop\n"), 0644)).To(Succeed())

		prog, err := loader.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Instructions[0].Text).To(Equal("nop"))
	})

	It("should wrap file errors", func() {
		_, err := loader.Load(filepath.Join(tempDir, "missing.txt"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("failed to read program"))
	})

	It("should build in-memory programs", func() {
		prog := loader.FromWords(insts.NOP(), 0xFFFFFFFF)
		Expect(prog.Len()).To(Equal(2))
		Expect(prog.Instructions[1].Text).To(Equal("unknown 0xffffffff"))
	})
})
