package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/timing/config"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

var _ = Describe("Pipeline Stages", func() {
	var (
		regFile    *emu.RegFile
		memory     *emu.Memory
		hazardUnit *pipeline.HazardUnit
		resolver   *pipeline.BranchResolver
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemoryWithSize(4096)
		hazardUnit = pipeline.NewHazardUnit(true)
		resolver = pipeline.NewBranchResolver(0)
	})

	Describe("FetchStage", func() {
		var (
			fetch *pipeline.FetchStage
			ifr   pipeline.IFRegister
		)

		BeforeEach(func() {
			fetch = pipeline.NewFetchStage([]uint32{insts.NOP(), 0x00500093}, 0)
			ifr.Clear()
		})

		It("should fetch sequentially and advance the PC", func() {
			result := fetch.Fetch(&ifr)

			Expect(result.Fetched).To(BeTrue())
			Expect(ifr.Index).To(Equal(0))
			Expect(fetch.PC()).To(Equal(1))

			fetch.Fetch(&ifr)
			Expect(ifr.Index).To(Equal(1))
			Expect(ifr.Word).To(Equal(uint32(0x00500093)))
		})

		It("should emit a bubble past the end of the program", func() {
			fetch.Fetch(&ifr)
			fetch.Fetch(&ifr)
			result := fetch.Fetch(&ifr)

			Expect(result.Fetched).To(BeFalse())
			Expect(ifr.Index).To(Equal(pipeline.Bubble))
			Expect(fetch.PC()).To(Equal(2))
			Expect(fetch.InProgram()).To(BeFalse())
		})

		It("should hold the register and PC for one stall", func() {
			fetch.Fetch(&ifr)
			ifr.Stall = true

			result := fetch.Fetch(&ifr)

			Expect(result.Held).To(BeTrue())
			Expect(ifr.Index).To(Equal(0))
			Expect(ifr.Stall).To(BeFalse())
			Expect(fetch.PC()).To(Equal(1))
		})

		It("should flush then redirect", func() {
			fetch.Fetch(&ifr)
			ifr.Redirect = pipeline.Redirect{State: pipeline.RedirectPendingFlush, Target: 0}

			result := fetch.Fetch(&ifr)
			Expect(result.Flushed).To(BeTrue())
			Expect(ifr.Index).To(Equal(pipeline.Bubble))
			Expect(ifr.Redirect.State).To(Equal(pipeline.RedirectTo))

			result = fetch.Fetch(&ifr)
			Expect(result.Redirected).To(BeTrue())
			Expect(result.Fetched).To(BeTrue())
			Expect(ifr.Index).To(Equal(0))
			Expect(ifr.Redirect.State).To(Equal(pipeline.RedirectNone))
			Expect(fetch.PC()).To(Equal(1))
		})
	})

	Describe("DecodeStage", func() {
		var (
			decode *pipeline.DecodeStage
			ifr    pipeline.IFRegister
			id     pipeline.IDRegister
			ex     pipeline.EXRegister
			mem    pipeline.MEMRegister
		)

		BeforeEach(func() {
			decode = pipeline.NewDecodeStage(regFile, hazardUnit, resolver, config.IllegalBubble)
			ifr.Clear()
			id.Clear()
			ex.Clear()
			mem.Clear()
		})

		It("should pass a bubble through", func() {
			id.Index = 4

			result, err := decode.Decode(&ifr, &ex, &mem, &id)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stalled).To(BeFalse())
			Expect(id.Index).To(Equal(pipeline.Bubble))
		})

		It("should read registers and the immediate", func() {
			regFile.WriteReg(2, 10)
			ifr = pipeline.IFRegister{Index: 0, Word: insts.EncodeI(insts.OpADDI, 1, 2, -3)}

			_, err := decode.Decode(&ifr, &ex, &mem, &id)

			Expect(err).NotTo(HaveOccurred())
			Expect(id.Index).To(Equal(0))
			Expect(id.Rd).To(Equal(uint8(1)))
			Expect(id.Rs1Value).To(Equal(int32(10)))
			Expect(id.Imm).To(Equal(int32(-3)))
			Expect(id.Control.RegWrite).To(BeTrue())
			Expect(id.Control.ALUSrc).To(BeTrue())
		})

		It("should stall on a load in EX and count down", func() {
			ex = pipeline.EXRegister{Index: 0, Rd: 1,
				Control: pipeline.Control{RegWrite: true, MemRead: true, MemToReg: true}}
			ifr = pipeline.IFRegister{Index: 1, Word: insts.EncodeR(insts.OpADD, 3, 1, 1)}

			result, _ := decode.Decode(&ifr, &ex, &mem, &id)
			Expect(result.Stalled).To(BeTrue())
			Expect(result.LoadUse).To(BeTrue())
			Expect(id.Index).To(Equal(pipeline.Bubble))
			Expect(id.Hazard).To(Equal(pipeline.HazardAwaitTwo))
			Expect(ifr.Stall).To(BeTrue())

			ifr.Stall = false
			ex.Clear()
			result, _ = decode.Decode(&ifr, &ex, &mem, &id)
			Expect(result.Stalled).To(BeTrue())
			Expect(id.Hazard).To(Equal(pipeline.HazardAwaitOne))

			ifr.Stall = false
			regFile.WriteReg(1, 7)
			result, _ = decode.Decode(&ifr, &ex, &mem, &id)
			Expect(result.Stalled).To(BeFalse())
			Expect(id.Index).To(Equal(1))
			Expect(id.Rs1Value).To(Equal(int32(7)))
		})

		It("should forward an ALU result from MEM", func() {
			mem = pipeline.MEMRegister{Index: 0, Rd: 1, ALUResult: 5,
				Control: pipeline.Control{RegWrite: true}}
			ifr = pipeline.IFRegister{Index: 1, Word: insts.EncodeR(insts.OpADD, 4, 1, 5)}
			regFile.WriteReg(5, 10)

			result, _ := decode.Decode(&ifr, &ex, &mem, &id)

			Expect(result.Stalled).To(BeFalse())
			Expect(result.Forwards).To(Equal(1))
			Expect(id.Rs1Value).To(Equal(int32(5)))
			Expect(id.Rs2Value).To(Equal(int32(10)))
		})

		It("should resolve a taken branch and signal fetch", func() {
			ifr = pipeline.IFRegister{Index: 2, Word: insts.EncodeB(insts.OpBEQ, 0, 0, 8)}

			result, _ := decode.Decode(&ifr, &ex, &mem, &id)

			Expect(result.Redirect.State).To(Equal(pipeline.RedirectPendingFlush))
			Expect(ifr.Redirect).To(Equal(pipeline.Redirect{State: pipeline.RedirectPendingFlush, Target: 4}))
		})

		It("should flow an illegal word as a no-op", func() {
			ifr = pipeline.IFRegister{Index: 3, Word: 0xFFFFFFFF}

			result, err := decode.Decode(&ifr, &ex, &mem, &id)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Illegal).To(BeTrue())
			Expect(id.Index).To(Equal(3))
			Expect(id.Illegal).To(BeTrue())
			Expect(id.Control).To(Equal(pipeline.Control{}))
		})

		It("should fail on an illegal word under the abort policy", func() {
			decode = pipeline.NewDecodeStage(regFile, hazardUnit, resolver, config.IllegalAbort)
			ifr = pipeline.IFRegister{Index: 3, Word: 0xFFFFFFFF}

			_, err := decode.Decode(&ifr, &ex, &mem, &id)

			Expect(err).To(MatchError(pipeline.ErrIllegalInstruction))
		})
	})

	Describe("ExecuteStage", func() {
		var (
			execute *pipeline.ExecuteStage
			id      pipeline.IDRegister
			ex      pipeline.EXRegister
			mem     pipeline.MEMRegister
			wb      pipeline.WBRegister
		)

		BeforeEach(func() {
			execute = pipeline.NewExecuteStage(hazardUnit, resolver)
			id.Clear()
			ex.Clear()
			mem.Clear()
			wb.Clear()
		})

		It("should compute register-register results", func() {
			id = pipeline.IDRegister{Index: 0, Rs1: 1, Rs2: 2, Rd: 3, Rs1Value: 6, Rs2Value: 7,
				Control: pipeline.Control{RegWrite: true, ALUOp: insts.ALUMul}}

			execute.Execute(&id, &mem, &wb, &ex)

			Expect(ex.Index).To(Equal(0))
			Expect(ex.ALUResult).To(Equal(int32(42)))
			Expect(ex.Zero).To(BeFalse())
		})

		It("should set the zero flag", func() {
			id = pipeline.IDRegister{Index: 0, Rs1: 1, Rs2: 2, Rs1Value: 6, Rs2Value: 6,
				Control: pipeline.Control{ALUOp: insts.ALUSub}}

			execute.Execute(&id, &mem, &wb, &ex)

			Expect(ex.Zero).To(BeTrue())
		})

		It("should use the PC for auipc", func() {
			id = pipeline.IDRegister{Index: 2, Rs1: insts.RegUnused, Rs2: insts.RegUnused, Imm: 0x1000,
				Control: pipeline.Control{ALUOp: insts.ALUAdd, ALUSrc: true, UsesPC: true}}

			execute.Execute(&id, &mem, &wb, &ex)

			Expect(ex.ALUResult).To(Equal(int32(0x1008)))
		})

		It("should produce the link value for jumps", func() {
			id = pipeline.IDRegister{Index: 5, Rs1: insts.RegUnused, Rs2: insts.RegUnused, Rd: 1,
				Control: pipeline.Control{RegWrite: true, Jump: insts.JumpJAL}}

			execute.Execute(&id, &mem, &wb, &ex)

			Expect(ex.ALUResult).To(Equal(int32(24)))
		})

		It("should forward from WB over the decode value", func() {
			id = pipeline.IDRegister{Index: 1, Rs1: 1, Rs2: insts.RegUnused, Rs1Value: 0, Imm: 1,
				Control: pipeline.Control{ALUOp: insts.ALUAdd, ALUSrc: true}}
			wb = pipeline.WBRegister{Index: 0, Rd: 1, Value: 9, Control: pipeline.Control{RegWrite: true}}

			execute.Execute(&id, &mem, &wb, &ex)

			Expect(ex.ALUResult).To(Equal(int32(10)))
		})

		It("should carry a stall bubble", func() {
			id.Stall = true

			execute.Execute(&id, &mem, &wb, &ex)

			Expect(ex.Index).To(Equal(pipeline.Bubble))
			Expect(ex.Stall).To(BeTrue())
		})
	})

	Describe("MemoryStage", func() {
		var (
			memStage *pipeline.MemoryStage
			ex       pipeline.EXRegister
			mem      pipeline.MEMRegister
			wb       pipeline.WBRegister
		)

		BeforeEach(func() {
			memStage = pipeline.NewMemoryStage(memory, hazardUnit)
			ex.Clear()
			mem.Clear()
			wb.Clear()
		})

		It("should load with sign extension", func() {
			Expect(memory.Write8(0x10, 0xFF)).To(Succeed())
			ex = pipeline.EXRegister{Index: 0, ALUResult: 0x10, Rd: 1,
				Control: pipeline.Control{RegWrite: true, MemRead: true, MemToReg: true, MemSize: 1, MemSignExtend: true}}

			Expect(memStage.Access(&ex, &wb, &mem)).To(Succeed())

			Expect(mem.LoadData).To(Equal(int32(-1)))
			Expect(mem.Result()).To(Equal(int32(-1)))
		})

		It("should store forwarded data from WB", func() {
			ex = pipeline.EXRegister{Index: 1, ALUResult: 0x20, StoreData: 0, StoreDataReg: 2,
				Control: pipeline.Control{MemWrite: true, MemSize: 4}}
			wb = pipeline.WBRegister{Index: 0, Rd: 2, Value: 1234, Control: pipeline.Control{RegWrite: true}}

			Expect(memStage.Access(&ex, &wb, &mem)).To(Succeed())

			v, err := memory.Read32(0x20)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(uint32(1234)))
		})

		It("should fail fast out of range", func() {
			ex = pipeline.EXRegister{Index: 0, ALUResult: 8192,
				Control: pipeline.Control{MemRead: true, MemSize: 4}}

			err := memStage.Access(&ex, &wb, &mem)

			Expect(err).To(MatchError(emu.ErrAddressOutOfRange))
		})
	})

	Describe("WritebackStage", func() {
		var (
			writeback *pipeline.WritebackStage
			mem       pipeline.MEMRegister
			wb        pipeline.WBRegister
		)

		BeforeEach(func() {
			writeback = pipeline.NewWritebackStage(regFile)
			mem.Clear()
			wb.Clear()
		})

		It("should commit the result", func() {
			mem = pipeline.MEMRegister{Index: 0, Rd: 3, ALUResult: 11, Control: pipeline.Control{RegWrite: true}}

			Expect(writeback.Writeback(&mem, &wb)).To(BeTrue())
			Expect(regFile.ReadReg(3)).To(Equal(int32(11)))
			Expect(wb.Value).To(Equal(int32(11)))
		})

		It("should drop writes to register 0", func() {
			mem = pipeline.MEMRegister{Index: 0, Rd: 0, ALUResult: 11, Control: pipeline.Control{RegWrite: true}}

			writeback.Writeback(&mem, &wb)

			Expect(regFile.ReadReg(0)).To(Equal(int32(0)))
		})

		It("should not retire a bubble", func() {
			Expect(writeback.Writeback(&mem, &wb)).To(BeFalse())
			Expect(wb.Index).To(Equal(pipeline.Bubble))
		})
	})
})
