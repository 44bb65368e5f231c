package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/insts"
	"github.com/sarchlab/rv5sim/timing/pipeline"
)

var _ = Describe("HazardUnit", func() {
	var (
		hazardUnit *pipeline.HazardUnit
		none       pipeline.Producer
	)

	aluWriter := func(rd uint8, value int32) pipeline.Producer {
		return pipeline.Producer{Valid: true, Rd: rd, RegWrite: true, Value: value}
	}
	loadWriter := func(rd uint8) pipeline.Producer {
		return pipeline.Producer{Valid: true, Rd: rd, RegWrite: true, IsLoad: true}
	}

	Describe("Detect with forwarding", func() {
		BeforeEach(func() {
			hazardUnit = pipeline.NewHazardUnit(true)
		})

		It("should report no hazard without producers", func() {
			d := hazardUnit.Detect(1, none, none)

			Expect(d.Source).To(Equal(pipeline.ForwardNone))
			Expect(d.Wait).To(Equal(pipeline.HazardNone))
		})

		It("should stall one cycle on an ALU producer in EX", func() {
			d := hazardUnit.Detect(1, aluWriter(1, 5), none)

			Expect(d.Wait).To(Equal(pipeline.HazardAwaitOne))
			Expect(d.LoadUse).To(BeFalse())
		})

		It("should stall two cycles on a load in EX", func() {
			d := hazardUnit.Detect(1, loadWriter(1), none)

			Expect(d.Wait).To(Equal(pipeline.HazardAwaitTwo))
			Expect(d.LoadUse).To(BeTrue())
		})

		It("should forward an ALU result from MEM", func() {
			d := hazardUnit.Detect(1, none, aluWriter(1, 42))

			Expect(d.Wait).To(Equal(pipeline.HazardNone))
			Expect(d.Source).To(Equal(pipeline.ForwardFromMEM))
			Expect(d.Value).To(Equal(int32(42)))
		})

		It("should stall one cycle on a load in MEM", func() {
			d := hazardUnit.Detect(1, none, loadWriter(1))

			Expect(d.Wait).To(Equal(pipeline.HazardAwaitOne))
			Expect(d.LoadUse).To(BeTrue())
		})

		It("should prefer the younger EX producer over MEM", func() {
			d := hazardUnit.Detect(1, aluWriter(1, 1), aluWriter(1, 2))

			Expect(d.Wait).To(Equal(pipeline.HazardAwaitOne))
		})

		It("should ignore register 0 and unused operands", func() {
			Expect(hazardUnit.Detect(0, aluWriter(0, 1), none).Wait).To(Equal(pipeline.HazardNone))
			Expect(hazardUnit.Detect(insts.RegUnused, loadWriter(1), none).Wait).To(Equal(pipeline.HazardNone))
		})

		It("should ignore producers that do not write", func() {
			p := aluWriter(1, 1)
			p.RegWrite = false

			Expect(hazardUnit.Detect(1, p, none).Wait).To(Equal(pipeline.HazardNone))
		})

		It("should ignore other destination registers", func() {
			Expect(hazardUnit.Detect(2, aluWriter(1, 1), loadWriter(3)).Wait).To(Equal(pipeline.HazardNone))
		})
	})

	Describe("Detect without forwarding", func() {
		BeforeEach(func() {
			hazardUnit = pipeline.NewHazardUnit(false)
		})

		It("should stall two cycles on any producer in EX", func() {
			d := hazardUnit.Detect(1, aluWriter(1, 5), none)

			Expect(d.Wait).To(Equal(pipeline.HazardAwaitTwo))
			Expect(d.LoadUse).To(BeFalse())
		})

		It("should stall one cycle on an ALU producer in MEM", func() {
			d := hazardUnit.Detect(1, none, aluWriter(1, 5))

			Expect(d.Wait).To(Equal(pipeline.HazardAwaitOne))
			Expect(d.Source).To(Equal(pipeline.ForwardNone))
		})

		It("should report forwarding disabled", func() {
			Expect(hazardUnit.Forwarding()).To(BeFalse())
		})
	})

	Describe("Forward", func() {
		BeforeEach(func() {
			hazardUnit = pipeline.NewHazardUnit(true)
		})

		It("should keep the current value without writers", func() {
			v, src := hazardUnit.Forward(1, 9, none, none)

			Expect(v).To(Equal(int32(9)))
			Expect(src).To(Equal(pipeline.ForwardNone))
		})

		It("should take the WB value", func() {
			v, src := hazardUnit.Forward(1, 9, none, aluWriter(1, 3))

			Expect(v).To(Equal(int32(3)))
			Expect(src).To(Equal(pipeline.ForwardFromWB))
		})

		It("should let MEM win over WB", func() {
			v, src := hazardUnit.Forward(1, 9, aluWriter(1, 4), aluWriter(1, 3))

			Expect(v).To(Equal(int32(4)))
			Expect(src).To(Equal(pipeline.ForwardFromMEM))
		})

		It("should never forward into register 0", func() {
			v, src := hazardUnit.Forward(0, 0, aluWriter(0, 4), none)

			Expect(v).To(Equal(int32(0)))
			Expect(src).To(Equal(pipeline.ForwardNone))
		})

		It("should have no bypass when forwarding is disabled", func() {
			hazardUnit = pipeline.NewHazardUnit(false)

			v, src := hazardUnit.Forward(1, 9, aluWriter(1, 4), aluWriter(1, 3))
			Expect(v).To(Equal(int32(9)))
			Expect(src).To(Equal(pipeline.ForwardNone))

			v, src = hazardUnit.Forward(1, 9, none, aluWriter(1, 3))
			Expect(v).To(Equal(int32(9)))
			Expect(src).To(Equal(pipeline.ForwardNone))
		})
	})

	Describe("HazardState", func() {
		It("should count down to none", func() {
			Expect(pipeline.HazardAwaitTwo.Next()).To(Equal(pipeline.HazardAwaitOne))
			Expect(pipeline.HazardAwaitOne.Next()).To(Equal(pipeline.HazardNone))
			Expect(pipeline.HazardNone.Next()).To(Equal(pipeline.HazardNone))
		})

		It("should print its name", func() {
			Expect(pipeline.HazardAwaitTwo.String()).To(Equal("await-two"))
			Expect(pipeline.ForwardFromMEM.String()).To(Equal("mem"))
		})
	})
})
