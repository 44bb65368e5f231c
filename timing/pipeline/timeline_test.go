package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/timing/pipeline"
)

var _ = Describe("Timeline", func() {
	var tl *pipeline.Timeline

	BeforeEach(func() {
		tl = pipeline.NewTimeline()
	})

	It("should ignore bubbles", func() {
		tl.Record(pipeline.Bubble, 1, pipeline.StageIF)

		Expect(tl.Events()).To(BeEmpty())
		Expect(tl.Cycles()).To(Equal(uint64(0)))
	})

	It("should keep several stages of one index in a cycle", func() {
		tl.Record(1, 4, pipeline.StageWB)
		tl.Record(1, 4, pipeline.StageID)
		tl.Record(2, 4, pipeline.StageEX)

		Expect(tl.Stages(1, 4)).To(Equal([]pipeline.Stage{pipeline.StageWB, pipeline.StageID}))
		Expect(tl.Stages(1, 5)).To(BeEmpty())
		Expect(tl.Indices()).To(Equal([]int{1, 2}))
	})

	It("should report the last cycle in a stage", func() {
		tl.Record(0, 2, pipeline.StageID)
		tl.Record(0, 7, pipeline.StageID)

		last, ok := tl.LastCycle(0, pipeline.StageID)
		Expect(ok).To(BeTrue())
		Expect(last).To(Equal(uint64(7)))

		_, ok = tl.LastCycle(0, pipeline.StageWB)
		Expect(ok).To(BeFalse())
		Expect(tl.Count(0, pipeline.StageID)).To(Equal(2))
		Expect(tl.Cycles()).To(Equal(uint64(7)))
	})

	It("should track illegal marks and reset", func() {
		tl.Record(3, 1, pipeline.StageIF)
		tl.MarkIllegal(3)
		Expect(tl.IsIllegal(3)).To(BeTrue())

		tl.Reset()
		Expect(tl.IsIllegal(3)).To(BeFalse())
		Expect(tl.Events()).To(BeEmpty())
		Expect(tl.Stages(3, 1)).To(BeEmpty())
	})

	It("should look up cells of a long-running instruction", func() {
		for c := uint64(1); c <= 10000; c++ {
			tl.Record(0, c, pipeline.StageID)
		}
		tl.Record(0, 5000, pipeline.StageWB)

		Expect(tl.Stages(0, 5000)).To(Equal([]pipeline.Stage{pipeline.StageID, pipeline.StageWB}))
		Expect(tl.Stages(0, 10001)).To(BeEmpty())
	})

	It("should not share cell storage with callers", func() {
		tl.Record(0, 1, pipeline.StageIF)
		stages := tl.Stages(0, 1)
		stages[0] = pipeline.StageWB

		Expect(tl.Stages(0, 1)).To(Equal([]pipeline.Stage{pipeline.StageIF}))
	})

	It("should report the first cycle of an instruction", func() {
		tl.Record(2, 3, pipeline.StageIF)
		tl.Record(2, 4, pipeline.StageID)

		first, ok := tl.FirstCycle(2)
		Expect(ok).To(BeTrue())
		Expect(first).To(Equal(uint64(3)))

		_, ok = tl.FirstCycle(5)
		Expect(ok).To(BeFalse())
	})

	It("should name stages", func() {
		Expect(pipeline.StageMEM.String()).To(Equal("MEM"))
		Expect(pipeline.StageStall.String()).To(Equal("stall"))
	})
})
