package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rv5sim/emu"
	"github.com/sarchlab/rv5sim/timing/config"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("DefaultConfig", func() {
		It("should have forwarding on and the standard memory size", func() {
			c := config.DefaultConfig()

			Expect(c.Forwarding).To(BeTrue())
			Expect(c.MemorySize).To(Equal(uint64(emu.DefaultMemorySize)))
			Expect(c.IllegalPolicy).To(Equal(config.IllegalBubble))
			Expect(c.Validate()).To(Succeed())
		})
	})

	Describe("LoadConfig", func() {
		It("should overlay a partial JSON file on the defaults", func() {
			path := filepath.Join(tempDir, "sim.json")
			Expect(os.WriteFile(path, []byte(`{"forwarding": false, "max_cycles": 50}`), 0644)).To(Succeed())

			c, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Forwarding).To(BeFalse())
			Expect(c.MaxCycles).To(Equal(uint64(50)))
			Expect(c.MemorySize).To(Equal(uint64(emu.DefaultMemorySize)))
		})

		It("should read YAML by extension", func() {
			path := filepath.Join(tempDir, "sim.yaml")
			Expect(os.WriteFile(path, []byte("illegal_policy: abort\nmemory_size: 4096\n"), 0644)).To(Succeed())

			c, err := config.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.IllegalPolicy).To(Equal(config.IllegalAbort))
			Expect(c.MemorySize).To(Equal(uint64(4096)))
			Expect(c.Forwarding).To(BeTrue())
		})

		It("should report parse errors", func() {
			path := filepath.Join(tempDir, "bad.json")
			Expect(os.WriteFile(path, []byte("{"), 0644)).To(Succeed())

			_, err := config.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})

		It("should report a missing file", func() {
			_, err := config.LoadConfig(filepath.Join(tempDir, "missing.json"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveConfig", func() {
		It("should round-trip through both formats", func() {
			c := config.DefaultConfig()
			c.MaxCycles = 77
			c.Forwarding = false

			for _, name := range []string{"out.json", "out.yml"} {
				path := filepath.Join(tempDir, name)
				Expect(c.SaveConfig(path)).To(Succeed())

				loaded, err := config.LoadConfig(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(loaded).To(Equal(c))
			}
		})
	})

	Describe("Validate", func() {
		DescribeTable("rejected values",
			func(mutate func(*config.Config)) {
				c := config.DefaultConfig()
				mutate(c)
				Expect(c.Validate()).To(MatchError(config.ErrInvalidConfig))
			},
			Entry("zero max cycles", func(c *config.Config) { c.MaxCycles = 0 }),
			Entry("zero memory", func(c *config.Config) { c.MemorySize = 0 }),
			Entry("unknown policy", func(c *config.Config) { c.IllegalPolicy = "ignore" }),
			Entry("unparsable version", func(c *config.Config) { c.Version = "one" }),
			Entry("future major version", func(c *config.Config) { c.Version = "2.0.0" }),
		)

		It("should accept any 1.x version", func() {
			c := config.DefaultConfig()
			c.Version = "1.4.2"
			Expect(c.Validate()).To(Succeed())
		})
	})

	Describe("Clone", func() {
		It("should not alias the original", func() {
			c := config.DefaultConfig()
			clone := c.Clone()
			clone.MaxCycles = 1

			Expect(c.MaxCycles).NotTo(Equal(uint64(1)))
		})
	})
})
