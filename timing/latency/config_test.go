package latency_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ransim/timing/latency"
)

var _ = Describe("TimingConfig", func() {
	Describe("Default Config", func() {
		It("should create valid default config", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.Validate()).To(Succeed())
		})

		It("should default to four trial units with two checkers each", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.TrialUnitCount).To(Equal(4))
			Expect(config.CheckerCount).To(Equal(2))
		})

		It("should disable fault injection by default", func() {
			config := latency.DefaultTimingConfig()
			Expect(config.ErrorRate).To(BeZero())
			Expect(config.DropRate).To(BeZero())
			Expect(config.CacheEnabled).To(BeFalse())
		})
	})

	Describe("Validation", func() {
		It("should reject zero multiply-add latency", func() {
			config := latency.DefaultTimingConfig()
			config.DeriveMACLatency = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject zero checker pipeline depth", func() {
			config := latency.DefaultTimingConfig()
			config.CheckerPipelineDepth = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject an empty trial pool", func() {
			config := latency.DefaultTimingConfig()
			config.TrialUnitCount = 0
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject inverted memory latency range", func() {
			config := latency.DefaultTimingConfig()
			config.MemMinLatency = 50
			config.MemMaxLatency = 10
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject a read timeout inside the latency window", func() {
			config := latency.DefaultTimingConfig()
			config.ReadTimeout = config.MemMaxLatency
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should reject out-of-range fault rates", func() {
			config := latency.DefaultTimingConfig()
			config.ErrorRate = 70000
			Expect(config.Validate()).To(HaveOccurred())
		})

		It("should check cache parameters only when the cache is enabled", func() {
			config := latency.DefaultTimingConfig()
			config.CacheBlockSize = 0
			Expect(config.Validate()).To(Succeed())

			config.CacheEnabled = true
			Expect(config.Validate()).To(HaveOccurred())
		})
	})

	Describe("Clone", func() {
		It("should create independent copy", func() {
			original := latency.DefaultTimingConfig()
			clone := original.Clone()

			clone.DeriveMACLatency = 100

			Expect(original.DeriveMACLatency).To(Equal(uint64(4)))
			Expect(clone.DeriveMACLatency).To(Equal(uint64(100)))
		})
	})

	Describe("File Operations", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "latency-test")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should save and load config", func() {
			original := latency.DefaultTimingConfig()
			original.DeriveMACLatency = 5
			original.MemMaxLatency = 80
			original.Seed = 99

			path := filepath.Join(tempDir, "timing.json")
			Expect(original.SaveConfig(path)).To(Succeed())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.DeriveMACLatency).To(Equal(uint64(5)))
			Expect(loaded.MemMaxLatency).To(Equal(uint64(80)))
			Expect(loaded.Seed).To(Equal(uint32(99)))
		})

		It("should keep defaults for fields absent from the file", func() {
			path := filepath.Join(tempDir, "partial.json")
			err := os.WriteFile(path, []byte(`{"seed": 7}`), 0644)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := latency.LoadConfig(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Seed).To(Equal(uint32(7)))
			Expect(loaded.ReadTimeout).To(Equal(uint64(1024)))
		})

		It("should return error for non-existent file", func() {
			_, err := latency.LoadConfig("/nonexistent/path/timing.json")
			Expect(err).To(HaveOccurred())
		})

		It("should return error for invalid JSON", func() {
			path := filepath.Join(tempDir, "invalid.json")
			err := os.WriteFile(path, []byte("not valid json"), 0644)
			Expect(err).NotTo(HaveOccurred())

			_, err = latency.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
