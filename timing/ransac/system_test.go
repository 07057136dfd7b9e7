package ransac_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/mem"
	"github.com/sarchlab/ransim/ref"
	"github.com/sarchlab/ransim/timing/latency"
	"github.com/sarchlab/ransim/timing/ransac"
)

// parabolaCloud places every point on the plane z = 5 along a parabola,
// so any three distinct records are non-collinear and every trial
// derives the same plane.
func parabolaCloud(n int) *mem.Cloud {
	pts := make([]fixed.Point, n)
	for i := range pts {
		pts[i] = fixed.PointFromFloats(float64(i), float64(i*i), 5)
	}
	return mem.NewCloud(0x4000, pts)
}

func fastConfig() *latency.TimingConfig {
	cfg := latency.DefaultTimingConfig()
	cfg.DeriveMACLatency = 2
	cfg.CheckerMACLatency = 2
	cfg.CheckerWideLatency = 3
	cfg.TrialUnitCount = 2
	cfg.MemMinLatency = 2
	cfg.MemMaxLatency = 6
	cfg.ReadTimeout = 64
	cfg.Seed = 7
	return cfg
}

var _ = Describe("System", func() {
	threshold := fixed.FromFloat(0.1)

	It("should find the plane every trial agrees on", func() {
		cloud := parabolaCloud(20)
		sys, err := ransac.NewSystem(cloud, fastConfig())
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Start(5, threshold)).To(Succeed())
		best, err := sys.Run(200000)
		Expect(err).NotTo(HaveOccurred())

		// Every trial skips its three samples and counts the other 17.
		Expect(best.Inliers).To(Equal(17))
		stats := sys.Controller().Stats()
		Expect(stats.Launched).To(Equal(uint64(5)))
		Expect(stats.Successes).To(Equal(uint64(5)))
		Expect(sys.Controller().Processed()).To(Equal(uint64(5)))
	})

	It("should agree with the reference model's scoring of its plane", func() {
		const n = 20
		cloud := parabolaCloud(n)
		sys, err := ransac.NewSystem(cloud, fastConfig())
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Start(5, threshold)).To(Succeed())
		best, err := sys.Run(200000)
		Expect(err).NotTo(HaveOccurred())

		pts := make([]r3.Vec, n)
		for i := range pts {
			pts[i] = r3.Vec{X: float64(i), Y: float64(i * i), Z: 5}
		}
		plane := ref.PlaneFromFixed(best.Plane)
		refCount := ref.CountInliers(pts, [3]int{-1, -1, -1}, plane, 0.1)

		// The reference scores all 20 points; the core's best count skips
		// its three samples.
		Expect(refCount).To(Equal(n))
		Expect(best.Inliers).To(Equal(refCount - 3))
	})

	It("should be reproducible from the seed", func() {
		run := func() (ransac.Best, uint64) {
			sys, err := ransac.NewSystem(parabolaCloud(20), fastConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(sys.Start(4, threshold)).To(Succeed())
			best, err := sys.Run(200000)
			Expect(err).NotTo(HaveOccurred())
			return best, sys.Cycles()
		}
		bestA, cyclesA := run()
		bestB, cyclesB := run()
		Expect(bestA).To(Equal(bestB))
		Expect(cyclesA).To(Equal(cyclesB))
	})

	It("should keep launching replacements while memory only errors", func() {
		cfg := fastConfig()
		cfg.ErrorRate = 65535
		sys, err := ransac.NewSystem(parabolaCloud(20), cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Start(3, threshold)).To(Succeed())
		for tick := 0; tick < 20000; tick++ {
			Expect(sys.Tick()).To(Succeed())
		}

		Expect(sys.Controller().Done()).To(BeFalse())
		stats := sys.Controller().Stats()
		Expect(stats.Successes).To(BeZero())
		Expect(stats.BusErrors).To(BeNumerically(">", 0))
		Expect(stats.Launched).To(BeNumerically(">", uint64(3)))
		Expect(sys.Controller().Best().Inliers).To(BeZero())
	})

	It("should finish a run with the read cache enabled", func() {
		cfg := fastConfig()
		cfg.CacheEnabled = true
		cfg.CacheHitLatency = 1
		cfg.CacheMissLatency = 12
		sys, err := ransac.NewSystem(parabolaCloud(20), cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Start(5, threshold)).To(Succeed())
		best, err := sys.Run(200000)
		Expect(err).NotTo(HaveOccurred())

		Expect(best.Inliers).To(Equal(17))
		cacheStats := sys.Cache().Stats()
		Expect(cacheStats.Hits + cacheStats.Misses).To(BeNumerically(">", 0))
		Expect(cacheStats.Hits).To(BeNumerically(">", 0))
	})

	It("should drain and go idle on abort", func() {
		sys, err := ransac.NewSystem(parabolaCloud(20), fastConfig())
		Expect(err).NotTo(HaveOccurred())

		Expect(sys.Start(1000, threshold)).To(Succeed())
		for tick := 0; tick < 50; tick++ {
			Expect(sys.Tick()).To(Succeed())
		}
		sys.Controller().Abort()

		_, err = sys.Run(200000)
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Controller().Stats().Launched).To(
			BeNumerically("<", uint64(1000)))
	})

	It("should reject an invalid timing config", func() {
		cfg := fastConfig()
		cfg.TrialUnitCount = 0
		_, err := ransac.NewSystem(parabolaCloud(20), cfg)
		Expect(err).To(HaveOccurred())
	})

	It("should report an unfinished run as an error", func() {
		sys, err := ransac.NewSystem(parabolaCloud(20), fastConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Start(50, threshold)).To(Succeed())
		_, err = sys.Run(10)
		Expect(err).To(HaveOccurred())
	})
})
