package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/mem"
)

func testCloud(n int) *mem.Cloud {
	pts := make([]fixed.Point, n)
	for i := range pts {
		pts[i] = fixed.PointFromFloats(float64(i), float64(i)*2, float64(i)*3)
	}
	return mem.NewCloud(0x1000, pts)
}

var _ = Describe("Cloud", func() {
	It("should address records by stride", func() {
		c := testCloud(8)
		Expect(c.NumPoints()).To(Equal(8))
		Expect(c.OffsetOf(3)).To(Equal(uint64(0x1000 + 3*mem.PointStride)))

		p, ok := c.At(c.OffsetOf(3))
		Expect(ok).To(BeTrue())
		Expect(p).To(Equal(fixed.PointFromFloats(3, 6, 9)))
	})

	It("should reject unaligned and out-of-range offsets", func() {
		c := testCloud(4)
		_, ok := c.At(0x1001)
		Expect(ok).To(BeFalse())
		_, ok = c.At(c.OffsetOf(4))
		Expect(ok).To(BeFalse())
		_, ok = c.At(0x10)
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Channel", func() {
	var (
		cloud *mem.Cloud
		ch    *mem.Channel
	)

	drain := func(limit int) []mem.Response {
		var out []mem.Response
		for i := 0; i < limit; i++ {
			ch.Tick()
			for {
				r, ok := ch.TryTakeResponse()
				if !ok {
					break
				}
				out = append(out, r)
			}
		}
		return out
	}

	BeforeEach(func() {
		cloud = testCloud(16)
	})

	It("should respond within the configured latency window", func() {
		ch = mem.NewChannel(cloud,
			mem.ChannelConfig{MinLatency: 3, MaxLatency: 9},
			arith.NewLFSR(11))
		Expect(ch.Request(cloud.OffsetOf(2), 0)).To(BeTrue())

		var arrival int
		for tick := 1; tick <= 20; tick++ {
			ch.Tick()
			if r, ok := ch.TryTakeResponse(); ok {
				Expect(r.ID).To(Equal(0))
				Expect(r.Err).To(BeFalse())
				Expect(r.Point).To(Equal(fixed.PointFromFloats(2, 4, 6)))
				arrival = tick
				break
			}
		}
		Expect(arrival).To(BeNumerically(">=", 3))
		Expect(arrival).To(BeNumerically("<=", 9))
	})

	It("should allow one in-flight transaction per id", func() {
		ch = mem.NewChannel(cloud,
			mem.ChannelConfig{MinLatency: 4, MaxLatency: 4},
			arith.NewLFSR(11))
		Expect(ch.Request(cloud.OffsetOf(0), 5)).To(BeTrue())
		Expect(ch.Request(cloud.OffsetOf(1), 5)).To(BeFalse())
		Expect(ch.Request(cloud.OffsetOf(1), 6)).To(BeTrue())

		resps := drain(10)
		Expect(resps).To(HaveLen(2))
	})

	It("should flag reads outside the cloud as bus errors", func() {
		ch = mem.NewChannel(cloud,
			mem.ChannelConfig{MinLatency: 1, MaxLatency: 1},
			arith.NewLFSR(11))
		Expect(ch.Request(cloud.OffsetOf(100), 0)).To(BeTrue())
		resps := drain(5)
		Expect(resps).To(HaveLen(1))
		Expect(resps[0].Err).To(BeTrue())
	})

	It("should inject errors at the configured rate", func() {
		ch = mem.NewChannel(cloud,
			mem.ChannelConfig{MinLatency: 1, MaxLatency: 1, ErrorRate: 65535},
			arith.NewLFSR(11))
		Expect(ch.Request(cloud.OffsetOf(0), 0)).To(BeTrue())
		resps := drain(5)
		Expect(resps).To(HaveLen(1))
		Expect(resps[0].Err).To(BeTrue())
		Expect(ch.Stats().Errors).To(Equal(uint64(1)))
	})

	It("should drop reads silently at the configured rate", func() {
		ch = mem.NewChannel(cloud,
			mem.ChannelConfig{MinLatency: 1, MaxLatency: 1, DropRate: 65535},
			arith.NewLFSR(11))
		Expect(ch.Request(cloud.OffsetOf(0), 0)).To(BeTrue())
		resps := drain(50)
		Expect(resps).To(BeEmpty())
		Expect(ch.Stats().Drops).To(Equal(uint64(1)))
		// The id is free again for the next trial.
		Expect(ch.CanAccept(0)).To(BeTrue())
	})

	It("should be deterministic for a fixed seed", func() {
		mk := func() []mem.Response {
			ch = mem.NewChannel(cloud,
				mem.ChannelConfig{MinLatency: 2, MaxLatency: 12, ErrorRate: 8000},
				arith.NewLFSR(99))
			for i := 0; i < 8; i++ {
				ch.Request(cloud.OffsetOf(i), i)
			}
			return drain(30)
		}
		Expect(mk()).To(Equal(mk()))
	})
})

var _ = Describe("Cache", func() {
	It("should hit on a resident block and miss on first touch", func() {
		c := mem.NewCache(mem.DefaultCacheConfig())

		lat, hit := c.Access(0x1000)
		Expect(hit).To(BeFalse())
		Expect(lat).To(Equal(c.Config().MissLatency))

		// Same 64B block.
		lat, hit = c.Access(0x1010)
		Expect(hit).To(BeTrue())
		Expect(lat).To(Equal(c.Config().HitLatency))

		stats := c.Stats()
		Expect(stats.Hits).To(Equal(uint64(1)))
		Expect(stats.Misses).To(Equal(uint64(1)))
	})

	It("should evict under capacity pressure", func() {
		cfg := mem.CacheConfig{
			Size:          256,
			Associativity: 2,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   10,
		}
		c := mem.NewCache(cfg)
		for i := uint64(0); i < 64; i++ {
			c.Access(i * 64)
		}
		Expect(c.Stats().Evictions).To(BeNumerically(">", 0))
	})

	It("should shorten channel latency on hits", func() {
		cloud := testCloud(16)
		cache := mem.NewCache(mem.DefaultCacheConfig())
		ch := mem.NewChannel(cloud,
			mem.ChannelConfig{MinLatency: 8, MaxLatency: 40},
			arith.NewLFSR(3),
			mem.WithCache(cache))

		latencyOf := func(id int, offset uint64) int {
			Expect(ch.Request(offset, id)).To(BeTrue())
			for tick := 1; ; tick++ {
				ch.Tick()
				if _, ok := ch.TryTakeResponse(); ok {
					return tick
				}
			}
		}

		first := latencyOf(0, cloud.OffsetOf(0))
		second := latencyOf(1, cloud.OffsetOf(1)) // same 64B block
		Expect(second).To(BeNumerically("<", first))
		Expect(ch.Stats().Hits).To(Equal(uint64(1)))
	})
})
