package ransac_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/timing/ransac"
)

var _ = Describe("TripleGen", func() {
	It("should produce pairwise-distinct in-range triples", func() {
		gen := ransac.NewTripleGen(arith.NewLFSR(11), 20)
		for n := 0; n < 50; n++ {
			for !gen.Ready() {
				gen.Tick()
			}
			triple, ok := gen.Take()
			Expect(ok).To(BeTrue())
			for _, idx := range triple {
				Expect(idx).To(BeNumerically(">=", 0))
				Expect(idx).To(BeNumerically("<", 20))
			}
			Expect(triple[0]).NotTo(Equal(triple[1]))
			Expect(triple[0]).NotTo(Equal(triple[2]))
			Expect(triple[1]).NotTo(Equal(triple[2]))
		}
	})

	It("should need at least three ticks per triple", func() {
		gen := ransac.NewTripleGen(arith.NewLFSR(11), 20)
		gen.Tick()
		gen.Tick()
		Expect(gen.Ready()).To(BeFalse())
		_, ok := gen.Take()
		Expect(ok).To(BeFalse())
	})

	It("should never complete a triple over a tiny cloud", func() {
		gen := ransac.NewTripleGen(arith.NewLFSR(11), 2)
		for tick := 0; tick < 1000; tick++ {
			gen.Tick()
		}
		Expect(gen.Ready()).To(BeFalse())
	})

	It("should be reproducible from the seed", func() {
		a := ransac.NewTripleGen(arith.NewLFSR(42), 64)
		b := ransac.NewTripleGen(arith.NewLFSR(42), 64)
		for n := 0; n < 20; n++ {
			for !a.Ready() {
				a.Tick()
				b.Tick()
			}
			ta, _ := a.Take()
			tb, _ := b.Take()
			Expect(ta).To(Equal(tb))
		}
	})

	It("should drop a partial triple when retargeted", func() {
		gen := ransac.NewTripleGen(arith.NewLFSR(11), 20)
		for tick := 0; tick < 2; tick++ {
			gen.Tick()
		}
		gen.SetNumPoints(5)
		Expect(gen.Ready()).To(BeFalse())
		for !gen.Ready() {
			gen.Tick()
		}
		triple, _ := gen.Take()
		for _, idx := range triple {
			Expect(idx).To(BeNumerically("<", 5))
		}
	})
})
