package inlier_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/timing/inlier"
)

func decide(c *inlier.Checker, plane fixed.Plane, p fixed.Point, t fixed.Fixed) bool {
	c.Start(plane, p, t)
	for i := 0; i < 2000; i++ {
		Expect(c.Tick()).To(Succeed())
		if inside, ok := c.TakeResult(); ok {
			return inside
		}
	}
	Fail("checker did not finish")
	return false
}

// refInlier is the reference predicate |n.p - off| <= t*|n|.
func refInlier(nx, ny, nz, off, px, py, pz, t float64) bool {
	dist := nx*px + ny*py + nz*pz - off
	return math.Abs(dist) <= t*math.Sqrt(nx*nx+ny*ny+nz*nz)
}

var _ = Describe("Checker", func() {
	var c *inlier.Checker

	BeforeEach(func() {
		c = inlier.New(2, 4, 3)
	})

	zPlane := fixed.Plane{
		Normal: fixed.PointFromFloats(0, 0, 1),
		Offset: fixed.FromFloat(5),
	}

	It("should accept a point just inside the threshold band", func() {
		inside := decide(c, zPlane, fixed.PointFromFloats(0, 0, 5.05), fixed.FromFloat(0.1))
		Expect(inside).To(BeTrue())
	})

	It("should reject a point outside the threshold band", func() {
		inside := decide(c, zPlane, fixed.PointFromFloats(0, 0, 6), fixed.FromFloat(0.1))
		Expect(inside).To(BeFalse())
	})

	It("should accept points exactly on the plane", func() {
		inside := decide(c, zPlane, fixed.PointFromFloats(10, -3, 5), fixed.FromFloat(0.1))
		Expect(inside).To(BeTrue())
	})

	It("should scale the band with the normal's magnitude", func() {
		big := fixed.Plane{
			Normal: fixed.PointFromFloats(0, 0, 200),
			Offset: fixed.FromFloat(1000), // same plane z = 5
		}
		Expect(decide(c, big, fixed.PointFromFloats(1, 2, 5.05), fixed.FromFloat(0.1))).To(BeTrue())
		Expect(decide(c, big, fixed.PointFromFloats(1, 2, 5.2), fixed.FromFloat(0.1))).To(BeFalse())
	})

	It("should match the reference predicate over a coordinate sweep", func() {
		plane := fixed.Plane{
			Normal: fixed.PointFromFloats(1, 2, -2),
			Offset: fixed.FromFloat(3),
		}
		t := fixed.FromFloat(0.25)
		for _, z := range []float64{-2, -1, 0, 0.5, 1, 1.5, 2, 3} {
			for _, x := range []float64{-1, 0, 1, 2} {
				p := fixed.PointFromFloats(x, 0.5, z)
				want := refInlier(1, 2, -2, 3, x, 0.5, z, 0.25)
				// Skip points within the fixed-point tolerance band of
				// the decision boundary.
				dist := math.Abs(1*x + 2*0.5 - 2*z - 3)
				if math.Abs(dist-0.25*3) < 0.01 {
					continue
				}
				Expect(decide(c, plane, p, t)).To(Equal(want),
					"point (%v, 0.5, %v)", x, z)
			}
		}
	})

	It("should reject far points whose squared distance saturates", func() {
		inside := decide(c, zPlane, fixed.PointFromFloats(0, 0, 30000), fixed.FromFloat(0.1))
		Expect(inside).To(BeFalse())
	})

	It("should reject far points under a maximally rescaled normal", func() {
		// A normal at the rescale bound drives the squared distance deep
		// into the saturation region of the working format.
		wide := fixed.Plane{
			Normal: fixed.Point{X: fixed.HalfRange32},
			Offset: 0,
		}
		inside := decide(c, wide, fixed.PointFromFloats(1024, 0, 0), fixed.FromFloat(0.1))
		Expect(inside).To(BeFalse())
	})

	It("should be reusable across points", func() {
		Expect(decide(c, zPlane, fixed.PointFromFloats(0, 0, 5), fixed.FromFloat(0.1))).To(BeTrue())
		Expect(decide(c, zPlane, fixed.PointFromFloats(0, 0, 7), fixed.FromFloat(0.1))).To(BeFalse())

		stats := c.Stats()
		Expect(stats.Checks).To(Equal(uint64(2)))
		Expect(stats.Inliers).To(Equal(uint64(1)))
	})

	It("should not report a result while busy", func() {
		c.Start(zPlane, fixed.PointFromFloats(0, 0, 5), fixed.FromFloat(0.1))
		Expect(c.Free()).To(BeFalse())
		_, ok := c.TakeResult()
		Expect(ok).To(BeFalse())
	})
})
