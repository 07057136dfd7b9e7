// Package ref is the functional reference model for RANSAC plane
// fitting: the same algorithm as the timing core, computed directly in
// float64 with no cycle model. It exists to cross-check the core's
// fixed-point results.
package ref

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/sarchlab/ransim/fixed"
)

// Plane is a plane in normal-offset form: Normal.Dot(p) + Offset == 0
// for points p on the plane. The normal is not normalized.
type Plane struct {
	Normal r3.Vec
	Offset float64
}

// PlaneFrom derives the plane through three points. It reports false
// when the points are coincident or collinear.
func PlaneFrom(a, b, c r3.Vec) (Plane, bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	if n.X == 0 && n.Y == 0 && n.Z == 0 {
		return Plane{}, false
	}
	return Plane{Normal: n, Offset: -r3.Dot(n, a)}, true
}

// PlaneFromFixed converts a core plane to the reference convention. The
// core emits planes satisfying Normal.Dot(p) == Offset, so the offset
// changes sign on the way over.
func PlaneFromFixed(p fixed.Plane) Plane {
	x, y, z := p.Normal.Floats()
	return Plane{
		Normal: r3.Vec{X: x, Y: y, Z: z},
		Offset: -p.Offset.Float(),
	}
}

// Distance returns the perpendicular distance from pt to the plane.
func (p Plane) Distance(pt r3.Vec) float64 {
	return math.Abs(r3.Dot(p.Normal, pt)+p.Offset) / r3.Norm(p.Normal)
}

// IsInlier reports whether pt lies within tol of the plane.
func (p Plane) IsInlier(pt r3.Vec, tol float64) bool {
	return p.Distance(pt) <= tol
}

// CountInliers counts the points within tol of the plane, skipping the
// three sample indices.
func CountInliers(pts []r3.Vec, sample [3]int, p Plane, tol float64) int {
	count := 0
	for i, pt := range pts {
		if i == sample[0] || i == sample[1] || i == sample[2] {
			continue
		}
		if p.IsInlier(pt, tol) {
			count++
		}
	}
	return count
}

// sampleTriple draws three pairwise-distinct indices below n.
func sampleTriple(rng *rand.Rand, n int) [3]int {
	var s [3]int
	for i := 0; i < 3; {
		candidate := rng.Intn(n)
		distinct := true
		for j := 0; j < i; j++ {
			if s[j] == candidate {
				distinct = false
				break
			}
		}
		if distinct {
			s[i] = candidate
			i++
		}
	}
	return s
}

// Ransac runs the reference loop: iterations successful trials, best
// inlier count wins, ties keep the earlier plane. Degenerate samples are
// redrawn and do not count toward the quota.
func Ransac(pts []r3.Vec, iterations int, tol float64, rng *rand.Rand) (Plane, int) {
	var best Plane
	bestCount := -1
	for done := 0; done < iterations; {
		sample := sampleTriple(rng, len(pts))
		plane, ok := PlaneFrom(pts[sample[0]], pts[sample[1]], pts[sample[2]])
		if !ok {
			continue
		}
		done++
		count := CountInliers(pts, sample, plane, tol)
		if count > bestCount {
			best = plane
			bestCount = count
		}
	}
	if bestCount < 0 {
		bestCount = 0
	}
	return best, bestCount
}
