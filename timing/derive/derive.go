// Package derive provides the plane deriver: a 27-node scheduler table
// that computes a candidate plane from three sample points using one
// single-issue multiply-add unit.
package derive

import (
	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/timing/sched"
)

// Node identities of the deriver table. The table computes
//
//	v1 = a - b
//	v2 = a - c
//	n  = v1 x v2
//	d  = n . a
//
// with the cross product split into a partial-product layer and a
// combining layer so every operation fits the a*b (+/-) c shape.
const (
	nodeAX = sched.NodeID(iota)
	nodeAY
	nodeAZ
	nodeBX
	nodeBY
	nodeBZ
	nodeCX
	nodeCY
	nodeCZ
	nodeZero
	nodeOne
	nodeNegOne
	nodeV1X
	nodeV1Y
	nodeV1Z
	nodeV2X
	nodeV2Y
	nodeV2Z
	nodePX
	nodePY
	nodePZ
	nodeNX
	nodeNY
	nodeNZ
	nodeD1
	nodeD2
	nodeD

	nodeCount
)

func table() []sched.Node {
	return []sched.Node{
		sched.Input(nodeAX),
		sched.Input(nodeAY),
		sched.Input(nodeAZ),
		sched.Input(nodeBX),
		sched.Input(nodeBY),
		sched.Input(nodeBZ),
		sched.Input(nodeCX),
		sched.Input(nodeCY),
		sched.Input(nodeCZ),
		sched.Input(nodeZero),
		sched.Input(nodeOne),
		sched.Input(nodeNegOne),

		// v1 = a - b, as a*1 - b.
		sched.ComputeNeg(nodeV1X, nodeAX, nodeOne, nodeBX),
		sched.ComputeNeg(nodeV1Y, nodeAY, nodeOne, nodeBY),
		sched.ComputeNeg(nodeV1Z, nodeAZ, nodeOne, nodeBZ),

		// v2 = a - c, as c*(-1) + a.
		sched.Compute(nodeV2X, nodeCX, nodeNegOne, nodeAX),
		sched.Compute(nodeV2Y, nodeCY, nodeNegOne, nodeAY),
		sched.Compute(nodeV2Z, nodeCZ, nodeNegOne, nodeAZ),

		// Cross-product partial products.
		sched.Compute(nodePX, nodeV1Z, nodeV2Y, nodeZero),
		sched.Compute(nodePY, nodeV1X, nodeV2Z, nodeZero),
		sched.Compute(nodePZ, nodeV1Y, nodeV2X, nodeZero),

		// n = v1 x v2, combining against the partials.
		sched.ComputeNeg(nodeNX, nodeV1Y, nodeV2Z, nodePX),
		sched.ComputeNeg(nodeNY, nodeV1Z, nodeV2X, nodePY),
		sched.ComputeNeg(nodeNZ, nodeV1X, nodeV2Y, nodePZ),

		// d = n . a, chained.
		sched.Compute(nodeD1, nodeNX, nodeAX, nodeZero),
		sched.Compute(nodeD2, nodeNY, nodeAY, nodeD1),
		sched.Compute(nodeD, nodeNZ, nodeAZ, nodeD2),
	}
}

// Stats holds counters for one deriver.
type Stats struct {
	// Derivations is the number of completed derivations.
	Derivations uint64
	// Degenerate is the number of derivations rejected for a zero normal.
	Degenerate uint64
	// RescaleShifts is the total number of overflow-guard shift steps.
	RescaleShifts uint64
}

// Deriver computes a plane from three points. It is single-issue: one
// derivation at a time, restarted with Start after each result.
type Deriver struct {
	s     *sched.Scheduler
	busy  bool
	done  bool
	plane fixed.Plane
	bad   bool
	stats Stats
}

// New creates a deriver whose multiply-add unit has the given latency.
func New(macLatency uint64) *Deriver {
	return &Deriver{
		s: sched.New(table(), arith.NewMAC(macLatency, 1)),
	}
}

// Start resets the node table and seeds the three sample points.
func (d *Deriver) Start(a, b, c fixed.Point) {
	d.s.Reset()
	d.s.Seed(nodeAX, a.X)
	d.s.Seed(nodeAY, a.Y)
	d.s.Seed(nodeAZ, a.Z)
	d.s.Seed(nodeBX, b.X)
	d.s.Seed(nodeBY, b.Y)
	d.s.Seed(nodeBZ, b.Z)
	d.s.Seed(nodeCX, c.X)
	d.s.Seed(nodeCY, c.Y)
	d.s.Seed(nodeCZ, c.Z)
	d.s.Seed(nodeZero, 0)
	d.s.Seed(nodeOne, fixed.One)
	d.s.Seed(nodeNegOne, -fixed.One)
	d.busy = true
	d.done = false
	d.bad = false
	d.plane = fixed.Plane{}
}

// Tick advances the derivation one cycle. The only error is the fatal
// scheduler-protocol violation.
func (d *Deriver) Tick() error {
	if !d.busy || d.done {
		return nil
	}
	if err := d.s.Tick(); err != nil {
		return err
	}
	if d.s.Done() {
		d.finalize()
	}
	return nil
}

// finalize applies the overflow guard and degenerate check to the sink
// nodes and latches the result.
func (d *Deriver) finalize() {
	nx := d.s.Value(nodeNX)
	ny := d.s.Value(nodeNY)
	nz := d.s.Value(nodeNZ)
	off := d.s.Value(nodeD)

	// Shift the offset and all normal components right in lockstep until
	// every magnitude fits within half the storage range. This preserves
	// the plane's direction and scale ratio while leaving headroom for
	// the squared-distance math in the inlier checkers.
	for nx.Abs() > fixed.HalfRange32 || ny.Abs() > fixed.HalfRange32 ||
		nz.Abs() > fixed.HalfRange32 || off.Abs() > fixed.HalfRange32 {
		nx >>= 1
		ny >>= 1
		nz >>= 1
		off >>= 1
		d.stats.RescaleShifts++
	}

	d.plane = fixed.Plane{
		Normal: fixed.Point{X: fixed.Sat32(nx), Y: fixed.Sat32(ny), Z: fixed.Sat32(nz)},
		Offset: fixed.Sat32(off),
	}
	d.bad = d.plane.IsZeroNormal()
	d.done = true
	d.busy = false
	d.stats.Derivations++
	if d.bad {
		d.stats.Degenerate++
	}
}

// Done reports whether a result is available.
func (d *Deriver) Done() bool {
	return d.done
}

// Busy reports whether a derivation is in flight.
func (d *Deriver) Busy() bool {
	return d.busy
}

// Result returns the derived plane and whether the input was degenerate
// (fewer than three unique, non-collinear points).
func (d *Deriver) Result() (fixed.Plane, bool) {
	return d.plane, d.bad
}

// SchedStats returns the underlying scheduler's counters.
func (d *Deriver) SchedStats() sched.Stats {
	return d.s.Stats()
}

// Stats returns the deriver's counters.
func (d *Deriver) Stats() Stats {
	return d.stats
}
