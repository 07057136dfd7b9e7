// Package inlier provides the inlier checker: a two-stage scheduler pair
// deciding whether one point lies within a threshold distance of a plane.
//
// Layer 1 runs eight nodes on a pipelined multiply-add unit: the negated
// plane offset, the squared threshold, and two three-term dot-product
// chains (n.n and n.p, the latter seeded with -offset so the subtraction
// is folded into the chain). Layer 2 runs two sequential nodes on a
// second, wider unit once all of layer 1 has settled:
//
//	sq  = (n.p - offset)^2
//	cmp = t^2 * (n.n) - sq
//
// The point is an inlier iff cmp >= 0, which is |n.p - offset| <=
// t * |n| with both sides squared, avoiding a square root.
package inlier

import (
	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/timing/sched"
)

// Layer-1 node identities.
const (
	l1NX = sched.NodeID(iota)
	l1NY
	l1NZ
	l1PX
	l1PY
	l1PZ
	l1T
	l1Off
	l1Zero
	l1NegOne
	l1NegOff
	l1TT
	l1NNZ
	l1NNY
	l1NNX
	l1NPZ
	l1NPY
	l1NPX
)

// Layer-2 node identities.
const (
	l2TT = sched.NodeID(iota)
	l2NN
	l2Dist
	l2Zero
	l2Sq
	l2Cmp
)

func layer1Table() []sched.Node {
	return []sched.Node{
		sched.Input(l1NX),
		sched.Input(l1NY),
		sched.Input(l1NZ),
		sched.Input(l1PX),
		sched.Input(l1PY),
		sched.Input(l1PZ),
		sched.Input(l1T),
		sched.Input(l1Off),
		sched.Input(l1Zero),
		sched.Input(l1NegOne),

		sched.Compute(l1NegOff, l1Off, l1NegOne, l1Zero),
		sched.Compute(l1TT, l1T, l1T, l1Zero),
		sched.Compute(l1NNZ, l1NZ, l1NZ, l1Zero),
		sched.Compute(l1NNY, l1NY, l1NY, l1NNZ),
		sched.Compute(l1NNX, l1NX, l1NX, l1NNY),
		sched.Compute(l1NPZ, l1NZ, l1PZ, l1NegOff),
		sched.Compute(l1NPY, l1NY, l1PY, l1NPZ),
		sched.Compute(l1NPX, l1NX, l1PX, l1NPY),
	}
}

func layer2Table() []sched.Node {
	return []sched.Node{
		sched.Input(l2TT),
		sched.Input(l2NN),
		sched.Input(l2Dist),
		sched.Input(l2Zero),

		sched.Compute(l2Sq, l2Dist, l2Dist, l2Zero),
		sched.ComputeNeg(l2Cmp, l2TT, l2NN, l2Sq),
	}
}

type phase int

const (
	phaseIdle phase = iota
	phaseLayer1
	phaseLayer2
	phaseDone
)

// Stats holds counters for one checker.
type Stats struct {
	// Checks is the number of completed membership decisions.
	Checks uint64
	// Inliers is how many of those decided the point was inside.
	Inliers uint64
}

// Checker decides inlier membership for one point at a time. Layer 2
// cannot start until every layer-1 node is finished.
type Checker struct {
	layer1 *sched.Scheduler
	layer2 *sched.Scheduler
	phase  phase
	inside bool
	stats  Stats
}

// New creates a checker. Layer 1 uses a multiply-add unit with the given
// latency pipelined to the given depth; layer 2 uses a second unit of
// wideLatency with the single-issue handshake.
func New(l1Latency uint64, l1Depth int, wideLatency uint64) *Checker {
	return &Checker{
		layer1: sched.New(layer1Table(), arith.NewMAC(l1Latency, l1Depth)),
		layer2: sched.New(layer2Table(), arith.NewMAC(wideLatency, 1)),
	}
}

// Start begins a membership decision for the given plane, point, and
// threshold. The checker must be free.
func (c *Checker) Start(plane fixed.Plane, p fixed.Point, threshold fixed.Fixed) {
	c.layer1.Reset()
	c.layer1.Seed(l1NX, plane.Normal.X)
	c.layer1.Seed(l1NY, plane.Normal.Y)
	c.layer1.Seed(l1NZ, plane.Normal.Z)
	c.layer1.Seed(l1PX, p.X)
	c.layer1.Seed(l1PY, p.Y)
	c.layer1.Seed(l1PZ, p.Z)
	c.layer1.Seed(l1T, threshold)
	c.layer1.Seed(l1Off, plane.Offset)
	c.layer1.Seed(l1Zero, 0)
	c.layer1.Seed(l1NegOne, -fixed.One)
	c.phase = phaseLayer1
}

// Tick advances the in-flight decision one cycle. The only error is the
// fatal scheduler-protocol violation.
func (c *Checker) Tick() error {
	switch c.phase {
	case phaseLayer1:
		if err := c.layer1.Tick(); err != nil {
			return err
		}
		if c.layer1.Done() {
			c.layer2.Reset()
			c.layer2.Seed(l2TT, c.layer1.Value(l1TT))
			c.layer2.Seed(l2NN, c.layer1.Value(l1NNX))
			c.layer2.Seed(l2Dist, c.layer1.Value(l1NPX))
			c.layer2.Seed(l2Zero, 0)
			c.phase = phaseLayer2
		}
	case phaseLayer2:
		if err := c.layer2.Tick(); err != nil {
			return err
		}
		if c.layer2.Done() {
			c.inside = c.layer2.Value(l2Cmp) >= 0
			c.phase = phaseDone
			c.stats.Checks++
			if c.inside {
				c.stats.Inliers++
			}
		}
	}
	return nil
}

// Free reports whether the checker can accept a new point.
func (c *Checker) Free() bool {
	return c.phase == phaseIdle
}

// TakeResult returns the decision if one is ready and frees the checker.
func (c *Checker) TakeResult() (inside, ok bool) {
	if c.phase != phaseDone {
		return false, false
	}
	c.phase = phaseIdle
	return c.inside, true
}

// Stats returns the checker's counters.
func (c *Checker) Stats() Stats {
	return c.stats
}

// Reset abandons any in-flight decision.
func (c *Checker) Reset() {
	c.layer1.Reset()
	c.layer2.Reset()
	c.phase = phaseIdle
	c.stats = Stats{}
}
