package ransac

import "github.com/sarchlab/ransim/arith"

// TripleGen draws pairwise-distinct record-index triples for trial
// sampling. It produces one candidate index per tick from an LFSR;
// candidates colliding with an index already held are discarded, so a
// triple takes at least three ticks to assemble.
type TripleGen struct {
	lfsr      *arith.LFSR
	numPoints int
	held      [3]int
	count     int
}

// NewTripleGen creates a generator over a cloud of numPoints records.
func NewTripleGen(lfsr *arith.LFSR, numPoints int) *TripleGen {
	return &TripleGen{lfsr: lfsr, numPoints: numPoints}
}

// SetNumPoints retargets the generator and discards any partial triple.
func (g *TripleGen) SetNumPoints(n int) {
	g.numPoints = n
	g.count = 0
}

// Tick draws one candidate index. Clouds with fewer than three records
// can never complete a triple.
func (g *TripleGen) Tick() {
	if g.count == len(g.held) || g.numPoints < 3 {
		return
	}
	candidate := g.lfsr.NextBelow(g.numPoints)
	for i := 0; i < g.count; i++ {
		if g.held[i] == candidate {
			return
		}
	}
	g.held[g.count] = candidate
	g.count++
}

// Ready reports whether a complete triple is available.
func (g *TripleGen) Ready() bool {
	return g.count == len(g.held)
}

// Take returns the completed triple and begins assembling the next one.
func (g *TripleGen) Take() ([3]int, bool) {
	if g.count != len(g.held) {
		return [3]int{}, false
	}
	g.count = 0
	return g.held, true
}
