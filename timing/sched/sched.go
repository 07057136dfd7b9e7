// Package sched provides the shared dependency-tracked dataflow engine
// behind the plane deriver and the inlier checker.
//
// A scheduler owns a fixed table of computation nodes with static operand
// wiring and one multiply-add unit. Each tick it writes back any tagged
// result the unit has completed, then issues at most one node whose
// operands are all finished. Nodes complete out of order when the unit is
// pipelined; the tag carried with each request is the node's identity, so
// a completed value always lands on the node that asked for it.
package sched

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/fixed"
)

// NodeID identifies a node within one scheduler's table.
type NodeID int

// None marks an unused operand reference.
const None NodeID = -1

// State is a node's completion state.
type State int

const (
	// Pending means the node has not been issued yet.
	Pending State = iota
	// Running means the node has been submitted and its result is in flight.
	Running
	// Finished means the node's value is valid.
	Finished
)

// ErrTagMismatch is the fatal scheduler-protocol violation: the unit
// returned a result tagged with a node that is not Running. It indicates
// a wiring bug, and the scheduler halts rather than continue with a
// possibly wrong value.
var ErrTagMismatch = errors.New("sched: result tag does not match a running node")

// Node is one entry of the computation table. A compute node evaluates
// a*b + c (or a*b - c when NegateC is set) over the values of its operand
// nodes. An input node carries no operation and is seeded directly.
type Node struct {
	ID      NodeID
	A, B, C NodeID
	NegateC bool
	IsInput bool

	State State
	Value fixed.Fixed

	// SubmitTick and FinishTick record the scheduler tick at which the
	// node was issued and completed, for trace inspection.
	SubmitTick uint64
	FinishTick uint64
}

// Compute builds a compute node evaluating a*b + c.
func Compute(id, a, b, c NodeID) Node {
	return Node{ID: id, A: a, B: b, C: c}
}

// ComputeNeg builds a compute node evaluating a*b - c.
func ComputeNeg(id, a, b, c NodeID) Node {
	return Node{ID: id, A: a, B: b, C: c, NegateC: true}
}

// Input builds an input node, seeded as Finished before the run starts.
func Input(id NodeID) Node {
	return Node{ID: id, A: None, B: None, C: None, IsInput: true}
}

// Stats holds counters for one scheduler.
type Stats struct {
	// Ticks is the number of cycles the scheduler has been stepped.
	Ticks uint64
	// Issued is the number of node submissions.
	Issued uint64
	// Completed is the number of node writebacks.
	Completed uint64
}

// Scheduler is the dataflow engine over one node table and one unit.
type Scheduler struct {
	nodes    []Node
	unit     *arith.MAC
	finished int
	err      error
	stats    Stats
}

// New creates a scheduler over the given node table and unit. The table
// must list nodes in identity order with operand references pointing at
// lower identities only, which guarantees the dependency graph is acyclic.
func New(nodes []Node, unit *arith.MAC) *Scheduler {
	for i, n := range nodes {
		if n.ID != NodeID(i) {
			panic(fmt.Sprintf("sched: node %d listed at position %d", n.ID, i))
		}
		if !n.IsInput {
			for _, op := range []NodeID{n.A, n.B, n.C} {
				if op < 0 || op >= n.ID {
					panic(fmt.Sprintf("sched: node %d has invalid operand %d", n.ID, op))
				}
			}
		}
	}
	table := make([]Node, len(nodes))
	copy(table, nodes)
	return &Scheduler{nodes: table, unit: unit}
}

// Seed marks an input node Finished with the given value.
func (s *Scheduler) Seed(id NodeID, v fixed.Fixed) {
	n := &s.nodes[id]
	if !n.IsInput {
		panic(fmt.Sprintf("sched: seeding non-input node %d", id))
	}
	if n.State != Finished {
		n.State = Finished
		s.finished++
	}
	n.Value = v
}

// Tick advances the scheduler one cycle: write back completed results,
// issue at most one ready node, and step the unit. Once a protocol
// violation has occurred the scheduler stays halted and keeps returning
// the same error.
func (s *Scheduler) Tick() error {
	if s.err != nil {
		return s.err
	}
	s.stats.Ticks++

	for {
		r, ok := s.unit.TryTakeResult()
		if !ok {
			break
		}
		if int(r.Tag) >= len(s.nodes) || s.nodes[r.Tag].State != Running {
			s.err = fmt.Errorf("%w (tag %d)", ErrTagMismatch, r.Tag)
			return s.err
		}
		n := &s.nodes[r.Tag]
		n.Value = r.Value
		n.State = Finished
		// The unit completed this result during the previous cycle; the
		// writeback at the start of this tick registers it.
		n.FinishTick = s.stats.Ticks - 1
		s.finished++
		s.stats.Completed++
	}

	if s.unit.CanAccept() {
		s.issueOne()
	}

	s.unit.Tick()
	return nil
}

// issueOne submits the lowest-identity pending node whose operands are
// all finished, if any.
func (s *Scheduler) issueOne() {
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.State != Pending || n.IsInput {
			continue
		}
		if s.nodes[n.A].State != Finished ||
			s.nodes[n.B].State != Finished ||
			s.nodes[n.C].State != Finished {
			continue
		}
		c := s.nodes[n.C].Value
		if n.NegateC {
			c = -c
		}
		if !s.unit.Submit(s.nodes[n.A].Value, s.nodes[n.B].Value, c, int(n.ID)) {
			return
		}
		n.State = Running
		n.SubmitTick = s.stats.Ticks
		s.stats.Issued++
		return
	}
}

// Done reports whether every node in the table is Finished.
func (s *Scheduler) Done() bool {
	return s.finished == len(s.nodes)
}

// Err returns the fatal protocol error, if one has occurred.
func (s *Scheduler) Err() error {
	return s.err
}

// Value returns the value of a node. Only meaningful once the node is
// Finished.
func (s *Scheduler) Value(id NodeID) fixed.Fixed {
	return s.nodes[id].Value
}

// Node returns a copy of a table entry for trace inspection.
func (s *Scheduler) Node(id NodeID) Node {
	return s.nodes[id]
}

// Len returns the table size.
func (s *Scheduler) Len() int {
	return len(s.nodes)
}

// Stats returns the scheduler's counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Reset returns every node to Pending with a zero value and clears the
// unit, counters, and any recorded error. The table wiring is kept.
func (s *Scheduler) Reset() {
	for i := range s.nodes {
		n := &s.nodes[i]
		n.State = Pending
		n.Value = 0
		n.SubmitTick = 0
		n.FinishTick = 0
	}
	s.finished = 0
	s.err = nil
	s.stats = Stats{}
	s.unit.Reset()
}
