// Package arith models the accelerator's primitive arithmetic units.
//
// Each unit is a black box with a fixed cycle latency and a request /
// response handshake: Submit is the request side, TryTakeResult the
// response side, and both are polled once per tick. A unit configured
// with depth 1 is single-issue (the consumer must take the previous
// result before a new request is accepted); deeper units pipeline
// multiple independent requests distinguished by tag.
package arith

import "github.com/sarchlab/ransim/fixed"

// Result is a completed multiply-add response carrying the tag of the
// request that produced it.
type Result struct {
	Value fixed.Fixed
	Tag   int
}

type macReq struct {
	value     fixed.Fixed
	tag       int
	remaining uint64
}

// MACStats holds counters for one multiply-add unit.
type MACStats struct {
	// Submitted is the number of accepted requests.
	Submitted uint64
	// Completed is the number of results taken by the consumer.
	Completed uint64
	// Ticks is the number of cycles the unit has been stepped.
	Ticks uint64
}

// MAC is a pipelined fused multiply-add unit computing a*b + c with a
// fixed latency. Results complete in submission order.
type MAC struct {
	latency uint64
	depth   int

	inflight []macReq
	ready    []Result

	stats MACStats
}

// NewMAC creates a multiply-add unit with the given latency in cycles and
// pipeline depth. Depth 1 yields the single-issue handshake used by the
// plane deriver.
func NewMAC(latency uint64, depth int) *MAC {
	if latency == 0 {
		latency = 1
	}
	if depth < 1 {
		depth = 1
	}
	return &MAC{latency: latency, depth: depth}
}

// Latency returns the unit's configured latency in cycles.
func (u *MAC) Latency() uint64 {
	return u.latency
}

// CanAccept reports whether a Submit would be accepted this tick.
// In the single-issue case the previous result must have been taken.
func (u *MAC) CanAccept() bool {
	return len(u.inflight)+len(u.ready) < u.depth
}

// Submit requests a*b + c tagged with tag. It returns false if the unit
// cannot accept more work this tick.
func (u *MAC) Submit(a, b, c fixed.Fixed, tag int) bool {
	if !u.CanAccept() {
		return false
	}
	u.inflight = append(u.inflight, macReq{
		value:     fixed.MulAdd(a, b, c),
		tag:       tag,
		remaining: u.latency,
	})
	u.stats.Submitted++
	return true
}

// Tick advances every in-flight request by one cycle. Requests whose
// latency has elapsed move to the response side.
func (u *MAC) Tick() {
	u.stats.Ticks++
	kept := u.inflight[:0]
	for _, r := range u.inflight {
		r.remaining--
		if r.remaining == 0 {
			u.ready = append(u.ready, Result{Value: r.value, Tag: r.tag})
		} else {
			kept = append(kept, r)
		}
	}
	u.inflight = kept
}

// TryTakeResult takes the oldest completed result, if any. Taking the
// result is the consumer's acknowledgement.
func (u *MAC) TryTakeResult() (Result, bool) {
	if len(u.ready) == 0 {
		return Result{}, false
	}
	r := u.ready[0]
	u.ready = u.ready[1:]
	u.stats.Completed++
	return r, true
}

// Busy reports whether any request is in flight or awaiting pickup.
func (u *MAC) Busy() bool {
	return len(u.inflight) > 0 || len(u.ready) > 0
}

// Stats returns the unit's counters.
func (u *MAC) Stats() MACStats {
	return u.stats
}

// Reset drops all in-flight and pending work and clears statistics.
func (u *MAC) Reset() {
	u.inflight = nil
	u.ready = nil
	u.stats = MACStats{}
}
