// Package arbiter multiplexes the trial units' point reads onto the
// single memory channel.
//
// Selection uses a fairness scoreboard rather than strict round robin:
// each unit carries a cumulative-service score, the lowest score wins
// (ties to the lowest unit index), and the board is renormalized after
// every grant so the minimum stays pinned at zero. Outstanding reads are
// tagged with the winning unit's identity so responses that complete out
// of order still route back to their requester.
package arbiter

import (
	"github.com/sarchlab/ransim/mem"
)

// Requester is the arbiter's view of a trial unit.
type Requester interface {
	// ID is the unit's identity, used as the memory transaction tag.
	ID() int
	// PendingRead returns the byte offset the unit wants to read, if any.
	PendingRead() (uint64, bool)
	// GrantRead confirms the pending read was issued to the channel.
	GrantRead()
	// Deliver hands the unit a completed response.
	Deliver(resp mem.Response)
}

// Stats holds arbiter counters.
type Stats struct {
	// Grants is the number of reads issued to the channel.
	Grants uint64
	// Responses is the number of responses routed back.
	Responses uint64
	// Conflicts counts ticks on which more than one unit wanted the bus.
	Conflicts uint64
}

// Arbiter owns the channel and the fairness scoreboard.
type Arbiter struct {
	channel *mem.Channel
	ports   []Requester
	byID    map[int]Requester
	scores  []int
	stats   Stats
}

// New creates an arbiter over the given channel and requesters.
func New(channel *mem.Channel, ports ...Requester) *Arbiter {
	byID := make(map[int]Requester, len(ports))
	for _, p := range ports {
		byID[p.ID()] = p
	}
	return &Arbiter{
		channel: channel,
		ports:   ports,
		byID:    byID,
		scores:  make([]int, len(ports)),
	}
}

// Tick routes completed responses back to their requesters, then grants
// at most one pending read to the scoreboard winner.
func (a *Arbiter) Tick() {
	for {
		resp, ok := a.channel.TryTakeResponse()
		if !ok {
			break
		}
		if p, ok := a.byID[resp.ID]; ok {
			p.Deliver(resp)
			a.stats.Responses++
		}
	}

	best := -1
	contenders := 0
	for i, p := range a.ports {
		if _, ok := p.PendingRead(); !ok {
			continue
		}
		if !a.channel.CanAccept(p.ID()) {
			continue
		}
		contenders++
		if best < 0 || a.scores[i] < a.scores[best] {
			best = i
		}
	}
	if contenders > 1 {
		a.stats.Conflicts++
	}
	if best < 0 {
		return
	}

	p := a.ports[best]
	offset, _ := p.PendingRead()
	if !a.channel.Request(offset, p.ID()) {
		return
	}
	p.GrantRead()
	a.stats.Grants++
	a.renormalize(best)
}

// renormalize charges the serviced unit one point of credit. If charging
// it would leave no unit at score zero, every other unit is discounted
// by one instead, pinning the scoreboard minimum near zero.
func (a *Arbiter) renormalize(serviced int) {
	for i, s := range a.scores {
		if i != serviced && s == 0 {
			a.scores[serviced]++
			return
		}
	}
	for i := range a.scores {
		if i != serviced {
			a.scores[i]--
		}
	}
}

// Scores returns a copy of the fairness scoreboard.
func (a *Arbiter) Scores() []int {
	out := make([]int, len(a.scores))
	copy(out, a.scores)
	return out
}

// Stats returns the arbiter's counters.
func (a *Arbiter) Stats() Stats {
	return a.stats
}
