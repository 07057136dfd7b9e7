// Package trial provides the plane trial unit: the per-trial orchestrator
// that fetches three sample points, derives a candidate plane, and streams
// the remaining cloud through a pool of inlier checkers.
package trial

import (
	"fmt"

	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/mem"
	"github.com/sarchlab/ransim/timing/derive"
	"github.com/sarchlab/ransim/timing/inlier"
)

// Status is the outcome of one trial.
type Status int

const (
	// StatusSuccess means the trial completed with a valid inlier count.
	StatusSuccess Status = iota
	// StatusDeriveError means the three sample points were degenerate.
	StatusDeriveError
	// StatusBusError means memory responded with a non-success code.
	StatusBusError
	// StatusBusTimeout means a read exceeded the cycle budget.
	StatusBusTimeout
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusDeriveError:
		return "DeriveError"
	case StatusBusError:
		return "BusError"
	case StatusBusTimeout:
		return "BusTimeout"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is what one trial produced. Failed trials carry no partial
// inlier count.
type Result struct {
	Status  Status
	Inliers int
	Plane   fixed.Plane
}

// Config holds the per-unit structural and timing parameters.
type Config struct {
	// CheckerCount is the number of inlier checkers per trial unit.
	CheckerCount int
	// DeriveMACLatency is the plane deriver's multiply-add latency.
	DeriveMACLatency uint64
	// CheckerMACLatency is the checkers' layer-1 multiply-add latency.
	CheckerMACLatency uint64
	// CheckerPipelineDepth is the layer-1 unit's pipeline depth.
	CheckerPipelineDepth int
	// CheckerWideLatency is the checkers' layer-2 multiply-add latency.
	CheckerWideLatency uint64
	// ReadTimeout is the cycle budget for one granted memory read.
	ReadTimeout uint64
}

// unitState is the trial unit's top-level state.
type unitState int

const (
	stateIdle unitState = iota
	stateAwaitPlanePoints
	stateAwaitDerivedPlane
	stateIterateOverCloud
)

// Stats holds counters for one trial unit.
type Stats struct {
	Trials        uint64
	Successes     uint64
	DeriveErrors  uint64
	BusErrors     uint64
	BusTimeouts   uint64
	PointsChecked uint64
	StaleDrops    uint64
}

// Unit runs one RANSAC trial at a time: fetch the three defining points,
// derive the plane, then stream the rest of the cloud through the
// checker pool. It issues at most one memory read at a time; the arbiter
// polls PendingRead, confirms with GrantRead, and routes the eventual
// response back through Deliver.
type Unit struct {
	id  int
	cfg Config

	deriver  *derive.Deriver
	checkers []*inlier.Checker

	state     unitState
	threshold fixed.Fixed
	plane     fixed.Plane

	base      uint64
	numPoints int
	sample    [3]int

	planeSlots [3]MemorySlot
	streamSlot MemorySlot
	readAge    uint64

	nextStream int
	issuedAll  bool
	buffered   fixed.Point
	hasBuffer  bool
	inliers    int

	result    Result
	hasResult bool

	stats Stats
}

// NewUnit creates a trial unit with the given identity.
func NewUnit(id int, cfg Config) *Unit {
	if cfg.CheckerCount < 1 {
		cfg.CheckerCount = 1
	}
	checkers := make([]*inlier.Checker, cfg.CheckerCount)
	for i := range checkers {
		checkers[i] = inlier.New(
			cfg.CheckerMACLatency, cfg.CheckerPipelineDepth, cfg.CheckerWideLatency)
	}
	u := &Unit{
		id:       id,
		cfg:      cfg,
		deriver:  derive.New(cfg.DeriveMACLatency),
		checkers: checkers,
	}
	for i := range u.planeSlots {
		u.planeSlots[i].ID = i
	}
	u.streamSlot.ID = len(u.planeSlots)
	return u
}

// ID returns the unit's identity, used as its memory transaction tag.
func (u *Unit) ID() int {
	return u.id
}

// Busy reports whether a trial is in flight.
func (u *Unit) Busy() bool {
	return u.state != stateIdle
}

// Start begins a trial over the cloud at base with numPoints records,
// sampling the three given record indices. The unit must be idle.
func (u *Unit) Start(sample [3]int, base uint64, numPoints int, threshold fixed.Fixed) {
	u.base = base
	u.numPoints = numPoints
	u.sample = sample
	u.threshold = threshold
	u.plane = fixed.Plane{}
	u.inliers = 0
	u.nextStream = 0
	u.issuedAll = false
	u.hasBuffer = false
	u.hasResult = false
	u.readAge = 0
	for i := range u.planeSlots {
		u.planeSlots[i].request(u.base + uint64(sample[i])*mem.PointStride)
	}
	u.streamSlot.clear()
	for _, c := range u.checkers {
		c.Reset()
	}
	u.state = stateAwaitPlanePoints
	u.stats.Trials++
}

// PendingRead returns the byte offset the unit wants to read, if any.
func (u *Unit) PendingRead() (uint64, bool) {
	if s := u.unreadSlot(); s != nil {
		return s.Offset, true
	}
	return 0, false
}

// GrantRead confirms that the pending read was issued to the channel.
func (u *Unit) GrantRead() {
	if s := u.unreadSlot(); s != nil {
		s.State = SlotReading
		u.readAge = 0
	}
}

// Deliver routes a memory response to the slot with the read in flight.
// A response with no read in flight is a stale leftover from a timed-out
// trial and is dropped.
func (u *Unit) Deliver(resp mem.Response) {
	s := u.readingSlot()
	if s == nil {
		u.stats.StaleDrops++
		return
	}
	if resp.Err {
		s.State = SlotError
		return
	}
	s.Value = resp.Point
	s.State = SlotRead
}

func (u *Unit) unreadSlot() *MemorySlot {
	switch u.state {
	case stateAwaitPlanePoints:
		for i := range u.planeSlots {
			if u.planeSlots[i].State == SlotUnread {
				return &u.planeSlots[i]
			}
		}
	case stateIterateOverCloud:
		if u.streamSlot.State == SlotUnread {
			return &u.streamSlot
		}
	}
	return nil
}

func (u *Unit) readingSlot() *MemorySlot {
	for i := range u.planeSlots {
		if u.planeSlots[i].State == SlotReading {
			return &u.planeSlots[i]
		}
	}
	if u.streamSlot.State == SlotReading {
		return &u.streamSlot
	}
	return nil
}

// Tick advances the trial one cycle. The only error is the fatal
// scheduler-protocol violation from a deriver or checker.
func (u *Unit) Tick() error {
	switch u.state {
	case stateAwaitPlanePoints:
		return u.tickAwaitPlanePoints()
	case stateAwaitDerivedPlane:
		return u.tickAwaitDerivedPlane()
	case stateIterateOverCloud:
		return u.tickIterateOverCloud()
	}
	return nil
}

func (u *Unit) tickAwaitPlanePoints() error {
	if u.busFault(u.readingSlot()) {
		return nil
	}
	for i := range u.planeSlots {
		if u.planeSlots[i].State == SlotError {
			u.finish(StatusBusError)
			return nil
		}
	}
	for i := range u.planeSlots {
		if u.planeSlots[i].State != SlotRead {
			return nil
		}
	}
	u.deriver.Start(
		u.planeSlots[0].Value, u.planeSlots[1].Value, u.planeSlots[2].Value)
	u.state = stateAwaitDerivedPlane
	return nil
}

func (u *Unit) tickAwaitDerivedPlane() error {
	if err := u.deriver.Tick(); err != nil {
		return err
	}
	if !u.deriver.Done() {
		return nil
	}
	plane, degenerate := u.deriver.Result()
	if degenerate {
		u.finish(StatusDeriveError)
		return nil
	}
	u.plane = plane
	u.state = stateIterateOverCloud
	u.armNextStreamRead()
	return nil
}

func (u *Unit) tickIterateOverCloud() error {
	// Collect finished checkers first so freed ones can take the
	// buffered point this same tick.
	for _, c := range u.checkers {
		if err := c.Tick(); err != nil {
			return err
		}
		if inside, ok := c.TakeResult(); ok {
			u.stats.PointsChecked++
			if inside {
				u.inliers++
			}
		}
	}

	if u.hasBuffer {
		for _, c := range u.checkers {
			if c.Free() {
				c.Start(u.plane, u.buffered, u.threshold)
				u.hasBuffer = false
				break
			}
		}
	}

	if u.busFault(u.readingSlot()) {
		return nil
	}
	if u.streamSlot.State == SlotError {
		u.finish(StatusBusError)
		return nil
	}

	// Move a completed read into the dispatch buffer and arm the next
	// read as soon as the slot is free again.
	if u.streamSlot.State == SlotRead && !u.hasBuffer {
		u.buffered = u.streamSlot.Value
		u.hasBuffer = true
		u.streamSlot.clear()
		u.armNextStreamRead()
	}

	if u.issuedAll && !u.hasBuffer && u.streamSlot.State == SlotKeepUnread {
		for _, c := range u.checkers {
			if !c.Free() {
				return nil
			}
		}
		u.result = Result{Status: StatusSuccess, Inliers: u.inliers, Plane: u.plane}
		u.hasResult = true
		u.state = stateIdle
		u.stats.Successes++
	}
	return nil
}

// busFault ages a read in flight and aborts the trial on budget overrun.
// It reports whether the trial ended.
func (u *Unit) busFault(s *MemorySlot) bool {
	if s == nil {
		return false
	}
	u.readAge++
	if u.readAge > u.cfg.ReadTimeout {
		u.finish(StatusBusTimeout)
		return true
	}
	return false
}

// armNextStreamRead points the stream slot at the next cloud record that
// is not one of the three samples.
func (u *Unit) armNextStreamRead() {
	for u.nextStream < u.numPoints {
		i := u.nextStream
		u.nextStream++
		if i == u.sample[0] || i == u.sample[1] || i == u.sample[2] {
			continue
		}
		u.streamSlot.request(u.base + uint64(i)*mem.PointStride)
		return
	}
	u.issuedAll = true
}

// finish ends the trial with a failure status. No partial inlier count is
// reported.
func (u *Unit) finish(status Status) {
	u.result = Result{Status: status, Plane: u.plane}
	if status != StatusSuccess {
		u.result.Inliers = 0
	}
	u.hasResult = true
	u.state = stateIdle
	switch status {
	case StatusDeriveError:
		u.stats.DeriveErrors++
	case StatusBusError:
		u.stats.BusErrors++
	case StatusBusTimeout:
		u.stats.BusTimeouts++
	}
}

// TakeResult returns the trial's result if one is ready, consuming it.
func (u *Unit) TakeResult() (Result, bool) {
	if !u.hasResult {
		return Result{}, false
	}
	u.hasResult = false
	return u.result, true
}

// Stats returns the unit's counters.
func (u *Unit) Stats() Stats {
	return u.stats
}
