// Package ransac provides the top-level controller: it drives a pool of
// plane trial units, samples a distinct point triple for every trial,
// tracks the best plane by inlier count, and guarantees the requested
// iteration quota despite per-trial failures.
package ransac

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/timing/trial"
)

// State is the controller's top-level state.
type State int

const (
	// StateIdle means no run is active.
	StateIdle State = iota
	// StateActive means trials are being launched and collected.
	StateActive
	// StateFinalGroupWait means the quota is met and in-flight trials
	// are draining.
	StateFinalGroupWait
	// StateAbortWait means an abort was requested and in-flight trials
	// are draining.
	StateAbortWait
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateActive:
		return "Active"
	case StateFinalGroupWait:
		return "FinalGroupWait"
	case StateAbortWait:
		return "AbortWait"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunConfig describes one RANSAC run.
type RunConfig struct {
	// Base is the cloud's base byte address.
	Base uint64
	// NumPoints is the number of records in the cloud.
	NumPoints int
	// Threshold is the inlier distance tolerance.
	Threshold fixed.Fixed
	// Iterations is the requested number of successful trials.
	Iterations int
}

// Best is the best plane record of a run. It is overwritten whenever a
// trial scores strictly more inliers, and also whenever the recorded
// count is still zero, so a zero-inlier trial can replace another
// zero-inlier plane.
type Best struct {
	Inliers int
	Plane   fixed.Plane
}

// Stats holds controller counters for one run.
type Stats struct {
	// Launched is the number of trials started, replacements included.
	Launched uint64
	// Successes is the number of trials that completed with a count.
	Successes uint64
	// DeriveErrors, BusErrors, and BusTimeouts classify failed trials.
	DeriveErrors uint64
	BusErrors    uint64
	BusTimeouts  uint64
	// BestUpdates is the number of times the best record was replaced.
	BestUpdates uint64
}

// TrialRunner is the controller's view of a plane trial unit.
type TrialRunner interface {
	ID() int
	Busy() bool
	Start(sample [3]int, base uint64, numPoints int, threshold fixed.Fixed)
	Tick() error
	TakeResult() (trial.Result, bool)
}

// Controller drives the trial pool. Each Tick it advances every unit,
// absorbs finished results, and launches new trials while the pending
// iteration count is below the quota. Failed trials do not count toward
// the quota; the controller launches replacements until enough trials
// have been attempted, so a run may launch more than the requested
// number. An abort takes effect between trials only.
type Controller struct {
	gen   *TripleGen
	units []TrialRunner
	log   *zap.Logger

	state   State
	cfg     RunConfig
	pending int
	best    Best
	stats   Stats
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger attaches a structured logger. The default is a no-op.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// NewController creates a controller over the given generator and pool.
func NewController(gen *TripleGen, units []TrialRunner, opts ...Option) *Controller {
	c := &Controller{
		gen:   gen,
		units: units,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a run. The controller must be idle.
func (c *Controller) Start(cfg RunConfig) error {
	if c.state != StateIdle {
		return fmt.Errorf("controller busy in state %s", c.state)
	}
	if cfg.NumPoints < 3 {
		return fmt.Errorf("cloud has %d points, need at least 3", cfg.NumPoints)
	}
	if cfg.Iterations < 1 {
		return fmt.Errorf("requested %d iterations, need at least 1", cfg.Iterations)
	}
	c.cfg = cfg
	c.pending = 0
	c.best = Best{}
	c.stats = Stats{}
	c.gen.SetNumPoints(cfg.NumPoints)
	c.state = StateActive
	c.log.Info("run started",
		zap.Int("num_points", cfg.NumPoints),
		zap.Int("iterations", cfg.Iterations))
	return nil
}

// Abort stops launching new trials and drains the ones in flight. A
// trial already running always finishes on its own; there is no
// mid-trial preemption.
func (c *Controller) Abort() {
	if c.state != StateActive && c.state != StateFinalGroupWait {
		return
	}
	c.state = StateAbortWait
	c.log.Info("abort requested", zap.Int("pending", c.pending))
}

// Tick advances the trial pool one cycle. The only error is the fatal
// scheduler-protocol violation propagated from a unit.
func (c *Controller) Tick() error {
	if c.state == StateIdle {
		return nil
	}

	for _, u := range c.units {
		if err := u.Tick(); err != nil {
			return err
		}
	}
	for _, u := range c.units {
		if r, ok := u.TakeResult(); ok {
			c.absorb(u.ID(), r)
		}
	}

	c.gen.Tick()

	// A failure during the drain hands its iteration back, so the
	// controller resumes launching until the quota is met again.
	if c.state == StateFinalGroupWait && c.pending < c.cfg.Iterations {
		c.state = StateActive
	}

	if c.state == StateActive {
		c.launch()
		if c.pending >= c.cfg.Iterations {
			c.state = StateFinalGroupWait
		}
	}

	if c.state == StateFinalGroupWait || c.state == StateAbortWait {
		if c.allIdle() {
			c.state = StateIdle
			c.log.Info("run finished",
				zap.Uint64("launched", c.stats.Launched),
				zap.Uint64("successes", c.stats.Successes),
				zap.Int("best_inliers", c.best.Inliers))
		}
	}
	return nil
}

// absorb consumes one trial result. Successes compete for the best
// record; failures give their iteration back so a replacement launches.
func (c *Controller) absorb(unit int, r trial.Result) {
	if r.Status == trial.StatusSuccess {
		c.stats.Successes++
		if r.Inliers > c.best.Inliers || c.best.Inliers == 0 {
			c.best = Best{Inliers: r.Inliers, Plane: r.Plane}
			c.stats.BestUpdates++
			c.log.Debug("best plane updated",
				zap.Int("unit", unit),
				zap.Int("inliers", r.Inliers))
		}
		return
	}

	c.pending--
	switch r.Status {
	case trial.StatusDeriveError:
		c.stats.DeriveErrors++
	case trial.StatusBusError:
		c.stats.BusErrors++
	case trial.StatusBusTimeout:
		c.stats.BusTimeouts++
	}
	c.log.Warn("trial failed",
		zap.Int("unit", unit),
		zap.String("status", r.Status.String()))
}

// launch starts trials on idle units for as long as a triple is ready
// and the quota has room.
func (c *Controller) launch() {
	for _, u := range c.units {
		if c.pending >= c.cfg.Iterations {
			return
		}
		if u.Busy() {
			continue
		}
		sample, ok := c.gen.Take()
		if !ok {
			return
		}
		u.Start(sample, c.cfg.Base, c.cfg.NumPoints, c.cfg.Threshold)
		c.pending++
		c.stats.Launched++
	}
}

func (c *Controller) allIdle() bool {
	for _, u := range c.units {
		if u.Busy() {
			return false
		}
	}
	return true
}

// State returns the controller's current state.
func (c *Controller) State() State {
	return c.state
}

// Done reports whether the controller is idle.
func (c *Controller) Done() bool {
	return c.state == StateIdle
}

// Best returns the best plane record of the current or last run.
func (c *Controller) Best() Best {
	return c.best
}

// Processed returns the number of successfully completed iterations.
func (c *Controller) Processed() uint64 {
	return c.stats.Successes
}

// Stats returns the controller's counters.
func (c *Controller) Stats() Stats {
	return c.stats
}
