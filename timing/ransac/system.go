package ransac

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/fixed"
	"github.com/sarchlab/ransim/mem"
	"github.com/sarchlab/ransim/timing/arbiter"
	"github.com/sarchlab/ransim/timing/latency"
	"github.com/sarchlab/ransim/timing/trial"
)

// System assembles the full core from a timing configuration: the memory
// channel over the cloud, the trial pool, the arbiter between them, and
// the controller on top. Tick advances everything one cycle in lockstep.
type System struct {
	cfg *latency.TimingConfig

	cloud      *mem.Cloud
	cache      *mem.Cache
	channel    *mem.Channel
	units      []*trial.Unit
	arbiter    *arbiter.Arbiter
	controller *Controller

	cycles uint64
}

// SystemOption is a functional option for configuring the System.
type SystemOption func(*System)

// WithSystemLogger attaches a structured logger to the controller.
func WithSystemLogger(log *zap.Logger) SystemOption {
	return func(s *System) {
		s.controller.log = log
	}
}

// NewSystem builds a system over the given cloud.
func NewSystem(cloud *mem.Cloud, cfg *latency.TimingConfig, opts ...SystemOption) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}
	cfg = cfg.Clone()

	s := &System{cfg: cfg, cloud: cloud}

	chCfg := mem.ChannelConfig{
		MinLatency: cfg.MemMinLatency,
		MaxLatency: cfg.MemMaxLatency,
		ErrorRate:  cfg.ErrorRate,
		DropRate:   cfg.DropRate,
	}
	var chOpts []mem.ChannelOption
	if cfg.CacheEnabled {
		s.cache = mem.NewCache(mem.CacheConfig{
			Size:          cfg.CacheSize,
			Associativity: cfg.CacheAssociativity,
			BlockSize:     cfg.CacheBlockSize,
			HitLatency:    cfg.CacheHitLatency,
			MissLatency:   cfg.CacheMissLatency,
		})
		chOpts = append(chOpts, mem.WithCache(s.cache))
	}
	s.channel = mem.NewChannel(cloud, chCfg, arith.NewLFSR(cfg.Seed), chOpts...)

	unitCfg := trial.Config{
		CheckerCount:         cfg.CheckerCount,
		DeriveMACLatency:     cfg.DeriveMACLatency,
		CheckerMACLatency:    cfg.CheckerMACLatency,
		CheckerPipelineDepth: cfg.CheckerPipelineDepth,
		CheckerWideLatency:   cfg.CheckerWideLatency,
		ReadTimeout:          cfg.ReadTimeout,
	}
	ports := make([]arbiter.Requester, cfg.TrialUnitCount)
	runners := make([]TrialRunner, cfg.TrialUnitCount)
	s.units = make([]*trial.Unit, cfg.TrialUnitCount)
	for i := range s.units {
		s.units[i] = trial.NewUnit(i, unitCfg)
		ports[i] = s.units[i]
		runners[i] = s.units[i]
	}
	s.arbiter = arbiter.New(s.channel, ports...)

	// The sampler gets its own sequence so memory jitter does not
	// perturb which triples a seed selects.
	gen := NewTripleGen(arith.NewLFSR(cfg.Seed^0x9E3779B9), cloud.NumPoints())
	s.controller = NewController(gen, runners)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins a run over the full cloud.
func (s *System) Start(iterations int, threshold fixed.Fixed) error {
	return s.controller.Start(RunConfig{
		Base:       s.cloud.Base(),
		NumPoints:  s.cloud.NumPoints(),
		Threshold:  threshold,
		Iterations: iterations,
	})
}

// Tick advances the whole system one cycle: responses route back first,
// then every unit steps, then the channel ages its in-flight reads.
func (s *System) Tick() error {
	s.arbiter.Tick()
	if err := s.controller.Tick(); err != nil {
		return err
	}
	s.channel.Tick()
	s.cycles++
	return nil
}

// Run drives the system until the controller goes idle or maxCycles
// elapse, returning the best record found.
func (s *System) Run(maxCycles uint64) (Best, error) {
	for i := uint64(0); i < maxCycles; i++ {
		if err := s.Tick(); err != nil {
			return Best{}, err
		}
		if s.controller.Done() {
			return s.controller.Best(), nil
		}
	}
	return Best{}, fmt.Errorf("run did not finish within %d cycles", maxCycles)
}

// Controller returns the system's controller.
func (s *System) Controller() *Controller {
	return s.controller
}

// Channel returns the system's memory channel.
func (s *System) Channel() *mem.Channel {
	return s.channel
}

// Cache returns the read cache, or nil when disabled.
func (s *System) Cache() *mem.Cache {
	return s.cache
}

// Units returns the trial pool.
func (s *System) Units() []*trial.Unit {
	return s.units
}

// Arbiter returns the memory arbiter.
func (s *System) Arbiter() *arbiter.Arbiter {
	return s.arbiter
}

// Cycles returns the number of cycles simulated so far.
func (s *System) Cycles() uint64 {
	return s.cycles
}
