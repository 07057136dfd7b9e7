package mem

import (
	"github.com/sarchlab/ransim/arith"
	"github.com/sarchlab/ransim/fixed"
)

// Response is a completed read carrying the transaction id of the request
// that produced it. Err marks a non-success bus status.
type Response struct {
	ID    int
	Point fixed.Point
	Err   bool
}

// ChannelConfig holds channel timing and fault-injection parameters.
// Rates are per 65536 requests; zero disables the fault.
type ChannelConfig struct {
	// MinLatency and MaxLatency bound the response latency in cycles.
	MinLatency uint64
	MaxLatency uint64
	// ErrorRate is the chance a read responds with a bus error.
	ErrorRate uint32
	// DropRate is the chance a read never responds at all.
	DropRate uint32
}

// DefaultChannelConfig returns a channel with a modest latency window and
// no fault injection.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{MinLatency: 8, MaxLatency: 40}
}

// ChannelStats holds channel counters.
type ChannelStats struct {
	Requests uint64
	Errors   uint64
	Drops    uint64
	Hits     uint64
}

type chanReq struct {
	resp      Response
	remaining uint64
}

// Channel is the ordered memory channel serving point reads. It accepts
// one in-flight transaction per id; responses arrive between MinLatency
// and MaxLatency cycles later, possibly out of order across ids, or not
// at all for dropped reads. Latency jitter and faults are drawn from the
// channel's LFSR, so a seed fully determines a run.
type Channel struct {
	cloud *Cloud
	cache *Cache
	cfg   ChannelConfig
	lfsr  *arith.LFSR

	inflight []chanReq
	ready    []Response

	stats ChannelStats
}

// ChannelOption is a functional option for configuring the Channel.
type ChannelOption func(*Channel)

// WithCache puts a read cache in front of the channel; resident blocks
// are served at the cache's hit latency.
func WithCache(cache *Cache) ChannelOption {
	return func(c *Channel) {
		c.cache = cache
	}
}

// NewChannel creates a channel over the given cloud.
func NewChannel(cloud *Cloud, cfg ChannelConfig, lfsr *arith.LFSR, opts ...ChannelOption) *Channel {
	if cfg.MaxLatency < cfg.MinLatency {
		cfg.MaxLatency = cfg.MinLatency
	}
	c := &Channel{cloud: cloud, cfg: cfg, lfsr: lfsr}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanAccept reports whether a read tagged id would be accepted this tick.
func (c *Channel) CanAccept(id int) bool {
	for _, r := range c.inflight {
		if r.resp.ID == id {
			return false
		}
	}
	for _, r := range c.ready {
		if r.ID == id {
			return false
		}
	}
	return true
}

// Request issues a read of the record at offset, tagged id.
func (c *Channel) Request(offset uint64, id int) bool {
	if !c.CanAccept(id) {
		return false
	}
	c.stats.Requests++

	if c.cfg.DropRate > 0 && c.lfsr.Next()&0xFFFF < c.cfg.DropRate {
		c.stats.Drops++
		return true
	}

	resp := Response{ID: id}
	if c.cfg.ErrorRate > 0 && c.lfsr.Next()&0xFFFF < c.cfg.ErrorRate {
		resp.Err = true
		c.stats.Errors++
	} else {
		p, ok := c.cloud.At(offset)
		if !ok {
			resp.Err = true
			c.stats.Errors++
		} else {
			resp.Point = p
		}
	}

	latency := c.latencyFor(offset)
	if latency == 0 {
		latency = 1
	}
	c.inflight = append(c.inflight, chanReq{resp: resp, remaining: latency})
	return true
}

// latencyFor draws the response latency for a read, consulting the cache
// when one is attached.
func (c *Channel) latencyFor(offset uint64) uint64 {
	if c.cache != nil {
		lat, hit := c.cache.Access(offset)
		if hit {
			c.stats.Hits++
		}
		return lat
	}
	span := c.cfg.MaxLatency - c.cfg.MinLatency
	if span == 0 {
		return c.cfg.MinLatency
	}
	return c.cfg.MinLatency + uint64(c.lfsr.Next())%(span+1)
}

// Tick advances every in-flight read one cycle.
func (c *Channel) Tick() {
	kept := c.inflight[:0]
	for _, r := range c.inflight {
		r.remaining--
		if r.remaining == 0 {
			c.ready = append(c.ready, r.resp)
		} else {
			kept = append(kept, r)
		}
	}
	c.inflight = kept
}

// TryTakeResponse takes the oldest completed response, if any.
func (c *Channel) TryTakeResponse() (Response, bool) {
	if len(c.ready) == 0 {
		return Response{}, false
	}
	r := c.ready[0]
	c.ready = c.ready[1:]
	return r, true
}

// Stats returns the channel's counters.
func (c *Channel) Stats() ChannelStats {
	return c.stats
}

// Reset drops all in-flight work and clears counters; an attached cache
// is invalidated as well.
func (c *Channel) Reset() {
	c.inflight = nil
	c.ready = nil
	c.stats = ChannelStats{}
	if c.cache != nil {
		c.cache.Reset()
	}
}
