// Package latency holds the timing configuration for the RANSAC core:
// arithmetic-unit latencies, memory-channel behavior, and the structural
// sizes of the trial pool.
package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds cycle latencies and structural parameters for one
// simulated run. All latencies are in core clock cycles.
type TimingConfig struct {
	// DeriveMACLatency is the plane deriver's multiply-add latency.
	// Default: 4 cycles.
	DeriveMACLatency uint64 `json:"derive_mac_latency"`

	// CheckerMACLatency is the inlier checkers' layer-1 multiply-add
	// latency. Default: 4 cycles.
	CheckerMACLatency uint64 `json:"checker_mac_latency"`

	// CheckerPipelineDepth is the number of layer-1 multiply-adds a
	// checker may have in flight at once. Default: 4.
	CheckerPipelineDepth int `json:"checker_pipeline_depth"`

	// CheckerWideLatency is the checkers' layer-2 wide multiply-add
	// latency. Default: 6 cycles.
	CheckerWideLatency uint64 `json:"checker_wide_latency"`

	// TrialUnitCount is the number of concurrent plane trial units.
	// Default: 4.
	TrialUnitCount int `json:"trial_unit_count"`

	// CheckerCount is the number of inlier checkers per trial unit.
	// Default: 2.
	CheckerCount int `json:"checker_count"`

	// MemMinLatency and MemMaxLatency bound the memory channel's
	// response latency. Defaults: 8 and 40 cycles.
	MemMinLatency uint64 `json:"mem_min_latency"`
	MemMaxLatency uint64 `json:"mem_max_latency"`

	// ReadTimeout is the cycle budget for one granted memory read
	// before the trial aborts with a bus timeout. Default: 1024.
	ReadTimeout uint64 `json:"read_timeout"`

	// ErrorRate and DropRate inject memory faults, per 65536 requests.
	// Defaults: 0 (disabled).
	ErrorRate uint32 `json:"error_rate"`
	DropRate  uint32 `json:"drop_rate"`

	// CacheEnabled puts a read cache in front of the memory channel.
	// Default: false.
	CacheEnabled bool `json:"cache_enabled"`

	// CacheSize is the cache capacity in bytes. Default: 4096.
	CacheSize int `json:"cache_size"`

	// CacheAssociativity is the number of ways per set. Default: 4.
	CacheAssociativity int `json:"cache_associativity"`

	// CacheBlockSize is the cache block size in bytes. Default: 64.
	CacheBlockSize int `json:"cache_block_size"`

	// CacheHitLatency and CacheMissLatency are the response latencies
	// for resident and non-resident blocks. Defaults: 2 and 24 cycles.
	CacheHitLatency  uint64 `json:"cache_hit_latency"`
	CacheMissLatency uint64 `json:"cache_miss_latency"`

	// Seed seeds the pseudo-random sequence generators for triple
	// sampling and memory jitter. A run is fully determined by it.
	// Default: 1.
	Seed uint32 `json:"seed"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		DeriveMACLatency:     4,
		CheckerMACLatency:    4,
		CheckerPipelineDepth: 4,
		CheckerWideLatency:   6,
		TrialUnitCount:       4,
		CheckerCount:         2,
		MemMinLatency:        8,
		MemMaxLatency:        40,
		ReadTimeout:          1024,
		CacheSize:            4096,
		CacheAssociativity:   4,
		CacheBlockSize:       64,
		CacheHitLatency:      2,
		CacheMissLatency:     24,
		Seed:                 1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields absent from
// the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latencies, sizes, and rates are consistent.
func (c *TimingConfig) Validate() error {
	if c.DeriveMACLatency == 0 {
		return fmt.Errorf("derive_mac_latency must be > 0")
	}
	if c.CheckerMACLatency == 0 {
		return fmt.Errorf("checker_mac_latency must be > 0")
	}
	if c.CheckerPipelineDepth < 1 {
		return fmt.Errorf("checker_pipeline_depth must be >= 1")
	}
	if c.CheckerWideLatency == 0 {
		return fmt.Errorf("checker_wide_latency must be > 0")
	}
	if c.TrialUnitCount < 1 {
		return fmt.Errorf("trial_unit_count must be >= 1")
	}
	if c.CheckerCount < 1 {
		return fmt.Errorf("checker_count must be >= 1")
	}
	if c.MemMinLatency > c.MemMaxLatency {
		return fmt.Errorf("mem_min_latency must be <= mem_max_latency")
	}
	if c.ReadTimeout == 0 {
		return fmt.Errorf("read_timeout must be > 0")
	}
	if c.ReadTimeout <= c.MemMaxLatency {
		return fmt.Errorf("read_timeout must exceed mem_max_latency")
	}
	if c.ErrorRate > 65536 {
		return fmt.Errorf("error_rate must be <= 65536")
	}
	if c.DropRate > 65536 {
		return fmt.Errorf("drop_rate must be <= 65536")
	}
	if c.CacheEnabled {
		if c.CacheBlockSize == 0 || c.CacheSize == 0 {
			return fmt.Errorf("cache_size and cache_block_size must be > 0")
		}
		if c.CacheAssociativity < 1 {
			return fmt.Errorf("cache_associativity must be >= 1")
		}
		if c.CacheHitLatency == 0 || c.CacheMissLatency == 0 {
			return fmt.Errorf("cache latencies must be > 0")
		}
		if c.ReadTimeout <= c.CacheMissLatency {
			return fmt.Errorf("read_timeout must exceed cache_miss_latency")
		}
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
