package mem

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds read-cache configuration parameters.
type CacheConfig struct {
	// Size in bytes.
	Size int
	// Associativity (number of ways).
	Associativity int
	// BlockSize in bytes. One block holds BlockSize/PointStride records.
	BlockSize int
	// HitLatency in cycles.
	HitLatency uint64
	// MissLatency in cycles.
	MissLatency uint64
}

// DefaultCacheConfig returns a small streaming-read cache: 4KB, 4-way,
// 64B lines (four point records per line).
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          4 * 1024,
		Associativity: 4,
		BlockSize:     64,
		HitLatency:    2,
		MissLatency:   24,
	}
}

// CacheStats holds read-cache statistics.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is a read-only point cache using Akita cache components for tag
// and LRU state. The cloud is immutable during a run, so the cache tracks
// only which blocks are resident; record data always comes from the
// backing cloud, and the cache's contribution is latency.
type Cache struct {
	config    CacheConfig
	directory *akitacache.DirectoryImpl
	stats     CacheStats
}

// NewCache creates a cache with the given configuration.
func NewCache(config CacheConfig) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() CacheConfig {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() CacheStats {
	return c.stats
}

// Access probes the cache for the block containing the given byte offset,
// filling it on a miss, and returns the access latency.
func (c *Cache) Access(offset uint64) (latency uint64, hit bool) {
	blockAddr := (offset / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.config.HitLatency, true
	}

	c.stats.Misses++
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return c.config.MissLatency, false
	}
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)
	return c.config.MissLatency, false
}

// Reset invalidates all cache lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = CacheStats{}
}
