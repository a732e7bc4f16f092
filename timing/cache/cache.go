// Package cache models an L1 data cache using Akita cache components.
//
// The cache tracks tags, LRU state, and dirty bits; data lives in the
// simulator's single backing store, so the cache only decides how many
// cycles each access costs. It plugs into the memory model as a latency
// source for the load and store channels.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64
	// WritebackLatency is the extra cycles charged when a miss evicts a
	// dirty block.
	WritebackLatency uint64
}

// DefaultL1DConfig returns a configuration for a small embedded-class L1
// data cache: 16KB, 4-way, 32B lines.
func DefaultL1DConfig() Config {
	return Config{
		Size:             16 * 1024,
		Associativity:    4,
		BlockSize:        32,
		HitLatency:       2,
		MissLatency:      20,
		WritebackLatency: 10,
	}
}

// AccessResult describes the outcome of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Evicted is true if the access displaced a valid block.
	Evicted bool
	// EvictedAddr is the block-aligned address of the evicted block.
	EvictedAddr uint32
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Cache is a write-allocate, writeback L1 data cache timing model.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a cache with the given configuration.
func New(config Config) *Cache {
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
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// HitRate returns the fraction of accesses that hit.
func (c *Cache) HitRate() float64 {
	total := c.stats.Hits + c.stats.Misses
	if total == 0 {
		return 0
	}
	return float64(c.stats.Hits) / float64(total)
}

// Read models a load access and returns its timing.
func (c *Cache) Read(addr uint32, size int) AccessResult {
	c.stats.Reads++
	return c.access(addr, false)
}

// Write models a store access and returns its timing. Write-allocate: a
// miss fetches the block, then marks it dirty.
func (c *Cache) Write(addr uint32, size int) AccessResult {
	c.stats.Writes++
	result := c.access(addr, true)
	return result
}

// LoadLatency implements the memory model's latency hook for loads.
func (c *Cache) LoadLatency(addr uint32, size int) uint64 {
	return c.Read(addr, size).Latency
}

// StoreLatency implements the memory model's latency hook for stores.
func (c *Cache) StoreLatency(addr uint32, size int) uint64 {
	return c.Write(addr, size).Latency
}

func (c *Cache) access(addr uint32, isWrite bool) AccessResult {
	blockAddr := c.blockAlign(addr)

	block := c.directory.Lookup(0, uint64(blockAddr))
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if isWrite {
			block.IsDirty = true
		}
		return AccessResult{
			Hit:     true,
			Latency: c.config.HitLatency,
		}
	}

	c.stats.Misses++
	return c.handleMiss(blockAddr, isWrite)
}

func (c *Cache) handleMiss(blockAddr uint32, isWrite bool) AccessResult {
	result := AccessResult{
		Latency: c.config.MissLatency,
	}

	victim := c.directory.FindVictim(uint64(blockAddr))
	if victim == nil {
		return result
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = uint32(victim.Tag)
		if victim.IsDirty {
			c.stats.Writebacks++
			result.Latency += c.config.WritebackLatency
		}
	}

	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)

	return result
}

// Invalidate marks the line holding addr as invalid without writeback.
func (c *Cache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, uint64(c.blockAlign(addr)))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Reset invalidates all lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

func (c *Cache) blockAlign(addr uint32) uint32 {
	return addr / uint32(c.config.BlockSize) * uint32(c.config.BlockSize)
}
