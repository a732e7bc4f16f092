// Package core assembles the cycle-accurate CPU model: the fetch front
// end, the out-of-order engine, and the memory system, ticked in lockstep.
package core

import (
	"github.com/sarchlab/o3sim/emu"
	"github.com/sarchlab/o3sim/timing/cache"
	"github.com/sarchlab/o3sim/timing/frontend"
	"github.com/sarchlab/o3sim/timing/mem"
	"github.com/sarchlab/o3sim/timing/ooo"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// Mispredictions is the number of mispredicted branches.
	Mispredictions uint64
	// SquashedOps is the number of instructions discarded by recovery.
	SquashedOps uint64
	// BranchAccuracy is the branch predictor accuracy percentage.
	BranchAccuracy float64
}

// IPC returns instructions committed per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// CPI returns cycles per committed instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents the full cycle-accurate CPU core model.
type Core struct {
	frontEnd *frontend.FrontEnd
	engine   *ooo.Core
	memory   *mem.SimpleMemory
	l1d      *cache.Cache

	maxCycles uint64
}

// Option is a functional option for configuring the Core.
type Option func(*coreParams)

type coreParams struct {
	engineConfig  ooo.Config
	latencyConfig *mem.LatencyConfig
	l1dConfig     *cache.Config
	maxCycles     uint64
}

// WithEngineConfig overrides the out-of-order engine sizing.
func WithEngineConfig(config ooo.Config) Option {
	return func(p *coreParams) {
		p.engineConfig = config
	}
}

// WithLatencyConfig overrides the memory channel latencies.
func WithLatencyConfig(config *mem.LatencyConfig) Option {
	return func(p *coreParams) {
		p.latencyConfig = config
	}
}

// WithL1DCache attaches an L1 data cache with the given configuration.
func WithL1DCache(config cache.Config) Option {
	return func(p *coreParams) {
		p.l1dConfig = &config
	}
}

// WithMaxCycles bounds Run. A value of 0 means no limit.
func WithMaxCycles(max uint64) Option {
	return func(p *coreParams) {
		p.maxCycles = max
	}
}

// NewCore creates a core executing from the given memory.
func NewCore(memory *emu.Memory, opts ...Option) (*Core, error) {
	params := coreParams{
		engineConfig:  ooo.DefaultConfig(),
		latencyConfig: mem.DefaultLatencyConfig(),
	}
	for _, opt := range opts {
		opt(&params)
	}

	c := &Core{
		maxCycles: params.maxCycles,
	}

	memOpts := []mem.SimpleMemoryOption{
		mem.WithLatencyConfig(params.latencyConfig),
	}
	if params.l1dConfig != nil {
		c.l1d = cache.New(*params.l1dConfig)
		memOpts = append(memOpts, mem.WithLatencyModel(c.l1d))
	}
	c.memory = mem.NewSimpleMemory(memory, memOpts...)

	c.frontEnd = frontend.NewFrontEnd(memory)

	engine, err := ooo.NewCore(params.engineConfig, c.frontEnd, c.memory)
	if err != nil {
		return nil, err
	}
	c.engine = engine

	return c, nil
}

// SetPC sets the fetch program counter.
func (c *Core) SetPC(pc uint32) {
	c.frontEnd.SetPC(pc)
}

// Tick executes one cycle.
func (c *Core) Tick() {
	c.memory.Tick()
	c.engine.Tick()
}

// Halted returns true if the core has stopped.
func (c *Core) Halted() bool {
	return c.engine.Halted()
}

// ExitCode returns the exit code once halted.
func (c *Core) ExitCode() int64 {
	return c.engine.ExitCode()
}

// Err returns the fault that halted the core, if any.
func (c *Core) Err() error {
	return c.engine.Err()
}

// ArchReg returns the committed value of an architectural register.
func (c *Core) ArchReg(i uint8) uint32 {
	return c.engine.ArchReg(i)
}

// SetArchReg initializes an architectural register before execution starts.
func (c *Core) SetArchReg(i uint8, value uint32) {
	c.engine.SetArchReg(i, value)
}

// DrainCommits returns and clears the committed-state event stream.
func (c *Core) DrainCommits() []ooo.CommitEvent {
	return c.engine.DrainCommits()
}

// Engine returns the out-of-order engine.
func (c *Core) Engine() *ooo.Core {
	return c.engine
}

// FrontEnd returns the fetch front end.
func (c *Core) FrontEnd() *frontend.FrontEnd {
	return c.frontEnd
}

// Memory returns the memory model.
func (c *Core) Memory() *mem.SimpleMemory {
	return c.memory
}

// L1D returns the data cache, or nil if none is attached.
func (c *Core) L1D() *cache.Cache {
	return c.l1d
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	engineStats := c.engine.Stats()
	return Stats{
		Cycles:         engineStats.Cycles,
		Instructions:   engineStats.Instructions,
		Mispredictions: engineStats.Mispredictions,
		SquashedOps:    engineStats.SquashedOps,
		BranchAccuracy: c.frontEnd.Predictor().Stats().Accuracy(),
	}
}

// Run executes until the core halts and all committed stores have drained
// to memory. Returns the exit code.
func (c *Core) Run() int64 {
	for !c.engine.Halted() {
		if c.maxCycles > 0 && c.engine.Stats().Cycles >= c.maxCycles {
			return -1
		}
		c.Tick()
	}
	c.drainStores()
	return c.engine.ExitCode()
}

// RunCycles executes the core for the given number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles; i++ {
		if c.engine.Halted() {
			c.drainStores()
			return false
		}
		c.Tick()
	}
	return !c.engine.Halted()
}

func (c *Core) drainStores() {
	for c.engine.PendingStores() > 0 {
		c.Tick()
	}
}
