package mem

import (
	"github.com/sarchlab/o3sim/emu"
)

// LatencyModel computes per-access latency. The cache package provides an
// implementation backed by Akita cache components; without one, fixed
// latencies from LatencyConfig apply.
type LatencyModel interface {
	// LoadLatency returns the cycles for a load of size bytes at addr.
	LoadLatency(addr uint32, size int) uint64
	// StoreLatency returns the cycles for a store of size bytes at addr.
	StoreLatency(addr uint32, size int) uint64
}

// Stats holds memory-channel statistics.
type Stats struct {
	// Loads is the number of load requests accepted.
	Loads uint64
	// Stores is the number of store requests accepted.
	Stores uint64
	// LoadRejects counts load requests rejected because the channel was busy.
	LoadRejects uint64
	// StoreRejects counts store requests rejected because the channel was busy.
	StoreRejects uint64
}

// SimpleMemory implements Port over a shared backing store with one
// outstanding load and one outstanding store. It must be ticked once per
// simulated cycle, before the core.
type SimpleMemory struct {
	backing *emu.Memory
	config  *LatencyConfig
	model   LatencyModel

	loadBusy      bool
	loadReq       LoadRequest
	loadRemaining uint64
	loadResp      LoadResponse
	loadRespReady bool

	storeBusy      bool
	storeReq       StoreRequest
	storeRemaining uint64
	storeAckReady  bool

	stats Stats
}

// SimpleMemoryOption is a functional option for configuring SimpleMemory.
type SimpleMemoryOption func(*SimpleMemory)

// WithLatencyModel attaches a per-access latency model (e.g. an L1 cache).
func WithLatencyModel(model LatencyModel) SimpleMemoryOption {
	return func(m *SimpleMemory) {
		m.model = model
	}
}

// WithLatencyConfig sets the fixed channel latencies.
func WithLatencyConfig(config *LatencyConfig) SimpleMemoryOption {
	return func(m *SimpleMemory) {
		m.config = config
	}
}

// NewSimpleMemory creates a memory model over the given backing store.
func NewSimpleMemory(backing *emu.Memory, opts ...SimpleMemoryOption) *SimpleMemory {
	m := &SimpleMemory{
		backing: backing,
		config:  DefaultLatencyConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backing returns the underlying byte store.
func (m *SimpleMemory) Backing() *emu.Memory {
	return m.backing
}

// Stats returns channel statistics.
func (m *SimpleMemory) Stats() Stats {
	return m.stats
}

// Tick advances both channels by one cycle.
func (m *SimpleMemory) Tick() {
	if m.loadBusy && !m.loadRespReady {
		if m.loadRemaining > 0 {
			m.loadRemaining--
		}
		if m.loadRemaining == 0 {
			m.loadResp = LoadResponse{
				Tag:  m.loadReq.Tag,
				Data: m.readBacking(m.loadReq.Addr, m.loadReq.Size),
			}
			m.loadRespReady = true
		}
	}

	if m.storeBusy && !m.storeAckReady {
		if m.storeRemaining > 0 {
			m.storeRemaining--
		}
		if m.storeRemaining == 0 {
			m.applyStore(m.storeReq)
			m.storeAckReady = true
		}
	}
}

// IssueLoad presents a load request; see Port.
func (m *SimpleMemory) IssueLoad(req LoadRequest) bool {
	if m.loadBusy {
		m.stats.LoadRejects++
		return false
	}
	m.loadBusy = true
	m.loadReq = req
	m.loadRemaining = m.config.LoadLatency
	if m.model != nil {
		m.loadRemaining = m.model.LoadLatency(req.Addr, req.Size)
	}
	m.stats.Loads++
	return true
}

// PeekLoadResponse returns the pending load response, if any.
func (m *SimpleMemory) PeekLoadResponse() (LoadResponse, bool) {
	return m.loadResp, m.loadRespReady
}

// TakeLoadResponse consumes the pending load response and frees the channel.
func (m *SimpleMemory) TakeLoadResponse() {
	m.loadRespReady = false
	m.loadBusy = false
}

// IssueStore presents a store request; see Port.
func (m *SimpleMemory) IssueStore(req StoreRequest) bool {
	if m.storeBusy {
		m.stats.StoreRejects++
		return false
	}
	m.storeBusy = true
	m.storeReq = req
	m.storeRemaining = m.config.StoreLatency
	if m.model != nil {
		m.storeRemaining = m.model.StoreLatency(req.Addr, maskSize(req.Mask))
	}
	m.stats.Stores++
	return true
}

// TakeStoreAck consumes the store completion acknowledgment, if available.
func (m *SimpleMemory) TakeStoreAck() bool {
	if !m.storeAckReady {
		return false
	}
	m.storeAckReady = false
	m.storeBusy = false
	return true
}

func (m *SimpleMemory) readBacking(addr uint32, size int) uint32 {
	switch size {
	case 1:
		return uint32(m.backing.Read8(addr))
	case 2:
		return uint32(m.backing.Read16(addr))
	default:
		return m.backing.Read32(addr)
	}
}

func (m *SimpleMemory) applyStore(req StoreRequest) {
	for i := 0; i < 4; i++ {
		if req.Mask&(1<<i) != 0 {
			m.backing.Write8(req.Addr+uint32(i), uint8(req.Data>>(8*i)))
		}
	}
}

func maskSize(mask uint8) int {
	n := 0
	for i := 0; i < 4; i++ {
		if mask&(1<<i) != 0 {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}
