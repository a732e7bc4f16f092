package ooo

import (
	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/mem"
)

// LSUStats holds load-store unit statistics.
type LSUStats struct {
	// Loads is the number of loads executed.
	Loads uint64
	// Stores is the number of stores executed.
	Stores uint64
	// FullForwards counts loads satisfied entirely from the store queue.
	FullForwards uint64
	// PartialForwards counts loads that merged forwarded bytes with a
	// memory read.
	PartialForwards uint64
	// Faults counts misaligned accesses.
	Faults uint64
}

type sqEntry struct {
	valid    bool
	robIndex int
	gen      uint32
	seq      uint64
	size     int

	addr      uint32
	addrReady bool
	data      uint32
	dataReady bool

	committed bool
	sent      bool
}

func (e *sqEntry) covers(byteAddr uint32) bool {
	return e.addrReady && byteAddr >= e.addr && byteAddr < e.addr+uint32(e.size)
}

func (e *sqEntry) byteAt(byteAddr uint32) uint8 {
	return uint8(e.data >> (8 * (byteAddr - e.addr)))
}

// LSU is the load-store unit: a store queue filled at dispatch and executed
// out of order, an in-order memory drain for committed stores, and a
// deliberately conservative load path. A load starts only once every older
// store has its address and data (or has committed), then forwards per
// byte: the youngest matching uncommitted store wins, falling back to the
// oldest matching committed store, falling back to memory. One load and one
// store may be outstanding at a time; these are hard capacity limits.
type LSU struct {
	port mem.Port

	sq     []sqEntry
	sqHead int
	sqTail int
	sqCnt  int

	// Load holding register: one load in flight at a time.
	loadValid  bool
	loadOp     RenamedOp
	loadAddr   uint32
	loadFwd    [4]uint8
	loadFwdMsk uint8
	loadIssued bool
	loadTag    uint64
	nextTag    uint64

	loadResult      WritebackPacket
	loadResultValid bool

	storeResult      WritebackPacket
	storeResultValid bool

	stats LSUStats
}

// NewLSU creates a load-store unit with the given store-queue depth,
// driving the given memory port.
func NewLSU(sqDepth int, port mem.Port) *LSU {
	return &LSU{
		port: port,
		sq:   make([]sqEntry, sqDepth),
	}
}

// Stats returns load-store statistics.
func (l *LSU) Stats() LSUStats {
	return l.stats
}

// StoreQueueLen returns the number of live store-queue entries.
func (l *LSU) StoreQueueLen() int {
	return l.sqCnt
}

// Idle reports whether no memory work is pending.
func (l *LSU) Idle() bool {
	return l.sqCnt == 0 && !l.loadValid && !l.loadResultValid && !l.storeResultValid
}

// CanAcceptStore reports whether a store-queue entry is free for dispatch.
func (l *LSU) CanAcceptStore() bool {
	return l.sqCnt < len(l.sq)
}

// DispatchStore allocates a store-queue entry at the tail with empty
// address and data. The caller must check CanAcceptStore.
func (l *LSU) DispatchStore(op RenamedOp) {
	l.sq[l.sqTail] = sqEntry{
		valid:    true,
		robIndex: op.ROBIndex,
		gen:      op.Gen,
		seq:      op.Seq,
		size:     op.Inst.AccessSize(),
	}
	l.sqTail = l.sqNext(l.sqTail)
	l.sqCnt++
}

// CanExecStore reports whether the store completion buffer is free.
func (l *LSU) CanExecStore() bool {
	return !l.storeResultValid
}

// ExecStore runs a store's address generation, filling its store-queue
// entry and buffering the completion that marks the store done in the
// reorder buffer.
func (l *LSU) ExecStore(op RenamedOp, base, data uint32) {
	addr := base + uint32(op.Inst.Imm)
	size := op.Inst.AccessSize()
	l.stats.Stores++

	pkt := WritebackPacket{
		ROBIndex: op.ROBIndex,
		Gen:      op.Gen,
		PC:       op.PC,
		IsStore:  true,
		Addr:     addr,
	}
	if addr%uint32(size) != 0 {
		pkt.Fault = true
		l.stats.Faults++
	}

	for i := range l.sq {
		e := &l.sq[i]
		if e.valid && e.robIndex == op.ROBIndex && e.gen == op.Gen {
			e.addr = addr
			e.addrReady = true
			e.data = data
			e.dataReady = true
			break
		}
	}

	l.storeResult = pkt
	l.storeResultValid = true
}

// CanStartLoad reports whether a load with the given sequence number may
// begin: the load channel must be free and every older store must have its
// address and data resolved or be committed.
func (l *LSU) CanStartLoad(seq uint64) bool {
	if l.loadValid || l.loadResultValid {
		return false
	}
	return l.olderStoresReady(seq)
}

func (l *LSU) olderStoresReady(seq uint64) bool {
	for i := range l.sq {
		e := &l.sq[i]
		if !e.valid || e.seq >= seq {
			continue
		}
		if !e.committed && !(e.addrReady && e.dataReady) {
			return false
		}
	}
	return true
}

// ExecLoad runs a load's address generation and forwarding scan. A fully
// forwarded load completes without touching memory; otherwise the load
// parks in the holding register and a single tagged memory read is issued.
func (l *LSU) ExecLoad(op RenamedOp, base uint32) {
	addr := base + uint32(op.Inst.Imm)
	size := op.Inst.AccessSize()
	l.stats.Loads++

	if addr%uint32(size) != 0 {
		l.stats.Faults++
		l.loadResult = WritebackPacket{
			ROBIndex: op.ROBIndex,
			Gen:      op.Gen,
			PC:       op.PC,
			IsLoad:   true,
			Addr:     addr,
			Fault:    true,
		}
		l.loadResultValid = true
		return
	}

	var fwd [4]uint8
	var mask uint8
	for i := 0; i < size; i++ {
		if b, ok := l.forwardByte(addr+uint32(i), op.Seq); ok {
			fwd[i] = b
			mask |= 1 << i
		}
	}

	if mask == uint8(1<<size)-1 {
		l.stats.FullForwards++
		var raw uint32
		for i := 0; i < size; i++ {
			raw |= uint32(fwd[i]) << (8 * i)
		}
		l.completeLoad(op, addr, raw)
		return
	}

	l.loadValid = true
	l.loadOp = op
	l.loadAddr = addr
	l.loadFwd = fwd
	l.loadFwdMsk = mask
	l.loadIssued = false
	l.loadTag = l.nextTag
	l.nextTag++
	if mask != 0 {
		l.stats.PartialForwards++
	}
}

// forwardByte resolves one byte of a load against all older store-queue
// entries: youngest matching uncommitted store first, then oldest matching
// committed store.
func (l *LSU) forwardByte(byteAddr uint32, loadSeq uint64) (uint8, bool) {
	var youngestUncommitted, oldestCommitted *sqEntry
	for i := range l.sq {
		e := &l.sq[i]
		if !e.valid || e.seq >= loadSeq || !e.dataReady || !e.covers(byteAddr) {
			continue
		}
		if e.committed {
			if oldestCommitted == nil || e.seq < oldestCommitted.seq {
				oldestCommitted = e
			}
		} else {
			if youngestUncommitted == nil || e.seq > youngestUncommitted.seq {
				youngestUncommitted = e
			}
		}
	}
	if youngestUncommitted != nil {
		return youngestUncommitted.byteAt(byteAddr), true
	}
	if oldestCommitted != nil {
		return oldestCommitted.byteAt(byteAddr), true
	}
	return 0, false
}

func (l *LSU) completeLoad(op RenamedOp, addr, raw uint32) {
	l.loadResult = WritebackPacket{
		ROBIndex: op.ROBIndex,
		Gen:      op.Gen,
		PC:       op.PC,
		HasDest:  op.HasDest,
		Dest:     op.Dest,
		Value:    extendLoad(op.Inst, raw),
		IsLoad:   true,
		Addr:     addr,
	}
	l.loadResultValid = true
}

// CollectResponses consumes memory responses at the start of the cycle:
// a load response is merged with forwarded bytes (forwarded bytes win) or
// dropped if its tag no longer matches the holding register, and a store
// acknowledgment retires the store-queue head.
func (l *LSU) CollectResponses() {
	if resp, ok := l.port.PeekLoadResponse(); ok {
		if l.loadValid && resp.Tag == l.loadTag {
			size := l.loadOp.Inst.AccessSize()
			var raw uint32
			for i := 0; i < size; i++ {
				b := uint8(resp.Data >> (8 * i))
				if l.loadFwdMsk&(1<<i) != 0 {
					b = l.loadFwd[i]
				}
				raw |= uint32(b) << (8 * i)
			}
			l.completeLoad(l.loadOp, l.loadAddr, raw)
			l.loadValid = false
		}
		l.port.TakeLoadResponse()
	}

	if l.port.TakeStoreAck() {
		l.sq[l.sqHead].valid = false
		l.sqHead = l.sqNext(l.sqHead)
		l.sqCnt--
	}
}

// TryMemOps issues pending memory operations: the store-queue head drains
// once committed with address and data ready, and a parked load issues its
// memory read. Rejected requests retry next cycle.
func (l *LSU) TryMemOps() {
	if l.sqCnt > 0 {
		e := &l.sq[l.sqHead]
		if e.committed && e.addrReady && e.dataReady && !e.sent {
			shift := 8 * (e.addr & 3)
			req := mem.StoreRequest{
				Addr: e.addr &^ 3,
				Data: e.data << shift,
				Mask: (uint8(1)<<e.size - 1) << (e.addr & 3),
			}
			if l.port.IssueStore(req) {
				e.sent = true
			}
		}
	}

	if l.loadValid && !l.loadIssued {
		req := mem.LoadRequest{
			Addr: l.loadAddr,
			Size: l.loadOp.Inst.AccessSize(),
			Tag:  l.loadTag,
		}
		if l.port.IssueLoad(req) {
			l.loadIssued = true
		}
	}
}

// PeekStoreCompletion returns the pending store completion, if any.
func (l *LSU) PeekStoreCompletion() (WritebackPacket, bool) {
	return l.storeResult, l.storeResultValid
}

// DrainStoreCompletion releases the pending store completion.
func (l *LSU) DrainStoreCompletion() {
	l.storeResultValid = false
}

// PeekLoadCompletion returns the pending load completion, if any.
func (l *LSU) PeekLoadCompletion() (WritebackPacket, bool) {
	return l.loadResult, l.loadResultValid
}

// DrainLoadCompletion releases the pending load completion.
func (l *LSU) DrainLoadCompletion() {
	l.loadResultValid = false
}

// MarkCommitted flags a store-queue entry as committed, allowing it to
// drain, and returns the committed write for the architectural-state
// output.
func (l *LSU) MarkCommitted(robIndex int, gen uint32) (addr uint32, size int, data uint32, ok bool) {
	for i := range l.sq {
		e := &l.sq[i]
		if e.valid && e.robIndex == robIndex && e.gen == gen && !e.committed {
			e.committed = true
			return e.addr, e.size, maskStoreData(e.data, e.size), true
		}
	}
	return 0, 0, 0, false
}

// Squash discards any load-store state belonging to the instruction
// instance identified by (robIndex, gen). Squashed stores are always the
// store-queue tail because recovery walks youngest-first.
func (l *LSU) Squash(robIndex int, gen uint32) {
	if l.sqCnt > 0 {
		t := l.sqPrev(l.sqTail)
		e := &l.sq[t]
		if e.robIndex == robIndex && e.gen == gen {
			e.valid = false
			l.sqTail = t
			l.sqCnt--
		}
	}

	if l.loadValid && l.loadOp.ROBIndex == robIndex && l.loadOp.Gen == gen {
		// An in-flight memory response turns stale; the tag check in
		// CollectResponses drops it.
		l.loadValid = false
	}
	if l.loadResultValid && l.loadResult.ROBIndex == robIndex && l.loadResult.Gen == gen {
		l.loadResultValid = false
	}
	if l.storeResultValid && l.storeResult.ROBIndex == robIndex && l.storeResult.Gen == gen {
		l.storeResultValid = false
	}
}

// Flush clears all load-store state.
func (l *LSU) Flush() {
	for i := range l.sq {
		l.sq[i].valid = false
	}
	l.sqHead = 0
	l.sqTail = 0
	l.sqCnt = 0
	l.loadValid = false
	l.loadResultValid = false
	l.storeResultValid = false
}

func (l *LSU) sqNext(i int) int {
	return (i + 1) % len(l.sq)
}

func (l *LSU) sqPrev(i int) int {
	return (i - 1 + len(l.sq)) % len(l.sq)
}

// extendLoad applies sign or zero extension after byte extraction.
func extendLoad(inst *insts.Inst, raw uint32) uint32 {
	switch inst.AccessSize() {
	case 1:
		if inst.LoadSigned() {
			return uint32(int32(int8(raw)))
		}
		return raw & 0xFF
	case 2:
		if inst.LoadSigned() {
			return uint32(int32(int16(raw)))
		}
		return raw & 0xFFFF
	}
	return raw
}

func maskStoreData(data uint32, size int) uint32 {
	switch size {
	case 1:
		return data & 0xFF
	case 2:
		return data & 0xFFFF
	}
	return data
}
