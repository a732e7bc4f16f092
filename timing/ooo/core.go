package ooo

import (
	"fmt"

	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/mem"
)

// Statistics holds engine-level statistics.
type Statistics struct {
	// Cycles is the number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64
	// Mispredictions is the number of mispredicted control-flow
	// instructions that reached resolution.
	Mispredictions uint64
	// SquashedOps is the number of instructions discarded by recovery.
	SquashedOps uint64
	// StaleWritebacks counts completions dropped on a generation mismatch.
	StaleWritebacks uint64
	// RenameStalls counts cycles an instruction was held at rename for
	// lack of resources.
	RenameStalls uint64
}

// IPC returns instructions committed per cycle.
func (s Statistics) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// CPI returns cycles per committed instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// CommitEvent is one entry of the architectural-state output: the committed
// register and memory writes, in program order. This stream is the contract
// a reference simulator is compared against.
type CommitEvent struct {
	PC uint32

	RegWrite bool
	Reg      uint8
	Value    uint32

	MemWrite bool
	MemAddr  uint32
	MemSize  int
	MemData  uint32
}

// Core is the out-of-order engine. Each Tick simulates one cycle: collect
// memory responses, select ready ops, commit or walk recovery, write back
// one completion over the bus, issue the selected ops, run the memory
// channels, and finally rename and dispatch one new instruction. Every
// phase reads start-of-cycle state from the phases before it, never its
// own output.
type Core struct {
	config Config
	source InstructionSource

	prf      *PRF
	rat      *RAT
	freeList *FreeList
	rob      *ROB

	aluStation    *Station
	branchStation *Station
	memStation    *Station

	alu        *ALUUnit
	branchUnit *BranchUnit
	lsu        *LSU
	cdb        *CDB

	seq           uint64
	committedRegs [32]uint32
	commits       []CommitEvent

	halted   bool
	exitCode int64
	err      error

	stats Statistics
}

// NewCore creates an out-of-order engine fed by source and backed by the
// memory port.
func NewCore(config Config, source InstructionSource, port mem.Port) (*Core, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	c := &Core{
		config:        config,
		source:        source,
		prf:           NewPRF(config.PhysRegs),
		rat:           NewRAT(),
		freeList:      NewFreeList(config.PhysRegs),
		rob:           NewROB(config.ROBDepth),
		aluStation:    NewStation("alu", config.StationDepth),
		branchStation: NewStation("branch", config.StationDepth),
		memStation:    NewStation("mem", config.StationDepth),
		alu:           NewALUUnit(),
		branchUnit:    NewBranchUnit(),
		lsu:           NewLSU(config.StoreQueueDepth, port),
	}
	c.cdb = NewCDB(
		c.branchUnit,
		lsuStoreSide{c.lsu},
		lsuLoadSide{c.lsu},
		c.alu,
	)
	return c, nil
}

// Stats returns engine statistics.
func (c *Core) Stats() Statistics {
	return c.stats
}

// Halted reports whether the core has stopped.
func (c *Core) Halted() bool {
	return c.halted
}

// ExitCode returns the program's exit status once halted.
func (c *Core) ExitCode() int64 {
	return c.exitCode
}

// Err returns the fault that halted the core, if any.
func (c *Core) Err() error {
	return c.err
}

// ArchReg returns the committed value of an architectural register.
func (c *Core) ArchReg(i uint8) uint32 {
	return c.committedRegs[i]
}

// SetArchReg initializes an architectural register before execution starts.
func (c *Core) SetArchReg(i uint8, value uint32) {
	if i == 0 {
		return
	}
	c.committedRegs[i] = value
	c.prf.Set(c.rat.Lookup(i), value)
}

// DrainCommits returns and clears the accumulated commit events.
func (c *Core) DrainCommits() []CommitEvent {
	events := c.commits
	c.commits = nil
	return events
}

// PendingStores returns the number of committed stores not yet retired to
// memory. After a halt, ticking drains them.
func (c *Core) PendingStores() int {
	n := 0
	for i := range c.lsu.sq {
		if c.lsu.sq[i].valid && c.lsu.sq[i].committed {
			n++
		}
	}
	return n
}

// ROBRef returns the reorder buffer.
func (c *Core) ROBRef() *ROB { return c.rob }

// RATRef returns the register alias table.
func (c *Core) RATRef() *RAT { return c.rat }

// FreeListRef returns the free list.
func (c *Core) FreeListRef() *FreeList { return c.freeList }

// PRFRef returns the physical register file.
func (c *Core) PRFRef() *PRF { return c.prf }

// LSURef returns the load-store unit.
func (c *Core) LSURef() *LSU { return c.lsu }

// Tick simulates one cycle.
func (c *Core) Tick() {
	if c.halted {
		// Keep draining committed stores to memory.
		c.lsu.CollectResponses()
		c.lsu.TryMemOps()
		return
	}
	c.stats.Cycles++

	// Start-of-cycle snapshots: rename sees the resources as they were
	// before this cycle's commit or recovery freed anything.
	freeAtStart := c.freeList.Count()
	robCanAlloc := c.rob.CanAllocate()

	c.lsu.CollectResponses()

	// Select before wakeup: an op woken this cycle issues next cycle.
	aluSlot, aluOp, aluOK := c.aluStation.PickReady(nil)
	brSlot, brOp, brOK := c.branchStation.PickReady(nil)
	memSlot, memOp, memOK := c.memStation.PickReady(c.memEligible)

	if c.rob.InRecovery() {
		c.recoveryStep()
	} else {
		c.tryCommit()
	}

	c.writeback()

	if aluOK {
		c.issueALU(aluSlot, aluOp)
	}
	if brOK {
		c.issueBranch(brSlot, brOp)
	}
	if memOK {
		c.issueMem(memSlot, memOp)
	}

	c.lsu.TryMemOps()

	c.renameDispatch(freeAtStart, robCanAlloc)
}

func (c *Core) memEligible(op *RenamedOp) bool {
	if op.Inst.IsLoad() {
		return c.lsu.CanStartLoad(op.Seq)
	}
	return c.lsu.CanExecStore()
}

func (c *Core) recoveryStep() {
	info, ok := c.rob.RecoveryStep()
	if !ok {
		return
	}
	c.stats.SquashedOps++

	if info.HasDest {
		c.freeList.Free(info.NewPhys)
		c.rat.Restore(info.ArchDest, info.OldPhys)
	}
	c.aluStation.Squash(info.Index, info.Gen)
	c.branchStation.Squash(info.Index, info.Gen)
	c.memStation.Squash(info.Index, info.Gen)
	c.lsu.Squash(info.Index, info.Gen)
}

func (c *Core) tryCommit() {
	entry, idx, ok := c.rob.Commit()
	if !ok {
		return
	}

	if entry.Illegal {
		c.halted = true
		c.exitCode = -1
		c.err = fmt.Errorf("illegal instruction at pc=0x%08X", entry.PC)
		return
	}
	if entry.Fault {
		c.halted = true
		c.exitCode = -1
		c.err = fmt.Errorf("misaligned memory access at pc=0x%08X addr=0x%08X",
			entry.PC, entry.Addr)
		return
	}
	if entry.Halt {
		c.halted = true
		c.exitCode = int64(c.committedRegs[10])
		return
	}

	event := CommitEvent{PC: entry.PC}
	if entry.HasDest {
		value := c.prf.Read(entry.NewPhys)
		c.committedRegs[entry.ArchDest] = value
		c.freeList.Free(entry.OldPhys)
		event.RegWrite = true
		event.Reg = entry.ArchDest
		event.Value = value
	}
	if entry.IsStore {
		addr, size, data, ok := c.lsu.MarkCommitted(idx, entry.Gen)
		if ok {
			event.MemWrite = true
			event.MemAddr = addr
			event.MemSize = size
			event.MemData = data
		}
	}

	c.stats.Instructions++
	c.commits = append(c.commits, event)
}

func (c *Core) writeback() {
	pkt, src, ok := c.cdb.Grant()
	if !ok {
		return
	}
	src.DrainCompletion()

	if !c.rob.Writeback(pkt) {
		// Stale completion from a squashed, reallocated slot.
		c.stats.StaleWritebacks++
		return
	}

	if pkt.HasDest {
		c.prf.Write(pkt.Dest, pkt.Value, pkt.Gen)
		c.aluStation.Wakeup(pkt.Dest)
		c.branchStation.Wakeup(pkt.Dest)
		c.memStation.Wakeup(pkt.Dest)
	}

	if pkt.IsBranch {
		if pkt.Train {
			c.source.TrainBranch(pkt.PC, pkt.Taken, pkt.Target)
		}
		if pkt.Mispredict {
			c.stats.Mispredictions++
			c.source.Redirect(pkt.Redirect)
		}
	}
}

func (c *Core) issueALU(slot int, op RenamedOp) {
	if !c.alu.CanAccept() {
		return
	}
	if !c.aluStation.Take(slot, op.ROBIndex, op.Gen) {
		return
	}
	a, b := c.aluOperands(op)
	c.alu.Execute(op, a, b)
}

func (c *Core) issueBranch(slot int, op RenamedOp) {
	if !c.branchUnit.CanAccept() {
		return
	}
	if !c.branchStation.Take(slot, op.ROBIndex, op.Gen) {
		return
	}
	var a, b uint32
	if op.Inst.HasRs1 {
		a = c.prf.Read(op.Src1)
	}
	if op.Inst.HasRs2 {
		b = c.prf.Read(op.Src2)
	}
	c.branchUnit.Execute(op, a, b)
}

func (c *Core) issueMem(slot int, op RenamedOp) {
	if op.Inst.IsLoad() {
		if !c.lsu.CanStartLoad(op.Seq) {
			return
		}
		if !c.memStation.Take(slot, op.ROBIndex, op.Gen) {
			return
		}
		c.lsu.ExecLoad(op, c.prf.Read(op.Src1))
		return
	}

	if !c.lsu.CanExecStore() {
		return
	}
	if !c.memStation.Take(slot, op.ROBIndex, op.Gen) {
		return
	}
	c.lsu.ExecStore(op, c.prf.Read(op.Src1), c.prf.Read(op.Src2))
}

// aluOperands selects the operand pair for emu.Compute, mirroring the
// emulator's selection: LUI and AUIPC take a pre-selected base plus the
// U-immediate, everything else reads rs1 and either rs2 or the immediate.
func (c *Core) aluOperands(op RenamedOp) (uint32, uint32) {
	inst := op.Inst
	switch inst.Op {
	case insts.OpLUI:
		return 0, uint32(inst.Imm)
	case insts.OpAUIPC:
		return op.PC, uint32(inst.Imm)
	}
	a := c.prf.Read(op.Src1)
	b := uint32(inst.Imm)
	if inst.HasRs2 {
		b = c.prf.Read(op.Src2)
	}
	return a, b
}

// renameDispatch accepts at most one decoded instruction per cycle. The
// rename, ROB allocation, and station/store-queue dispatch either all
// happen this cycle or none do; resource checks use the start-of-cycle
// snapshots so a stall resolves the cycle after the resource drains.
func (c *Core) renameDispatch(freeAtStart int, robCanAlloc bool) {
	if !robCanAlloc || !c.rob.CanAllocate() {
		return
	}

	decoded, ok := c.source.Peek()
	if !ok {
		return
	}
	inst := decoded.Inst

	needsDest := inst.WritesReg()
	if needsDest && freeAtStart == 0 {
		c.stats.RenameStalls++
		return
	}

	station := c.stationFor(inst)
	if station != nil && !station.CanAccept() {
		c.stats.RenameStalls++
		return
	}
	if inst.IsStore() && !c.lsu.CanAcceptStore() {
		c.stats.RenameStalls++
		return
	}

	c.source.Accept()

	op := RenamedOp{
		DecodedOp: decoded,
		Seq:       c.seq,
		Gen:       c.rob.Gen(),
	}
	c.seq++

	if inst.HasRs1 {
		op.Src1 = c.rat.Lookup(inst.Rs1)
		op.Src1Ready = c.prf.IsReady(op.Src1)
	}
	if inst.HasRs2 {
		op.Src2 = c.rat.Lookup(inst.Rs2)
		op.Src2Ready = c.prf.IsReady(op.Src2)
	}

	entry := ROBEntry{
		Seq:      op.Seq,
		PC:       op.PC,
		IsBranch: inst.IsBranch() || inst.IsJump(),
		IsLoad:   inst.IsLoad(),
		IsStore:  inst.IsStore(),
	}

	if needsDest {
		newPhys, _ := c.freeList.Alloc()
		oldPhys := c.rat.Lookup(inst.Rd)
		c.rat.Update(inst.Rd, newPhys)
		c.prf.MarkPending(newPhys, op.Gen)
		op.Dest = newPhys
		op.HasDest = true
		entry.HasDest = true
		entry.ArchDest = inst.Rd
		entry.NewPhys = newPhys
		entry.OldPhys = oldPhys
	}

	if station == nil {
		// FENCE, ECALL, EBREAK, and decode failures carry no work for a
		// functional unit; they complete at allocation and act at commit.
		entry.Done = true
		entry.Halt = inst.Op == insts.OpECALL || inst.Op == insts.OpEBREAK
		entry.Illegal = inst.Op == insts.OpIllegal
	}

	op.ROBIndex = c.rob.Allocate(entry)

	if inst.IsStore() {
		c.lsu.DispatchStore(op)
	}
	if station != nil {
		station.Dispatch(op)
	}
}

func (c *Core) stationFor(inst *insts.Inst) *Station {
	switch inst.Class {
	case insts.ClassALU:
		return c.aluStation
	case insts.ClassBranch, insts.ClassJump:
		return c.branchStation
	case insts.ClassLoad, insts.ClassStore:
		return c.memStation
	}
	return nil
}

// lsuStoreSide and lsuLoadSide expose the load-store unit's two completion
// buffers as separate bus sources, so store completions can outrank load
// completions in the fixed priority order.
type lsuStoreSide struct{ l *LSU }

func (s lsuStoreSide) PeekCompletion() (WritebackPacket, bool) {
	return s.l.PeekStoreCompletion()
}

func (s lsuStoreSide) DrainCompletion() {
	s.l.DrainStoreCompletion()
}

type lsuLoadSide struct{ l *LSU }

func (s lsuLoadSide) PeekCompletion() (WritebackPacket, bool) {
	return s.l.PeekLoadCompletion()
}

func (s lsuLoadSide) DrainCompletion() {
	s.l.DrainLoadCompletion()
}
