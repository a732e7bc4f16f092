package ooo

// ROBEntry is one reorder buffer slot.
type ROBEntry struct {
	// Valid and Done track the entry's lifecycle: allocated, completed.
	Valid bool
	Done  bool
	// Gen is the generation at which the entry was allocated.
	Gen uint32
	// Seq is the program-order sequence number.
	Seq uint64
	// PC is the instruction's address.
	PC uint32

	// ArchDest, NewPhys, and OldPhys record the rename: commit frees
	// OldPhys, recovery frees NewPhys and restores ArchDest to OldPhys.
	ArchDest uint8
	NewPhys  PhysReg
	OldPhys  PhysReg
	HasDest  bool

	// Classification flags.
	IsBranch bool
	IsLoad   bool
	IsStore  bool

	// Resolution state, filled by writeback.
	Mispredict bool
	Taken      bool
	Target     uint32
	Fault      bool
	Addr       uint32

	// Halt marks an environment call that stops the core at commit.
	Halt bool
	// Illegal marks a decode failure, surfaced as an error at commit.
	Illegal bool
}

// SquashInfo describes the one entry unwound in a recovery cycle. Every
// component holding state keyed by (ROB index, generation) consumes the
// same broadcast.
type SquashInfo struct {
	Index    int
	Gen      uint32
	Seq      uint64
	HasDest  bool
	ArchDest uint8
	NewPhys  PhysReg
	OldPhys  PhysReg
	IsStore  bool
	IsLoad   bool
}

type robState int

const (
	robNormal robState = iota
	robRecovery
)

// ROB is the reorder buffer: a circular instruction window owning commit
// order and the misprediction recovery protocol. Recovery walks back one
// entry per cycle from the tail until only the mispredicted branch and its
// elders remain; the global generation counter increments once per recovery
// event so stale completions from squashed, reallocated slots are
// identifiable everywhere.
type ROB struct {
	entries []ROBEntry
	head    int
	tail    int
	count   int

	state      robState
	recoverIdx int
	gen        uint32
}

// NewROB creates a reorder buffer with the given depth.
func NewROB(depth int) *ROB {
	return &ROB{
		entries: make([]ROBEntry, depth),
	}
}

// Gen returns the current global generation.
func (r *ROB) Gen() uint32 {
	return r.gen
}

// Count returns the number of live entries.
func (r *ROB) Count() int {
	return r.count
}

// Depth returns the window capacity.
func (r *ROB) Depth() int {
	return len(r.entries)
}

// InRecovery reports whether a misprediction unwind is in progress.
func (r *ROB) InRecovery() bool {
	return r.state == robRecovery
}

// Entry returns a copy of the entry at index i.
func (r *ROB) Entry(i int) ROBEntry {
	return r.entries[i]
}

// CanAllocate reports whether a new entry can be accepted this cycle.
func (r *ROB) CanAllocate() bool {
	return r.count < len(r.entries) && r.state == robNormal
}

// Allocate writes a fresh entry at the tail, stamped with the current
// generation, and returns its index. The caller must check CanAllocate.
func (r *ROB) Allocate(entry ROBEntry) int {
	idx := r.tail
	entry.Valid = true
	entry.Gen = r.gen
	r.entries[idx] = entry
	r.tail = r.next(r.tail)
	r.count++
	return idx
}

// Writeback delivers a completion to the targeted entry. The packet's ROB
// index and generation must both match, or the completion is dropped as
// stale. A mispredicting branch writeback starts recovery.
func (r *ROB) Writeback(pkt WritebackPacket) bool {
	entry := &r.entries[pkt.ROBIndex]
	if !entry.Valid || entry.Gen != pkt.Gen {
		return false
	}
	if r.state == robRecovery && entry.Seq > r.entries[r.recoverIdx].Seq {
		// Entries younger than the recovering branch are already doomed
		// by the walk. A mispredict from one must not move the recovery
		// boundary or redirect fetch down a squashed path.
		return false
	}

	entry.Done = true
	entry.Fault = pkt.Fault
	entry.Addr = pkt.Addr
	if pkt.IsBranch {
		entry.Taken = pkt.Taken
		entry.Target = pkt.Target
		entry.Mispredict = pkt.Mispredict
		if pkt.Mispredict {
			r.startRecovery(pkt.ROBIndex)
		}
	}
	return true
}

func (r *ROB) startRecovery(branchIdx int) {
	r.gen++
	if r.tail == r.next(branchIdx) {
		// Nothing younger than the branch: no walk needed.
		r.state = robNormal
		return
	}
	r.state = robRecovery
	r.recoverIdx = branchIdx
}

// RecoveryStep unwinds the youngest live entry and returns its squash
// broadcast. Recovery ends when the mispredicted branch is the youngest
// entry left; the branch itself commits normally later.
func (r *ROB) RecoveryStep() (SquashInfo, bool) {
	if r.state != robRecovery {
		return SquashInfo{}, false
	}

	idx := r.prev(r.tail)
	entry := &r.entries[idx]
	info := SquashInfo{
		Index:    idx,
		Gen:      entry.Gen,
		Seq:      entry.Seq,
		HasDest:  entry.HasDest,
		ArchDest: entry.ArchDest,
		NewPhys:  entry.NewPhys,
		OldPhys:  entry.OldPhys,
		IsStore:  entry.IsStore,
		IsLoad:   entry.IsLoad,
	}
	entry.Valid = false
	r.tail = idx
	r.count--

	if r.tail == r.next(r.recoverIdx) {
		r.state = robNormal
	}
	return info, true
}

// Commit retires the head entry if it is valid, done, and not blocked by
// the store barrier. Returns the retired entry and its index.
func (r *ROB) Commit() (ROBEntry, int, bool) {
	if r.state != robNormal || r.count == 0 {
		return ROBEntry{}, 0, false
	}

	idx := r.head
	entry := r.entries[idx]
	if !entry.Valid || !entry.Done {
		return ROBEntry{}, 0, false
	}
	if entry.IsStore && r.unresolvedBranchInWindow() {
		return ROBEntry{}, 0, false
	}

	r.entries[idx].Valid = false
	r.head = r.next(r.head)
	r.count--
	return entry, idx, true
}

// unresolvedBranchInWindow reports whether any branch in the window has not
// resolved yet. Stores wait for the whole window, not just older branches;
// conservative, but a store that drains is irreversible.
func (r *ROB) unresolvedBranchInWindow() bool {
	for i, n := r.head, r.count; n > 0; i, n = r.next(i), n-1 {
		entry := &r.entries[i]
		if entry.Valid && entry.IsBranch && !entry.Done {
			return true
		}
	}
	return false
}

func (r *ROB) next(i int) int {
	return (i + 1) % len(r.entries)
}

func (r *ROB) prev(i int) int {
	return (i - 1 + len(r.entries)) % len(r.entries)
}
