package ooo

// FreeList is the FIFO pool of unmapped physical registers. FIFO order
// spreads reuse round-robin across the pool instead of hammering the most
// recently freed register.
type FreeList struct {
	regs  []PhysReg
	head  int
	tail  int
	count int
}

// NewFreeList creates a free list over a pool of total physical registers.
// Registers 0..31 start out mapped to the architectural registers, so the
// list initially holds 32..total-1.
func NewFreeList(total int) *FreeList {
	fl := &FreeList{
		regs: make([]PhysReg, total),
	}
	for r := 32; r < total; r++ {
		fl.push(PhysReg(r))
	}
	return fl
}

// Count returns the number of free registers.
func (fl *FreeList) Count() int {
	return fl.count
}

// Contents returns the free registers in allocation order.
func (fl *FreeList) Contents() []PhysReg {
	out := make([]PhysReg, 0, fl.count)
	for i, idx := 0, fl.head; i < fl.count; i, idx = i+1, (idx+1)%len(fl.regs) {
		out = append(out, fl.regs[idx])
	}
	return out
}

// Alloc removes and returns the oldest free register.
func (fl *FreeList) Alloc() (PhysReg, bool) {
	if fl.count == 0 {
		return 0, false
	}
	r := fl.regs[fl.head]
	fl.head = (fl.head + 1) % len(fl.regs)
	fl.count--
	return r, true
}

// Free returns a register to the pool. Commit frees the displaced old
// mapping; recovery frees the squashed new mapping.
func (fl *FreeList) Free(r PhysReg) {
	fl.push(r)
}

func (fl *FreeList) push(r PhysReg) {
	fl.regs[fl.tail] = r
	fl.tail = (fl.tail + 1) % len(fl.regs)
	fl.count++
}
