package ooo

// PRF is the physical register file: a flat array of values with a
// per-register readiness bit and generation tag. A register is ready only
// when its stored generation matches the generation that most recently
// allocated it, so a writeback from a squashed instruction can never mark a
// freshly reallocated register ready.
type PRF struct {
	value []uint32
	ready []bool
	gen   []uint32
}

// NewPRF creates a physical register file with n registers, all ready and
// holding zero.
func NewPRF(n int) *PRF {
	prf := &PRF{
		value: make([]uint32, n),
		ready: make([]bool, n),
		gen:   make([]uint32, n),
	}
	for i := range prf.ready {
		prf.ready[i] = true
	}
	return prf
}

// Set initializes a register's value directly, leaving it ready. Used for
// pre-execution architectural state such as the stack pointer.
func (p *PRF) Set(r PhysReg, value uint32) {
	p.value[r] = value
	p.ready[r] = true
}

// Read returns the register's value.
func (p *PRF) Read(r PhysReg) uint32 {
	return p.value[r]
}

// IsReady reports whether the register holds its producer's result.
func (p *PRF) IsReady(r PhysReg) bool {
	return p.ready[r]
}

// MarkPending records that r was just allocated at generation gen. The
// register is not ready until a writeback with a matching generation
// arrives.
func (p *PRF) MarkPending(r PhysReg, gen uint32) {
	p.ready[r] = false
	p.gen[r] = gen
}

// Write delivers a result to r. The write takes effect only if gen matches
// the register's allocation generation; a stale writeback is a no-op.
func (p *PRF) Write(r PhysReg, value uint32, gen uint32) bool {
	if p.gen[r] != gen {
		return false
	}
	p.value[r] = value
	p.ready[r] = true
	return true
}
