package ooo

// RAT is the register alias table mapping each architectural register to
// its current physical register. Updates at rename are speculative; the
// recovery walk restores displaced mappings one squashed instruction at a
// time.
type RAT struct {
	mapping [32]PhysReg
}

// NewRAT creates an alias table with the identity mapping: architectural
// register i maps to physical register i.
func NewRAT() *RAT {
	rat := &RAT{}
	for i := range rat.mapping {
		rat.mapping[i] = PhysReg(i)
	}
	return rat
}

// Lookup returns the physical register mapped to arch.
func (r *RAT) Lookup(arch uint8) PhysReg {
	return r.mapping[arch]
}

// Update speculatively remaps arch to phys.
func (r *RAT) Update(arch uint8, phys PhysReg) {
	r.mapping[arch] = phys
}

// Restore rolls arch back to phys during recovery.
func (r *RAT) Restore(arch uint8, phys PhysReg) {
	r.mapping[arch] = phys
}

// Snapshot returns a copy of the full mapping.
func (r *RAT) Snapshot() [32]PhysReg {
	return r.mapping
}
