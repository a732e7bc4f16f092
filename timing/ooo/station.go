package ooo

// Station is a reservation station for one functional-unit class. Slots
// hold renamed micro-ops waiting for operands; the single writeback each
// cycle is broadcast against every slot's source tags (Wakeup), and at most
// one ready slot issues per cycle, oldest first.
type Station struct {
	name  string
	slots []stationSlot
}

type stationSlot struct {
	valid bool
	op    RenamedOp
}

// NewStation creates a reservation station with the given slot count.
func NewStation(name string, depth int) *Station {
	return &Station{
		name:  name,
		slots: make([]stationSlot, depth),
	}
}

// Name returns the station's functional-unit class name.
func (s *Station) Name() string {
	return s.name
}

// Occupancy returns the number of occupied slots.
func (s *Station) Occupancy() int {
	n := 0
	for i := range s.slots {
		if s.slots[i].valid {
			n++
		}
	}
	return n
}

// CanAccept reports whether a slot is free for dispatch.
func (s *Station) CanAccept() bool {
	for i := range s.slots {
		if !s.slots[i].valid {
			return true
		}
	}
	return false
}

// Dispatch places a renamed op into the lowest-numbered free slot.
func (s *Station) Dispatch(op RenamedOp) bool {
	for i := range s.slots {
		if !s.slots[i].valid {
			s.slots[i] = stationSlot{valid: true, op: op}
			return true
		}
	}
	return false
}

// Wakeup broadcasts a completed destination tag against every waiting
// slot's source tags, setting the matching readiness flags.
func (s *Station) Wakeup(dest PhysReg) {
	for i := range s.slots {
		slot := &s.slots[i]
		if !slot.valid {
			continue
		}
		if slot.op.Inst.HasRs1 && !slot.op.Src1Ready && slot.op.Src1 == dest {
			slot.op.Src1Ready = true
		}
		if slot.op.Inst.HasRs2 && !slot.op.Src2Ready && slot.op.Src2 == dest {
			slot.op.Src2Ready = true
		}
	}
}

// PickReady selects the oldest slot whose operands are all ready and that
// passes the eligibility check, without removing it. A nil eligible accepts
// every ready op.
func (s *Station) PickReady(eligible func(op *RenamedOp) bool) (int, RenamedOp, bool) {
	best := -1
	for i := range s.slots {
		slot := &s.slots[i]
		if !slot.valid || !slot.op.OperandsReady() {
			continue
		}
		if eligible != nil && !eligible(&slot.op) {
			continue
		}
		if best < 0 || slot.op.Seq < s.slots[best].op.Seq {
			best = i
		}
	}
	if best < 0 {
		return 0, RenamedOp{}, false
	}
	return best, s.slots[best].op, true
}

// Take removes the op at slot idx, provided it still holds the instruction
// instance identified by (robIndex, gen). A mismatch means the slot was
// squashed after selection; the issue is abandoned.
func (s *Station) Take(idx int, robIndex int, gen uint32) bool {
	slot := &s.slots[idx]
	if !slot.valid || slot.op.ROBIndex != robIndex || slot.op.Gen != gen {
		return false
	}
	slot.valid = false
	return true
}

// Squash invalidates the slot holding the instruction instance identified
// by (robIndex, gen), if present.
func (s *Station) Squash(robIndex int, gen uint32) {
	for i := range s.slots {
		slot := &s.slots[i]
		if slot.valid && slot.op.ROBIndex == robIndex && slot.op.Gen == gen {
			slot.valid = false
		}
	}
}

// Flush clears every slot.
func (s *Station) Flush() {
	for i := range s.slots {
		s.slots[i].valid = false
	}
}
