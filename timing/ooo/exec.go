package ooo

import (
	"github.com/sarchlab/o3sim/emu"
	"github.com/sarchlab/o3sim/insts"
)

// ALUUnit is the single-cycle integer unit behind a one-entry elastic
// buffer. Completion drains before issue each cycle, so the unit can accept
// a new operand pair the same cycle its previous result leaves.
type ALUUnit struct {
	valid  bool
	result WritebackPacket
}

// NewALUUnit creates an ALU functional unit.
func NewALUUnit() *ALUUnit {
	return &ALUUnit{}
}

// CanAccept reports whether the result buffer is free.
func (u *ALUUnit) CanAccept() bool {
	return !u.valid
}

// Execute computes the op's result and buffers the completion.
func (u *ALUUnit) Execute(op RenamedOp, a, b uint32) {
	u.result = WritebackPacket{
		ROBIndex: op.ROBIndex,
		Gen:      op.Gen,
		PC:       op.PC,
		HasDest:  op.HasDest,
		Dest:     op.Dest,
		Value:    emu.Compute(op.Inst.Op, a, b),
	}
	u.valid = true
}

// PeekCompletion returns the buffered completion, if any.
func (u *ALUUnit) PeekCompletion() (WritebackPacket, bool) {
	return u.result, u.valid
}

// DrainCompletion releases the buffered completion.
func (u *ALUUnit) DrainCompletion() {
	u.valid = false
}

// Flush clears the result buffer.
func (u *ALUUnit) Flush() {
	u.valid = false
}

// BranchUnit resolves conditional branches and jumps behind a one-entry
// elastic buffer. It compares the resolved next PC against the prediction
// snapshot carried in the micro-op and raises a misprediction with the
// corrected fetch address.
type BranchUnit struct {
	valid  bool
	result WritebackPacket
}

// NewBranchUnit creates a branch functional unit.
func NewBranchUnit() *BranchUnit {
	return &BranchUnit{}
}

// CanAccept reports whether the result buffer is free.
func (u *BranchUnit) CanAccept() bool {
	return !u.valid
}

// Execute resolves the control-flow op and buffers the completion.
func (u *BranchUnit) Execute(op RenamedOp, a, b uint32) {
	pkt := WritebackPacket{
		ROBIndex: op.ROBIndex,
		Gen:      op.Gen,
		PC:       op.PC,
		IsBranch: true,
	}

	var nextPC uint32
	switch op.Inst.Op {
	case insts.OpJAL:
		pkt.Taken = true
		pkt.Target = op.PC + uint32(op.Inst.Imm)
		nextPC = pkt.Target
	case insts.OpJALR:
		pkt.Taken = true
		pkt.Target = (a + uint32(op.Inst.Imm)) &^ 1
		pkt.Train = true
		nextPC = pkt.Target
	default:
		pkt.Taken = emu.BranchTaken(op.Inst.Op, a, b)
		pkt.Target = op.PC + uint32(op.Inst.Imm)
		pkt.Train = true
		if pkt.Taken {
			nextPC = pkt.Target
		} else {
			nextPC = op.PC + 4
		}
	}

	if op.HasDest {
		pkt.HasDest = true
		pkt.Dest = op.Dest
		pkt.Value = op.PC + 4
	}

	predictedPC := op.PC + 4
	if op.PredTaken {
		predictedPC = op.PredTarget
	}
	if nextPC != predictedPC {
		pkt.Mispredict = true
		pkt.Redirect = nextPC
	}

	u.result = pkt
	u.valid = true
}

// PeekCompletion returns the buffered completion, if any.
func (u *BranchUnit) PeekCompletion() (WritebackPacket, bool) {
	return u.result, u.valid
}

// DrainCompletion releases the buffered completion.
func (u *BranchUnit) DrainCompletion() {
	u.valid = false
}

// Flush clears the result buffer.
func (u *BranchUnit) Flush() {
	u.valid = false
}
