// Package ooo implements the out-of-order execution engine: register
// renaming over a physical register file, a reorder buffer with in-order
// commit and generation-tagged misprediction recovery, reservation stations
// with broadcast wakeup, single-cycle functional units behind elastic
// buffers, a fixed-priority completion bus, and a conservative load-store
// unit with store-to-load forwarding.
package ooo

import (
	"github.com/sarchlab/o3sim/insts"
)

// PhysReg identifies a physical register.
type PhysReg uint8

// DecodedOp is the decoded-instruction record the front end delivers to
// rename, including the branch-prediction snapshot taken at fetch.
// Immutable once handed to the engine.
type DecodedOp struct {
	// PC is the instruction's address.
	PC uint32
	// Inst is the decoded instruction.
	Inst *insts.Inst
	// PredTaken is true if fetch predicted this instruction redirects.
	PredTaken bool
	// PredTarget is the predicted target (meaningful if PredTaken).
	PredTarget uint32
}

// RenamedOp is a DecodedOp after rename: physical operand identifiers with
// readiness flags, the allocated destination, and the reorder-buffer slot
// plus generation that identify this instance of the instruction.
type RenamedOp struct {
	DecodedOp

	// Seq is the program-order sequence number, assigned at rename.
	Seq uint64
	// ROBIndex is the reorder buffer slot holding this instruction.
	ROBIndex int
	// Gen is the generation at which this instruction was renamed.
	Gen uint32

	// Src1 and Src2 are the physical source registers.
	Src1 PhysReg
	Src2 PhysReg
	// Src1Ready and Src2Ready track operand availability. Updated by
	// wakeup while the op waits in a reservation station.
	Src1Ready bool
	Src2Ready bool

	// Dest is the allocated physical destination (if HasDest).
	Dest    PhysReg
	HasDest bool
}

// OperandsReady reports whether every required source operand is available.
func (op *RenamedOp) OperandsReady() bool {
	if op.Inst.HasRs1 && !op.Src1Ready {
		return false
	}
	if op.Inst.HasRs2 && !op.Src2Ready {
		return false
	}
	return true
}

// WritebackPacket is the single per-cycle completion payload on the common
// data bus. Every functional-unit result reaches the reorder buffer, the
// physical register file, and reservation-station wakeup through one of
// these; consumers must match both ROBIndex and Gen before acting.
type WritebackPacket struct {
	// ROBIndex and Gen identify the completing instruction instance.
	ROBIndex int
	Gen      uint32
	// PC is the completing instruction's address.
	PC uint32

	// HasDest, Dest, and Value describe the register write, if any.
	HasDest bool
	Dest    PhysReg
	Value   uint32

	// IsBranch marks control-flow resolution packets.
	IsBranch bool
	// Taken and Target are the resolved outcome (if IsBranch).
	Taken  bool
	Target uint32
	// Mispredict is true when the resolved outcome disagrees with the
	// prediction snapshot; Redirect is the corrected fetch address.
	Mispredict bool
	Redirect   uint32
	// Train is true when the predictor should learn this outcome.
	Train bool

	// IsLoad and IsStore mark memory completion packets; Addr is the
	// resolved byte address.
	IsLoad  bool
	IsStore bool
	Addr    uint32

	// Fault marks a misaligned memory access, surfaced at commit.
	Fault bool
}

// InstructionSource is the front-end contract: one decoded instruction per
// cycle through a peek/accept handshake, plus the two signals the engine
// emits back to fetch.
type InstructionSource interface {
	// Peek returns the next decoded instruction without consuming it.
	Peek() (DecodedOp, bool)
	// Accept consumes the peeked instruction.
	Accept()
	// Redirect restarts fetch at pc, discarding fetched-but-unaccepted
	// instructions.
	Redirect(pc uint32)
	// TrainBranch reports a resolved control-flow outcome.
	TrainBranch(pc uint32, taken bool, target uint32)
}
