// Package frontend models the in-order fetch and decode stages: a
// single-instruction fetch buffer fed by a backing memory, with a bimodal
// branch predictor steering the fetch PC.
package frontend

import (
	"github.com/sarchlab/o3sim/emu"
	"github.com/sarchlab/o3sim/insts"
	"github.com/sarchlab/o3sim/timing/ooo"
)

// Stats holds front-end statistics.
type Stats struct {
	// Fetched is the number of instructions fetched and decoded.
	Fetched uint64
	// Redirects is the number of fetch redirects applied.
	Redirects uint64
}

// FrontEnd fetches and decodes one instruction per cycle into a holding
// buffer. The downstream stage peeks the buffered instruction and accepts
// it when it has dispatch resources; the front end then advances to the
// predicted next PC.
type FrontEnd struct {
	memory    *emu.Memory
	decoder   *insts.Decoder
	predictor *BranchPredictor

	pc        uint32
	hold      ooo.DecodedOp
	holdValid bool

	stats Stats
}

// FrontEndOption is a functional option for configuring the FrontEnd.
type FrontEndOption func(*FrontEnd)

// WithBranchPredictor replaces the default branch predictor.
func WithBranchPredictor(bp *BranchPredictor) FrontEndOption {
	return func(f *FrontEnd) {
		f.predictor = bp
	}
}

// NewFrontEnd creates a front end fetching from the given memory.
func NewFrontEnd(memory *emu.Memory, opts ...FrontEndOption) *FrontEnd {
	f := &FrontEnd{
		memory:    memory,
		decoder:   insts.NewDecoder(),
		predictor: NewBranchPredictor(DefaultBranchPredictorConfig()),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetPC sets the fetch PC, discarding any buffered instruction.
func (f *FrontEnd) SetPC(pc uint32) {
	f.pc = pc
	f.holdValid = false
}

// PC returns the current fetch PC.
func (f *FrontEnd) PC() uint32 {
	return f.pc
}

// Stats returns front-end statistics.
func (f *FrontEnd) Stats() Stats {
	return f.stats
}

// Predictor returns the branch predictor.
func (f *FrontEnd) Predictor() *BranchPredictor {
	return f.predictor
}

// Peek returns the buffered decoded instruction, fetching one if the buffer
// is empty. The instruction stays buffered until Accept or Redirect.
func (f *FrontEnd) Peek() (ooo.DecodedOp, bool) {
	if !f.holdValid {
		f.fill()
	}
	return f.hold, f.holdValid
}

// Accept consumes the buffered instruction and advances the fetch PC to the
// predicted next PC.
func (f *FrontEnd) Accept() {
	if !f.holdValid {
		return
	}
	if f.hold.PredTaken {
		f.pc = f.hold.PredTarget
	} else {
		f.pc = f.hold.PC + 4
	}
	f.holdValid = false
}

// Redirect restarts fetch at pc, discarding the buffered instruction.
func (f *FrontEnd) Redirect(pc uint32) {
	f.pc = pc
	f.holdValid = false
	f.stats.Redirects++
}

// TrainBranch reports a resolved control-flow instruction to the predictor.
func (f *FrontEnd) TrainBranch(pc uint32, taken bool, target uint32) {
	f.predictor.Update(pc, taken, target)
}

func (f *FrontEnd) fill() {
	word := f.memory.Read32(f.pc)
	inst := f.decoder.Decode(word)

	op := ooo.DecodedOp{
		PC:   f.pc,
		Inst: inst,
	}

	switch {
	case inst.Op == insts.OpJAL:
		// Direct jump: resolved at decode, no prediction needed.
		op.PredTaken = true
		op.PredTarget = f.pc + uint32(inst.Imm)

	case inst.Op == insts.OpJALR:
		// Indirect jump: follow the BTB when it knows the target,
		// otherwise fall through and let the branch unit redirect.
		pred := f.predictor.Predict(f.pc)
		if pred.TargetKnown {
			op.PredTaken = true
			op.PredTarget = pred.Target
		}

	case inst.IsBranch():
		// Conditional branch: direction from the BHT, target from the
		// instruction itself.
		pred := f.predictor.Predict(f.pc)
		if pred.Taken {
			op.PredTaken = true
			op.PredTarget = f.pc + uint32(inst.Imm)
		}
	}

	f.hold = op
	f.holdValid = true
	f.stats.Fetched++
}
