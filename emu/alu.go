package emu

import "github.com/sarchlab/o3sim/insts"

// Compute evaluates an arithmetic/logic operation on two already-selected
// operands. For immediate forms the caller passes the immediate as b; for
// LUI/AUIPC the caller passes the pre-selected base (0 or PC) as a and the
// U-immediate as b. Both the functional emulator and the timing model's
// ALU use this single implementation so their results cannot diverge.
func Compute(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpADD, insts.OpADDI, insts.OpAUIPC, insts.OpLUI:
		return a + b
	case insts.OpSUB:
		return a - b
	case insts.OpSLL, insts.OpSLLI:
		return a << (b & 0x1F)
	case insts.OpSLT, insts.OpSLTI:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case insts.OpSLTU, insts.OpSLTIU:
		if a < b {
			return 1
		}
		return 0
	case insts.OpXOR, insts.OpXORI:
		return a ^ b
	case insts.OpSRL, insts.OpSRLI:
		return a >> (b & 0x1F)
	case insts.OpSRA, insts.OpSRAI:
		return uint32(int32(a) >> (b & 0x1F))
	case insts.OpOR, insts.OpORI:
		return a | b
	case insts.OpAND, insts.OpANDI:
		return a & b
	}
	return 0
}

// BranchTaken evaluates a conditional-branch condition on two register
// operands.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	}
	return false
}
