// Package insts provides RV32I instruction definitions and decoding.
//
// This package implements decoding of RV32I machine code into structured
// micro-op templates. It supports the full RV32I base integer instruction
// set:
//   - Upper-immediate: LUI, AUIPC
//   - Jumps: JAL, JALR
//   - Conditional branches: BEQ, BNE, BLT, BGE, BLTU, BGEU
//   - Loads: LB, LH, LW, LBU, LHU
//   - Stores: SB, SH, SW
//   - OP-IMM: ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI
//   - OP: ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND
//   - System: FENCE, ECALL, EBREAK
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00A08093) // ADDI x1, x1, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts

// Op identifies a specific RV32I operation.
type Op uint8

// RV32I operations. OpIllegal marks words that do not decode to a valid
// instruction; it is carried to commit as an explicit decode error rather
// than being silently executed.
const (
	OpIllegal Op = iota

	OpLUI
	OpAUIPC

	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	OpSB
	OpSH
	OpSW

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpFENCE
	OpECALL
	OpEBREAK
)

var opNames = map[Op]string{
	OpIllegal: "ILLEGAL",
	OpLUI:     "LUI",
	OpAUIPC:   "AUIPC",
	OpJAL:     "JAL",
	OpJALR:    "JALR",
	OpBEQ:     "BEQ",
	OpBNE:     "BNE",
	OpBLT:     "BLT",
	OpBGE:     "BGE",
	OpBLTU:    "BLTU",
	OpBGEU:    "BGEU",
	OpLB:      "LB",
	OpLH:      "LH",
	OpLW:      "LW",
	OpLBU:     "LBU",
	OpLHU:     "LHU",
	OpSB:      "SB",
	OpSH:      "SH",
	OpSW:      "SW",
	OpADDI:    "ADDI",
	OpSLTI:    "SLTI",
	OpSLTIU:   "SLTIU",
	OpXORI:    "XORI",
	OpORI:     "ORI",
	OpANDI:    "ANDI",
	OpSLLI:    "SLLI",
	OpSRLI:    "SRLI",
	OpSRAI:    "SRAI",
	OpADD:     "ADD",
	OpSUB:     "SUB",
	OpSLL:     "SLL",
	OpSLT:     "SLT",
	OpSLTU:    "SLTU",
	OpXOR:     "XOR",
	OpSRL:     "SRL",
	OpSRA:     "SRA",
	OpOR:      "OR",
	OpAND:     "AND",
	OpFENCE:   "FENCE",
	OpECALL:   "ECALL",
	OpEBREAK:  "EBREAK",
}

// String returns the mnemonic for the operation.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Class groups operations by the functional-unit class that executes them.
type Class uint8

// Functional-unit classes.
const (
	ClassALU Class = iota
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
	ClassMisc
)

var classNames = map[Class]string{
	ClassALU:    "ALU",
	ClassLoad:   "LOAD",
	ClassStore:  "STORE",
	ClassBranch: "BRANCH",
	ClassJump:   "JUMP",
	ClassMisc:   "MISC",
}

// String returns the class name.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Inst is a decoded RV32I instruction: the micro-op template consumed by
// both the functional emulator and the timing model's rename stage.
// Instances are immutable once produced by the decoder.
type Inst struct {
	// Op is the specific operation.
	Op Op

	// Class is the functional-unit class.
	Class Class

	// Register numbers (architectural, 0-31).
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Operand presence. Rd/Rs fields are only meaningful when the
	// corresponding flag is set.
	HasRd  bool
	HasRs1 bool
	HasRs2 bool

	// Imm is the sign-extended immediate.
	Imm int32
}

// AccessSize returns the memory access width in bytes for loads and stores,
// and 0 for all other operations.
func (i *Inst) AccessSize() int {
	switch i.Op {
	case OpLB, OpLBU, OpSB:
		return 1
	case OpLH, OpLHU, OpSH:
		return 2
	case OpLW, OpSW:
		return 4
	}
	return 0
}

// LoadSigned reports whether a load sign-extends its result.
func (i *Inst) LoadSigned() bool {
	return i.Op == OpLB || i.Op == OpLH || i.Op == OpLW
}

// IsLoad reports whether the instruction reads memory.
func (i *Inst) IsLoad() bool { return i.Class == ClassLoad }

// IsStore reports whether the instruction writes memory.
func (i *Inst) IsStore() bool { return i.Class == ClassStore }

// IsBranch reports whether the instruction is a conditional branch.
func (i *Inst) IsBranch() bool { return i.Class == ClassBranch }

// IsJump reports whether the instruction is an unconditional jump.
func (i *Inst) IsJump() bool { return i.Class == ClassJump }

// WritesReg reports whether the instruction writes an architectural
// register other than x0.
func (i *Inst) WritesReg() bool { return i.HasRd && i.Rd != 0 }
