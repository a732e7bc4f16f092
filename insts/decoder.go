package insts

// RV32I major opcodes (bits [6:0] of the instruction word).
const (
	opcodeLUI    = 0x37
	opcodeAUIPC  = 0x17
	opcodeJAL    = 0x6F
	opcodeJALR   = 0x67
	opcodeBranch = 0x63
	opcodeLoad   = 0x03
	opcodeStore  = 0x23
	opcodeOpImm  = 0x13
	opcodeOp     = 0x33
	opcodeFence  = 0x0F
	opcodeSystem = 0x73
)

// Decoder decodes RV32I instruction words into Inst structures.
type Decoder struct{}

// NewDecoder creates a new RV32I decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Field extraction helpers. Field positions follow the RV32I base formats
// (R/I/S/B/U/J).

func rd(word uint32) uint8  { return uint8((word >> 7) & 0x1F) }
func rs1(word uint32) uint8 { return uint8((word >> 15) & 0x1F) }
func rs2(word uint32) uint8 { return uint8((word >> 20) & 0x1F) }

func funct3(word uint32) uint32 { return (word >> 12) & 0x7 }
func funct7(word uint32) uint32 { return (word >> 25) & 0x7F }

// immI extracts the sign-extended I-type immediate (bits [31:20]).
func immI(word uint32) int32 {
	return int32(word) >> 20
}

// immS extracts the sign-extended S-type immediate ([31:25] and [11:7]).
func immS(word uint32) int32 {
	return (int32(word)>>25)<<5 | int32((word>>7)&0x1F)
}

// immB extracts the sign-extended B-type immediate (branch offset).
func immB(word uint32) int32 {
	imm := (int32(word)>>31)<<12 |
		int32((word>>7)&0x1)<<11 |
		int32((word>>25)&0x3F)<<5 |
		int32((word>>8)&0xF)<<1
	return imm
}

// immU extracts the U-type immediate (upper 20 bits, already shifted).
func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

// immJ extracts the sign-extended J-type immediate (jump offset).
func immJ(word uint32) int32 {
	imm := (int32(word)>>31)<<20 |
		int32((word>>12)&0xFF)<<12 |
		int32((word>>20)&0x1)<<11 |
		int32((word>>21)&0x3FF)<<1
	return imm
}

// Decode decodes a 32-bit RV32I instruction word. Words that do not decode
// to a valid RV32I instruction yield an Inst with Op == OpIllegal and
// Class == ClassMisc.
func (d *Decoder) Decode(word uint32) *Inst {
	switch word & 0x7F {
	case opcodeLUI:
		return &Inst{Op: OpLUI, Class: ClassALU, Rd: rd(word), HasRd: true, Imm: immU(word)}
	case opcodeAUIPC:
		return &Inst{Op: OpAUIPC, Class: ClassALU, Rd: rd(word), HasRd: true, Imm: immU(word)}
	case opcodeJAL:
		return &Inst{Op: OpJAL, Class: ClassJump, Rd: rd(word), HasRd: true, Imm: immJ(word)}
	case opcodeJALR:
		if funct3(word) != 0 {
			return illegal()
		}
		return &Inst{
			Op: OpJALR, Class: ClassJump,
			Rd: rd(word), Rs1: rs1(word),
			HasRd: true, HasRs1: true,
			Imm: immI(word),
		}
	case opcodeBranch:
		return d.decodeBranch(word)
	case opcodeLoad:
		return d.decodeLoad(word)
	case opcodeStore:
		return d.decodeStore(word)
	case opcodeOpImm:
		return d.decodeOpImm(word)
	case opcodeOp:
		return d.decodeOp(word)
	case opcodeFence:
		return &Inst{Op: OpFENCE, Class: ClassMisc}
	case opcodeSystem:
		return d.decodeSystem(word)
	}
	return illegal()
}

func illegal() *Inst {
	return &Inst{Op: OpIllegal, Class: ClassMisc}
}

func (d *Decoder) decodeBranch(word uint32) *Inst {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpBEQ
	case 0b001:
		op = OpBNE
	case 0b100:
		op = OpBLT
	case 0b101:
		op = OpBGE
	case 0b110:
		op = OpBLTU
	case 0b111:
		op = OpBGEU
	default:
		return illegal()
	}
	return &Inst{
		Op: op, Class: ClassBranch,
		Rs1: rs1(word), Rs2: rs2(word),
		HasRs1: true, HasRs2: true,
		Imm: immB(word),
	}
}

func (d *Decoder) decodeLoad(word uint32) *Inst {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpLB
	case 0b001:
		op = OpLH
	case 0b010:
		op = OpLW
	case 0b100:
		op = OpLBU
	case 0b101:
		op = OpLHU
	default:
		return illegal()
	}
	return &Inst{
		Op: op, Class: ClassLoad,
		Rd: rd(word), Rs1: rs1(word),
		HasRd: true, HasRs1: true,
		Imm: immI(word),
	}
}

func (d *Decoder) decodeStore(word uint32) *Inst {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpSB
	case 0b001:
		op = OpSH
	case 0b010:
		op = OpSW
	default:
		return illegal()
	}
	return &Inst{
		Op: op, Class: ClassStore,
		Rs1: rs1(word), Rs2: rs2(word),
		HasRs1: true, HasRs2: true,
		Imm: immS(word),
	}
}

func (d *Decoder) decodeOpImm(word uint32) *Inst {
	inst := &Inst{
		Class: ClassALU,
		Rd:    rd(word), Rs1: rs1(word),
		HasRd: true, HasRs1: true,
		Imm: immI(word),
	}
	switch funct3(word) {
	case 0b000:
		inst.Op = OpADDI
	case 0b010:
		inst.Op = OpSLTI
	case 0b011:
		inst.Op = OpSLTIU
	case 0b100:
		inst.Op = OpXORI
	case 0b110:
		inst.Op = OpORI
	case 0b111:
		inst.Op = OpANDI
	case 0b001:
		if funct7(word) != 0 {
			return illegal()
		}
		inst.Op = OpSLLI
		inst.Imm = int32(rs2(word)) // shamt
	case 0b101:
		switch funct7(word) {
		case 0x00:
			inst.Op = OpSRLI
		case 0x20:
			inst.Op = OpSRAI
		default:
			return illegal()
		}
		inst.Imm = int32(rs2(word)) // shamt
	}
	return inst
}

func (d *Decoder) decodeOp(word uint32) *Inst {
	inst := &Inst{
		Class: ClassALU,
		Rd:    rd(word), Rs1: rs1(word), Rs2: rs2(word),
		HasRd: true, HasRs1: true, HasRs2: true,
	}
	f3, f7 := funct3(word), funct7(word)
	switch {
	case f3 == 0b000 && f7 == 0x00:
		inst.Op = OpADD
	case f3 == 0b000 && f7 == 0x20:
		inst.Op = OpSUB
	case f3 == 0b001 && f7 == 0x00:
		inst.Op = OpSLL
	case f3 == 0b010 && f7 == 0x00:
		inst.Op = OpSLT
	case f3 == 0b011 && f7 == 0x00:
		inst.Op = OpSLTU
	case f3 == 0b100 && f7 == 0x00:
		inst.Op = OpXOR
	case f3 == 0b101 && f7 == 0x00:
		inst.Op = OpSRL
	case f3 == 0b101 && f7 == 0x20:
		inst.Op = OpSRA
	case f3 == 0b110 && f7 == 0x00:
		inst.Op = OpOR
	case f3 == 0b111 && f7 == 0x00:
		inst.Op = OpAND
	default:
		return illegal()
	}
	return inst
}

func (d *Decoder) decodeSystem(word uint32) *Inst {
	switch word {
	case 0x00000073:
		return &Inst{Op: OpECALL, Class: ClassMisc}
	case 0x00100073:
		return &Inst{Op: OpEBREAK, Class: ClassMisc}
	}
	return illegal()
}
