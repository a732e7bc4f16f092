package emu

import (
	"fmt"

	"github.com/sarchlab/o3sim/insts"
)

// StepResult represents the architectural effect of executing a single
// instruction. The register/memory write fields describe the committed
// state change, in program order; they are the reference against which the
// timing core's commit stream is compared.
type StepResult struct {
	// PC is the program counter of the executed instruction.
	PC uint32

	// Exited is true if the program terminated (ECALL/EBREAK).
	Exited bool

	// ExitCode is the exit status if Exited is true (value of a0/x10).
	ExitCode int64

	// Err is set if an error occurred during execution (illegal
	// instruction, misaligned access).
	Err error

	// RegWrite is true if the instruction wrote a register.
	RegWrite bool
	// Reg is the architectural register written (if RegWrite).
	Reg uint8
	// RegValue is the value written (if RegWrite).
	RegValue uint32

	// MemWrite is true if the instruction wrote memory.
	MemWrite bool
	// MemAddr is the address written (if MemWrite).
	MemAddr uint32
	// MemSize is the access width in bytes (if MemWrite).
	MemSize int
	// MemValue is the value written, in the low MemSize bytes (if MemWrite).
	MemValue uint32
}

// Emulator executes RV32I instructions functionally, one at a time.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new RV32I emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(),
		decoder: insts.NewDecoder(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram sets the entry point and replaces the emulator's memory.
func (e *Emulator) LoadProgram(entry uint32, memory *Memory) {
	e.regFile.PC = entry
	e.memory = memory
}

// Step executes a single instruction and returns its architectural effect.
func (e *Emulator) Step() StepResult {
	pc := e.regFile.PC
	word := e.memory.Read32(pc)
	inst := e.decoder.Decode(word)
	result := StepResult{PC: pc}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		result.Exited = true
		result.ExitCode = -1
		result.Err = fmt.Errorf("instruction limit %d reached at pc=0x%08X", e.maxInstructions, pc)
		return result
	}
	e.instructionCount++

	nextPC := pc + 4

	switch inst.Class {
	case insts.ClassALU:
		value := e.execALU(inst, pc)
		e.writeReg(inst.Rd, value, &result)

	case insts.ClassJump:
		var target uint32
		if inst.Op == insts.OpJAL {
			target = pc + uint32(inst.Imm)
		} else {
			target = (e.regFile.ReadReg(inst.Rs1) + uint32(inst.Imm)) &^ 1
		}
		e.writeReg(inst.Rd, pc+4, &result)
		nextPC = target

	case insts.ClassBranch:
		a := e.regFile.ReadReg(inst.Rs1)
		b := e.regFile.ReadReg(inst.Rs2)
		if BranchTaken(inst.Op, a, b) {
			nextPC = pc + uint32(inst.Imm)
		}

	case insts.ClassLoad:
		addr := e.regFile.ReadReg(inst.Rs1) + uint32(inst.Imm)
		size := inst.AccessSize()
		if addr%uint32(size) != 0 {
			result.Err = fmt.Errorf("misaligned %d-byte load at 0x%08X (pc=0x%08X)", size, addr, pc)
			return result
		}
		value := e.readMem(addr, size, inst.LoadSigned())
		e.writeReg(inst.Rd, value, &result)

	case insts.ClassStore:
		addr := e.regFile.ReadReg(inst.Rs1) + uint32(inst.Imm)
		size := inst.AccessSize()
		if addr%uint32(size) != 0 {
			result.Err = fmt.Errorf("misaligned %d-byte store at 0x%08X (pc=0x%08X)", size, addr, pc)
			return result
		}
		value := e.regFile.ReadReg(inst.Rs2)
		e.writeMem(addr, size, value)
		result.MemWrite = true
		result.MemAddr = addr
		result.MemSize = size
		result.MemValue = maskValue(value, size)

	case insts.ClassMisc:
		switch inst.Op {
		case insts.OpFENCE:
			// Single-core model: FENCE is a no-op.
		case insts.OpECALL, insts.OpEBREAK:
			result.Exited = true
			result.ExitCode = int64(e.regFile.ReadReg(10))
			return result
		default:
			result.Err = fmt.Errorf("illegal instruction 0x%08X at pc=0x%08X", word, pc)
			return result
		}
	}

	e.regFile.PC = nextPC
	return result
}

// Run executes instructions until the program exits or errors.
// Returns the exit code.
func (e *Emulator) Run() int64 {
	for {
		result := e.Step()
		if result.Exited || result.Err != nil {
			return result.ExitCode
		}
	}
}

func (e *Emulator) execALU(inst *insts.Inst, pc uint32) uint32 {
	switch inst.Op {
	case insts.OpLUI:
		return Compute(inst.Op, 0, uint32(inst.Imm))
	case insts.OpAUIPC:
		return Compute(inst.Op, pc, uint32(inst.Imm))
	}
	a := e.regFile.ReadReg(inst.Rs1)
	b := uint32(inst.Imm)
	if inst.HasRs2 {
		b = e.regFile.ReadReg(inst.Rs2)
	}
	return Compute(inst.Op, a, b)
}

func (e *Emulator) writeReg(reg uint8, value uint32, result *StepResult) {
	if reg == 0 {
		return
	}
	e.regFile.WriteReg(reg, value)
	result.RegWrite = true
	result.Reg = reg
	result.RegValue = value
}

func (e *Emulator) readMem(addr uint32, size int, signed bool) uint32 {
	switch size {
	case 1:
		v := e.memory.Read8(addr)
		if signed {
			return uint32(int32(int8(v)))
		}
		return uint32(v)
	case 2:
		v := e.memory.Read16(addr)
		if signed {
			return uint32(int32(int16(v)))
		}
		return uint32(v)
	default:
		return e.memory.Read32(addr)
	}
}

func (e *Emulator) writeMem(addr uint32, size int, value uint32) {
	switch size {
	case 1:
		e.memory.Write8(addr, uint8(value))
	case 2:
		e.memory.Write16(addr, uint16(value))
	default:
		e.memory.Write32(addr, value)
	}
}

func maskValue(value uint32, size int) uint32 {
	switch size {
	case 1:
		return value & 0xFF
	case 2:
		return value & 0xFFFF
	}
	return value
}
