package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/o3sim/emu"
	"github.com/sarchlab/o3sim/loader"
	"github.com/sarchlab/o3sim/timing/ooo"
)

// runVerify runs the timing core and the functional emulator in lockstep,
// comparing the core's committed-state stream against the emulator's
// architectural effects instruction by instruction.
func runVerify(prog *loader.Program, programPath string) int64 {
	c, err := buildCore(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	refMemory := emu.NewMemory()
	prog.LoadInto(refMemory)
	ref := emu.NewEmulator()
	ref.LoadProgram(prog.EntryPoint, refMemory)
	ref.RegFile().WriteReg(2, prog.InitialSP)

	compared := uint64(0)
	for !c.Halted() {
		if *maxCycles > 0 && c.Stats().Cycles >= *maxCycles {
			fmt.Fprintf(os.Stderr, "Cycle limit reached after %d commits\n", compared)
			return -1
		}
		c.Tick()

		for _, event := range c.DrainCommits() {
			refResult := ref.Step()
			if refResult.Exited || refResult.Err != nil {
				fmt.Fprintf(os.Stderr,
					"Mismatch at commit %d: core committed pc=0x%08X but reference stopped\n",
					compared, event.PC)
				return -1
			}
			if !compareCommit(compared, event, refResult) {
				return -1
			}
			compared++
		}
	}

	// The halting instruction itself.
	refResult := ref.Step()
	if !refResult.Exited {
		fmt.Fprintf(os.Stderr,
			"Mismatch: core halted after %d commits but reference continues at pc=0x%08X\n",
			compared, refResult.PC)
		return -1
	}
	if refResult.ExitCode != c.ExitCode() {
		fmt.Fprintf(os.Stderr, "Exit code mismatch: core %d, reference %d\n",
			c.ExitCode(), refResult.ExitCode)
		return -1
	}

	fmt.Printf("Verified %d commits against the reference emulator\n", compared)
	printReport(c, programPath, c.ExitCode())
	return c.ExitCode()
}

func compareCommit(n uint64, event ooo.CommitEvent, ref emu.StepResult) bool {
	fail := func(format string, args ...any) bool {
		fmt.Fprintf(os.Stderr, "Mismatch at commit %d (pc=0x%08X): ", n, ref.PC)
		fmt.Fprintf(os.Stderr, format, args...)
		fmt.Fprintln(os.Stderr)
		return false
	}

	if event.PC != ref.PC {
		return fail("core pc=0x%08X", event.PC)
	}
	if event.RegWrite != ref.RegWrite {
		return fail("core regWrite=%v, reference %v", event.RegWrite, ref.RegWrite)
	}
	if event.RegWrite && (event.Reg != ref.Reg || event.Value != ref.RegValue) {
		return fail("core x%d=0x%08X, reference x%d=0x%08X",
			event.Reg, event.Value, ref.Reg, ref.RegValue)
	}
	if event.MemWrite != ref.MemWrite {
		return fail("core memWrite=%v, reference %v", event.MemWrite, ref.MemWrite)
	}
	if event.MemWrite &&
		(event.MemAddr != ref.MemAddr || event.MemSize != ref.MemSize ||
			event.MemData != ref.MemValue) {
		return fail("core [0x%08X]=0x%X (%dB), reference [0x%08X]=0x%X (%dB)",
			event.MemAddr, event.MemData, event.MemSize,
			ref.MemAddr, ref.MemValue, ref.MemSize)
	}
	return true
}

func loadJSONConfig(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}
