// Package main provides the entry point for o3sim, a cycle-accurate
// out-of-order RV32I core simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/o3sim/emu"
	"github.com/sarchlab/o3sim/loader"
	"github.com/sarchlab/o3sim/timing/cache"
	"github.com/sarchlab/o3sim/timing/core"
	"github.com/sarchlab/o3sim/timing/mem"
	"github.com/sarchlab/o3sim/timing/ooo"
)

var (
	timing      = flag.Bool("timing", false, "Enable timing simulation mode")
	verify      = flag.Bool("verify", false, "Run timing mode in lockstep against the emulator")
	configPath  = flag.String("config", "", "Path to engine configuration JSON file")
	latencyPath = flag.String("latency", "", "Path to memory latency JSON file")
	useCache    = flag.Bool("cache", false, "Attach an L1 data cache")
	maxCycles   = flag.Uint64("max-cycles", 0, "Cycle limit for timing mode (0 = no limit)")
	maxInsts    = flag.Uint64("max-insts", 0, "Instruction limit for emulation mode (0 = no limit)")
	verbose     = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: o3sim [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	var exitCode int64
	switch {
	case *verify:
		exitCode = runVerify(prog, programPath)
	case *timing:
		exitCode = runTiming(prog, programPath)
	default:
		exitCode = runEmulation(prog, programPath)
	}
	os.Exit(int(exitCode))
}

// runEmulation runs the program in functional emulation mode.
func runEmulation(prog *loader.Program, programPath string) int64 {
	memory := emu.NewMemory()
	prog.LoadInto(memory)

	emulator := emu.NewEmulator(
		emu.WithMaxInstructions(*maxInsts),
	)
	emulator.LoadProgram(prog.EntryPoint, memory)
	emulator.RegFile().WriteReg(2, prog.InitialSP)

	exitCode := emulator.Run()

	if *verbose {
		fmt.Printf("\nProgram: %s\n", programPath)
		fmt.Printf("Exit code: %d\n", exitCode)
		fmt.Printf("Instructions executed: %d\n", emulator.InstructionCount())
	}

	return exitCode
}

func buildCore(prog *loader.Program) (*core.Core, error) {
	engineConfig := ooo.DefaultConfig()
	if *configPath != "" {
		if err := loadJSONConfig(*configPath, &engineConfig); err != nil {
			return nil, err
		}
	}

	latencyConfig := mem.DefaultLatencyConfig()
	if *latencyPath != "" {
		var err error
		latencyConfig, err = mem.LoadLatencyConfig(*latencyPath)
		if err != nil {
			return nil, err
		}
	}

	memory := emu.NewMemory()
	prog.LoadInto(memory)

	opts := []core.Option{
		core.WithEngineConfig(engineConfig),
		core.WithLatencyConfig(latencyConfig),
		core.WithMaxCycles(*maxCycles),
	}
	if *useCache {
		opts = append(opts, core.WithL1DCache(cache.DefaultL1DConfig()))
	}

	c, err := core.NewCore(memory, opts...)
	if err != nil {
		return nil, err
	}
	c.SetPC(prog.EntryPoint)
	c.SetArchReg(2, prog.InitialSP)
	return c, nil
}

// runTiming runs the program on the cycle-accurate core.
func runTiming(prog *loader.Program, programPath string) int64 {
	c, err := buildCore(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	exitCode := c.Run()
	if err := c.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Core fault: %v\n", err)
	}

	printReport(c, programPath, exitCode)
	return exitCode
}

func printReport(c *core.Core, programPath string, exitCode int64) {
	stats := c.Stats()

	fmt.Printf("\n")
	fmt.Printf("Program: %s\n", programPath)
	fmt.Printf("Exit code: %d\n", exitCode)
	fmt.Printf("Total Instructions: %d\n", stats.Instructions)
	fmt.Printf("Total Cycles: %d\n", stats.Cycles)
	fmt.Printf("IPC: %.3f\n", stats.IPC())
	fmt.Printf("\n")
	fmt.Printf("Speculation:\n")
	fmt.Printf("  Mispredictions:  %d\n", stats.Mispredictions)
	fmt.Printf("  Squashed ops:    %d\n", stats.SquashedOps)
	fmt.Printf("  Branch accuracy: %.1f%%\n", stats.BranchAccuracy)

	lsuStats := c.Engine().LSURef().Stats()
	fmt.Printf("\n")
	fmt.Printf("Memory:\n")
	fmt.Printf("  Loads:            %d\n", lsuStats.Loads)
	fmt.Printf("  Stores:           %d\n", lsuStats.Stores)
	fmt.Printf("  Full forwards:    %d\n", lsuStats.FullForwards)
	fmt.Printf("  Partial forwards: %d\n", lsuStats.PartialForwards)

	if l1d := c.L1D(); l1d != nil {
		cacheStats := l1d.Stats()
		fmt.Printf("  L1D hits/misses:  %d/%d (%.1f%% hit rate)\n",
			cacheStats.Hits, cacheStats.Misses, l1d.HitRate()*100)
	}
}
