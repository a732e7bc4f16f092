// Package main provides the entry point for o3sim.
// o3sim is a cycle-accurate out-of-order RV32I core simulator.
//
// For the full CLI, use: go run ./cmd/o3sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("o3sim - Out-of-Order RV32I Core Simulator")
	fmt.Println("")
	fmt.Println("Usage: o3sim [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -timing      Enable timing simulation mode")
	fmt.Println("  -verify      Run timing mode in lockstep against the emulator")
	fmt.Println("  -config      Path to engine configuration JSON file")
	fmt.Println("  -latency     Path to memory latency JSON file")
	fmt.Println("  -cache       Attach an L1 data cache")
	fmt.Println("  -v           Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/o3sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/o3sim' instead.")
	}
}
