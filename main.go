// Package main provides the entry point for rv5sim.
// rv5sim is a cycle-level 5-stage RV32I/M pipeline simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/rv5sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rv5sim - 5-stage RV32I/M Pipeline Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: rv5sim [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config       Path to a JSON or YAML simulation config")
	fmt.Println("  -forwarding   Enable operand forwarding (default true)")
	fmt.Println("  -max-cycles   Cycle limit")
	fmt.Println("  -reg x2=16    Initial register value (repeatable)")
	fmt.Println("  -mem 0x100=7  Initial memory word (repeatable)")
	fmt.Println("  -diagram      Print the cycle-by-cycle diagram")
	fmt.Println("  -v            Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rv5sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rv5sim' instead.")
	}
}
