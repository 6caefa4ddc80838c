// Package main provides the entry point for wbfabric.
// wbfabric is a cycle-accurate bus fabric simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/wbsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("wbfabric - Pipelined Bus Crossbar Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: wbsim [options] -script <traffic.json>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config       Path to system configuration JSON file")
	fmt.Println("  -script       Path to traffic script JSON file")
	fmt.Println("  -save-config  Write the effective system configuration")
	fmt.Println("  -cycles       Maximum number of cycles to simulate")
	fmt.Println("  -v            Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/wbsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/wbsim' instead.")
	}
}
