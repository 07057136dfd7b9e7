// Package main provides the entry point for RanSim.
// RanSim is a cycle-accurate simulator of a hardware RANSAC
// plane-fitting core.
//
// For the full CLI, use: go run ./cmd/ransim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("RanSim - RANSAC Plane-Fitting Core Simulator")
	fmt.Println("")
	fmt.Println("Usage: ransim [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to timing configuration JSON file")
	fmt.Println("  -points      Number of on-plane points in the synthetic cloud")
	fmt.Println("  -outliers    Number of off-plane points in the synthetic cloud")
	fmt.Println("  -iterations  Requested number of successful trials")
	fmt.Println("  -threshold   Inlier distance tolerance")
	fmt.Println("  -seed        Seed for cloud generation and the timing model")
	fmt.Println("  -ref         Cross-check against the functional reference model")
	fmt.Println("  -v           Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ransim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ransim' instead.")
	}
}
