// Package main provides the entry point for wbsim.
// wbsim is a cycle-accurate simulator of a multi-initiator bus fabric.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/sarchlab/wbfabric/soc"
)

var (
	configPath = flag.String("config", "", "Path to system configuration JSON file")
	scriptPath = flag.String("script", "", "Path to traffic script JSON file")
	saveConfig = flag.String("save-config", "", "Write the effective system configuration to this path")
	maxCycles  = flag.Uint64("cycles", 0, "Maximum number of cycles to simulate (0 = until idle or halt)")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if *scriptPath == "" && *saveConfig == "" {
		fmt.Fprintf(os.Stderr, "Usage: wbsim [options] -script <traffic.json>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := soc.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = soc.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading system config: %v\n", err)
			os.Exit(1)
		}
	}

	if *saveConfig != "" {
		if err := cfg.SaveConfig(*saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving system config: %v\n", err)
			os.Exit(1)
		}
		if *scriptPath == "" {
			return
		}
	}

	opts := []soc.Option{soc.WithOutput(os.Stdout)}
	if *verbose {
		opts = append(opts, soc.WithLogger(log.New(os.Stderr, "", 0)))
	}

	system, err := soc.New(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building system: %v\n", err)
		os.Exit(1)
	}

	script, err := soc.LoadScript(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading script: %v\n", err)
		os.Exit(1)
	}
	if err := script.Apply(system); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying script: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Initiators: %d\n", len(cfg.Initiators))
		fmt.Printf("Targets: %d\n", len(cfg.Targets))
		fmt.Printf("Clock: %.0f MHz\n", cfg.FreqMHz)
	}

	if err := system.Simulate(*maxCycles); err != nil {
		fmt.Fprintf(os.Stderr, "Error during simulation: %v\n", err)
		os.Exit(1)
	}

	os.Exit(report(os.Stdout, system, cfg))
}

// report writes the statistics of a finished run. It returns 1 if any
// operation completed with err, 2 if the cycle limit left work undone.
func report(w io.Writer, system *soc.System, cfg *soc.Config) int {
	stats := system.Stats()

	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "Transactions: %d\n", stats.Transactions)
	fmt.Fprintf(w, "Halted: %v\n", system.Halted())
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Initiators:\n")
	for _, p := range stats.Ports {
		fmt.Fprintf(w, "  %-10s accepted %6d  acks %6d  errors %4d  unmapped %4d  stalls %6d cycles (%5.1f%%)\n",
			p.Name, p.Accepted, p.Acks, p.Errors, p.Unmapped,
			p.StallCycles, 100.0*float64(p.StallCycles)/float64(totalCycles))
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Targets:\n")
	for _, tc := range cfg.Targets {
		m := system.Memory(tc.Name)
		if m == nil {
			fmt.Fprintf(w, "  %-10s %-8s %s\n", tc.Name, tc.Kind, tc.Region())
			continue
		}
		ms := m.Stats()
		fmt.Fprintf(w, "  %-10s %-8s %s  reads %6d  writes %6d  errors %4d  stalls %6d\n",
			tc.Name, tc.Kind, tc.Region(), ms.Reads, ms.Writes, ms.Errors, ms.StallCycles)
		if c := m.Cache(); c != nil {
			cs := c.Stats()
			fmt.Fprintf(w, "  %-10s cache    hits %6d  misses %6d  evictions %6d  writebacks %6d\n",
				"", cs.Hits, cs.Misses, cs.Evictions, cs.Writebacks)
		}
	}

	failed := false
	for _, d := range system.Drivers() {
		if *verbose {
			fmt.Fprintf(w, "\n%s:\n", d.Name())
		}
		for _, r := range d.Results() {
			if r.Err {
				failed = true
			}
			if *verbose {
				fmt.Fprintf(w, "  %s\n", soc.FormatResult(r))
			}
		}
	}

	switch {
	case failed:
		return 1
	case !system.Done():
		return 2
	default:
		return 0
	}
}
