// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

var (
	traceFile   = flag.String("trace", "", "Write execution trace to file")
	maxCycles   = flag.Uint64("max-cycles", 0, "Stop after N cycles (0 = unlimited)")
	tlbFile     = flag.String("tlb", "", "Preload the TLB from a YAML file before running")
	showProgress = flag.Bool("progress", false, "Show a cycle progress bar on stderr")
	showVersion = flag.Bool("version", false, "Show version and exit")
)

const version = "1.0.0"

var savedTermState *term.State

// setupTerminal puts the terminal in raw mode for the console UART.
func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to get terminal state: %v", err)
	}
	savedTermState = state

	if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("failed to set raw mode: %v", err)
	}
	return nil
}

// restoreTerminal restores the terminal to its original state.
func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("EE Core Emulator v%s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 1 {
		usage()
		os.Exit(1)
	}

	biosFile := args[0]

	// Load the BIOS image before touching the terminal so any error is
	// reported in normal cooked mode.
	data, err := os.ReadFile(biosFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading BIOS image: %v\n", err)
		os.Exit(1)
	}

	cpu := NewCPU()
	cpu.mem.LoadBIOS(data)

	if *tlbFile != "" {
		cfg, err := LoadTLBConfig(*tlbFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading TLB config: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Apply(cpu); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying TLB config: %v\n", err)
			os.Exit(1)
		}
	}

	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		cpu.tracer = NewTracer(f)
		fmt.Fprintf(f, "EE Core Emulator Trace\n")
		fmt.Fprintf(f, "BIOS: %s\n", biosFile)
		fmt.Fprintf(f, "Size: %d bytes\n", len(data))
		fmt.Fprintf(f, "========================================\n\n")
	}

	if err := setupTerminal(); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up terminal: %v\n", err)
		os.Exit(1)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		restoreTerminal()
		os.Exit(130)
	}()

	cpu.consoleIn = os.Stdin
	cpu.consoleOut = os.Stderr

	uart := NewUART(cpu.consoleIn, cpu.consoleOut)
	if cpu.tracer != nil {
		uart.tracer = cpu.tracer
	}
	cpu.uart = uart
	cpu.mem.attachUART(uart)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uart.Start(ctx)
	defer uart.Stop()

	var bar *progressbar.ProgressBar
	if *showProgress {
		if *maxCycles > 0 {
			bar = progressbar.Default(int64(*maxCycles), "cycles")
		} else {
			bar = progressbar.Default(-1, "cycles")
		}
		defer bar.Close()
	}

	if cpu.tracer != nil {
		fmt.Fprintf(cpu.tracer.out, "Loaded: %s (%d bytes)\n", biosFile, len(data))
		if *maxCycles > 0 {
			fmt.Fprintf(cpu.tracer.out, "Max cycles: %d\n", *maxCycles)
		}
		fmt.Fprintf(cpu.tracer.out, "\n")
	}

	startTime := time.Now()
	err = runEmulator(cpu, *maxCycles, bar)
	elapsed := time.Since(startTime)

	restoreTerminal()

	fmt.Fprintf(os.Stderr, "\n========================================\n")
	fmt.Fprintf(os.Stderr, "Execution completed\n")
	fmt.Fprintf(os.Stderr, "Cycles: %d\n", cpu.cycles)
	fmt.Fprintf(os.Stderr, "Time: %v\n", elapsed.Round(time.Millisecond))

	if elapsed.Seconds() > 0 {
		mhz := (float64(cpu.cycles) / 1_000_000.0) / elapsed.Seconds()
		fmt.Fprintf(os.Stderr, "Speed: %.3f MHz\n", mhz)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Exit: normal\n")
}

// runEmulator drives the CPU cycle by cycle so it can honor -max-cycles
// and update the optional progress bar; cpu.Run() alone has no way to
// stop early or report progress.
func runEmulator(cpu *CPU, maxCycles uint64, bar *progressbar.ProgressBar) error {
	for cpu.running {
		if maxCycles > 0 && cpu.cycles >= maxCycles {
			fmt.Fprintf(os.Stderr, "\nMax cycles reached (%d)\n", maxCycles)
			cpu.running = false
			return nil
		}

		if err := cpu.Step(); err != nil {
			return err
		}

		if bar != nil {
			bar.Add(1)
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <bios-image>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "EE Core Emulator - execute a BIOS image against an emulated Emotion Engine core\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nArguments:\n")
	fmt.Fprintf(os.Stderr, "  <bios-image>    Raw BIOS ROM image to map at the reset vector\n")
	fmt.Fprintf(os.Stderr, "\nConsole I/O is connected to stdin/stderr through the emulated UART.\n")
	fmt.Fprintf(os.Stderr, "Use -trace to generate a detailed execution trace file.\n")
}
