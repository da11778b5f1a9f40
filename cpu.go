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
	"fmt"
	"io"
)

// CPU is the Emotion Engine Core: register files, COP0, MMU, physical
// memory, and the branch-delay slot, all owned by a single logical
// owner for the duration of a cycle.
type CPU struct {
	regs RegisterFile
	cop0 Cop0File
	mmu  MMU
	mem  Memory

	dualIssueEnabled bool
	branchDelay      *BranchDelay
	exceptedThisCycle bool
	pcOverridden      bool

	cycles  uint64
	running bool

	consoleIn  io.Reader
	consoleOut io.Writer
	uart       *UART

	tracer *Tracer
}

// NewCPU allocates a CPU with physical memory sized per the spec and
// wires the COP0 side-effect map (Config/Index/PageMask/Wired).
func NewCPU() *CPU {
	cpu := &CPU{
		mem:     newMemory(),
		running: true,
	}
	cpu.cop0.onWrite = cpu.cop0SideEffects
	cpu.Reset()
	return cpu
}

// Reset restores the CPU to its power-on state: PC at the BIOS entry
// vector, Status = {ERL, BEV}, Random at its maximum, and all else zero.
func (cpu *CPU) Reset() {
	cpu.regs = RegisterFile{}
	cpu.cop0 = Cop0File{onWrite: cpu.cop0SideEffects}
	cpu.mmu = MMU{}
	cpu.branchDelay = nil
	cpu.exceptedThisCycle = false
	cpu.pcOverridden = false
	cpu.cycles = 0
	cpu.running = true
	cpu.dualIssueEnabled = true

	cpu.regs.pc = BIOSPhysical + KSEG1Start

	cpu.cop0.WriteCop0Direct(Cop0Status, uint32(StatusERL|StatusBEV))
	cpu.cop0.WriteCop0Direct(Cop0PRId, uint32(EEPrID)<<8)
	cpu.cop0.WriteCop0Direct(Cop0Random, RandomMax)
	cpu.mmu.wired = 0
}

// cop0SideEffects implements the write-side-effect map described in §3:
// Config refreshes the dual-issue flag; Index/PageMask/Wired refresh the
// MMU shadow; writing Wired additionally resets Random to its maximum.
func (cpu *CPU) cop0SideEffects(r Cop0Reg, v uint32) {
	switch r {
	case Cop0Config:
		cpu.dualIssueEnabled = v&0x1 != 0
	case Cop0Index:
		cpu.mmu.index = uint8((v & 0x3F) % TLBEntries)
	case Cop0PageMask:
		cpu.mmu.pageMask = v
	case Cop0Wired:
		cpu.mmu.wired = uint8((v & 0x3F) % TLBEntries)
		cpu.cop0.WriteCop0Direct(Cop0Random, RandomMax)
	case Cop0EntryHi:
		cpu.mmu.asid = entryHiASID(v)
	}
}

// Run executes the fetch-decode-issue-execute loop until stopped.
func (cpu *CPU) Run() error {
	for cpu.running {
		if err := cpu.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step runs exactly one cycle of the driver described in §4.9: Count vs.
// Compare, fetch-and-decode a dual-issue-wide window, execute P1, admit
// P2 if the issue predicate allows, clear the per-cycle exception flag,
// and decrement Random toward Wired.
func (cpu *CPU) Step() error {
	cpu.tickTimer()

	p1, err := cpu.fetchDecode(cpu.regs.pc)
	if err != nil {
		return err
	}
	if cpu.exceptedThisCycle {
		cpu.exceptedThisCycle = false
		cpu.decrementRandom()
		cpu.cycles++
		return nil
	}

	if cpu.tracer != nil {
		cpu.tracer.TracePreInstruction(cpu, p1)
	}

	startPC := cpu.regs.pc
	cpu.executeOne(p1)

	issuedSecond := false
	if !cpu.exceptedThisCycle && cpu.dualIssueEnabled {
		p2, err := cpu.fetchDecode(startPC + InstructionBytes)
		if err == nil && !cpu.exceptedThisCycle {
			freePipes := PipeALU0 | PipeALU1 | PipeLSU | PipeCOP0
			if canIssueBoth(cpu.dualIssueEnabled, p1, p2, freePipes) {
				cpu.executeOne(p2)
				issuedSecond = true
			}
		}
	}

	if cpu.tracer != nil {
		cpu.tracer.TracePostInstruction(cpu, p1, issuedSecond)
	}

	cpu.exceptedThisCycle = false
	cpu.decrementRandom()
	cpu.cycles++
	return nil
}

// executeOne runs the pending branch-delay second stage (if any), then
// the decoded op's handler, then advances PC unless the op branched or
// an exception fired this cycle.
func (cpu *CPU) executeOne(op *DecodedOp) {
	nullified := false
	branched := false
	if bd := cpu.takeBranchDelay(); bd != nil {
		result := bd.Fn(cpu, bd.Raw, bd.Temp)
		nullified = result&ResultNullified != 0
		branched = result&ResultBranched != 0
	}

	cpu.pcOverridden = false
	if !nullified {
		op.Handler(cpu, op.Raw)
	}

	if cpu.exceptedThisCycle {
		// PC was already redirected to the exception vector.
		return
	}

	if cpu.pcOverridden {
		// A handler (ERET) set PC directly; it has no delay slot.
		return
	}

	if !branched {
		cpu.regs.pc += InstructionBytes
	}
}

// tickTimer increments Count and raises Interrupt(7) on a Compare match.
func (cpu *CPU) tickTimer() {
	count := cpu.cop0.ReadCop0Direct(Cop0Count) + 1
	cpu.cop0.WriteCop0Direct(Cop0Count, count)
	if count == cpu.cop0.ReadCop0Direct(Cop0Compare) {
		cpu.raiseL1(L1Exception{Kind: L1Interrupt, IntNum: 7})
	}
}

// decrementRandom decrements Random toward Wired, wrapping to RandomMax.
func (cpu *CPU) decrementRandom() {
	random := cpu.cop0.ReadCop0Direct(Cop0Random)
	wired := uint32(cpu.mmu.wired)
	if random <= wired {
		cpu.cop0.WriteCop0Direct(Cop0Random, RandomMax)
		return
	}
	cpu.cop0.WriteCop0Direct(Cop0Random, random-1)
}

// fetchDecode translates pc through the MMU's code path and decodes the
// fetched word. It returns a non-nil error only for fatal (non-
// architectural) faults; address/TLB faults are handled by raising an
// exception and reporting via exceptedThisCycle.
func (cpu *CPU) fetchDecode(pc uint32) (*DecodedOp, error) {
	phys, ok := cpu.translateFetch(pc)
	if !ok {
		return nil, nil
	}
	raw, err := cpu.mem.ReadWord(phys)
	if err != nil {
		return nil, fmt.Errorf("fetch at phys %#x: %w", phys, err)
	}
	op := decode(Word(raw))
	if op.Unknown && cpu.tracer != nil {
		cpu.tracer.TraceUnknownOpcode(pc, op.Raw)
	}
	return op, nil
}
