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

import "testing"

// loadProgram writes words into DRAM starting at physical offset 0 and
// points PC at their KSEG0 alias, so fetchDecode's direct-mapped path
// resolves them without touching the TLB.
func loadProgram(cpu *CPU, words ...Word) {
	for i, w := range words {
		if err := cpu.mem.WriteWord(PhysAddr{Addr: uint32(i * 4)}, uint32(w)); err != nil {
			panic(err)
		}
	}
	cpu.regs.pc = KSEG0Start
}

func TestJumpExecutesDelaySlotThenLands(t *testing.T) {
	cpu := newTestCPU()
	cpu.dualIssueEnabled = false
	target := (KSEG0Start & 0xF0000000) | (0x40 << 2)
	loadProgram(cpu,
		BuildJump(uint8(OpJ), 0x40),
		BuildImmediate(uint8(OpAddiu), 0, 8, 7), // delay slot: r8 = 7
	)

	if err := cpu.Step(); err != nil { // fetch J, install branch, execute delay-slot next step
		t.Fatalf("step 1: %v", err)
	}
	if err := cpu.Step(); err != nil { // takes branch (pc = target), then executes delay slot instruction
		t.Fatalf("step 2: %v", err)
	}

	if cpu.regs.ReadGPR(8) != 7 {
		t.Errorf("delay slot did not execute: r8 = %d, want 7", cpu.regs.ReadGPR(8))
	}
	if cpu.regs.pc != target {
		t.Errorf("pc = %#x, want jump target %#x", cpu.regs.pc, target)
	}
}

func TestBranchNotTakenStillExecutesDelaySlot(t *testing.T) {
	cpu := newTestCPU()
	cpu.dualIssueEnabled = false
	cpu.regs.WriteGPR(9, 1)
	loadProgram(cpu,
		BuildImmediate(uint8(OpBeq), 9, 0, 4), // 9 != 0, not taken
		BuildImmediate(uint8(OpAddiu), 0, 8, 11),
	)

	if err := cpu.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if err := cpu.Step(); err != nil {
		t.Fatalf("step 2: %v", err)
	}

	if cpu.regs.ReadGPR(8) != 11 {
		t.Errorf("delay slot skipped on not-taken branch: r8 = %d, want 11", cpu.regs.ReadGPR(8))
	}
	if cpu.regs.pc != KSEG0Start+8 {
		t.Errorf("pc = %#x, want fallthrough %#x", cpu.regs.pc, KSEG0Start+8)
	}
}

func TestBranchLikelyNotTakenNullifiesDelaySlot(t *testing.T) {
	cpu := newTestCPU()
	cpu.dualIssueEnabled = false
	cpu.regs.WriteGPR(9, 1)
	loadProgram(cpu,
		BuildImmediate(uint8(OpBeql), 9, 0, 4), // 9 != 0, not taken -> nullify
		BuildImmediate(uint8(OpAddiu), 0, 8, 99),
	)

	if err := cpu.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if err := cpu.Step(); err != nil {
		t.Fatalf("step 2: %v", err)
	}

	if cpu.regs.ReadGPR(8) != 0 {
		t.Errorf("branch-likely delay slot was not nullified: r8 = %d, want 0", cpu.regs.ReadGPR(8))
	}
	if cpu.regs.pc != KSEG0Start+8 {
		t.Errorf("pc = %#x, want fallthrough %#x", cpu.regs.pc, KSEG0Start+8)
	}
}

func TestJalLinksReturnAddress(t *testing.T) {
	cpu := newTestCPU()
	cpu.dualIssueEnabled = false
	loadProgram(cpu,
		BuildJump(uint8(OpJal), 0x10),
		BuildImmediate(uint8(OpAddiu), 0, 8, 0),
	)

	if err := cpu.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	if err := cpu.Step(); err != nil {
		t.Fatalf("step 2: %v", err)
	}

	want := uint64(KSEG0Start + 8)
	if cpu.regs.ReadGPR(31) != want {
		t.Errorf("ra = %#x, want %#x (instruction after the delay slot)", cpu.regs.ReadGPR(31), want)
	}
}

func TestJrUnalignedTargetRaisesAddressErrorNoDelaySlot(t *testing.T) {
	cpu := newTestCPU()
	cpu.regs.WriteGPR(9, KSEG0Start+3) // low two bits nonzero
	raw := BuildRegister(uint8(FnJr), 9, 0, 0, 0)

	opJr(cpu, raw)

	if cpu.branchDelay != nil {
		t.Errorf("opJr installed a delay slot for an unaligned target")
	}
	if !cpu.exceptedThisCycle {
		t.Errorf("opJr did not raise an exception for an unaligned target")
	}
	if cpu.causeReg().ExcCode() != ExcAddressErrorFetchLoad {
		t.Errorf("ExcCode = %d, want ExcAddressErrorFetchLoad", cpu.causeReg().ExcCode())
	}
}

func TestJalrUnalignedTargetStillLinksButRaises(t *testing.T) {
	cpu := newTestCPU()
	cpu.regs.WriteGPR(9, KSEG0Start+2)
	cpu.regs.pc = KSEG0Start + 0x100
	raw := BuildRegister(uint8(FnJalr), 9, 0, 8, 0)

	opJalr(cpu, raw)

	if cpu.regs.ReadGPR(8) == 0 {
		t.Errorf("opJalr did not link r8 before raising the alignment exception")
	}
	if cpu.branchDelay != nil {
		t.Errorf("opJalr installed a delay slot for an unaligned target")
	}
	if !cpu.exceptedThisCycle {
		t.Errorf("opJalr did not raise an exception for an unaligned target")
	}
}
