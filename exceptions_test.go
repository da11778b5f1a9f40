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

func TestRaiseL1SetsEPCAndVector(t *testing.T) {
	cpu := newTestCPU()
	cpu.regs.pc = 0x80001000
	cpu.setStatus(0)

	cpu.raiseL1(L1Exception{Kind: L1Systemcall})

	if cpu.cop0.ReadCop0Direct(Cop0EPC) != 0x80001000 {
		t.Errorf("EPC = %#x, want 0x80001000", cpu.cop0.ReadCop0Direct(Cop0EPC))
	}
	if cpu.status()&StatusEXL == 0 {
		t.Errorf("EXL not set after L1 exception")
	}
	if cpu.causeReg().ExcCode() != ExcSyscall {
		t.Errorf("ExcCode = %d, want ExcSyscall", cpu.causeReg().ExcCode())
	}
	if cpu.regs.pc != VectorCommon {
		t.Errorf("pc = %#x, want VectorCommon %#x", cpu.regs.pc, VectorCommon)
	}
	if !cpu.exceptedThisCycle {
		t.Errorf("exceptedThisCycle not set")
	}
}

func TestRaiseL1InDelaySlotSetsBD1AndBacksUpEPC(t *testing.T) {
	cpu := newTestCPU()
	cpu.regs.pc = 0x80001004
	cpu.setStatus(0)
	cpu.branchDelay = &BranchDelay{Fn: secondStageBranch}

	cpu.raiseL1(L1Exception{Kind: L1Break})

	if cpu.cop0.ReadCop0Direct(Cop0EPC) != 0x80001000 {
		t.Errorf("EPC = %#x, want backed-up 0x80001000", cpu.cop0.ReadCop0Direct(Cop0EPC))
	}
	if uint32(cpu.causeReg())&causeBD1Bit == 0 {
		t.Errorf("BD1 not set when raising into a pending branch delay")
	}
}

func TestRaiseL1NestedExceptionDoesNotReenterEXL(t *testing.T) {
	cpu := newTestCPU()
	cpu.setStatus(StatusEXL)
	cpu.cop0.WriteCop0Direct(Cop0EPC, 0x80002000)

	cpu.raiseL1(L1Exception{Kind: L1Break})

	if cpu.cop0.ReadCop0Direct(Cop0EPC) != 0x80002000 {
		t.Errorf("EPC was overwritten on a nested exception: %#x", cpu.cop0.ReadCop0Direct(Cop0EPC))
	}
}

func TestCop0UnusableInUserModeRaisesException(t *testing.T) {
	cpu := newTestCPU()
	cpu.setStatus(StatusKSU1) // user mode, CU0 clear
	raw := BuildRegisterOp(uint8(OpCop0), 0, uint8(C0Mf), 8, 12, 0)

	opMfc0(cpu, raw)

	if cpu.regs.ReadGPR(8) != 0 {
		t.Errorf("rt was written despite COP0 being unusable")
	}
	if cpu.causeReg().ExcCode() != ExcCoprocessorUnusable {
		t.Errorf("ExcCode = %d, want ExcCoprocessorUnusable", cpu.causeReg().ExcCode())
	}
}

func TestCop0UsableInUserModeWithCU0Set(t *testing.T) {
	cpu := newTestCPU()
	cpu.setStatus(StatusKSU1 | StatusCU0)
	cpu.cop0.WriteCop0Direct(Cop0Count, 42)
	raw := BuildRegisterOp(uint8(OpCop0), 0, uint8(C0Mf), 8, uint8(Cop0Count), 0)

	opMfc0(cpu, raw)

	if cpu.regs.ReadGPR(8) != 42 {
		t.Errorf("rt = %d, want 42", cpu.regs.ReadGPR(8))
	}
}

func TestRaiseL2ResetReinitializesTLBAndRandom(t *testing.T) {
	cpu := newTestCPU()
	cpu.mmu.tlb.Lines[0].Global = true
	cpu.cop0.WriteCop0Direct(Cop0Random, 3)

	cpu.raiseL2(L2Exception{Kind: L2Reset})

	if cpu.mmu.tlb.Lines[0].Global {
		t.Errorf("TLB was not cleared on L2 reset")
	}
	if cpu.cop0.ReadCop0Direct(Cop0Random) != RandomMax {
		t.Errorf("Random = %d, want RandomMax %d", cpu.cop0.ReadCop0Direct(Cop0Random), RandomMax)
	}
	if cpu.status()&StatusERL == 0 {
		t.Errorf("ERL not set after L2 reset")
	}
	if cpu.regs.pc != VectorResetNMI {
		t.Errorf("pc = %#x, want VectorResetNMI", cpu.regs.pc)
	}
}
