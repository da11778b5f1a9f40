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

func TestTranslateKSEG0IsDirectMapped(t *testing.T) {
	cpu := newTestCPU()
	phys, ok := cpu.translateAddr(KSEG0Start+0x1000, true)
	if !ok {
		t.Fatalf("KSEG0 translation unexpectedly faulted")
	}
	if phys.Addr != 0x1000 || phys.Scratch {
		t.Errorf("phys = %+v, want Addr=0x1000, Scratch=false", phys)
	}
}

func TestTranslateKSEG1IsDirectMappedUncached(t *testing.T) {
	cpu := newTestCPU()
	phys, ok := cpu.translateAddr(KSEG1Start+0x2000, true)
	if !ok {
		t.Fatalf("KSEG1 translation unexpectedly faulted")
	}
	if phys.Addr != 0x2000 {
		t.Errorf("phys.Addr = %#x, want 0x2000", phys.Addr)
	}
}

func TestTranslateUsegMissRaisesRefill(t *testing.T) {
	cpu := newTestCPU()
	_, ok := cpu.translateAddr(USEGStart+0x4000, true)
	if ok {
		t.Fatalf("expected a TLB miss to fault")
	}
	if !cpu.exceptedThisCycle {
		t.Errorf("exceptedThisCycle not set after a TLB miss")
	}
	if cpu.causeReg().ExcCode() != ExcTlbFetchLoadRefill {
		t.Errorf("ExcCode = %d, want ExcTlbFetchLoadRefill (%d)", cpu.causeReg().ExcCode(), ExcTlbFetchLoadRefill)
	}
}

func TestTranslateUsegHitsAfterLineInstall(t *testing.T) {
	cpu := newTestCPU()
	const vpn2 = uint32(0x12300) &^ 0x1FFF
	entryHi := buildEntryHi(vpn2, 0)
	entryLo0 := buildEntryLo(TLBPage{PFN: 0x500, Valid: true, Dirty: true}, true)
	entryLo1 := buildEntryLo(TLBPage{PFN: 0x501, Valid: true, Dirty: true}, true)
	cpu.mmu.pageMask = PageMask4KB
	cpu.mmu.tlb.Lines[0].update(PageMask4KB, entryHi, entryLo0, entryLo1)

	vAddr := vpn2
	phys, ok := cpu.translateAddr(vAddr, true)
	if !ok {
		t.Fatalf("expected a TLB hit, got a fault")
	}
	wantAddr := uint32(0x500) << 12
	if phys.Addr != wantAddr {
		t.Errorf("phys.Addr = %#x, want %#x", phys.Addr, wantAddr)
	}
}

func TestTranslateStoreToCleanPageRaisesTlbModified(t *testing.T) {
	cpu := newTestCPU()
	const vpn2 = uint32(0x40000) &^ 0x1FFF
	entryHi := buildEntryHi(vpn2, 0)
	entryLo0 := buildEntryLo(TLBPage{PFN: 1, Valid: true, Dirty: false}, true)
	entryLo1 := buildEntryLo(TLBPage{PFN: 2, Valid: true, Dirty: false}, true)
	cpu.mmu.pageMask = PageMask4KB
	cpu.mmu.tlb.Lines[0].update(PageMask4KB, entryHi, entryLo0, entryLo1)

	_, ok := cpu.translateAddr(vpn2, false)
	if ok {
		t.Fatalf("expected a store to a clean page to fault")
	}
	if cpu.causeReg().ExcCode() != ExcTlbModified {
		t.Errorf("ExcCode = %d, want ExcTlbModified (%d)", cpu.causeReg().ExcCode(), ExcTlbModified)
	}
}

func TestTLBWIInstallsLineFromStagingRegisters(t *testing.T) {
	cpu := newTestCPU()
	cpu.cop0.WriteCop0Direct(Cop0Index, 3)
	cpu.mmu.index = 3
	cpu.cop0.WriteCop0Direct(Cop0EntryHi, buildEntryHi(0x50000, 7))
	cpu.cop0.WriteCop0Direct(Cop0EntryLo0, buildEntryLo(TLBPage{PFN: 9, Valid: true}, false))
	cpu.cop0.WriteCop0Direct(Cop0EntryLo1, buildEntryLo(TLBPage{PFN: 10, Valid: true}, false))

	raw := BuildRegisterOp(uint8(OpCop0), uint8(C0Tlbwi), uint8(C0Co), 0, 0, 0)
	opTlbwi(cpu, raw)

	line := cpu.mmu.tlb.Lines[3]
	if line.VPN2 != 0x50000&^0x1FFF {
		t.Errorf("VPN2 = %#x, want %#x", line.VPN2, 0x50000&^0x1FFF)
	}
	if line.Even.PFN != 9 || line.Odd.PFN != 10 {
		t.Errorf("Even/Odd PFN = %d/%d, want 9/10", line.Even.PFN, line.Odd.PFN)
	}
}
