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

// cop0Usable reports whether the current privilege level may execute a
// COP0 instruction: always true in kernel mode, otherwise gated by
// Status.CU0.
func cop0Usable(cpu *CPU) bool {
	status := cpu.status()
	if status.Privilege().Kind == PrivKernel {
		return true
	}
	return status.COP0Usable()
}

func requireCop0(cpu *CPU) bool {
	if cop0Usable(cpu) {
		return true
	}
	cpu.raiseL1(L1Exception{Kind: L1CoprocessorUnusable, CopNum: 0})
	return false
}

func opMfc0(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	v := cpu.cop0.ReadCop0(Cop0Reg(raw.RD()))
	cpu.regs.WriteGPR(raw.RT(), se32(v))
}

func opMtc0(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	cpu.cop0.WriteCop0(Cop0Reg(raw.RD()), gpr32(cpu, raw.RT()))
}

func buildEntryHi(vpn2 uint32, asid uint8) uint32 {
	return (vpn2 &^ 0x1FFF) | uint32(asid)
}

func buildEntryLo(page TLBPage, global bool) uint32 {
	v := (page.PFN & 0xFFFFF) << 6
	v |= uint32(page.CacheMode&0x3) << 3
	if page.Dirty {
		v |= 1 << 2
	}
	if page.Valid {
		v |= 1 << 1
	}
	if global {
		v |= 1
	}
	return v
}

func opTlbwi(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	cpu.mmu.writeIndex(
		cpu.cop0.ReadCop0Direct(Cop0EntryHi),
		cpu.cop0.ReadCop0Direct(Cop0EntryLo0),
		cpu.cop0.ReadCop0Direct(Cop0EntryLo1),
	)
}

func opTlbwr(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	cpu.mmu.writeRandom(
		cpu.cop0.ReadCop0Direct(Cop0Random),
		cpu.cop0.ReadCop0Direct(Cop0EntryHi),
		cpu.cop0.ReadCop0Direct(Cop0EntryLo0),
		cpu.cop0.ReadCop0Direct(Cop0EntryLo1),
	)
}

func opTlbr(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	line := &cpu.mmu.tlb.Lines[cpu.mmu.index]
	cpu.cop0.WriteCop0Direct(Cop0PageMask, line.Mask)
	cpu.cop0.WriteCop0Direct(Cop0EntryHi, buildEntryHi(line.VPN2, line.ASID))
	cpu.cop0.WriteCop0Direct(Cop0EntryLo0, buildEntryLo(line.Even, line.Global))
	cpu.cop0.WriteCop0Direct(Cop0EntryLo1, buildEntryLo(line.Odd, line.Global))
}

func opTlbp(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	entryHi := cpu.cop0.ReadCop0Direct(Cop0EntryHi)
	vpn2 := entryHiVPN2(entryHi)
	asid := entryHiASID(entryHi)

	found := -1
	for i := range cpu.mmu.tlb.Lines {
		line := &cpu.mmu.tlb.Lines[i]
		if line.VPN2 == vpn2 && (line.Global || line.ASID == asid) {
			found = i
			break
		}
	}
	if found < 0 {
		cpu.cop0.WriteCop0Direct(Cop0Index, 1<<31)
		return
	}
	cpu.cop0.WriteCop0Direct(Cop0Index, uint32(found))
}

// opEret implements the exception-return instruction: ERL takes
// priority over EXL, and the return is an immediate PC change with no
// delay slot.
func opEret(cpu *CPU, raw Word) {
	if !requireCop0(cpu) {
		return
	}
	status := cpu.status()
	switch {
	case status&StatusERL != 0:
		cpu.regs.pc = cpu.cop0.ReadCop0Direct(Cop0ErrorEPC)
		cpu.setStatus(status &^ StatusERL)
	case status&StatusEXL != 0:
		cpu.regs.pc = cpu.cop0.ReadCop0Direct(Cop0EPC)
		cpu.setStatus(status &^ StatusEXL)
	}
	cpu.pcOverridden = true
}
