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

func effectiveAddr(cpu *CPU, raw Word) uint32 {
	return gpr32(cpu, raw.RS()) + raw.Imm16Sext()
}

func opLb(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	phys, ok := cpu.translateData(addr, true)
	if !ok {
		return
	}
	v, err := cpu.mem.ReadByte(phys)
	if err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	result := uint64(int64(int8(v)))
	cpu.regs.WriteGPR(raw.RT(), result)
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("LB", addr, phys, 1, result)
	}
}

func opLbu(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	phys, ok := cpu.translateData(addr, true)
	if !ok {
		return
	}
	v, err := cpu.mem.ReadByte(phys)
	if err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	cpu.regs.WriteGPR(raw.RT(), uint64(v))
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("LBU", addr, phys, 1, uint64(v))
	}
}

func opLh(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	if addr&0x1 != 0 {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: addr})
		return
	}
	phys, ok := cpu.translateData(addr, true)
	if !ok {
		return
	}
	v, err := cpu.mem.ReadHalf(phys)
	if err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	result := uint64(int64(int16(v)))
	cpu.regs.WriteGPR(raw.RT(), result)
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("LH", addr, phys, 2, result)
	}
}

func opLhu(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	if addr&0x1 != 0 {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: addr})
		return
	}
	phys, ok := cpu.translateData(addr, true)
	if !ok {
		return
	}
	v, err := cpu.mem.ReadHalf(phys)
	if err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	cpu.regs.WriteGPR(raw.RT(), uint64(v))
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("LHU", addr, phys, 2, uint64(v))
	}
}

func opLw(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	if addr&0x3 != 0 {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: addr})
		return
	}
	phys, ok := cpu.translateData(addr, true)
	if !ok {
		return
	}
	v, err := cpu.mem.ReadWord(phys)
	if err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	result := se32(v)
	cpu.regs.WriteGPR(raw.RT(), result)
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("LW", addr, phys, 4, result)
	}
}

func opLwu(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	if addr&0x3 != 0 {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: addr})
		return
	}
	phys, ok := cpu.translateData(addr, true)
	if !ok {
		return
	}
	v, err := cpu.mem.ReadWord(phys)
	if err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	cpu.regs.WriteGPR(raw.RT(), uint64(v))
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("LWU", addr, phys, 4, uint64(v))
	}
}

func opSb(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	phys, ok := cpu.translateData(addr, false)
	if !ok {
		return
	}
	v := uint8(gpr32(cpu, raw.RT()))
	if err := cpu.mem.WriteByte(phys, v); err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("SB", addr, phys, 1, uint64(v))
	}
}

func opSh(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	if addr&0x1 != 0 {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorStore, Addr: addr})
		return
	}
	phys, ok := cpu.translateData(addr, false)
	if !ok {
		return
	}
	v := uint16(gpr32(cpu, raw.RT()))
	if err := cpu.mem.WriteHalf(phys, v); err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("SH", addr, phys, 2, uint64(v))
	}
}

func opSw(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	if addr&0x3 != 0 {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorStore, Addr: addr})
		return
	}
	phys, ok := cpu.translateData(addr, false)
	if !ok {
		return
	}
	v := gpr32(cpu, raw.RT())
	if err := cpu.mem.WriteWord(phys, v); err != nil {
		cpu.raiseL1(L1Exception{Kind: L1BusErrorLoadStore, Addr: addr})
		return
	}
	if cpu.tracer != nil {
		cpu.tracer.TraceMemoryAccess("SW", addr, phys, 4, uint64(v))
	}
}

// opCache is a no-op: cache timing and line state are out of scope, but
// the instruction still decodes and retires normally.
func opCache(cpu *CPU, raw Word) {}

// opSwc1 is the COP1 stub's only recognized store form: it writes zero
// to memory rather than faulting, since no FPU register file exists.
func opSwc1(cpu *CPU, raw Word) {
	addr := effectiveAddr(cpu, raw)
	phys, ok := cpu.translateData(addr, false)
	if !ok {
		return
	}
	_ = cpu.mem.WriteWord(phys, 0)
}
