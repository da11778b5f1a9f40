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

// se32 sign-extends a 32-bit result to the GPR's 64-bit lane, the
// convention every 32-bit-producing integer op in this ISA follows.
func se32(v uint32) uint64 { return uint64(int64(int32(v))) }

func gpr32(cpu *CPU, i uint8) uint32 { return uint32(cpu.regs.ReadGPR(i)) }

// --- immediate arithmetic -----------------------------------------------

// opAddi adds a sign-extended immediate to rs, trapping to Overflow on
// signed 32-bit overflow and leaving rt unmodified when it does.
func opAddi(cpu *CPU, raw Word) {
	a := int32(gpr32(cpu, raw.RS()))
	b := int32(raw.Imm16Sext())
	sum := a + b
	if overflowsAdd32(a, b, sum) {
		cpu.raiseL1(L1Exception{Kind: L1Overflow})
		return
	}
	cpu.regs.WriteGPR(raw.RT(), se32(uint32(sum)))
}

// opAddiu adds a sign-extended immediate to rs and wraps on overflow;
// despite the mnemonic, both the immediate and the 32-bit result are
// sign-extended; the only difference from ADDI is that nothing traps.
func opAddiu(cpu *CPU, raw Word) {
	sum := gpr32(cpu, raw.RS()) + raw.Imm16Sext()
	cpu.regs.WriteGPR(raw.RT(), se32(sum))
}

func opSlti(cpu *CPU, raw Word) {
	v := int32(gpr32(cpu, raw.RS())) < int32(raw.Imm16Sext())
	cpu.regs.WriteGPR(raw.RT(), boolBit(v))
}

func opSltiu(cpu *CPU, raw Word) {
	v := gpr32(cpu, raw.RS()) < raw.Imm16Sext()
	cpu.regs.WriteGPR(raw.RT(), boolBit(v))
}

func opAndi(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RT(), cpu.regs.ReadGPR(raw.RS())&uint64(raw.Imm16Zext()))
}

// opOri zero-extends the immediate, matching the real instruction's
// unsigned-immediate form.
func opOri(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RT(), cpu.regs.ReadGPR(raw.RS())|uint64(raw.Imm16Zext()))
}

func opXori(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RT(), cpu.regs.ReadGPR(raw.RS())^uint64(raw.Imm16Zext()))
}

// opLui loads the immediate into the upper half of a 32-bit word and
// sign-extends the result, so a subsequent ORI composes a full 32-bit
// constant without the top half flipping sign on its own.
func opLui(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RT(), se32(uint32(raw.Imm16())<<16))
}

func boolBit(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func overflowsAdd32(a, b, sum int32) bool {
	return (a >= 0) == (b >= 0) && (sum >= 0) != (a >= 0)
}

func overflowsSub32(a, b, diff int32) bool {
	return (a >= 0) != (b >= 0) && (diff >= 0) != (a >= 0)
}

// --- register arithmetic (Special family) -------------------------------

func opSll(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), se32(gpr32(cpu, raw.RT())<<raw.SA()))
}

func opSrl(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), se32(gpr32(cpu, raw.RT())>>raw.SA()))
}

func opSra(cpu *CPU, raw Word) {
	v := int32(gpr32(cpu, raw.RT())) >> raw.SA()
	cpu.regs.WriteGPR(raw.RD(), se32(uint32(v)))
}

func opSllv(cpu *CPU, raw Word) {
	sh := gpr32(cpu, raw.RS()) & 0x1F
	cpu.regs.WriteGPR(raw.RD(), se32(gpr32(cpu, raw.RT())<<sh))
}

func opSrlv(cpu *CPU, raw Word) {
	sh := gpr32(cpu, raw.RS()) & 0x1F
	cpu.regs.WriteGPR(raw.RD(), se32(gpr32(cpu, raw.RT())>>sh))
}

func opSrav(cpu *CPU, raw Word) {
	sh := gpr32(cpu, raw.RS()) & 0x1F
	v := int32(gpr32(cpu, raw.RT())) >> sh
	cpu.regs.WriteGPR(raw.RD(), se32(uint32(v)))
}

func opSyscall(cpu *CPU, raw Word) {
	cpu.raiseL1(L1Exception{Kind: L1Systemcall})
}

func opBreak(cpu *CPU, raw Word) {
	cpu.raiseL1(L1Exception{Kind: L1Break})
}

func opNop(cpu *CPU, raw Word) {}

func opMfhi(cpu *CPU, raw Word) { cpu.regs.WriteGPR(raw.RD(), cpu.regs.ReadHI()) }
func opMthi(cpu *CPU, raw Word) { cpu.regs.WriteHI(cpu.regs.ReadGPR(raw.RS())) }
func opMflo(cpu *CPU, raw Word) { cpu.regs.WriteGPR(raw.RD(), cpu.regs.ReadLO()) }
func opMtlo(cpu *CPU, raw Word) { cpu.regs.WriteLO(cpu.regs.ReadGPR(raw.RS())) }

func opMult(cpu *CPU, raw Word) {
	a := int64(int32(gpr32(cpu, raw.RS())))
	b := int64(int32(gpr32(cpu, raw.RT())))
	prod := a * b
	cpu.regs.WriteLO(se32(uint32(prod)))
	cpu.regs.WriteHI(se32(uint32(prod >> 32)))
}

func opMultu(cpu *CPU, raw Word) {
	prod := uint64(gpr32(cpu, raw.RS())) * uint64(gpr32(cpu, raw.RT()))
	cpu.regs.WriteLO(se32(uint32(prod)))
	cpu.regs.WriteHI(se32(uint32(prod >> 32)))
}

// opDiv implements signed division; divide-by-zero leaves HI/LO
// untouched rather than raising an exception or a trap instruction.
func opDiv(cpu *CPU, raw Word) {
	a := int32(gpr32(cpu, raw.RS()))
	b := int32(gpr32(cpu, raw.RT()))
	if b == 0 {
		return
	}
	cpu.regs.WriteLO(se32(uint32(a / b)))
	cpu.regs.WriteHI(se32(uint32(a % b)))
}

func opDivu(cpu *CPU, raw Word) {
	a := gpr32(cpu, raw.RS())
	b := gpr32(cpu, raw.RT())
	if b == 0 {
		return
	}
	cpu.regs.WriteLO(se32(a / b))
	cpu.regs.WriteHI(se32(a % b))
}

func opAdd(cpu *CPU, raw Word) {
	a := int32(gpr32(cpu, raw.RS()))
	b := int32(gpr32(cpu, raw.RT()))
	sum := a + b
	if overflowsAdd32(a, b, sum) {
		cpu.raiseL1(L1Exception{Kind: L1Overflow})
		return
	}
	cpu.regs.WriteGPR(raw.RD(), se32(uint32(sum)))
}

func opAddu(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), se32(gpr32(cpu, raw.RS())+gpr32(cpu, raw.RT())))
}

func opSub(cpu *CPU, raw Word) {
	a := int32(gpr32(cpu, raw.RS()))
	b := int32(gpr32(cpu, raw.RT()))
	diff := a - b
	if overflowsSub32(a, b, diff) {
		cpu.raiseL1(L1Exception{Kind: L1Overflow})
		return
	}
	cpu.regs.WriteGPR(raw.RD(), se32(uint32(diff)))
}

func opSubu(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), se32(gpr32(cpu, raw.RS())-gpr32(cpu, raw.RT())))
}

func opAnd(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), cpu.regs.ReadGPR(raw.RS())&cpu.regs.ReadGPR(raw.RT()))
}

func opOr(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), cpu.regs.ReadGPR(raw.RS())|cpu.regs.ReadGPR(raw.RT()))
}

func opXor(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), cpu.regs.ReadGPR(raw.RS())^cpu.regs.ReadGPR(raw.RT()))
}

func opNor(cpu *CPU, raw Word) {
	cpu.regs.WriteGPR(raw.RD(), ^(cpu.regs.ReadGPR(raw.RS()) | cpu.regs.ReadGPR(raw.RT())))
}

func opSlt(cpu *CPU, raw Word) {
	v := int64(cpu.regs.ReadGPR(raw.RS())) < int64(cpu.regs.ReadGPR(raw.RT()))
	cpu.regs.WriteGPR(raw.RD(), boolBit(v))
}

func opSltu(cpu *CPU, raw Word) {
	v := cpu.regs.ReadGPR(raw.RS()) < cpu.regs.ReadGPR(raw.RT())
	cpu.regs.WriteGPR(raw.RD(), boolBit(v))
}
