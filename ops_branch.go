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

// linkValue is the return address an *AL branch or jump stashes in r31:
// the instruction after the delay slot.
func linkValue(cpu *CPU) uint64 { return uint64(cpu.regs.pc + 2*InstructionBytes) }

func opJ(cpu *CPU, raw Word) {
	target := jumpTarget(cpu.regs.pc+InstructionBytes, raw)
	cpu.installBranch(raw, secondStageJump, target)
}

func opJal(cpu *CPU, raw Word) {
	target := jumpTarget(cpu.regs.pc+InstructionBytes, raw)
	cpu.regs.WriteGPR(31, linkValue(cpu))
	cpu.installBranch(raw, secondStageJump, target)
}

func opJr(cpu *CPU, raw Word) {
	target := gpr32(cpu, raw.RS())
	if unaligned(target) {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: target})
		return
	}
	cpu.installBranch(raw, secondStageJumpReg, target)
}

func opJalr(cpu *CPU, raw Word) {
	target := gpr32(cpu, raw.RS())
	link := raw.RD()
	if link == 0 {
		link = 31
	}
	cpu.regs.WriteGPR(link, linkValue(cpu))
	if unaligned(target) {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: target})
		return
	}
	cpu.installBranch(raw, secondStageJumpReg, target)
}

func installOrdinaryBranch(cpu *CPU, raw Word, taken bool) {
	if taken {
		cpu.installBranch(raw, secondStageBranch, branchTarget(cpu.regs.pc, raw))
		return
	}
	cpu.installBranch(raw, secondStageBranchNotTaken, 0)
}

func installLikelyBranch(cpu *CPU, raw Word, taken bool) {
	if taken {
		cpu.installBranch(raw, secondStageBranch, branchTarget(cpu.regs.pc, raw))
		return
	}
	cpu.installBranch(raw, secondStageBranchLikelyNotTaken, 0)
}

func opBeq(cpu *CPU, raw Word) {
	taken := cpu.regs.ReadGPR(raw.RS()) == cpu.regs.ReadGPR(raw.RT())
	installOrdinaryBranch(cpu, raw, taken)
}

func opBne(cpu *CPU, raw Word) {
	taken := cpu.regs.ReadGPR(raw.RS()) != cpu.regs.ReadGPR(raw.RT())
	installOrdinaryBranch(cpu, raw, taken)
}

func opBeql(cpu *CPU, raw Word) {
	taken := cpu.regs.ReadGPR(raw.RS()) == cpu.regs.ReadGPR(raw.RT())
	installLikelyBranch(cpu, raw, taken)
}

func opBnel(cpu *CPU, raw Word) {
	taken := cpu.regs.ReadGPR(raw.RS()) != cpu.regs.ReadGPR(raw.RT())
	installLikelyBranch(cpu, raw, taken)
}

func opBlez(cpu *CPU, raw Word) {
	taken := int64(cpu.regs.ReadGPR(raw.RS())) <= 0
	installOrdinaryBranch(cpu, raw, taken)
}

func opBgtz(cpu *CPU, raw Word) {
	taken := int64(cpu.regs.ReadGPR(raw.RS())) > 0
	installOrdinaryBranch(cpu, raw, taken)
}

func opBltz(cpu *CPU, raw Word) {
	taken := int64(cpu.regs.ReadGPR(raw.RS())) < 0
	installOrdinaryBranch(cpu, raw, taken)
}

func opBgez(cpu *CPU, raw Word) {
	taken := int64(cpu.regs.ReadGPR(raw.RS())) >= 0
	installOrdinaryBranch(cpu, raw, taken)
}

// opBltzal and opBgezal link r31 unconditionally, even when the branch
// itself is not taken, matching the real instruction's behavior.
func opBltzal(cpu *CPU, raw Word) {
	taken := int64(cpu.regs.ReadGPR(raw.RS())) < 0
	cpu.regs.WriteGPR(31, linkValue(cpu))
	installOrdinaryBranch(cpu, raw, taken)
}

func opBgezal(cpu *CPU, raw Word) {
	taken := int64(cpu.regs.ReadGPR(raw.RS())) >= 0
	cpu.regs.WriteGPR(31, linkValue(cpu))
	installOrdinaryBranch(cpu, raw, taken)
}
