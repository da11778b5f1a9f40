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

// L1Kind enumerates the level-1 exception variants. Several share the
// same exception code and are distinguished only by the context that
// raised them (e.g. the refill and invalid TLB kinds for loads/stores).
type L1Kind uint8

const (
	L1Interrupt L1Kind = iota
	L1TlbModified
	L1TlbFetchLoadRefill
	L1TlbStoreRefill
	L1TlbFetchLoadInvalid
	L1TlbStoreInvalid
	L1AddressErrorFetchLoad
	L1AddressErrorStore
	L1BusErrorFetch
	L1BusErrorLoadStore
	L1Systemcall
	L1Break
	L1ReservedInstruction
	L1CoprocessorUnusable
	L1Overflow
	L1Trap
)

// L1Exception carries the per-kind payload (fault address, interrupt
// number, or coprocessor number) alongside its kind tag.
type L1Exception struct {
	Kind     L1Kind
	Addr     uint32
	IntNum   uint8
	CopNum   uint8
}

func (e L1Exception) excCode() uint32 {
	switch e.Kind {
	case L1Interrupt:
		return ExcInterrupt
	case L1TlbModified:
		return ExcTlbModified
	case L1TlbFetchLoadRefill, L1TlbFetchLoadInvalid:
		return ExcTlbFetchLoadRefill
	case L1TlbStoreRefill, L1TlbStoreInvalid:
		return ExcTlbStoreRefill
	case L1AddressErrorFetchLoad:
		return ExcAddressErrorFetchLoad
	case L1AddressErrorStore:
		return ExcAddressErrorStore
	case L1BusErrorFetch:
		return ExcBusErrorFetch
	case L1BusErrorLoadStore:
		return ExcBusErrorLoadStore
	case L1Systemcall:
		return ExcSyscall
	case L1Break:
		return ExcBreak
	case L1ReservedInstruction:
		return ExcReservedInstruction
	case L1CoprocessorUnusable:
		return ExcCoprocessorUnusable
	case L1Overflow:
		return ExcOverflow
	case L1Trap:
		return ExcTrap
	}
	return 0
}

// vector selects the L1 exception's entry point, gated by Status.BEV and
// (for TLB-refill kinds) by whether the fault is itself nested inside a
// level-1 exception handler.
func (e L1Exception) vector(status Status, priv Privilege) uint32 {
	bSet := status&StatusBEV != 0
	switch e.Kind {
	case L1Interrupt:
		if bSet {
			return VectorInterruptBoot
		}
		return VectorInterrupt
	case L1TlbFetchLoadRefill, L1TlbStoreRefill:
		if priv.Kind == PrivKernel && priv.Level == ExLevelOne {
			if bSet {
				return VectorCommonBoot
			}
			return VectorCommon
		}
		if bSet {
			return VectorTLBRefillBoot
		}
		return VectorTLBRefill
	default:
		if bSet {
			return VectorCommonBoot
		}
		return VectorCommon
	}
}

// specificHandling applies the kind-specific COP0 side effects described
// in §4.5 beyond the common EPC/Cause bookkeeping performed by raiseL1.
func (e L1Exception) specificHandling(cpu *CPU) {
	switch e.Kind {
	case L1Interrupt:
		cause := cpu.causeReg()
		cause.SetPendingInterrupt(e.IntNum)
		cpu.setCauseReg(cause)
	case L1TlbModified:
		cpu.cop0.WriteCop0Direct(Cop0BadVAddr, e.Addr)
		cpu.fillContextEntryHi(e.Addr)
	case L1TlbFetchLoadRefill, L1TlbStoreRefill, L1TlbFetchLoadInvalid, L1TlbStoreInvalid:
		cpu.cop0.WriteCop0Direct(Cop0BadVAddr, e.Addr)
		cpu.fillContextEntryHi(e.Addr)
	case L1AddressErrorFetchLoad, L1AddressErrorStore:
		cpu.cop0.WriteCop0Direct(Cop0BadVAddr, e.Addr)
	case L1CoprocessorUnusable:
		cause := cpu.causeReg()
		cause.SetCoprocessorNumber(uint32(e.CopNum))
		cpu.setCauseReg(cause)
	}
}

// fillContextEntryHi fills Context's 19-bit BadVPN2 field (bits 22:4) and
// EntryHi's VPN2 from the faulting address's 19 high-order bits, as real
// hardware does before the refill handler walks the page table. Context's
// PTEBase bits (31:23) are left unchanged.
func (cpu *CPU) fillContextEntryHi(addr uint32) {
	context := cpu.cop0.ReadCop0Direct(Cop0Context)
	context = (context &^ 0x007FFFF0) | ((addr >> 9) &^ 0xF)
	cpu.cop0.WriteCop0Direct(Cop0Context, context)

	entryHi := cpu.cop0.ReadCop0Direct(Cop0EntryHi)
	entryHi = (entryHi &^ 0xFFFFE000) | entryHiVPN2(addr)
	cpu.cop0.WriteCop0Direct(Cop0EntryHi, entryHi)
}

// raiseL1 runs the common L1 handling protocol from §4.5: Cause.ExcCode,
// EXL/EPC bookkeeping with the branch-delay bit, kind-specific side
// effects, vector selection, and the PC jump.
func (cpu *CPU) raiseL1(e L1Exception) {
	cause := cpu.causeReg()
	cause.SetExcCode(e.excCode())
	cpu.setCauseReg(cause)

	status := cpu.status()
	if status&StatusEXL == 0 {
		cause = cpu.causeReg()
		if cpu.branchDelay == nil {
			cause.SetBD1(false)
			cpu.cop0.WriteCop0Direct(Cop0EPC, cpu.regs.pc)
		} else {
			cause.SetBD1(true)
			cpu.cop0.WriteCop0Direct(Cop0EPC, cpu.regs.pc-InstructionBytes)
		}
		cpu.setCauseReg(cause)
		cpu.setStatus(status | StatusEXL)
	}

	e.specificHandling(cpu)

	// Privilege as it was before this exception set EXL.
	priv := status.Privilege()
	cpu.regs.pc = e.vector(cpu.status(), priv)
	cpu.exceptedThisCycle = true

	if cpu.tracer != nil {
		cpu.tracer.TraceException(cpu, "L1", e.excCode(), cpu.regs.pc)
	}
}

// L2Kind enumerates the level-2 exception variants.
type L2Kind uint8

const (
	L2Reset L2Kind = iota
	L2Nmi
	L2PerformanceCounter
	L2Debug
)

// L2Exception is the level-2 exception payload; none of the current
// kinds carry extra data.
type L2Exception struct {
	Kind L2Kind
}

func (e L2Exception) excCode() uint32 {
	switch e.Kind {
	case L2Reset:
		return ExcL2Reset
	case L2Nmi:
		return ExcL2Nmi
	case L2PerformanceCounter:
		return ExcL2PerformanceCounter
	case L2Debug:
		return ExcL2Debug
	}
	return 0
}

func (e L2Exception) vector(status Status) uint32 {
	dSet := status&StatusDEV != 0
	switch e.Kind {
	case L2Reset, L2Nmi:
		return VectorResetNMI
	case L2PerformanceCounter:
		if dSet {
			return VectorCounterDebug
		}
		return VectorCounter
	case L2Debug:
		if dSet {
			return VectorDebugBoot
		}
		return VectorDebug
	}
	return VectorResetNMI
}

// raiseL2 runs the L2 handling protocol: Cause.ExcCode2, ERL/ErrorEPC with
// BD2, kind-specific side effects (Reset reinitializes Random/Wired and
// clears Config enable bits; Nmi just forces the boot vector bit), vector
// selection, and the PC jump.
func (cpu *CPU) raiseL2(e L2Exception) {
	cause := cpu.causeReg()
	cause.SetExcCode2(e.excCode())

	status := cpu.status()
	if cpu.branchDelay == nil {
		cause.SetBD2(false)
		cpu.cop0.WriteCop0Direct(Cop0ErrorEPC, cpu.regs.pc)
	} else {
		cause.SetBD2(true)
		cpu.cop0.WriteCop0Direct(Cop0ErrorEPC, cpu.regs.pc-InstructionBytes)
	}
	cpu.setCauseReg(cause)
	cpu.setStatus(status | StatusERL)

	switch e.Kind {
	case L2Reset:
		cpu.setStatus(cpu.status() | StatusBEV)
		cpu.setStatus(cpu.status() &^ StatusBEM)
		cpu.mmu.tlb = TLB{}
		cpu.cop0.WriteCop0Direct(Cop0Random, RandomMax)
		cpu.cop0.WriteCop0Direct(Cop0Wired, 0)
		cpu.mmu.wired = 0
		config := cpu.cop0.ReadCop0Direct(Cop0Config)
		cpu.cop0.WriteCop0Direct(Cop0Config, config&^configEnableBits)
	case L2Nmi:
		cpu.setStatus(cpu.status() | StatusBEV)
	}

	cpu.regs.pc = e.vector(cpu.status())
	cpu.exceptedThisCycle = true

	if cpu.tracer != nil {
		cpu.tracer.TraceException(cpu, "L2", e.excCode(), cpu.regs.pc)
	}
}

// configEnableBits are the Config bits a reset clears (cache/bus-error
// enables); the exact field assignment beyond "clear on reset" is not
// load-bearing for any instruction semantics in scope.
const configEnableBits = 0x7

func (cpu *CPU) status() Status { return Status(cpu.cop0.ReadCop0Direct(Cop0Status)) }
func (cpu *CPU) setStatus(s Status) {
	cpu.cop0.WriteCop0Direct(Cop0Status, uint32(s))
}

func (cpu *CPU) causeReg() Cause { return Cause(cpu.cop0.ReadCop0Direct(Cop0Cause)) }
func (cpu *CPU) setCauseReg(c Cause) {
	cpu.cop0.WriteCop0Direct(Cop0Cause, uint32(c))
}
