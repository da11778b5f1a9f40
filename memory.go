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

import "fmt"

// PhysAddr is a translated physical reference: either an ordinary
// physical byte address, or an offset into the separately-addressed
// scratchpad RAM.
type PhysAddr struct {
	Addr    uint32
	Scratch bool
}

// Memory is the EE Core's physical address space: main DRAM, the BIOS
// ROM image, and scratchpad RAM. Addresses outside any mapped region
// read as zero and discard writes, the same as an unimplemented
// peripheral register would.
type Memory struct {
	dram       []byte
	bios       []byte
	scratchpad []byte
	uart       *UART
}

func newMemory() Memory {
	return Memory{
		dram:       make([]byte, PhysicalMemorySize),
		bios:       make([]byte, BIOSLen),
		scratchpad: make([]byte, ScratchpadSize),
	}
}

// LoadBIOS installs a BIOS image, truncating or zero-padding it to
// BIOSLen.
func (m *Memory) LoadBIOS(data []byte) {
	n := copy(m.bios, data)
	for i := n; i < len(m.bios); i++ {
		m.bios[i] = 0
	}
}

// attachUART wires the console MMIO registers to a running UART pump.
func (m *Memory) attachUART(u *UART) { m.uart = u }

func (m *Memory) backing(addr uint32) ([]byte, uint32, bool) {
	switch {
	case addr < PhysicalMemorySize:
		return m.dram, addr, true
	case addr >= BIOSPhysical && addr < BIOSPhysical+BIOSLen:
		return m.bios, addr - BIOSPhysical, true
	default:
		// IO/VU/GS/IOP regions are unimplemented peripherals here;
		// reads return zero, writes are discarded.
		return nil, 0, false
	}
}

func (m *Memory) ReadByte(p PhysAddr) (uint8, error) {
	if !p.Scratch && m.uart != nil {
		if v, handled := m.uart.mmioRead(p.Addr); handled {
			return v, nil
		}
	}
	if p.Scratch {
		return m.scratchpad[p.Addr%ScratchpadSize], nil
	}
	buf, off, ok := m.backing(p.Addr)
	if !ok {
		return 0, nil
	}
	return buf[off], nil
}

func (m *Memory) WriteByte(p PhysAddr, v uint8) error {
	if !p.Scratch && m.uart != nil {
		if m.uart.mmioWrite(p.Addr, v) {
			return nil
		}
	}
	if p.Scratch {
		m.scratchpad[p.Addr%ScratchpadSize] = v
		return nil
	}
	buf, off, ok := m.backing(p.Addr)
	if !ok {
		return nil
	}
	buf[off] = v
	return nil
}

func (m *Memory) ReadHalf(p PhysAddr) (uint16, error) {
	lo, err := m.ReadByte(p)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadByte(PhysAddr{Addr: p.Addr + 1, Scratch: p.Scratch})
	if err != nil {
		return 0, err
	}
	return uint16(lo) | uint16(hi)<<8, nil
}

func (m *Memory) WriteHalf(p PhysAddr, v uint16) error {
	if err := m.WriteByte(p, uint8(v)); err != nil {
		return err
	}
	return m.WriteByte(PhysAddr{Addr: p.Addr + 1, Scratch: p.Scratch}, uint8(v>>8))
}

func (m *Memory) ReadWord(p PhysAddr) (uint32, error) {
	if p.Scratch {
		base := p.Addr % ScratchpadSize
		if base+4 > ScratchpadSize {
			return 0, fmt.Errorf("scratchpad read at %#x crosses end", p.Addr)
		}
		return uint32(m.scratchpad[base]) | uint32(m.scratchpad[base+1])<<8 |
			uint32(m.scratchpad[base+2])<<16 | uint32(m.scratchpad[base+3])<<24, nil
	}
	buf, off, ok := m.backing(p.Addr)
	if !ok {
		return 0, nil
	}
	if int(off)+4 > len(buf) {
		return 0, fmt.Errorf("word read at %#x crosses backing store end", p.Addr)
	}
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24, nil
}

func (m *Memory) WriteWord(p PhysAddr, v uint32) error {
	if p.Scratch {
		base := p.Addr % ScratchpadSize
		if base+4 > ScratchpadSize {
			return fmt.Errorf("scratchpad write at %#x crosses end", p.Addr)
		}
		m.scratchpad[base] = uint8(v)
		m.scratchpad[base+1] = uint8(v >> 8)
		m.scratchpad[base+2] = uint8(v >> 16)
		m.scratchpad[base+3] = uint8(v >> 24)
		return nil
	}
	buf, off, ok := m.backing(p.Addr)
	if !ok {
		return nil
	}
	if int(off)+4 > len(buf) {
		return fmt.Errorf("word write at %#x crosses backing store end", p.Addr)
	}
	buf[off] = uint8(v)
	buf[off+1] = uint8(v >> 8)
	buf[off+2] = uint8(v >> 16)
	buf[off+3] = uint8(v >> 24)
	return nil
}

// translateFetch resolves an instruction-fetch virtual address to a
// physical reference. KSEG0/KSEG1 are direct-mapped; everything else
// goes through the TLB. A false return means an exception was raised
// this cycle and the caller must not proceed.
func (cpu *CPU) translateFetch(vAddr uint32) (PhysAddr, bool) {
	if unaligned(vAddr) {
		cpu.raiseL1(L1Exception{Kind: L1AddressErrorFetchLoad, Addr: vAddr})
		return PhysAddr{}, false
	}
	return cpu.translateAddr(vAddr, true)
}

// translateData resolves a load/store virtual address the same way,
// distinguished only by which exception kind a TLB miss or a store to
// a clean page raises. Alignment is the caller's responsibility since
// byte and halfword accesses have weaker alignment requirements than
// a fetch.
func (cpu *CPU) translateData(vAddr uint32, load bool) (PhysAddr, bool) {
	return cpu.translateAddr(vAddr, load)
}

func (cpu *CPU) translateAddr(vAddr uint32, load bool) (PhysAddr, bool) {
	switch {
	case vAddr >= KSEG0Start && vAddr < KSEG1Start:
		return PhysAddr{Addr: vAddr - KSEG0Start}, true
	case vAddr >= KSEG1Start && vAddr < SSEGStart:
		return PhysAddr{Addr: vAddr - KSEG1Start}, true
	default:
		// USEG, SSEG, and KSEG3 are all TLB-mapped.
		result := cpu.mmu.translate(vAddr, load)
		switch result.Kind {
		case MMUException:
			cpu.raiseL1(result.Exc)
			return PhysAddr{}, false
		case MMUScratchpad:
			return PhysAddr{Addr: result.Address, Scratch: true}, true
		default:
			return PhysAddr{Addr: result.Address}, true
		}
	}
}
