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

// EntryHi bit layout: VPN2 in bits 31:13, ASID in bits 7:0.
func entryHiVPN2(entryHi uint32) uint32 { return entryHi &^ 0x1FFF }
func entryHiASID(entryHi uint32) uint8  { return uint8(entryHi & 0xFF) }

// EntryLo bit layout: Scratchpad in bit 31, PFN in bits 25:6, cache mode
// in bits 4:3, dirty in bit 2, valid in bit 1, global in bit 0.
func entryLoScratchpad(entryLo uint32) bool { return entryLo&(1<<31) != 0 }
func entryLoPFN(entryLo uint32) uint32      { return (entryLo >> 6) & 0xFFFFF }
func entryLoCacheMode(entryLo uint32) uint8 { return uint8((entryLo >> 3) & 0x3) }
func entryLoDirty(entryLo uint32) bool      { return entryLo&(1<<2) != 0 }
func entryLoValid(entryLo uint32) bool      { return entryLo&(1<<1) != 0 }
func entryLoGlobal(entryLo uint32) bool     { return entryLo&1 != 0 }

// TLBPage is one half (even or odd) of a TLB line.
type TLBPage struct {
	PFN       uint32
	CacheMode uint8
	Dirty     bool
	Valid     bool
}

func (p *TLBPage) update(entryLo uint32) {
	p.PFN = entryLoPFN(entryLo)
	p.CacheMode = entryLoCacheMode(entryLo)
	p.Dirty = entryLoDirty(entryLo)
	p.Valid = entryLoValid(entryLo)
}

// TLBLine is one dual-page TLB entry.
type TLBLine struct {
	Mask       uint32
	VPN2       uint32
	Global     bool
	ASID       uint8
	Scratchpad bool
	Even       TLBPage
	Odd        TLBPage
}

// update installs a new TLB line from the staging COP0 registers, exactly
// as TLBWI/TLBWR would commit them. It panics if the scratchpad invariant
// is violated, matching the hard error at install time.
func (l *TLBLine) update(pageMask, entryHi, entryLo0, entryLo1 uint32) {
	l.Mask = pageMask
	l.VPN2 = entryHiVPN2(entryHi)
	l.ASID = entryHiASID(entryHi)
	l.Scratchpad = entryLoScratchpad(entryLo0)
	l.Even.update(entryLo0)
	l.Odd.update(entryLo1)

	if l.Scratchpad {
		validSPRAM := l.Mask == 0 &&
			l.Even.Dirty == l.Odd.Dirty &&
			l.Even.Valid == l.Odd.Valid &&
			(l.VPN2&PageMask16KB) == 0
		if !validSPRAM {
			panic(fmt.Sprintf("invalid scratchpad TLB line: mask=%#x vpn2=%#x even={%v,%v} odd={%v,%v}",
				l.Mask, l.VPN2, l.Even.Dirty, l.Even.Valid, l.Odd.Dirty, l.Odd.Valid))
		}
		l.Even.CacheMode = 2
		l.Odd.CacheMode = 2
	}

	l.Global = entryLoGlobal(entryLo0) && entryLoGlobal(entryLo1)
}

// TLB is the 48-entry dual-page translation lookaside buffer.
type TLB struct {
	Lines [TLBEntries]TLBLine
}

func (t *TLB) findMatch(vpn2, sprVPN2 uint32) *TLBLine {
	for i := range t.Lines {
		line := &t.Lines[i]
		if (line.Scratchpad && sprVPN2 == line.VPN2) || vpn2 == line.VPN2 {
			return line
		}
	}
	return nil
}

// pageMaskShiftAmount returns the bit shift needed to extract the virtual
// page number for a given legal page mask.
func pageMaskShiftAmount(mask uint32) uint32 {
	switch mask {
	case PageMask4KB:
		return 12
	case PageMask16KB:
		return 14
	case PageMask64KB:
		return 16
	case PageMask256KB:
		return 18
	case PageMask1MB:
		return 20
	case PageMask4MB:
		return 22
	case PageMask16MB:
		return 24
	default:
		panic(fmt.Sprintf("illegal page mask %#x", mask))
	}
}

const offsetAlwaysActiveBits = 0x00000FFF
const sprShiftAmount = 12 + 2 + 1

// MMU wraps the TLB with the staging registers used by TLBWI/TLBWR and
// by address translation.
type MMU struct {
	tlb      TLB
	pageMask uint32
	wired    uint8
	index    uint8
	asid     uint8
}

// MMUResultKind distinguishes the three outcomes of translate.
type MMUResultKind uint8

const (
	MMUAddress MMUResultKind = iota
	MMUScratchpad
	MMUException
)

// MMUResult is the outcome of a V->P translation attempt.
type MMUResult struct {
	Kind    MMUResultKind
	Address uint32
	Exc     L1Exception
}

// translate implements the full TLB match/permission/compose algorithm
// described for the MMU: VPN2 lookup, ASID/global check, validity/dirty
// checks, and scratchpad-vs-normal address composition.
//
// vpn2 and sprVPN2 are computed in the same address-position form that
// entryHiVPN2 stores in a TLBLine (high bits left in place, low bits
// masked to zero) rather than shifted down to a compact index, so they
// compare equal to TLBLine.VPN2 in findMatch.
func (m *MMU) translate(vAddr uint32, load bool) MMUResult {
	shift := pageMaskShiftAmount(m.pageMask)
	vpn2 := vAddr &^ ((uint32(1) << (shift + 1)) - 1)
	sprVPN2 := vAddr &^ ((uint32(1) << sprShiftAmount) - 1)
	evenPage := (vAddr>>shift)&1 == 0

	line := m.tlb.findMatch(vpn2, sprVPN2)
	if line == nil {
		if load {
			return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbFetchLoadRefill, Addr: vAddr}}
		}
		return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbStoreRefill, Addr: vAddr}}
	}

	if !line.Global && line.ASID != m.asid {
		if load {
			return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbFetchLoadRefill, Addr: vAddr}}
		}
		return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbStoreRefill, Addr: vAddr}}
	}

	page := &line.Even
	if !evenPage {
		page = &line.Odd
	}

	if !page.Valid {
		if load {
			return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbFetchLoadInvalid, Addr: vAddr}}
		}
		return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbStoreInvalid, Addr: vAddr}}
	}
	if !page.Dirty && !load {
		return MMUResult{Kind: MMUException, Exc: L1Exception{Kind: L1TlbModified, Addr: vAddr}}
	}

	if line.Scratchpad {
		offset := vAddr & (offsetAlwaysActiveBits | (PageMask16KB >> 1))
		return MMUResult{Kind: MMUScratchpad, Address: offset}
	}

	offset := vAddr & (offsetAlwaysActiveBits | (m.pageMask >> 1))
	return MMUResult{Kind: MMUAddress, Address: (page.PFN << shift) | offset}
}

// writeIndex commits the staging registers into the TLB line addressed by
// Index (TLBWI).
func (m *MMU) writeIndex(entryHi, entryLo0, entryLo1 uint32) {
	m.tlb.Lines[m.index].update(m.pageMask, entryHi, entryLo0, entryLo1)
}

// writeRandom commits the staging registers into the TLB line addressed
// by Random (TLBWR).
func (m *MMU) writeRandom(randomIndex, entryHi, entryLo0, entryLo1 uint32) {
	m.tlb.Lines[(randomIndex&0x3F)%TLBEntries].update(m.pageMask, entryHi, entryLo0, entryLo1)
}
