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

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TLBPageConfig describes one half (even or odd) of a preloaded TLB
// line.
type TLBPageConfig struct {
	PFN       uint32 `yaml:"pfn"`
	CacheMode uint8  `yaml:"cache_mode"`
	Dirty     bool   `yaml:"dirty"`
	Valid     bool   `yaml:"valid"`
}

// TLBLineConfig describes one complete TLB entry to install before the
// BIOS runs, addressed by Index the same way TLBWI would.
type TLBLineConfig struct {
	Index    uint8         `yaml:"index"`
	PageMask uint32        `yaml:"page_mask"`
	VPN2     uint32        `yaml:"vpn2"`
	ASID     uint8         `yaml:"asid"`
	Global   bool          `yaml:"global"`
	Even     TLBPageConfig `yaml:"even"`
	Odd      TLBPageConfig `yaml:"odd"`
}

// TLBConfig is the top-level document read from the -tlb flag.
type TLBConfig struct {
	Entries []TLBLineConfig `yaml:"entries"`
}

// LoadTLBConfig reads and parses a YAML TLB preload file.
func LoadTLBConfig(path string) (*TLBConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TLB config: %w", err)
	}
	var cfg TLBConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing TLB config: %w", err)
	}
	return &cfg, nil
}

// Apply installs every configured line into the CPU's TLB, the same
// way a sequence of TLBWI instructions would, bypassing the COP0
// staging registers since the whole line is specified at once.
func (c *TLBConfig) Apply(cpu *CPU) error {
	for _, e := range c.Entries {
		if int(e.Index) >= TLBEntries {
			return fmt.Errorf("TLB config: index %d out of range (max %d)", e.Index, TLBEntries-1)
		}
		entryHi := buildEntryHi(e.VPN2, e.ASID)
		entryLo0 := buildEntryLo(TLBPage{PFN: e.Even.PFN, CacheMode: e.Even.CacheMode, Dirty: e.Even.Dirty, Valid: e.Even.Valid}, e.Global)
		entryLo1 := buildEntryLo(TLBPage{PFN: e.Odd.PFN, CacheMode: e.Odd.CacheMode, Dirty: e.Odd.Dirty, Valid: e.Odd.Valid}, e.Global)
		cpu.mmu.tlb.Lines[e.Index].update(e.PageMask, entryHi, entryLo0, entryLo1)
	}
	return nil
}
