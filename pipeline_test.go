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

const allPipesFree = PipeALU0 | PipeALU1 | PipeLSU | PipeCOP0

func TestSlotForNoPipeBitsIsEither(t *testing.T) {
	op := &DecodedOp{Write: bit(8)}
	if got := slotFor(op, allPipesFree); got != SlotEither {
		t.Errorf("slotFor = %v, want SlotEither", got)
	}
}

func TestSlotForLSUOnlyIsEither(t *testing.T) {
	op := &DecodedOp{Write: bit(8) | PipeLSU}
	if got := slotFor(op, allPipesFree); got != SlotEither {
		t.Errorf("slotFor(LSU) = %v, want SlotEither", got)
	}
}

func TestSlotForBothALUsIsBoth(t *testing.T) {
	op := &DecodedOp{Write: PipeALU0 | PipeALU1}
	if got := slotFor(op, allPipesFree); got != SlotBoth {
		t.Errorf("slotFor(ALU0|ALU1) = %v, want SlotBoth", got)
	}
}

func TestSlotForALU1BusyFallsBack(t *testing.T) {
	op := &DecodedOp{Write: PipeALU1}
	free := allPipesFree &^ PipeALU1
	if got := slotFor(op, free); got != SlotNeither {
		t.Errorf("slotFor(ALU1, ALU1 busy) = %v, want SlotNeither", got)
	}
}

func TestAdmitsComplementaryPipes(t *testing.T) {
	if !admits(SlotPipe0, SlotPipe1) {
		t.Errorf("admits(Pipe0, Pipe1) = false, want true")
	}
	if !admits(SlotPipe1, SlotPipe0) {
		t.Errorf("admits(Pipe1, Pipe0) = false, want true")
	}
}

func TestAdmitsRejectsSamePipeTwice(t *testing.T) {
	if admits(SlotPipe0, SlotPipe0) {
		t.Errorf("admits(Pipe0, Pipe0) = true, want false")
	}
}

func TestAdmitsRejectsNeither(t *testing.T) {
	if admits(SlotNeither, SlotEither) {
		t.Errorf("admits(Neither, Either) = true, want false")
	}
}

func TestHazardDetectsWriteReadOverlap(t *testing.T) {
	p1 := &DecodedOp{Write: bit(8)}
	p2 := &DecodedOp{Read: bit(8)}
	if !hazard(p1, p2) {
		t.Errorf("hazard(write r8, read r8) = false, want true")
	}
}

func TestHazardDetectsWriteWriteOverlap(t *testing.T) {
	p1 := &DecodedOp{Write: bit(8)}
	p2 := &DecodedOp{Write: bit(8)}
	if !hazard(p1, p2) {
		t.Errorf("hazard(write r8, write r8) = false, want true")
	}
}

func TestHazardClearOnDisjointRegisters(t *testing.T) {
	p1 := &DecodedOp{Write: bit(8), Read: bit(9)}
	p2 := &DecodedOp{Write: bit(10), Read: bit(11)}
	if hazard(p1, p2) {
		t.Errorf("hazard(disjoint) = true, want false")
	}
}

func TestCanIssueBothRequiresDualIssueEnabled(t *testing.T) {
	p1 := &DecodedOp{Write: PipeALU0, Read: bit(9)}
	p2 := &DecodedOp{Write: PipeALU1, Read: bit(10)}
	if canIssueBoth(false, p1, p2, allPipesFree) {
		t.Errorf("canIssueBoth with dual-issue disabled = true, want false")
	}
	if !canIssueBoth(true, p1, p2, allPipesFree) {
		t.Errorf("canIssueBoth with dual-issue enabled = false, want true")
	}
}

func TestCanIssueBothRejectsRegisterHazard(t *testing.T) {
	p1 := &DecodedOp{Write: PipeALU0 | bit(8)}
	p2 := &DecodedOp{Write: PipeALU1, Read: bit(8)}
	if canIssueBoth(true, p1, p2, allPipesFree) {
		t.Errorf("canIssueBoth across a write/read hazard = true, want false")
	}
}
