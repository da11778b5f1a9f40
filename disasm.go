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

// disassemble renders a decoded instruction as a short assembler-style
// line: mnemonic plus operands in the conventional MIPS order for its
// instruction shape.
func disassemble(op *DecodedOp) string {
	raw := op.Raw
	switch Opcode(raw.Opcode()) {
	case OpSpecial:
		return disassembleSpecial(op.Mnemonic, raw)
	case OpRegImm:
		return fmt.Sprintf("%-7s $%d, %+d", op.Mnemonic, raw.RS(), int32(raw.Imm16Signed())<<2)
	case OpCop0:
		return disassembleCop0(op.Mnemonic, raw)
	case OpJ, OpJal:
		return fmt.Sprintf("%-7s %#x", op.Mnemonic, raw.Jump26()<<2)
	case OpBeq, OpBne, OpBeql, OpBnel:
		return fmt.Sprintf("%-7s $%d, $%d, %+d", op.Mnemonic, raw.RS(), raw.RT(), int32(raw.Imm16Signed())<<2)
	case OpBlez, OpBgtz:
		return fmt.Sprintf("%-7s $%d, %+d", op.Mnemonic, raw.RS(), int32(raw.Imm16Signed())<<2)
	case OpLb, OpLbu, OpLh, OpLhu, OpLw, OpSb, OpSh, OpSw, OpLwc1, OpSwc1, OpLwl, OpLwr, OpSwl, OpSwr:
		return fmt.Sprintf("%-7s $%d, %d($%d)", op.Mnemonic, raw.RT(), raw.Imm16Signed(), raw.RS())
	case OpCache:
		return fmt.Sprintf("%-7s %#x, %d($%d)", op.Mnemonic, raw.RT(), raw.Imm16Signed(), raw.RS())
	case OpLui:
		return fmt.Sprintf("%-7s $%d, %#x", op.Mnemonic, raw.RT(), raw.Imm16())
	case OpAddi, OpAddiu, OpSlti, OpSltiu, OpAndi, OpOri, OpXori:
		return fmt.Sprintf("%-7s $%d, $%d, %#x", op.Mnemonic, raw.RT(), raw.RS(), raw.Imm16())
	default:
		return fmt.Sprintf("%-7s (raw %#08x)", op.Mnemonic, uint32(raw))
	}
}

func disassembleSpecial(mnemonic string, raw Word) string {
	switch Function(raw.Funct()) {
	case FnSll, FnSrl, FnSra:
		return fmt.Sprintf("%-7s $%d, $%d, %d", mnemonic, raw.RD(), raw.RT(), raw.SA())
	case FnSllv, FnSrlv, FnSrav:
		return fmt.Sprintf("%-7s $%d, $%d, $%d", mnemonic, raw.RD(), raw.RT(), raw.RS())
	case FnJr:
		return fmt.Sprintf("%-7s $%d", mnemonic, raw.RS())
	case FnJalr:
		return fmt.Sprintf("%-7s $%d, $%d", mnemonic, raw.RD(), raw.RS())
	case FnMfhi, FnMflo:
		return fmt.Sprintf("%-7s $%d", mnemonic, raw.RD())
	case FnMthi, FnMtlo:
		return fmt.Sprintf("%-7s $%d", mnemonic, raw.RS())
	case FnMult, FnMultu, FnDiv, FnDivu:
		return fmt.Sprintf("%-7s $%d, $%d", mnemonic, raw.RS(), raw.RT())
	case FnSyscall, FnBreak, FnSync:
		return mnemonic
	default:
		return fmt.Sprintf("%-7s $%d, $%d, $%d", mnemonic, raw.RD(), raw.RS(), raw.RT())
	}
}

func disassembleCop0(mnemonic string, raw Word) string {
	if raw.RS() == uint8(C0Co) {
		if Cop0Op(raw.Funct()) == C0Eret {
			return mnemonic
		}
		return mnemonic
	}
	return fmt.Sprintf("%-7s $%d, $%d", mnemonic, raw.RT(), raw.RD())
}
