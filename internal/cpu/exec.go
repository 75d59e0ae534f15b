package cpu

import (
	"gblite-dx/internal/alu"
	"gblite-dx/internal/memory"
	"gblite-dx/internal/register"
)

var regIDs = [8]register.ID{register.B, register.C, register.D, register.E, register.H, register.L, register.A, register.A}

// getReg8/setReg8 implement the shared 3-bit register field decode used by
// LD r,r', the ALU-on-A block, and every CB-prefixed instruction: index 6 is
// memory at (HL), not a register.
func (c *CPU) getReg8(idx uint8) uint8 {
	if idx == 6 {
		return c.Bus.Get(c.Regs.GetPair(register.HL), memory.ClientCPU)
	}
	return c.Regs.Get(regIDs[idx])
}

func (c *CPU) setReg8(idx uint8, v uint8) {
	if idx == 6 {
		c.Bus.Set(v, c.Regs.GetPair(register.HL), memory.ClientCPU)
		return
	}
	c.Regs.Set(regIDs[idx], v)
}

func (c *CPU) getPair16(dd uint8) uint16 {
	switch dd {
	case 0:
		return c.Regs.GetPair(register.BC)
	case 1:
		return c.Regs.GetPair(register.DE)
	case 2:
		return c.Regs.GetPair(register.HL)
	default:
		return c.Regs.SP
	}
}

func (c *CPU) setPair16(dd uint8, v uint16) {
	switch dd {
	case 0:
		c.Regs.SetPair(register.BC, v)
	case 1:
		c.Regs.SetPair(register.DE, v)
	case 2:
		c.Regs.SetPair(register.HL, v)
	default:
		c.Regs.SP = v
	}
}

func (c *CPU) getPairStack(qq uint8) uint16 {
	switch qq {
	case 0:
		return c.Regs.GetPair(register.BC)
	case 1:
		return c.Regs.GetPair(register.DE)
	case 2:
		return c.Regs.GetPair(register.HL)
	default:
		return c.Regs.GetPair(register.AF)
	}
}

func (c *CPU) setPairStack(qq uint8, v uint16) {
	switch qq {
	case 0:
		c.Regs.SetPair(register.BC, v)
	case 1:
		c.Regs.SetPair(register.DE, v)
	case 2:
		c.Regs.SetPair(register.HL, v)
	default:
		c.Regs.SetPair(register.AF, v)
	}
}

func (c *CPU) imm8() uint8 {
	return c.Bus.Get(c.curPC+1, memory.ClientCPU)
}

func (c *CPU) imm16() uint16 {
	low := c.Bus.Get(c.curPC+1, memory.ClientCPU)
	high := c.Bus.Get(c.curPC+2, memory.ClientCPU)
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) push16(v uint16) {
	c.Regs.SP -= 2
	c.Bus.Set(uint8(v>>8), c.Regs.SP+1, memory.ClientCPU)
	c.Bus.Set(uint8(v), c.Regs.SP, memory.ClientCPU)
}

func (c *CPU) pop16() uint16 {
	low := c.Bus.Get(c.Regs.SP, memory.ClientCPU)
	high := c.Bus.Get(c.Regs.SP+1, memory.ClientCPU)
	c.Regs.SP += 2
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) checkCond(cc uint8) bool {
	switch cc {
	case 0:
		return !c.Regs.GetFlag(register.FlagZ)
	case 1:
		return c.Regs.GetFlag(register.FlagZ)
	case 2:
		return !c.Regs.GetFlag(register.FlagCY)
	default:
		return c.Regs.GetFlag(register.FlagCY)
	}
}

// jumpRelative applies a signed 8-bit offset to the already-advanced PC,
// per spec.md §4.E.4; an out-of-range result halts fatally.
func (c *CPU) jumpRelative(offset int8) {
	target := int32(c.Regs.PC) + int32(offset)
	if target < 0 || target > 0xFFFF {
		c.quit = true
		return
	}
	c.Regs.PC = uint16(target)
}

// execute dispatches a decoded opcode to its effect. PC has already been
// advanced to the next instruction's address (spec.md §4.E step 5); control
// flow effects overwrite it directly.
func (c *CPU) execute(full uint16, desc Descriptor) {
	if full>>8 == 0xCB {
		c.executeCB(uint8(full))
		return
	}
	op := uint8(full)
	if desc.Undefined {
		c.quit = true
		return
	}

	switch {
	case op >= 0x40 && op <= 0x7F && op != 0x76:
		dst, src := (op>>3)&7, op&7
		c.setReg8(dst, c.getReg8(src))
		return
	case op == 0x76:
		c.quit = true
		return
	case op >= 0x80 && op <= 0xBF:
		row, col := (op-0x80)>>3, op&7
		c.executeALUOnA(row, c.getReg8(col))
		return
	case op >= 0xC0 && op&7 == 6:
		// 0xC6, 0xCE, ..., 0xFE: ALU A,d8 in the same row order as 0x80-0xBF.
		c.executeALUOnA((op-0xC6)>>3, c.imm8())
		return
	}

	switch op {
	case 0x00: // NOP
	case 0x01:
		c.setPair16(0, c.imm16())
	case 0x02:
		c.Bus.Set(c.Regs.Get(register.A), c.Regs.GetPair(register.BC), memory.ClientCPU)
	case 0x03:
		c.setPair16(0, c.getPair16(0)+1)
	case 0x04:
		c.incReg(0)
	case 0x05:
		c.decReg(0)
	case 0x06:
		c.setReg8(0, c.imm8())
	case 0x07:
		c.rotateA(alu.RotateLeft, false)
	case 0x08:
		addr := c.imm16()
		c.Bus.Set(uint8(c.Regs.SP), addr, memory.ClientCPU)
		c.Bus.Set(uint8(c.Regs.SP>>8), addr+1, memory.ClientCPU)
	case 0x09:
		c.addHL(0)
	case 0x0A:
		c.Regs.Set(register.A, c.Bus.Get(c.Regs.GetPair(register.BC), memory.ClientCPU))
	case 0x0B:
		c.setPair16(0, c.getPair16(0)-1)
	case 0x0C:
		c.incReg(1)
	case 0x0D:
		c.decReg(1)
	case 0x0E:
		c.setReg8(1, c.imm8())
	case 0x0F:
		c.rotateA(alu.RotateRight, false)

	case 0x10: // STOP
		c.quit = true
	case 0x11:
		c.setPair16(1, c.imm16())
	case 0x12:
		c.Bus.Set(c.Regs.Get(register.A), c.Regs.GetPair(register.DE), memory.ClientCPU)
	case 0x13:
		c.setPair16(1, c.getPair16(1)+1)
	case 0x14:
		c.incReg(2)
	case 0x15:
		c.decReg(2)
	case 0x16:
		c.setReg8(2, c.imm8())
	case 0x17:
		c.rotateA(alu.RotateLeft, true)
	case 0x18:
		c.jumpRelative(int8(c.imm8()))
	case 0x19:
		c.addHL(1)
	case 0x1A:
		c.Regs.Set(register.A, c.Bus.Get(c.Regs.GetPair(register.DE), memory.ClientCPU))
	case 0x1B:
		c.setPair16(1, c.getPair16(1)-1)
	case 0x1C:
		c.incReg(3)
	case 0x1D:
		c.decReg(3)
	case 0x1E:
		c.setReg8(3, c.imm8())
	case 0x1F:
		c.rotateA(alu.RotateRight, true)

	case 0x20:
		if c.checkCond(0) {
			c.jumpRelative(int8(c.imm8()))
		}
	case 0x21:
		c.setPair16(2, c.imm16())
	case 0x22:
		addr := c.Regs.GetPair(register.HL)
		c.Bus.Set(c.Regs.Get(register.A), addr, memory.ClientCPU)
		c.Regs.SetPair(register.HL, addr+1)
	case 0x23:
		c.setPair16(2, c.getPair16(2)+1)
	case 0x24:
		c.incReg(4)
	case 0x25:
		c.decReg(4)
	case 0x26:
		c.setReg8(4, c.imm8())
	case 0x27:
		c.daa()
	case 0x28:
		if c.checkCond(1) {
			c.jumpRelative(int8(c.imm8()))
		}
	case 0x29:
		c.addHL(2)
	case 0x2A:
		addr := c.Regs.GetPair(register.HL)
		c.Regs.Set(register.A, c.Bus.Get(addr, memory.ClientCPU))
		c.Regs.SetPair(register.HL, addr+1)
	case 0x2B:
		c.setPair16(2, c.getPair16(2)-1)
	case 0x2C:
		c.incReg(5)
	case 0x2D:
		c.decReg(5)
	case 0x2E:
		c.setReg8(5, c.imm8())
	case 0x2F:
		c.Regs.Set(register.A, c.Regs.Get(register.A)^0xFF)

	case 0x30:
		if c.checkCond(2) {
			c.jumpRelative(int8(c.imm8()))
		}
	case 0x31:
		c.Regs.SP = c.imm16()
	case 0x32:
		addr := c.Regs.GetPair(register.HL)
		c.Bus.Set(c.Regs.Get(register.A), addr, memory.ClientCPU)
		c.Regs.SetPair(register.HL, addr-1)
	case 0x33:
		c.Regs.SP++
	case 0x34:
		c.incMemHL()
	case 0x35:
		c.decMemHL()
	case 0x36:
		c.Bus.Set(c.imm8(), c.Regs.GetPair(register.HL), memory.ClientCPU)
	case 0x37: // SCF
	case 0x38:
		if c.checkCond(3) {
			c.jumpRelative(int8(c.imm8()))
		}
	case 0x39:
		c.addHL(3)
	case 0x3A:
		addr := c.Regs.GetPair(register.HL)
		c.Regs.Set(register.A, c.Bus.Get(addr, memory.ClientCPU))
		c.Regs.SetPair(register.HL, addr-1)
	case 0x3B:
		c.Regs.SP--
	case 0x3C:
		c.incReg(7)
	case 0x3D:
		c.decReg(7)
	case 0x3E:
		c.Regs.Set(register.A, c.imm8())
	case 0x3F: // CCF
		c.pending.CY = !c.pending.CY

	case 0xC0:
		if c.checkCond(0) {
			c.Regs.PC = c.pop16()
		}
	case 0xC1:
		c.setPairStack(0, c.pop16())
	case 0xC2:
		if c.checkCond(0) {
			c.Regs.PC = c.imm16()
		}
	case 0xC3:
		c.Regs.PC = c.imm16()
	case 0xC4:
		if c.checkCond(0) {
			target := c.imm16()
			c.push16(c.Regs.PC)
			c.Regs.PC = target
		}
	case 0xC5:
		c.push16(c.getPairStack(0))
	case 0xC7:
		c.rst(0x00)
	case 0xC8:
		if c.checkCond(1) {
			c.Regs.PC = c.pop16()
		}
	case 0xC9:
		c.Regs.PC = c.pop16()
	case 0xCA:
		if c.checkCond(1) {
			c.Regs.PC = c.imm16()
		}
	case 0xCC:
		if c.checkCond(1) {
			target := c.imm16()
			c.push16(c.Regs.PC)
			c.Regs.PC = target
		}
	case 0xCD:
		target := c.imm16()
		c.push16(c.Regs.PC)
		c.Regs.PC = target
	case 0xCF:
		c.rst(0x08)

	case 0xD0:
		if c.checkCond(2) {
			c.Regs.PC = c.pop16()
		}
	case 0xD1:
		c.setPairStack(1, c.pop16())
	case 0xD2:
		if c.checkCond(2) {
			c.Regs.PC = c.imm16()
		}
	case 0xD4:
		if c.checkCond(2) {
			target := c.imm16()
			c.push16(c.Regs.PC)
			c.Regs.PC = target
		}
	case 0xD5:
		c.push16(c.getPairStack(1))
	case 0xD7:
		c.rst(0x10)
	case 0xD8:
		if c.checkCond(3) {
			c.Regs.PC = c.pop16()
		}
	case 0xD9:
		c.Regs.PC = c.pop16()
		c.ime = true
	case 0xDA:
		if c.checkCond(3) {
			c.Regs.PC = c.imm16()
		}
	case 0xDC:
		if c.checkCond(3) {
			target := c.imm16()
			c.push16(c.Regs.PC)
			c.Regs.PC = target
		}
	case 0xDF:
		c.rst(0x18)

	case 0xE0:
		c.Bus.Set(c.Regs.Get(register.A), 0xFF00+uint16(c.imm8()), memory.ClientCPU)
	case 0xE1:
		c.setPairStack(2, c.pop16())
	case 0xE2:
		c.Bus.Set(c.Regs.Get(register.A), 0xFF00+uint16(c.Regs.Get(register.C)), memory.ClientCPU)
	case 0xE5:
		c.push16(c.getPairStack(2))
	case 0xE7:
		c.rst(0x20)
	case 0xE8:
		c.addSP(false)
	case 0xE9:
		c.Regs.PC = c.Regs.GetPair(register.HL)
	case 0xEA:
		c.Bus.Set(c.Regs.Get(register.A), c.imm16(), memory.ClientCPU)
	case 0xEF:
		c.rst(0x28)

	case 0xF0:
		c.Regs.Set(register.A, c.Bus.Get(0xFF00+uint16(c.imm8()), memory.ClientCPU))
	case 0xF1:
		c.setPairStack(3, c.pop16())
	case 0xF2:
		c.Regs.Set(register.A, c.Bus.Get(0xFF00+uint16(c.Regs.Get(register.C)), memory.ClientCPU))
	case 0xF3:
		c.ime = false
	case 0xF5:
		c.push16(c.getPairStack(3))
	case 0xF7:
		c.rst(0x30)
	case 0xF8:
		c.addSP(true)
	case 0xF9:
		c.Regs.SP = c.Regs.GetPair(register.HL)
	case 0xFA:
		c.Regs.Set(register.A, c.Bus.Get(c.imm16(), memory.ClientCPU))
	case 0xFB:
		c.ime = true
	case 0xFF:
		c.rst(0x38)
	}
}

func (c *CPU) executeALUOnA(row uint8, operand uint8) {
	a := c.Regs.Get(register.A)
	var op alu.Op
	withCarry := false
	switch row {
	case 0:
		op = alu.Add
	case 1:
		op, withCarry = alu.Add, true
	case 2:
		op = alu.Sub
	case 3:
		op, withCarry = alu.Sub, true
	case 4:
		op = alu.And
	case 5:
		op = alu.Xor
	case 6:
		op = alu.Or
	case 7:
		op = alu.Comp
	}
	result, out := alu.Compute(alu.Input{Op: op, A: a, B: operand, Flags: c.pending, WithCarry: withCarry})
	c.pending = out
	if op != alu.Comp {
		c.Regs.Set(register.A, result)
	}
}

func (c *CPU) incReg(idx uint8) {
	v := c.getReg8(idx)
	result, out := alu.Compute(alu.Input{Op: alu.Add, A: v, B: 1})
	c.setReg8(idx, result)
	c.pending = out
}

func (c *CPU) decReg(idx uint8) {
	v := c.getReg8(idx)
	result, out := alu.Compute(alu.Input{Op: alu.Sub, A: v, B: 1})
	c.setReg8(idx, result)
	c.pending = out
}

func (c *CPU) incMemHL() {
	addr := c.Regs.GetPair(register.HL)
	v := c.Bus.Get(addr, memory.ClientCPU)
	result, out := alu.Compute(alu.Input{Op: alu.Add, A: v, B: 1})
	c.Bus.Set(result, addr, memory.ClientCPU)
	c.pending = out
}

func (c *CPU) decMemHL() {
	addr := c.Regs.GetPair(register.HL)
	v := c.Bus.Get(addr, memory.ClientCPU)
	result, out := alu.Compute(alu.Input{Op: alu.Sub, A: v, B: 1})
	c.Bus.Set(result, addr, memory.ClientCPU)
	c.pending = out
}

func (c *CPU) rotateA(op alu.Op, throughCarry bool) {
	a := c.Regs.Get(register.A)
	result, out := alu.Compute(alu.Input{Op: op, A: a, Flags: c.pending, WithCarry: throughCarry})
	c.Regs.Set(register.A, result)
	c.pending = out
}

func (c *CPU) addHL(dd uint8) {
	hl := c.Regs.GetPair(register.HL)
	v := c.getPair16(dd)
	result, h, cy := alu.Compute16(alu.Add16, hl, v)
	c.Regs.SetPair(register.HL, result)
	c.pending.H, c.pending.CY = h, cy
}

func (c *CPU) addSP(toHL bool) {
	offset := int8(c.imm8())
	sp := c.Regs.SP
	_, out := alu.Compute(alu.Input{Op: alu.Add, A: uint8(sp), B: uint8(offset)})
	result := uint16(int32(sp) + int32(offset))
	if toHL {
		c.Regs.SetPair(register.HL, result)
	} else {
		c.Regs.SP = result
	}
	c.pending.H, c.pending.CY = out.H, out.CY
}

func (c *CPU) rst(target uint16) {
	c.push16(c.Regs.PC)
	c.Regs.PC = target
}

// daa implements spec.md §4.E.3's decimal-adjust algorithm verbatim; the
// source's shift-based attempt is explicitly not the reference here.
func (c *CPU) daa() {
	a := c.Regs.Get(register.A)
	n := c.Regs.GetFlag(register.FlagN)
	h := c.Regs.GetFlag(register.FlagH)
	cy := c.Regs.GetFlag(register.FlagCY)
	highNibble := a >> 4
	lowNibble := a & 0xF

	var adjust uint8
	newCY := cy
	if !n {
		if cy || highNibble > 9 || (!h && lowNibble > 9) {
			adjust += 0x60
			newCY = true
		}
		if h || lowNibble > 9 {
			adjust += 0x06
		}
		a = a + adjust
	} else {
		if cy {
			adjust += 0x60
		}
		if h {
			adjust += 0x06
		}
		a = a - adjust
	}
	c.Regs.Set(register.A, a)
	c.pending.Z = a == 0
	c.pending.H = false
	c.pending.CY = newCY
}

// executeCB decodes and runs a bit-manipulation opcode: rows 0x00-0x3F are
// rotate/shift/swap, 0x40-0x7F BIT, 0x80-0xBF RES, 0xC0-0xFF SET.
func (c *CPU) executeCB(sub uint8) {
	col := sub & 7
	switch {
	case sub < 0x40:
		row := sub >> 3
		v := c.getReg8(col)
		var op alu.Op
		var withCarry, arithmetic bool
		switch row {
		case 0:
			op = alu.RotateLeft
		case 1:
			op = alu.RotateRight
		case 2:
			op, withCarry = alu.RotateLeft, true
		case 3:
			op, withCarry = alu.RotateRight, true
		case 4:
			op = alu.ShiftLeft
		case 5:
			op, arithmetic = alu.ShiftRight, true
		case 6:
			op = alu.Swap
		case 7:
			op = alu.ShiftRight
		}
		result, out := alu.Compute(alu.Input{Op: op, A: v, Flags: c.pending, WithCarry: withCarry, Arithmetic: arithmetic})
		c.setReg8(col, result)
		c.pending = out

	case sub < 0x80:
		bit := (sub - 0x40) >> 3
		v := c.getReg8(col)
		_, out := alu.Compute(alu.Input{Op: alu.Test, A: v, Bit: bit, Flags: c.pending})
		c.pending = out

	case sub < 0xC0:
		bit := (sub - 0x80) >> 3
		v := c.getReg8(col)
		result, _ := alu.Compute(alu.Input{Op: alu.SetBit, A: v, Bit: bit, BitValue: false})
		c.setReg8(col, result)

	default:
		bit := (sub - 0xC0) >> 3
		v := c.getReg8(col)
		result, _ := alu.Compute(alu.Input{Op: alu.SetBit, A: v, Bit: bit, BitValue: true})
		c.setReg8(col, result)
	}
}
