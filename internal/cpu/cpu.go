// Package cpu implements the Sharp LR35902 fetch/decode/execute engine:
// 256 base opcodes plus 256 bit-manipulation opcodes behind the 0xCB prefix,
// driven by the static tables in opcodes.go and the effect dispatch in
// exec.go.
package cpu

import (
	"gblite-dx/internal/alu"
	"gblite-dx/internal/debug"
	"gblite-dx/internal/memory"
	"gblite-dx/internal/register"
)

// CPU is the fetch/decode/execute core. It owns no state beyond the
// register file and a handful of scratch fields; the bus and the register
// file are the sources of truth.
type CPU struct {
	Regs *register.File
	Bus  *memory.Bus

	Debugger *debug.Debugger
	Logger   *debug.Logger
	Verbose  bool

	ime  bool
	quit bool

	curPC      uint16
	instrBytes []uint8
	mnemonic   string
	pending    alu.Flags
}

// New returns a CPU with a freshly reset register file.
func New(bus *memory.Bus) *CPU {
	return &CPU{Regs: register.New(), Bus: bus}
}

// Step runs one instruction per spec.md §4.E and returns whether the
// emulator should keep running.
func (c *CPU) Step() bool {
	if c.quit {
		return false
	}

	pc := c.Regs.PC
	b0 := c.Bus.Get(pc, memory.ClientCPU)
	var full uint16
	if b0 == 0xCB {
		b1 := c.Bus.Get(pc+1, memory.ClientCPU)
		full = 0xCB00 | uint16(b1)
	} else {
		full = uint16(b0)
	}

	desc := Instruction(full)
	c.curPC = pc
	c.instrBytes = c.readInstrBytes(pc, desc.Length)
	c.mnemonic = desc.Mnemonic

	nextPC := pc + uint16(desc.Length)

	if c.Debugger != nil {
		if c.Debugger.Hook(c, nextPC, c.Verbose) {
			c.quit = true
			return false
		}
	}

	pre := alu.Flags{
		Z:  c.Regs.GetFlag(register.FlagZ),
		N:  c.Regs.GetFlag(register.FlagN),
		H:  c.Regs.GetFlag(register.FlagH),
		CY: c.Regs.GetFlag(register.FlagCY),
	}
	c.pending = pre
	c.Regs.PC = nextPC

	c.execute(full, desc)
	if c.quit {
		if c.Logger != nil && desc.Undefined {
			c.Logger.LogCPUf(debug.LogLevelError, "undefined opcode %#04x at PC=%#04x", full, pc)
		}
		return false
	}

	c.commitFlags(desc.Flags, pre)
	return true
}

func (c *CPU) readInstrBytes(pc uint16, length uint8) []uint8 {
	bytes := make([]uint8, length)
	for i := range bytes {
		bytes[i] = c.Bus.Get(pc+uint16(i), memory.ClientCPU)
	}
	return bytes
}

func applyPolicy(p Policy, pre, pending bool) bool {
	switch p {
	case SetTrue:
		return true
	case SetFalse:
		return false
	case Evaluate:
		return pending
	default: // Ignore
		return pre
	}
}

func (c *CPU) commitFlags(policy FlagPolicy, pre alu.Flags) {
	c.Regs.SetFlag(register.FlagZ, applyPolicy(policy.Z, pre.Z, c.pending.Z))
	c.Regs.SetFlag(register.FlagN, applyPolicy(policy.N, pre.N, c.pending.N))
	c.Regs.SetFlag(register.FlagH, applyPolicy(policy.H, pre.H, c.pending.H))
	c.Regs.SetFlag(register.FlagCY, applyPolicy(policy.CY, pre.CY, c.pending.CY))
}

// Quit reports whether a fatal condition or debugger command has stopped
// the CPU.
func (c *CPU) Quit() bool { return c.quit }

// RequestQuit lets an external collaborator (Ctrl-C, host window closure)
// stop the CPU at the next Step call.
func (c *CPU) RequestQuit() { c.quit = true }

// --- debug.CPUView ---

func (c *CPU) PC() uint16 { return c.Regs.PC }
func (c *CPU) SP() uint16 { return c.Regs.SP }
func (c *CPU) AF() uint16 { return c.Regs.GetPair(register.AF) }
func (c *CPU) BC() uint16 { return c.Regs.GetPair(register.BC) }
func (c *CPU) DE() uint16 { return c.Regs.GetPair(register.DE) }
func (c *CPU) HL() uint16 { return c.Regs.GetPair(register.HL) }

func (c *CPU) FlagsString() string {
	flag := func(set bool, letter byte) byte {
		if set {
			return letter
		}
		return '-'
	}
	return string([]byte{
		flag(c.Regs.GetFlag(register.FlagZ), 'Z'),
		flag(c.Regs.GetFlag(register.FlagN), 'N'),
		flag(c.Regs.GetFlag(register.FlagH), 'H'),
		flag(c.Regs.GetFlag(register.FlagCY), 'C'),
	})
}

func (c *CPU) InstructionBytes() []uint8 { return c.instrBytes }

func (c *CPU) Mnemonic() string { return c.mnemonic }

func (c *CPU) PeekHL() uint8 {
	return c.Bus.Get(c.Regs.GetPair(register.HL), memory.ClientCPU)
}

func (c *CPU) DumpMemory(path string) error {
	return c.Bus.Dump(path)
}
