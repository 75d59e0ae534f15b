package cpu

import (
	"testing"

	"gblite-dx/internal/memory"
	"gblite-dx/internal/register"
)

// loadAt builds a ROM image with prog placed starting at 0x0100, where the
// register file's reset PC points, padding everything before it with NOPs.
func loadAt(t *testing.T, prog ...uint8) (*CPU, *memory.Bus) {
	t.Helper()
	rom := make([]uint8, 0x0100+len(prog)+16)
	copy(rom[0x0100:], prog)
	bus := memory.New()
	bus.LoadROM(rom)
	return New(bus), bus
}

func TestNOPAdvancesPC(t *testing.T) {
	c, _ := loadAt(t, 0x00)
	preF := c.Regs.Get(register.F)
	if !c.Step() {
		t.Fatal("Step returned false on NOP")
	}
	if c.Regs.PC != 0x0101 {
		t.Errorf("PC = %#04x, want 0x0101", c.Regs.PC)
	}
	if c.Regs.Get(register.F) != preF {
		t.Errorf("flags changed on NOP: %#02x -> %#02x", preF, c.Regs.Get(register.F))
	}
}

func TestLDImmediate(t *testing.T) {
	c, _ := loadAt(t, 0x3E, 0x42) // LD A,0x42
	if !c.Step() {
		t.Fatal("Step returned false")
	}
	if c.Regs.Get(register.A) != 0x42 {
		t.Errorf("A = %#02x, want 0x42", c.Regs.Get(register.A))
	}
	if c.Regs.PC != 0x0102 {
		t.Errorf("PC = %#04x, want 0x0102", c.Regs.PC)
	}
}

func TestADDHalfCarry(t *testing.T) {
	c, _ := loadAt(t, 0x3E, 0x0F, 0xC6, 0x01) // LD A,0x0F; ADD A,0x01
	c.Step()
	if !c.Step() {
		t.Fatal("Step returned false")
	}
	if c.Regs.Get(register.A) != 0x10 {
		t.Errorf("A = %#02x, want 0x10", c.Regs.Get(register.A))
	}
	if c.Regs.GetFlag(register.FlagZ) {
		t.Error("Z set, want clear")
	}
	if c.Regs.GetFlag(register.FlagN) {
		t.Error("N set, want clear")
	}
	if !c.Regs.GetFlag(register.FlagH) {
		t.Error("H clear, want set")
	}
	if c.Regs.GetFlag(register.FlagCY) {
		t.Error("CY set, want clear")
	}
}

func TestJRZTaken(t *testing.T) {
	c, _ := loadAt(t, 0x28, 0x05) // JR Z,+5
	c.Regs.SetFlag(register.FlagZ, true)
	if !c.Step() {
		t.Fatal("Step returned false")
	}
	if c.Regs.PC != 0x0107 {
		t.Errorf("PC = %#04x, want 0x0107", c.Regs.PC)
	}
}

func TestJRZNotTaken(t *testing.T) {
	c, _ := loadAt(t, 0x28, 0x05, 0x00) // JR Z,+5; NOP
	c.Regs.SetFlag(register.FlagZ, false)
	if !c.Step() {
		t.Fatal("Step returned false")
	}
	if c.Regs.PC != 0x0102 {
		t.Errorf("PC = %#04x, want 0x0102 (fallthrough)", c.Regs.PC)
	}
}

func TestCallRetRoundTrip(t *testing.T) {
	// CALL 0x0200 at 0x0100; RET placed at 0x0200.
	rom := make([]uint8, 0x0300)
	rom[0x0100] = 0xCD
	rom[0x0101] = 0x00
	rom[0x0102] = 0x02
	rom[0x0200] = 0xC9
	bus := memory.New()
	bus.LoadROM(rom)
	c := New(bus)

	sp0 := c.Regs.SP
	if !c.Step() { // CALL
		t.Fatal("CALL step returned false")
	}
	if c.Regs.PC != 0x0200 {
		t.Fatalf("PC after CALL = %#04x, want 0x0200", c.Regs.PC)
	}
	if c.Regs.SP != sp0-2 {
		t.Fatalf("SP after CALL = %#04x, want %#04x", c.Regs.SP, sp0-2)
	}
	lo := bus.Get(c.Regs.SP, memory.ClientCPU)
	hi := bus.Get(c.Regs.SP+1, memory.ClientCPU)
	if ret := uint16(hi)<<8 | uint16(lo); ret != 0x0103 {
		t.Fatalf("return address on stack = %#04x, want 0x0103", ret)
	}

	if !c.Step() { // RET
		t.Fatal("RET step returned false")
	}
	if c.Regs.PC != 0x0103 {
		t.Errorf("PC after RET = %#04x, want 0x0103", c.Regs.PC)
	}
	if c.Regs.SP != sp0 {
		t.Errorf("SP after RET = %#04x, want %#04x (restored)", c.Regs.SP, sp0)
	}
}

func TestCBBitTest(t *testing.T) {
	c, _ := loadAt(t, 0xCB, 0x7F) // BIT 7,A
	c.Regs.Set(register.A, 0x80)
	c.Regs.SetFlag(register.FlagCY, true)
	if !c.Step() {
		t.Fatal("Step returned false")
	}
	if c.Regs.GetFlag(register.FlagZ) {
		t.Error("Z set, want clear (bit 7 of 0x80 is 1)")
	}
	if c.Regs.GetFlag(register.FlagN) {
		t.Error("N set, want clear")
	}
	if !c.Regs.GetFlag(register.FlagH) {
		t.Error("H clear, want set")
	}
	if !c.Regs.GetFlag(register.FlagCY) {
		t.Error("CY clear, want unchanged (true)")
	}
	if c.Regs.PC != 0x0102 {
		t.Errorf("PC = %#04x, want 0x0102", c.Regs.PC)
	}
}

func TestStackLIFO(t *testing.T) {
	// PUSH BC; PUSH DE; POP DE; POP BC should round-trip both pairs intact.
	c, _ := loadAt(t, 0xC5, 0xD5, 0xD1, 0xC1)
	c.Regs.SetPair(register.BC, 0x1234)
	c.Regs.SetPair(register.DE, 0x5678)
	sp0 := c.Regs.SP

	for i := 0; i < 4; i++ {
		if !c.Step() {
			t.Fatalf("step %d returned false", i)
		}
	}
	if c.Regs.SP != sp0 {
		t.Errorf("SP = %#04x, want %#04x (restored)", c.Regs.SP, sp0)
	}
	if got := c.Regs.GetPair(register.BC); got != 0x1234 {
		t.Errorf("BC = %#04x, want 0x1234", got)
	}
	if got := c.Regs.GetPair(register.DE); got != 0x5678 {
		t.Errorf("DE = %#04x, want 0x5678", got)
	}
}

func TestInstructionLengthAdvancesPC(t *testing.T) {
	cases := []struct {
		name string
		op   uint8
		arg  []uint8
		want uint16
	}{
		{"NOP", 0x00, nil, 0x0101},
		{"INC B", 0x04, nil, 0x0101},
		{"LD A,d8", 0x3E, []uint8{0x00}, 0x0102},
		{"LD BC,d16", 0x01, []uint8{0x00, 0x00}, 0x0103},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prog := append([]uint8{tc.op}, tc.arg...)
			c, _ := loadAt(t, prog...)
			if !c.Step() {
				t.Fatalf("Step returned false")
			}
			if c.Regs.PC != tc.want {
				t.Errorf("PC = %#04x, want %#04x", c.Regs.PC, tc.want)
			}
		})
	}
}

func TestFlagPolicyDiscipline(t *testing.T) {
	// SCF forces N=0,H=0,CY=1 regardless of prior state, and must leave Z
	// exactly as it was (policy Ignore).
	c, _ := loadAt(t, 0x37) // SCF
	c.Regs.SetFlag(register.FlagZ, true)
	c.Regs.SetFlag(register.FlagN, true)
	c.Regs.SetFlag(register.FlagH, true)
	c.Regs.SetFlag(register.FlagCY, false)

	if !c.Step() {
		t.Fatal("Step returned false")
	}
	if !c.Regs.GetFlag(register.FlagZ) {
		t.Error("Z changed, policy is Ignore")
	}
	if c.Regs.GetFlag(register.FlagN) {
		t.Error("N not cleared by SCF")
	}
	if c.Regs.GetFlag(register.FlagH) {
		t.Error("H not cleared by SCF")
	}
	if !c.Regs.GetFlag(register.FlagCY) {
		t.Error("CY not set by SCF")
	}
}

func TestDAAAfterBCDAdd(t *testing.T) {
	// LD B,0x58; LD A,0x51; ADD A,B; DAA. Packed-BCD 51+58=109, represented
	// as A=0x09 with CY set for the carry past decimal 99 (spec.md §4.E.3).
	c, _ := loadAt(t, 0x06, 0x58, 0x3E, 0x51, 0x80, 0x27)
	for i := 0; i < 4; i++ {
		if !c.Step() {
			t.Fatalf("step %d returned false", i)
		}
	}
	if got := c.Regs.Get(register.A); got != 0x09 {
		t.Errorf("A after DAA = %#02x, want 0x09", got)
	}
	if !c.Regs.GetFlag(register.FlagCY) {
		t.Error("CY clear after DAA, want set (BCD carry past 99)")
	}
	if c.Regs.GetFlag(register.FlagZ) {
		t.Error("Z set after DAA, want clear")
	}
	if c.Regs.GetFlag(register.FlagH) {
		t.Error("H set after DAA, DAA always clears H")
	}
}

func TestDAAAfterBCDSub(t *testing.T) {
	// LD B,0x27; LD A,0x42; SUB B; DAA. Packed-BCD 42-27=15.
	c, _ := loadAt(t, 0x06, 0x27, 0x3E, 0x42, 0x90, 0x27)
	for i := 0; i < 4; i++ {
		if !c.Step() {
			t.Fatalf("step %d returned false", i)
		}
	}
	if got := c.Regs.Get(register.A); got != 0x15 {
		t.Errorf("A after DAA = %#02x, want 0x15", got)
	}
	if c.Regs.GetFlag(register.FlagCY) {
		t.Error("CY set after DAA, want clear")
	}
	if !c.Regs.GetFlag(register.FlagN) {
		t.Error("N clear after DAA, policy Ignore should preserve SUB's N=1")
	}
	if c.Regs.GetFlag(register.FlagH) {
		t.Error("H set after DAA, DAA always clears H")
	}
}

func TestUndefinedOpcodeQuits(t *testing.T) {
	c, _ := loadAt(t, 0xD3) // undefined
	if c.Step() {
		t.Fatal("Step returned true on undefined opcode")
	}
	if !c.Quit() {
		t.Error("Quit() false after undefined opcode")
	}
}

func TestHaltQuits(t *testing.T) {
	c, _ := loadAt(t, 0x76) // HALT
	if c.Step() {
		t.Fatal("Step returned true on HALT")
	}
	if !c.Quit() {
		t.Error("Quit() false after HALT")
	}
}
