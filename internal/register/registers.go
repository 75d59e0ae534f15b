// Package register implements the Sharp LR35902 register file: seven 8-bit
// general registers viewable as four 16-bit pairs, a stack pointer, a
// program counter, and the four condition flags packed into F's high
// nibble.
package register

// ID names an 8-bit register.
type ID uint8

const (
	A ID = iota
	F
	B
	C
	D
	E
	H
	L
)

// Pair names a 16-bit register pair. The first-named register of each pair
// is the high byte (big-endian within the pair).
type Pair uint8

const (
	AF Pair = iota
	BC
	DE
	HL
)

// Flag names one of the four condition bits packed into F's high nibble.
type Flag uint8

const (
	FlagZ Flag = iota // result zero
	FlagN             // last op was subtract
	FlagH             // half-carry out of bit 3
	FlagCY            // carry out of bit 7 / borrow
)

var flagBit = [...]uint8{
	FlagZ:  7,
	FlagN:  6,
	FlagH:  5,
	FlagCY: 4,
}

// File is the Sharp LR35902 register file.
type File struct {
	regs [8]uint8
	SP   uint16
	PC   uint16
}

// New returns a register file in the post-boot-ROM DMG state spec.md §3
// specifies: A=0x01, F=(Z=1,N=0,H=1,CY=1), B=0x00, C=0x13, D=0x00, E=0xD8,
// H=0x01, L=0x4D, SP=0xFFFE, PC=0x0100.
func New() *File {
	f := &File{SP: 0xFFFE, PC: 0x0100}
	f.regs[A] = 0x01
	f.regs[F] = 0xB0 // Z=1 N=0 H=1 CY=1, low nibble zero
	f.regs[B] = 0x00
	f.regs[C] = 0x13
	f.regs[D] = 0x00
	f.regs[E] = 0xD8
	f.regs[H] = 0x01
	f.regs[L] = 0x4D
	return f
}

// Get returns the value of an 8-bit register.
func (r *File) Get(id ID) uint8 { return r.regs[id] }

// Set writes an 8-bit register. Writing F masks the low nibble to zero,
// which is always clear on real hardware.
func (r *File) Set(id ID, v uint8) {
	if id == F {
		v &= 0xF0
	}
	r.regs[id] = v
}

var pairHigh = [...]ID{AF: A, BC: B, DE: D, HL: H}
var pairLow = [...]ID{AF: F, BC: C, DE: E, HL: L}

// GetPair returns a 16-bit pair as (high<<8)|low.
func (r *File) GetPair(p Pair) uint16 {
	return uint16(r.regs[pairHigh[p]])<<8 | uint16(r.regs[pairLow[p]])
}

// SetPair writes a 16-bit pair, splitting high/low across the two
// registers that make it up. Setting AF masks F's low nibble to zero.
func (r *File) SetPair(p Pair, v uint16) {
	high := uint8(v >> 8)
	low := uint8(v)
	if p == AF {
		low &= 0xF0
	}
	r.regs[pairHigh[p]] = high
	r.regs[pairLow[p]] = low
}

// GetFlag reads one condition flag.
func (r *File) GetFlag(fl Flag) bool {
	return r.regs[F]&(1<<flagBit[fl]) != 0
}

// SetFlag writes one condition flag, leaving the others and the low nibble
// untouched.
func (r *File) SetFlag(fl Flag, v bool) {
	bit := uint8(1) << flagBit[fl]
	if v {
		r.regs[F] |= bit
	} else {
		r.regs[F] &^= bit
	}
	r.regs[F] &= 0xF0
}

