// Package ppu implements the DMG's line-based display state machine per
// spec.md §3 "PPU state" and §4.F: OAM search, Draw, HBlank, VBlank, driven
// one machine cycle at a time, fetching background tile data through the
// shared memory bus and shifting out 160×144 RGB8 frames.
package ppu

import (
	"time"

	"gblite-dx/internal/debug"
	"gblite-dx/internal/memory"
)

// Mode is one of the four display states, visible at STAT[1:0].
type Mode uint8

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAMSearch
	ModeDraw
)

const (
	addrLCDC = 0xFF40
	addrSTAT = 0xFF41
	addrSCY  = 0xFF42
	addrSCX  = 0xFF43
	addrLY   = 0xFF44
	addrLYC  = 0xFF45
	addrDMA  = 0xFF46
	addrBGP  = 0xFF47
	addrOBP0 = 0xFF48
	addrOBP1 = 0xFF49
	addrWY   = 0xFF4A
	addrWX   = 0xFF4B
	addrVBK  = 0xFF4F
)

// shade maps a 2-bit BGP-resolved color index to an RGB8 triple: white,
// light gray, dark gray, black.
var shade = [4][3]uint8{
	{0xFF, 0xFF, 0xFF},
	{0xAA, 0xAA, 0xAA},
	{0x55, 0x55, 0x55},
	{0x00, 0x00, 0x00},
}

// PPU is the per-tick display state machine. All memory it reads or writes
// goes through Bus; the LCDC/STAT/scroll/palette fields below are a cache
// kept in sync with the bus by an IOWriteHook (spec.md §9 redesign note)
// instead of being re-decoded from scratch every tick.
type PPU struct {
	bus    *memory.Bus
	window Window
	logger *debug.Logger

	Mode Mode
	lclk int

	// LCDC decode (spec.md §3)
	bgPriority   bool
	spriteEnable bool
	tallSprite   bool
	bgMapHigh    bool // bit 3: background map at 0x9C00 (true) vs 0x9800
	bgDataLow    bool // bit 4: background data at 0x8000 unsigned (true) vs 0x9000 signed
	windowEnable bool
	windowMapHigh bool
	lcdEnable    bool

	// STAT interrupt-enable bits (CPU-writable); mode + coincidence are
	// PPU-owned outputs, not cached inputs.
	lycIntEnable    bool
	oamIntEnable    bool
	vblankIntEnable bool
	hblankIntEnable bool
	coincidence     bool

	SCX, SCY uint8
	WX, WY   uint8
	LYC      uint8
	LY       uint8
	BGP      uint8
	OBP0     uint8
	OBP1     uint8
	DMA      uint8
	VBK      uint8

	// Pixels is the current frame's RGB8 buffer, row-major, 3 bytes/pixel.
	Pixels [160 * 144 * 3]uint8

	alive     bool
	lastFrame time.Time
	haveLast  bool
}

// New returns a PPU wired to bus, with the LCD enabled, VBlank mode, and
// the post-boot-ROM palette defaults spec.md §3 specifies (BGP=0xFC,
// OBP0=OBP1=0xFF). If window is nil, frames are drawn to a no-op sink.
func New(bus *memory.Bus, window Window, logger *debug.Logger) *PPU {
	if window == nil {
		window = nullWindow{}
	}
	p := &PPU{
		bus:       bus,
		window:    window,
		logger:    logger,
		Mode:      ModeVBlank,
		LY:        144, // top of VBlank, the natural construction-time boundary
		lcdEnable: true,
		BGP:       0xFC,
		OBP0:      0xFF,
		OBP1:      0xFF,
		alive:     true,
	}
	bus.SetIOWriteHook(p.onWrite)
	p.pushRegisters()
	return p
}

// Alive reports whether the host window is still open.
func (p *PPU) Alive() bool { return p.alive }

// onWrite is the bus's IOWriteHook: it updates the PPU's cached decode of
// a register the instant the CPU writes it, instead of waiting for the
// next tick's re-decode (spec.md §9 redesign note).
func (p *PPU) onWrite(addr uint16, value uint8) {
	switch addr {
	case addrLCDC:
		p.decodeLCDC(value)
	case addrSTAT:
		p.lycIntEnable = value&0x40 != 0
		p.oamIntEnable = value&0x20 != 0
		p.vblankIntEnable = value&0x10 != 0
		p.hblankIntEnable = value&0x08 != 0
	case addrSCY:
		p.SCY = value
	case addrSCX:
		p.SCX = value
	case addrLY:
		// Real hardware ignores CPU writes to LY; this core follows suit
		// rather than letting a stray write desynchronize the line counter.
	case addrLYC:
		p.LYC = value
	case addrDMA:
		p.DMA = value
	case addrBGP:
		p.BGP = value
	case addrOBP0:
		p.OBP0 = value
	case addrOBP1:
		p.OBP1 = value
	case addrWY:
		p.WY = value
	case addrWX:
		p.WX = value
	case addrVBK:
		p.VBK = value
	}
}

func (p *PPU) decodeLCDC(v uint8) {
	p.bgPriority = v&0x01 != 0
	p.spriteEnable = v&0x02 != 0
	p.tallSprite = v&0x04 != 0
	p.bgMapHigh = v&0x08 != 0
	p.bgDataLow = v&0x10 != 0
	p.windowEnable = v&0x20 != 0
	p.windowMapHigh = v&0x40 != 0
	p.lcdEnable = v&0x80 != 0
}

func (p *PPU) lcdc() uint8 {
	var v uint8
	if p.bgPriority {
		v |= 0x01
	}
	if p.spriteEnable {
		v |= 0x02
	}
	if p.tallSprite {
		v |= 0x04
	}
	if p.bgMapHigh {
		v |= 0x08
	}
	if p.bgDataLow {
		v |= 0x10
	}
	if p.windowEnable {
		v |= 0x20
	}
	if p.windowMapHigh {
		v |= 0x40
	}
	if p.lcdEnable {
		v |= 0x80
	}
	return v
}

func (p *PPU) stat() uint8 {
	v := uint8(0x80)
	if p.lycIntEnable {
		v |= 0x40
	}
	if p.oamIntEnable {
		v |= 0x20
	}
	if p.vblankIntEnable {
		v |= 0x10
	}
	if p.hblankIntEnable {
		v |= 0x08
	}
	if p.coincidence {
		v |= 0x04
	}
	if p.lcdEnable {
		v |= uint8(p.modeBits())
	}
	return v
}

func (p *PPU) modeBits() uint8 {
	switch p.Mode {
	case ModeHBlank:
		return 0
	case ModeVBlank:
		return 1
	case ModeOAMSearch:
		return 2
	default: // ModeDraw
		return 3
	}
}

// pushRegisters writes the PPU's own outputs (LY, STAT) back to the bus.
// Everything else (LCDC, SCX/SCY, palettes, ...) is already current via
// onWrite and is never re-encoded here, per spec.md §9's redesign note.
func (p *PPU) pushRegisters() {
	p.bus.Set(p.LY, addrLY, memory.ClientPPU)
	p.bus.Set(p.stat(), addrSTAT, memory.ClientPPU)
}

// Tick advances the display state machine by one machine cycle, per
// spec.md §4.F. Call once per CPU machine cycle.
func (p *PPU) Tick() {
	if !p.alive {
		return
	}
	if p.Mode == ModeVBlank {
		p.window.PollEvents()
		if !p.window.IsOpen() {
			p.alive = false
			return
		}
	}

	p.coincidence = p.LY == p.LYC

	if p.lcdEnable {
		p.advance()
	}

	p.pushRegisters()
}

// advance runs the mode machine for one cycle per the table in spec.md
// §4.F: OAMSearch (20 cycles) -> Draw (43) -> HBlank (51, rendering the
// line at its start) on line 0; on lines 1-143 HBlank hands straight back
// to Draw, which then runs from lclk 0 to 62 (63 cycles). After line 143
// comes VBlank for 10 lines of 114 cycles before wrapping back to
// OAMSearch.
func (p *PPU) advance() {
	switch p.Mode {
	case ModeOAMSearch:
		if p.lclk == 19 {
			p.Mode = ModeDraw
		}
	case ModeDraw:
		if p.lclk == 62 {
			p.Mode = ModeHBlank
		}
	case ModeHBlank:
		if p.lclk == 63 {
			p.renderLine()
		}
		if p.lclk == 113 {
			p.LY++
			if p.LY == 144 {
				p.Mode = ModeVBlank
				p.presentFrame()
			} else {
				p.Mode = ModeDraw
			}
			p.lclk = -1
		}
	case ModeVBlank:
		if p.lclk == 113 {
			if p.LY == 153 {
				p.LY = 0
				p.Mode = ModeOAMSearch
			} else {
				p.LY++
			}
			p.lclk = -1
		}
	}
	p.lclk++
}

// renderLine fills scanline LY per spec.md §4.F.1: 20 horizontal 8-pixel
// chunks, each built from the current and horizontally-adjacent background
// tile so a non-zero SCX sub-tile offset can pull columns from either.
// Non-goals exclude cycle-exact pixel FIFO behavior, so this computes each
// chunk's 16-pixel window directly rather than literally shifting two
// bit-reversed 16-bit lanes; the pixel values produced are the same.
func (p *PPU) renderLine() {
	gy := p.LY + p.SCY // uint8 wraps mod 256, spec.md testable property 14
	ty, oy := gy/8, gy%8
	mapBase := uint16(0x9800)
	if p.bgMapHigh {
		mapBase = 0x9C00
	}

	for lx := uint8(0); lx < 160; lx += 8 {
		gx := lx + p.SCX
		tx, ox := gx/8, gx%8

		idxCur := p.tileIndexAt(mapBase, tx, ty)
		idxNext := p.tileIndexAt(mapBase, (tx+1)%32, ty)
		loCur, hiCur := p.tileRow(idxCur, oy)
		loNext, hiNext := p.tileRow(idxNext, oy)

		for i := uint8(0); i < 8; i++ {
			colorIndex := windowPixel(loCur, hiCur, loNext, hiNext, ox+i)
			shadeIndex := (p.BGP >> (colorIndex * 2)) & 0x3
			p.writePixel(lx+i, shadeIndex)
		}
	}
}

func (p *PPU) tileIndexAt(mapBase uint16, tx, ty uint8) uint8 {
	return p.bus.Get(mapBase+uint16(ty)*32+uint16(tx), memory.ClientPPU)
}

// tileRow returns the two bit-plane bytes for one row of a background
// tile, per spec.md §4.F.1 step 4: unsigned indexing from 0x8000 when
// LCDC bit 4 is set, else signed indexing from 0x9000.
func (p *PPU) tileRow(tileIndex uint8, oy uint8) (lo, hi uint8) {
	var base uint16
	if p.bgDataLow {
		base = 0x8000 + uint16(tileIndex)*16
	} else {
		base = uint16(int32(0x9000) + int32(int8(tileIndex))*16)
	}
	rowAddr := base + uint16(oy)*2
	lo = p.bus.Get(rowAddr, memory.ClientPPU)
	hi = p.bus.Get(rowAddr+1, memory.ClientPPU)
	return
}

// windowPixel reads one column out of the 16-pixel window formed by the
// current tile's row (positions 0-7) followed by the next tile's row
// (positions 8-15), matching bit 7 = leftmost per spec.md §4.F.1 step 5.
func windowPixel(loCur, hiCur, loNext, hiNext uint8, pos uint8) uint8 {
	lo, hi := loCur, hiCur
	if pos >= 8 {
		pos -= 8
		lo, hi = loNext, hiNext
	}
	bit := 7 - pos
	return (lo>>bit)&1 | (hi>>bit)&1<<1
}

func (p *PPU) writePixel(lx uint8, shadeIndex uint8) {
	off := (int(p.LY)*160 + int(lx)) * 3
	rgb := shade[shadeIndex]
	p.Pixels[off] = rgb[0]
	p.Pixels[off+1] = rgb[1]
	p.Pixels[off+2] = rgb[2]
}

// presentFrame hands the finished buffer to the host window at the end of
// line 143, per spec.md §4.F.2, and logs an FPS line if PPU logging is on.
func (p *PPU) presentFrame() {
	if err := p.window.Draw(p.Pixels[:]); err != nil && p.logger != nil {
		p.logger.LogPPUf(debug.LogLevelError, "present frame: %v", err)
	}

	if p.logger != nil && p.logger.IsComponentEnabled(debug.ComponentPPU) {
		now := time.Now()
		if p.haveLast {
			dt := now.Sub(p.lastFrame)
			fps := 0.0
			if dt > 0 {
				fps = float64(time.Second) / float64(dt)
			}
			p.logger.LogPPUf(debug.LogLevelInfo, "frame presented, %.1f fps", fps)
		}
		p.lastFrame = now
		p.haveLast = true
	}
}
