// Package memory implements the shared byte-addressable bus the CPU and PPU
// both transact through: a 64 KiB flat RAM array backed at the low end by an
// immutable cartridge ROM image.
package memory

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gblite-dx/internal/debug"
)

// Client tags which component is issuing a bus transaction. It currently has
// no gating effect; the tag is preserved so a future version can enforce
// VRAM/OAM access windows without changing the interface.
type Client uint8

const (
	ClientCPU Client = iota
	ClientPPU
)

const romCeiling = 0x8000

// IOWriteHook is invoked synchronously on every write at or above 0xFF00,
// after the byte lands in RAM. The PPU registers one so it observes LCDC/
// SCX/SCY/etc writes the instant they happen, instead of through a cached
// copy re-decoded once per tick.
type IOWriteHook func(addr uint16, value uint8)

// Bus is the 64 KiB CPU-visible address space plus the separately held ROM
// image. All access goes through Get/Set; there is no other path to the
// underlying storage.
type Bus struct {
	mu  sync.Mutex
	ram [65536]uint8
	rom []uint8

	ioHook IOWriteHook
	logger *debug.Logger
}

// New returns a bus with no ROM loaded and zeroed RAM.
func New() *Bus {
	return &Bus{}
}

// SetLogger attaches a logger used for diagnostic messages (ROM load, dump).
func (b *Bus) SetLogger(l *debug.Logger) { b.logger = l }

// SetIOWriteHook registers the callback invoked on writes to [0xFF00, 0x10000).
// Passing nil clears it.
func (b *Bus) SetIOWriteHook(hook IOWriteHook) { b.ioHook = hook }

// LoadROM replaces the cartridge ROM image. Must be called before the first
// tick; reads below 0x8000 are serviced from this slice thereafter.
func (b *Bus) LoadROM(data []uint8) {
	b.rom = append([]uint8(nil), data...)
	if b.logger != nil {
		b.logger.Logf(debug.ComponentSystem, debug.LogLevelInfo, "loaded ROM: %d bytes", len(data))
	}
}

// Get returns the byte at addr. Addresses below 0x8000 read from the ROM
// image (bank switching is not modeled: every address in that range reads
// straight from the loaded image). Addresses 0x8000 and above read from RAM.
// The whole transaction holds one exclusive lock per spec.md §5 so a future
// split of CPU and PPU onto separate threads needs no interface change.
func (b *Bus) Get(addr uint16, client Client) uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if addr < romCeiling {
		if int(addr) < len(b.rom) {
			return b.rom[addr]
		}
		return 0
	}
	return b.ram[addr]
}

// Set writes value at addr. Writes below 0x8000 are silently ignored (the
// ROM is immutable). Writes at or above 0xFF00 additionally invoke the
// registered IOWriteHook, if any, after the byte is stored. The hook runs
// outside the bus lock: it must not call back into Get/Set on this bus.
func (b *Bus) Set(value uint8, addr uint16, client Client) {
	b.mu.Lock()
	if addr < romCeiling {
		b.mu.Unlock()
		return
	}
	b.ram[addr] = value
	hook := b.ioHook
	b.mu.Unlock()

	if addr >= 0xFF00 && hook != nil {
		hook(addr, value)
	}
}

// Dump serializes the RAM region to a human-readable hex-dump file, 16
// bytes per line prefixed with the line's base address.
func (b *Bus) Dump(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	for base := 0; base < len(b.ram); base += 16 {
		fmt.Fprintf(&sb, "%04X: ", base)
		for i := 0; i < 16; i++ {
			fmt.Fprintf(&sb, "%02X ", b.ram[base+i])
		}
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("dump memory to %s: %w", path, err)
	}
	if b.logger != nil {
		b.logger.Logf(debug.ComponentSystem, debug.LogLevelInfo, "dumped memory to %s", path)
	}
	return nil
}
