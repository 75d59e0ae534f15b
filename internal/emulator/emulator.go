// Package emulator wires the CPU, memory bus, PPU, host window, and
// debugger together and drives spec.md §5's single-threaded cooperative
// main loop: one PPU tick, then one CPU step, in strict alternation,
// until any of the quit sources fires.
package emulator

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"gblite-dx/internal/cpu"
	"gblite-dx/internal/debug"
	"gblite-dx/internal/memory"
	"gblite-dx/internal/ppu"
)

// Emulator owns every component the main loop drives and the signal path
// that lets an external Ctrl-C stop it cooperatively.
type Emulator struct {
	CPU      *cpu.CPU
	Bus      *memory.Bus
	PPU      *ppu.PPU
	Debugger *debug.Debugger
	Logger   *debug.Logger

	sigint int32 // atomic; set by the SIGINT handler, polled by Run
}

// New wires a fresh emulator: a bus, a CPU on that bus, and a PPU on the
// same bus presenting to window. debugger and logger may be nil.
func New(window ppu.Window, debugger *debug.Debugger, logger *debug.Logger) *Emulator {
	bus := memory.New()
	bus.SetLogger(logger)

	c := cpu.New(bus)
	c.Debugger = debugger
	c.Logger = logger

	p := ppu.New(bus, window, logger)

	return &Emulator{
		CPU:      c,
		Bus:      bus,
		PPU:      p,
		Debugger: debugger,
		Logger:   logger,
	}
}

// LoadROM installs the cartridge image. Read failures are the caller's
// concern (spec.md §7 treats a missing ROM as a configuration fatal, not
// something this package recovers from); a short or empty slice is loaded
// as-is and simply reads back as zeroes past its end.
func (e *Emulator) LoadROM(data []uint8) {
	e.Bus.LoadROM(data)
}

// WatchSignals arms a SIGINT handler that flips an atomic flag Run polls
// between loop iterations, per spec.md §5's "separate OS-level signal
// path" requirement. Call once before Run.
func (e *Emulator) WatchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		<-ch
		atomic.StoreInt32(&e.sigint, 1)
	}()
}

// Run executes the main loop until Ctrl-C, host window closure, or a
// CPU-side quit (fatal opcode, killpoint, debugger command) stops it.
func (e *Emulator) Run() {
	for {
		if atomic.LoadInt32(&e.sigint) != 0 {
			return
		}
		e.PPU.Tick()
		if !e.PPU.Alive() {
			return
		}
		if !e.CPU.Step() {
			return
		}
	}
}

// Shutdown closes the trace file, if one was opened, and reports any error
// closing it. Callers dump RAM separately via Bus.Dump before or after.
func (e *Emulator) Shutdown() error {
	if e.Debugger == nil {
		return nil
	}
	if err := e.Debugger.Close(); err != nil {
		return fmt.Errorf("close debugger: %w", err)
	}
	return nil
}
