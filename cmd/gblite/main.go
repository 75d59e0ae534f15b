// Command gblite is the CLI entry point for the emulator core: it
// validates the ROM path, wires breakpoints/kill address/trace/verbose
// flags into a debugger, opens the SDL2 window, and runs the main loop
// until Ctrl-C, window close, or a CPU-side quit condition.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gblite-dx/internal/debug"
	"gblite-dx/internal/emulator"
	"gblite-dx/internal/memory"
	"gblite-dx/internal/window"
)

const usage = `Usage: gblite <rom-file> [-d] [-b <addr>]... [-k <addr>] [-t] [-v] [-scale <n>]
  <rom-file>   path to a cartridge image (required)
  -d           dump RAM to a timestamped file on exit
  -b <addr>    add a breakpoint PC (hex, leading 0x optional); repeatable
  -k <addr>    set the kill PC (hex, leading 0x optional); at most one wins
  -t           write a one-line-per-instruction trace file
  -v           verbose per-instruction output on stdout
  -scale <n>   integer display scale, 1-8 (default 3)
`

// multiAddr collects repeated -b occurrences; it implements flag.Value so
// the standard flag package can register it directly.
type multiAddr []uint16

func (m *multiAddr) String() string {
	if m == nil {
		return ""
	}
	parts := make([]string, len(*m))
	for i, a := range *m {
		parts[i] = fmt.Sprintf("%#04x", a)
	}
	return strings.Join(parts, ",")
}

func (m *multiAddr) Set(s string) error {
	addr, err := parseHexAddr(s)
	if err != nil {
		return err
	}
	*m = append(*m, addr)
	return nil
}

func parseHexAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid hex address %q: %w", s, err)
	}
	return uint16(v), nil
}

func printUsageAndExit() {
	fmt.Fprint(os.Stderr, usage)
	os.Exit(1)
}

func main() {
	// spec.md §6 requires a positional ROM path ahead of any flags; flag
	// cannot mix that with flag.Parse directly, so pull it out by hand
	// before handing the rest of os.Args to the flag package, the same
	// manual-validation-before-Parse shape the teacher's CLI uses.
	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		printUsageAndExit()
	}
	romPath := os.Args[1]

	fs := flag.NewFlagSet("gblite", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	dumpOnExit := fs.Bool("d", false, "dump RAM on exit")
	killAddr := fs.String("k", "", "kill PC (hex)")
	traceOn := fs.Bool("t", false, "write instruction trace file")
	verbose := fs.Bool("v", false, "verbose per-instruction output")
	scale := fs.Int("scale", 3, "display scale 1-8")
	var breakpoints multiAddr
	fs.Var(&breakpoints, "b", "add a breakpoint PC (hex); repeatable")

	if err := fs.Parse(os.Args[2:]); err != nil {
		printUsageAndExit()
	}
	if fs.NArg() > 0 {
		printUsageAndExit()
	}
	if *scale < 1 || *scale > 8 {
		fmt.Fprintln(os.Stderr, "Error: -scale must be between 1 and 8")
		os.Exit(1)
	}

	info, err := os.Stat(romPath)
	if err != nil || info.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: %q is not a regular file\n", romPath)
		printUsageAndExit()
	}
	romData, err := memory.LoadROMFile(romPath)
	if err != nil {
		// An unreadable ROM is treated as an empty image, per spec.md §7's
		// acknowledged I/O weakness, rather than aborting startup.
		fmt.Fprintf(os.Stderr, "Warning: %v (continuing with empty ROM)\n", err)
	}

	logger := debug.NewLogger(10000)
	if *verbose {
		logger.SetComponentEnabled(debug.ComponentCPU, true)
		logger.SetComponentEnabled(debug.ComponentPPU, true)
		logger.SetComponentEnabled(debug.ComponentMemory, true)
		logger.SetComponentEnabled(debug.ComponentSystem, true)
	}

	dbg := debug.NewDebugger()
	for _, addr := range breakpoints {
		dbg.AddBreakpoint(addr)
	}
	if *killAddr != "" {
		addr, err := parseHexAddr(*killAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: -k: %v\n", err)
			os.Exit(1)
		}
		dbg.SetKillAddress(addr)
	}
	if *traceOn {
		path := debug.TraceFilename()
		if err := dbg.OpenTraceFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	win, err := window.New(*scale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating window: %v\n", err)
		os.Exit(1)
	}
	defer win.Close()

	emu := emulator.New(win, dbg, logger)
	emu.CPU.Verbose = *verbose
	emu.LoadROM(romData)
	emu.WatchSignals()

	emu.Run()

	if err := emu.Shutdown(); err != nil {
		fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
	}

	if *dumpOnExit {
		path := debug.MemDumpFilename()
		if err := emu.Bus.Dump(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error dumping memory: %v\n", err)
			os.Exit(1)
		}
	}
}
