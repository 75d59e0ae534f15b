package debug

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// Debugger holds the CPU-side interactive debugging state: breakpoints, an
// optional fatal kill address, single-step/step-over arming, and an
// optional trace-file sink. One command string is remembered so an empty
// line at the prompt repeats it.
type Debugger struct {
	mu sync.Mutex

	breakpoints map[uint16]bool
	killAddr    *uint16

	singleStep     bool
	stepOverTarget *uint16

	lastCommand string

	traceFile *os.File
	in        *bufio.Reader
	out       io.Writer
}

// NewDebugger returns a debugger with no breakpoints armed, reading
// commands from stdin and printing to stdout.
func NewDebugger() *Debugger {
	return &Debugger{
		breakpoints: make(map[uint16]bool),
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}
}

// AddBreakpoint arms a breakpoint at addr.
func (d *Debugger) AddBreakpoint(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakpoints[addr] = true
}

// SetKillAddress sets the single fatal-match PC. Passing it twice keeps only
// the most recent value, matching the CLI's "at most one occurrence" rule
// for -k (the last flag instance wins).
func (d *Debugger) SetKillAddress(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.killAddr = &addr
}

// OpenTraceFile opens path for a one-line-per-instruction trace.
func (d *Debugger) OpenTraceFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open trace file %s: %w", path, err)
	}
	d.traceFile = f
	return nil
}

// Close flushes and closes the trace file, if one is open.
func (d *Debugger) Close() error {
	if d.traceFile == nil {
		return nil
	}
	return d.traceFile.Close()
}

// Hook implements spec §4.E.1: called once per CPU step, before the effect
// runs. nextPC is where PC will land after the encoded length is applied
// (used as the step-over target). verbose additionally echoes the trace
// line to stdout even when no breakpoint fires.
func (d *Debugger) Hook(view CPUView, nextPC uint16, verbose bool) (quit bool) {
	pc := view.PC()

	d.mu.Lock()
	kill := d.killAddr != nil && *d.killAddr == pc
	d.mu.Unlock()
	if kill {
		return true
	}

	if d.traceFile != nil {
		fmt.Fprintln(d.traceFile, FormatTrace(view))
	}

	// spec.md §6: verbose console output and the trace file use the
	// detailed register dump; a non-verbose breakpoint prompt uses the
	// short mnemonic-plus-operand line instead.
	var line string
	if verbose {
		line = FormatTrace(view)
		fmt.Fprintln(d.out, line)
	} else {
		line = FormatShort(view)
	}

	if d.shouldIntercept(pc) {
		return d.interact(view, line, nextPC)
	}
	return false
}

func (d *Debugger) shouldIntercept(pc uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.singleStep {
		d.singleStep = false
		return true
	}
	if d.stepOverTarget != nil && *d.stepOverTarget == pc {
		d.stepOverTarget = nil
		return true
	}
	return d.breakpoints[pc]
}

// interact runs the blocking prompt loop: print the trace line, read a
// one-letter command, act, and either loop again (p, d, unrecognized) or
// return to let execution continue (c, s, n).
func (d *Debugger) interact(view CPUView, line string, nextPC uint16) (quit bool) {
	for {
		fmt.Fprintln(d.out, line)
		fmt.Fprint(d.out, "(gblite) ")

		cmd, err := d.readCommand()
		if err != nil {
			return true
		}

		switch cmd {
		case "c":
			return false
		case "s":
			d.mu.Lock()
			d.singleStep = true
			d.mu.Unlock()
			return false
		case "n":
			d.mu.Lock()
			target := nextPC
			d.stepOverTarget = &target
			d.mu.Unlock()
			return false
		case "p":
			fmt.Fprintf(d.out, "%s  (HL)=%02X\n", line, view.PeekHL())
		case "d":
			path := MemDumpFilename()
			if err := view.DumpMemory(path); err != nil {
				fmt.Fprintf(d.out, "dump failed: %v\n", err)
			} else {
				fmt.Fprintf(d.out, "dumped to %s\n", path)
			}
		default:
			fmt.Fprintln(d.out, "commands: c(ontinue) s(tep) n(ext) p(rint) d(ump)")
		}
	}
}

func (d *Debugger) readCommand() (string, error) {
	raw, err := d.in.ReadString('\n')
	if err != nil && raw == "" {
		return "", err
	}
	cmd := trimCommand(raw)
	if cmd == "" {
		cmd = d.lastCommand
	}
	d.lastCommand = cmd
	return cmd, nil
}

func trimCommand(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == '\n' || s[end-1] == '\r' || s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}
