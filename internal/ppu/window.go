package ppu

// Window is the host presentation collaborator spec.md §6 describes: a
// platform window the PPU hands a finished frame to and polls for quit
// events during VBlank idle time. The PPU package only depends on this
// interface; internal/window supplies the SDL2-backed implementation.
type Window interface {
	// Draw blits a 160*144*3 RGB8 frame to the window's surface.
	Draw(rgb8 []uint8) error
	// PollEvents pumps the platform event queue, marking the window closed
	// on a quit request or Escape key.
	PollEvents()
	// IsOpen reports whether the window is still live.
	IsOpen() bool
}

// nullWindow discards frames and never closes; used when the caller hasn't
// wired a real window (tests, headless trace runs).
type nullWindow struct{}

func (nullWindow) Draw([]uint8) error { return nil }
func (nullWindow) PollEvents()        {}
func (nullWindow) IsOpen() bool       { return true }
