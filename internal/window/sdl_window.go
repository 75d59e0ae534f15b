// Package window implements spec.md §6's host Window contract
// (`new(w,h)`, `draw(rgb8)`, `poll_events`, `is_open`) against an SDL2
// window and streaming texture, adapted from the teacher's
// internal/ui/ui.go (NewUI, handleEvent, the render/Present path) and cut
// down from its scaled 320×200-plus-info-bar surface to a plain 160×144
// RGB8 presentation surface with a configurable integer scale factor. The
// audio-device open/playback code the teacher carries has no counterpart
// here: this build has no APU.
package window

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

const (
	frameWidth  = 160
	frameHeight = 144
)

// Window is the SDL2-backed implementation of ppu.Window and the keyboard
// source the emulator polls each VBlank for a quit request.
type Window struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	scale    int
	open     bool
}

// New creates an SDL2 window sized frameWidth*scale x frameHeight*scale
// and a streaming texture matching the emulator's native resolution.
func New(scale int) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("init SDL: %w", err)
	}

	sdl.SetHint(sdl.HINT_RENDER_SCALE_QUALITY, "0") // nearest-neighbor, pixel-perfect

	w := int32(frameWidth * scale)
	h := int32(frameHeight * scale)
	sdlWindow, err := sdl.CreateWindow(
		"gblite-dx",
		sdl.WINDOWPOS_CENTERED,
		sdl.WINDOWPOS_CENTERED,
		w, h,
		sdl.WINDOW_SHOWN,
	)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("create window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(sdlWindow, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		sdlWindow.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGB24, sdl.TEXTUREACCESS_STREAMING, frameWidth, frameHeight)
	if err != nil {
		renderer.Destroy()
		sdlWindow.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("create texture: %w", err)
	}

	return &Window{
		window:   sdlWindow,
		renderer: renderer,
		texture:  texture,
		scale:    scale,
		open:     true,
	}, nil
}

// Draw blits a 160*144*3 RGB8 frame to the window, matching spec.md §6's
// draw(rgb8_slice) operation.
func (w *Window) Draw(rgb8 []uint8) error {
	if len(rgb8) != frameWidth*frameHeight*3 {
		return fmt.Errorf("frame size %d, want %d", len(rgb8), frameWidth*frameHeight*3)
	}
	if err := w.texture.Update(nil, rgb8, frameWidth*3); err != nil {
		return fmt.Errorf("update texture: %w", err)
	}
	w.renderer.Clear()
	if err := w.renderer.Copy(w.texture, nil, nil); err != nil {
		return fmt.Errorf("copy texture: %w", err)
	}
	w.renderer.Present()
	return nil
}

// PollEvents pumps SDL's event queue; a quit request or Escape closes the
// window, matching spec.md §6's poll_events() operation.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch e := event.(type) {
		case *sdl.QuitEvent:
			w.open = false
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				w.open = false
			}
		}
	}
}

// IsOpen reports whether the window is still live.
func (w *Window) IsOpen() bool { return w.open }

// Close tears down the SDL2 window, renderer, texture, and subsystem.
func (w *Window) Close() {
	if w.texture != nil {
		w.texture.Destroy()
	}
	if w.renderer != nil {
		w.renderer.Destroy()
	}
	if w.window != nil {
		w.window.Destroy()
	}
	sdl.Quit()
}
