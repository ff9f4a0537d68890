package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	videoplayer "github.com/HenryThomas9587/media-demo"
	"github.com/HenryThomas9587/media-demo/internal/config"
	"github.com/HenryThomas9587/media-demo/internal/render"
	"github.com/HenryThomas9587/media-demo/internal/render/gles"
)

// unsyncedFrameTime caps the loop at about 60 draws per second when vsync
// is off.
const unsyncedFrameTime = 16 * time.Millisecond

// throttledPoll is how long the loop waits after a throttled draw.
const throttledPoll = time.Millisecond

// runWindow plays in an SDL window with an OpenGL ES 2.0 context. The
// window stays open on the last frame after end of stream.
//
// Keys: Space pauses and resumes, Escape or Q quits.
func runWindow(cfg *config.Config, decCfg videoplayer.DecoderConfig, renderCfg render.Config) error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("sdl init: %w", err)
	}
	defer sdl.Quit()

	requestGLAttributes(sdl.GLSetAttribute)

	window, err := sdl.CreateWindow(cfg.Window.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(cfg.Window.Width), int32(cfg.Window.Height),
		sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE|sdl.WINDOW_SHOWN)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()

	glContext, err := window.GLCreateContext()
	if err != nil {
		return fmt.Errorf("create GL context: %w", err)
	}
	defer sdl.GLDeleteContext(glContext)

	vsync := *cfg.Window.VSync
	if vsync {
		if err := sdl.GLSetSwapInterval(1); err != nil {
			slog.Warn("vsync not available, falling back to a timed loop", "error", err)
			vsync = false
		}
	}

	device, err := gles.New()
	if err != nil {
		return err
	}

	pipeline := render.NewPipeline(device, renderCfg)
	if err := pipeline.SurfaceCreated(); err != nil {
		return err
	}
	w, h := window.GLGetDrawableSize()
	pipeline.SurfaceChanged(int(w), int(h))

	s, err := startSession(cfg, decCfg, pipeline)
	if err != nil {
		pipeline.Release()
		return err
	}
	defer s.close()

	fmt.Printf("Playing. Space pauses, Esc quits.\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	paused := false
	eos := s.eos
	for running := true; running; {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				running = false

			case *sdl.WindowEvent:
				if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
					w, h := window.GLGetDrawableSize()
					pipeline.SurfaceChanged(int(w), int(h))
				}

			case *sdl.KeyboardEvent:
				if e.Type != sdl.KEYDOWN || e.Repeat != 0 {
					continue
				}
				switch e.Keysym.Sym {
				case sdl.K_ESCAPE, sdl.K_q:
					running = false
				case sdl.K_SPACE:
					paused = !paused
					if paused {
						s.controller.Stop()
					} else if err := s.controller.Start(cfg.Source.Path); err != nil {
						slog.Error("resume failed", "error", err)
					}
				}

			default:
				if event.GetType() == sdl.RENDER_DEVICE_RESET {
					pipeline.SurfaceLost()
					if err := pipeline.SurfaceCreated(); err != nil {
						return err
					}
					w, h := window.GLGetDrawableSize()
					pipeline.SurfaceChanged(int(w), int(h))
				}
			}
		}

		select {
		case sig := <-s.signals:
			fmt.Printf("\n\nReceived %s, shutting down...\n", sig)
			running = false
		case <-eos:
			fmt.Printf("\nEnd of stream. Close the window to exit.\n")
			eos = nil
		default:
		}

		err := pipeline.DrawFrame()
		switch {
		case errors.Is(err, render.ErrThrottled):
			// Back buffer was not drawn; keep the presented frame
			time.Sleep(throttledPoll)
			continue
		case errors.Is(err, render.ErrSurfaceLost):
			slog.Warn("surface lost, recreating GPU resources", "error", err)
			if err := pipeline.SurfaceCreated(); err != nil {
				return err
			}
			continue
		case err != nil:
			return err
		}
		window.GLSwap()

		if !vsync {
			time.Sleep(unsyncedFrameTime)
		}
	}

	return nil
}

// glAttributes describe the OpenGL ES 2.0 double-buffered context.
var glAttributes = []struct {
	name  string
	attr  sdl.GLattr
	value int
}{
	{"profile_mask", sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_ES},
	{"major_version", sdl.GL_CONTEXT_MAJOR_VERSION, 2},
	{"minor_version", sdl.GL_CONTEXT_MINOR_VERSION, 0},
	{"double_buffer", sdl.GL_DOUBLEBUFFER, 1},
}

// requestGLAttributes applies glAttributes through set and returns the
// names that failed. SDL may still create a context without them, so
// failures are only logged.
func requestGLAttributes(set func(attr sdl.GLattr, value int) error) []string {
	var failed []string
	for _, a := range glAttributes {
		if err := set(a.attr, a.value); err != nil {
			slog.Warn("failed to set GL attribute",
				"attribute", a.name,
				"value", a.value,
				"error", err,
			)
			failed = append(failed, a.name)
		}
	}
	return failed
}
