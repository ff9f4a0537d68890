package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	videoplayer "github.com/HenryThomas9587/media-demo"
	"github.com/HenryThomas9587/media-demo/internal/config"
	"github.com/HenryThomas9587/media-demo/internal/render"
	"github.com/HenryThomas9587/media-demo/internal/render/soft"
)

// headlessRefresh is the simulated display refresh rate.
const headlessRefresh = 60

// runHeadless renders into a software framebuffer until end of stream or a
// signal, then writes the snapshot if one was requested.
func runHeadless(cfg *config.Config, decCfg videoplayer.DecoderConfig, renderCfg render.Config) error {
	device := soft.New()
	pipeline := render.NewPipeline(device, renderCfg)
	if err := pipeline.SurfaceCreated(); err != nil {
		return err
	}

	s, err := startSession(cfg, decCfg, pipeline)
	if err != nil {
		pipeline.Release()
		return err
	}
	defer s.close()

	fmt.Printf("Rendering headless. Press Ctrl+C to stop.\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	ticker := time.NewTicker(time.Second / headlessRefresh)
	defer ticker.Stop()

	for running := true; running; {
		select {
		case sig := <-s.signals:
			fmt.Printf("\n\nReceived %s, shutting down...\n", sig)
			running = false
		case <-s.eos:
			slog.Info("end of stream reached")
			running = false
		case <-ticker.C:
		}

		// One more draw after end of stream picks up the final frame
		if err := pipeline.DrawFrame(); err != nil && !errors.Is(err, render.ErrThrottled) {
			return err
		}
	}

	if cfg.Snapshot.Path == "" {
		return nil
	}

	img := device.Snapshot()
	if img == nil {
		return fmt.Errorf("snapshot: nothing was rendered")
	}
	md := s.controller.Metadata()
	caption := fmt.Sprintf("%dx%d %.2ffps frames=%d", md.Width, md.Height, md.FrameRate, s.controller.Stats().FramesDecoded)
	if err := saveSnapshot(cfg.Snapshot.Path, img, cfg.Snapshot.Width, caption); err != nil {
		return err
	}
	slog.Info("snapshot written", "path", cfg.Snapshot.Path)
	return nil
}
