package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	videoplayer "github.com/HenryThomas9587/media-demo"
	"github.com/HenryThomas9587/media-demo/internal/config"
	"github.com/HenryThomas9587/media-demo/internal/native/gstreamer"
	"github.com/HenryThomas9587/media-demo/internal/render"
)

// Version information
const version = "v0.1.0"

func init() {
	// SDL and GL calls must stay on the main OS thread
	runtime.LockOSThread()
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	input := flag.String("i", "", "Video file path or URI (overrides source.path)")
	backend := flag.String("backend", "", "Decoder backend: auto, gstreamer, y4m (overrides source.backend)")
	noPace := flag.Bool("no-pace", false, "Deliver frames as fast as they decode")
	headless := flag.Bool("headless", false, "Render in software without a window")
	snapshot := flag.String("snapshot", "", "Write the last rendered frame to this .png/.jpg on exit (headless only)")
	snapshotWidth := flag.Int("snapshot-width", 0, "Scale the snapshot to this width (0 = native)")
	testSrc := flag.String("testsrc", "", "Write a color-bar Y4M clip to this path and exit")
	testSrcSize := flag.String("testsrc-size", "320x240", "Test clip size WxH (even)")
	testSrcFrames := flag.Int("testsrc-frames", 90, "Test clip length in frames")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("yuvplay %s\n", version)
		os.Exit(0)
	}

	// Test source generation needs nothing else
	if *testSrc != "" {
		var w, h int
		if _, err := fmt.Sscanf(*testSrcSize, "%dx%d", &w, &h); err != nil {
			log.Fatalf("Invalid -testsrc-size %q (want WxH): %v", *testSrcSize, err)
		}
		if err := writeTestSource(*testSrc, w, h, *testSrcFrames); err != nil {
			log.Fatalf("Failed to write test source: %v", err)
		}
		fmt.Printf("Wrote %d frames (%dx%d) to %s\n", *testSrcFrames, w, h, *testSrc)
		return
	}

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Flags override the file
	if *input != "" {
		cfg.Source.Path = *input
	}
	if *backend != "" {
		cfg.Source.Backend = *backend
	}
	if *noPace {
		pace := false
		cfg.Decoder.PaceToFrameRate = &pace
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *snapshot != "" {
		cfg.Snapshot.Path = *snapshot
	}
	if *snapshotWidth > 0 {
		cfg.Snapshot.Width = *snapshotWidth
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Validate required input
	if cfg.Source.Path == "" {
		fmt.Fprintf(os.Stderr, "Error: -i flag or source.path is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  yuvplay -i /videos/clip.mp4\n")
		fmt.Fprintf(os.Stderr, "  yuvplay -testsrc bars.y4m && yuvplay -i bars.y4m -headless -snapshot last.png\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Set up logging
	setupLogging(cfg)

	// Fail fast on a missing GStreamer only when it is the one backend that
	// can open the source
	if usesGStreamer(cfg) {
		if err := gstreamer.CheckAvailable(); err != nil {
			log.Fatalf("GStreamer not available: %v", err)
		}
	}
	gstreamer.SetPrerollTimeout(cfg.PrerollTimeout())

	decCfg := videoplayer.DecoderConfig{
		Backend:       cfg.Source.Backend,
		DisablePacing: !*cfg.Decoder.PaceToFrameRate,
		DecodeTimeout: cfg.DecodeTimeout(),
		PoolSize:      cfg.Decoder.PoolSize,
		CadenceWindow: cfg.Decoder.CadenceWindow,
	}
	renderCfg := render.Config{
		MinDrawInterval: cfg.MinDrawInterval(),
		ClearColor:      [4]float32(cfg.Renderer.ClearColor),
	}

	printBanner(cfg, *headless)

	var err error
	if *headless {
		err = runHeadless(cfg, decCfg, renderCfg)
	} else {
		if cfg.Snapshot.Path != "" {
			slog.Warn("snapshot is only written in headless mode", "path", cfg.Snapshot.Path)
		}
		err = runWindow(cfg, decCfg, renderCfg)
	}
	if err != nil {
		slog.Error("playback failed", "error", err)
		os.Exit(1)
	}

	slog.Info("yuvplay finished")
}

func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func usesGStreamer(cfg *config.Config) bool {
	switch cfg.Source.Backend {
	case gstreamer.BackendName:
		return true
	case "auto":
		return !strings.EqualFold(filepath.Ext(cfg.Source.Path), ".y4m")
	default:
		return false
	}
}

func printBanner(cfg *config.Config, headless bool) {
	mode := "window (OpenGL ES 2.0)"
	if headless {
		mode = "headless (software)"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║                yuvplay - YUV420 video player              ║\n")
	fmt.Printf("║                      Version %s                       ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Source:        %s\n", cfg.Source.Path)
	fmt.Printf("  Backend:       %s\n", cfg.Source.Backend)
	fmt.Printf("  Mode:          %s\n", mode)
	fmt.Printf("  Pacing:        %v\n", *cfg.Decoder.PaceToFrameRate)
	if cfg.Renderer.MinDrawIntervalMS > 0 {
		fmt.Printf("  Draw Throttle: %d ms\n", cfg.Renderer.MinDrawIntervalMS)
	}
	if headless && cfg.Snapshot.Path != "" {
		fmt.Printf("  Snapshot:      %s\n", cfg.Snapshot.Path)
	}
	fmt.Printf("\n")
}
