package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	backends    = []string{"auto", "gstreamer", "y4m"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
	snapshotExt = []string{".png", ".jpg", ".jpeg"}
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// Source
	if cfg.Source.Backend == "" {
		cfg.Source.Backend = "auto"
	}
	if !oneOf(cfg.Source.Backend, backends) {
		return fmt.Errorf("source.backend must be one of %v, got %q", backends, cfg.Source.Backend)
	}

	// Decoder
	if cfg.Decoder.PaceToFrameRate == nil {
		cfg.Decoder.PaceToFrameRate = boolPtr(true)
	}
	if cfg.Decoder.DecodeTimeoutMS < 0 {
		return fmt.Errorf("decoder.decode_timeout_ms must be >= 0")
	}
	if cfg.Decoder.DecodeTimeoutMS == 0 {
		cfg.Decoder.DecodeTimeoutMS = 50
	}
	if cfg.Decoder.PrerollTimeoutS < 0 {
		return fmt.Errorf("decoder.preroll_timeout_s must be >= 0")
	}
	if cfg.Decoder.PrerollTimeoutS == 0 {
		cfg.Decoder.PrerollTimeoutS = 10
	}
	if cfg.Decoder.PoolSize < 0 {
		return fmt.Errorf("decoder.pool_size must be >= 0")
	}
	if cfg.Decoder.PoolSize == 0 {
		cfg.Decoder.PoolSize = 4
	}
	if cfg.Decoder.CadenceWindow < 0 {
		return fmt.Errorf("decoder.cadence_window must be >= 0")
	}
	if cfg.Decoder.CadenceWindow == 0 {
		cfg.Decoder.CadenceWindow = 120
	}

	// Renderer
	if cfg.Renderer.MinDrawIntervalMS < 0 {
		return fmt.Errorf("renderer.min_draw_interval_ms must be >= 0")
	}
	if cfg.Renderer.ClearColor == nil {
		cfg.Renderer.ClearColor = []float32{0, 0, 0, 1}
	}
	if err := validateColor(cfg.Renderer.ClearColor); err != nil {
		return fmt.Errorf("renderer.clear_color: %w", err)
	}

	// Window
	if cfg.Window.Title == "" {
		cfg.Window.Title = "yuvplay"
	}
	if cfg.Window.Width < 0 || cfg.Window.Height < 0 {
		return fmt.Errorf("window size must be >= 0, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Window.Width == 0 {
		cfg.Window.Width = 1280
	}
	if cfg.Window.Height == 0 {
		cfg.Window.Height = 720
	}
	if cfg.Window.VSync == nil {
		cfg.Window.VSync = boolPtr(true)
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !oneOf(cfg.Log.Level, logLevels) {
		return fmt.Errorf("log.level must be one of %v, got %q", logLevels, cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if !oneOf(cfg.Log.Format, logFormats) {
		return fmt.Errorf("log.format must be one of %v, got %q", logFormats, cfg.Log.Format)
	}

	if cfg.StatsIntervalS < 0 {
		return fmt.Errorf("stats_interval_s must be >= 0")
	}
	if cfg.StatsIntervalS == 0 {
		cfg.StatsIntervalS = 5
	}

	// Snapshot
	if err := ValidateSnapshot(cfg.Snapshot); err != nil {
		return fmt.Errorf("snapshot validation failed: %w", err)
	}

	return nil
}

// ValidateSnapshot checks the snapshot path extension and width
func ValidateSnapshot(s SnapshotConfig) error {
	if s.Width < 0 {
		return fmt.Errorf("width must be >= 0, got %d", s.Width)
	}
	if s.Path == "" {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(s.Path))
	if !oneOf(ext, snapshotExt) {
		return fmt.Errorf("path %q: unsupported image type %q (must be one of %v)", s.Path, ext, snapshotExt)
	}
	return nil
}

func validateColor(c []float32) error {
	if len(c) != 4 {
		return fmt.Errorf("must have 4 components [r,g,b,a], got %d", len(c))
	}
	for i, v := range c {
		if v < 0 || v > 1 {
			return fmt.Errorf("component %d out of range [0,1]: %v", i, v)
		}
	}
	return nil
}

func oneOf(s string, allowed []string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool {
	return &b
}
