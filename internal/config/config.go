package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete yuvplay configuration
type Config struct {
	Source         SourceConfig   `yaml:"source"`
	Decoder        DecoderConfig  `yaml:"decoder"`
	Renderer       RendererConfig `yaml:"renderer"`
	Window         WindowConfig   `yaml:"window"`
	Log            LogConfig      `yaml:"log"`
	StatsIntervalS int            `yaml:"stats_interval_s"` // Periodic stats log interval in seconds (default: 5)
	Snapshot       SnapshotConfig `yaml:"snapshot"`
}

// SourceConfig selects the video to play
type SourceConfig struct {
	Path    string `yaml:"path"`    // File path or URI
	Backend string `yaml:"backend"` // auto, gstreamer, y4m
}

// DecoderConfig contains decode loop settings
type DecoderConfig struct {
	PaceToFrameRate *bool `yaml:"pace_to_frame_rate"` // Deliver at the source frame rate (default: true)
	DecodeTimeoutMS int   `yaml:"decode_timeout_ms"`  // Bound on one native decode call (default: 50)
	PrerollTimeoutS int   `yaml:"preroll_timeout_s"`  // GStreamer caps probe timeout (default: 10)
	PoolSize        int   `yaml:"pool_size"`          // Idle copy buffers kept for reuse (default: 4)
	CadenceWindow   int   `yaml:"cadence_window"`     // Frames covered by cadence stats (default: 120)
}

// RendererConfig contains texture pipeline settings
type RendererConfig struct {
	MinDrawIntervalMS int       `yaml:"min_draw_interval_ms"` // Skip draws closer than this (default: 0, disabled)
	ClearColor        []float32 `yaml:"clear_color"`          // RGBA in [0,1] (default: opaque black)
}

// WindowConfig contains SDL window settings
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	VSync  *bool  `yaml:"vsync"` // Default: true
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SnapshotConfig controls the framebuffer snapshot written on exit
type SnapshotConfig struct {
	Path  string `yaml:"path"`  // .png or .jpg; empty disables
	Width int    `yaml:"width"` // Scale to this width keeping aspect (0: native)
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied
func Default() *Config {
	var cfg Config
	if err := Validate(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return &cfg
}

// DecodeTimeout returns decoder.decode_timeout_ms as a duration
func (c *Config) DecodeTimeout() time.Duration {
	return time.Duration(c.Decoder.DecodeTimeoutMS) * time.Millisecond
}

// PrerollTimeout returns decoder.preroll_timeout_s as a duration
func (c *Config) PrerollTimeout() time.Duration {
	return time.Duration(c.Decoder.PrerollTimeoutS) * time.Second
}

// MinDrawInterval returns renderer.min_draw_interval_ms as a duration
func (c *Config) MinDrawInterval() time.Duration {
	return time.Duration(c.Renderer.MinDrawIntervalMS) * time.Millisecond
}

// StatsInterval returns stats_interval_s as a duration
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalS) * time.Second
}

// SlogLevel maps log.level to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
