package videoplayer

import (
	"context"
	"log/slog"
	"sync"
)

// Renderer is the render-side half of a playback session. render.Pipeline
// implements it.
//
// SetVideoDimensions and SetFrame are called from decoder goroutines and must
// not block on the render thread.
type Renderer interface {
	SetVideoDimensions(width, height int)
	SetFrame(frame *VideoFrame)
	Release()
}

// ControllerOption configures a PlaybackController.
type ControllerOption func(*PlaybackController)

// WithErrorHandler receives runtime decode errors (*RuntimeDecodeError).
// Playback state is not changed; the handler may call Stop.
func WithErrorHandler(fn func(err error)) ControllerOption {
	return func(c *PlaybackController) {
		c.onError = fn
	}
}

// WithEndOfStreamHandler is called once the source is exhausted.
func WithEndOfStreamHandler(fn func()) ControllerOption {
	return func(c *PlaybackController) {
		c.onEOS = fn
	}
}

// PlaybackController sequences a DecoderEngine and a Renderer and wires
// decoder events to the renderer. It holds no decode or render logic.
type PlaybackController struct {
	cfg      DecoderConfig
	renderer Renderer
	onError  func(err error)
	onEOS    func()

	mu       sync.Mutex
	engine   *DecoderEngine
	path     string
	released bool

	// newEngine is replaced in tests
	newEngine func(cfg DecoderConfig, l Listener) (*DecoderEngine, error)
}

// NewPlaybackController creates a controller. The config is validated up
// front so Start only fails on the source itself.
func NewPlaybackController(cfg DecoderConfig, renderer Renderer, opts ...ControllerOption) (*PlaybackController, error) {
	if renderer == nil {
		return nil, errNilRenderer
	}
	if _, err := cfg.withDefaults(); err != nil {
		return nil, err
	}

	c := &PlaybackController{
		cfg:       cfg,
		renderer:  renderer,
		newEngine: NewDecoderEngine,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes the decoder for path and begins decoding.
//
// Calling Start again with the same path resumes a stopped session. A
// different path releases the current session and opens a new one.
func (c *PlaybackController) Start(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrReleased
	}

	if c.engine != nil && c.path == path {
		c.engine.Start()
		return nil
	}

	if c.engine != nil {
		slog.Info("controller: switching source", "from", c.path, "to", path)
		c.engine.Release()
		c.engine = nil
	}

	engine, err := c.newEngine(c.cfg, &rendererListener{c: c})
	if err != nil {
		return err
	}
	if _, err := engine.Init(path); err != nil {
		engine.Release()
		return err
	}

	c.engine = engine
	c.path = path
	engine.Start()
	return nil
}

// Stop halts decoding. The renderer keeps showing the last frame.
func (c *PlaybackController) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine != nil {
		c.engine.Stop()
	}
}

// Release tears down the decoder and the renderer's GPU resources.
// Idempotent.
func (c *PlaybackController) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	if c.engine != nil {
		c.engine.Release()
	}
	c.renderer.Release()
	slog.Info("controller: released", "path", c.path)
}

// Metadata returns the current session's metadata (zero before Start).
func (c *PlaybackController) Metadata() Metadata {
	if e := c.currentEngine(); e != nil {
		return e.Metadata()
	}
	return Metadata{}
}

// Stats returns the current session's decoder statistics.
func (c *PlaybackController) Stats() DecoderStats {
	if e := c.currentEngine(); e != nil {
		return e.Stats()
	}
	return DecoderStats{}
}

// Wait blocks until the current session's decode goroutine exits.
func (c *PlaybackController) Wait(ctx context.Context) error {
	if e := c.currentEngine(); e != nil {
		return e.Wait(ctx)
	}
	return nil
}

func (c *PlaybackController) currentEngine() *DecoderEngine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// rendererListener routes decoder events to the renderer and caller hooks.
type rendererListener struct {
	c *PlaybackController
}

func (l *rendererListener) OnVideoMetadataReady(width, height int, frameRate float64) {
	l.c.renderer.SetVideoDimensions(width, height)
}

func (l *rendererListener) OnFrameDecoded(frame *VideoFrame, width, height int) {
	l.c.renderer.SetFrame(frame)
}

func (l *rendererListener) OnError(err error) {
	if l.c.onError != nil {
		l.c.onError(err)
	}
}

func (l *rendererListener) OnEndOfStream() {
	if l.c.onEOS != nil {
		l.c.onEOS()
	}
}
