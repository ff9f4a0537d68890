// Package render turns decoded I420 frames into pixels on a GPU surface.
//
// The decoder side calls SetVideoDimensions and SetFrame from any goroutine;
// both return immediately. The render thread calls DrawFrame once per display
// refresh and the surface lifecycle methods when the host reports them.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/mailbox"
)

// Config configures a Pipeline. The zero value is usable.
type Config struct {
	// MinDrawInterval skips DrawFrame calls closer together than this
	// (0 disables throttling)
	MinDrawInterval time.Duration
	// ClearColor is the RGBA color behind the video (zero: opaque black)
	ClearColor [4]float32
}

// Stats contains pipeline statistics
type Stats struct {
	// Draws counts completed DrawFrame calls
	Draws uint64
	// Uploads counts frames uploaded to textures
	Uploads uint64
	// Redraws counts draws that reused the previously uploaded frame
	Redraws uint64
	// Reallocations counts texture set (re)creations
	Reallocations uint64
	// Throttled counts draws skipped by MinDrawInterval
	Throttled uint64
	// SurfaceLosses counts surfaces that went away
	SurfaceLosses uint64
	// FramesDropped counts frames replaced in the mailbox before display
	FramesDropped uint64
}

// Pipeline owns the plane textures and the latest-frame mailbox.
type Pipeline struct {
	device  Device
	cfg     Config
	mailbox *mailbox.Mailbox[*frame.VideoFrame]
	now     func() time.Time

	dimsMu   sync.Mutex // Protects pendingW, pendingH
	pendingW int
	pendingH int
	released atomic.Bool

	// Render thread only
	surface    bool
	texW, texH int
	current    *frame.VideoFrame // Last uploaded frame, redrawn when nothing new arrives
	lastDraw   time.Time

	draws         uint64 // Atomic
	uploads       uint64 // Atomic
	redraws       uint64 // Atomic
	reallocations uint64 // Atomic
	throttled     uint64 // Atomic
	surfaceLosses uint64 // Atomic
}

// NewPipeline creates a pipeline drawing through device.
//
// Panics if device is nil.
func NewPipeline(device Device, cfg Config) *Pipeline {
	if device == nil {
		panic("render: nil device")
	}
	if cfg.ClearColor == [4]float32{} {
		cfg.ClearColor = [4]float32{0, 0, 0, 1}
	}

	return &Pipeline{
		device: device,
		cfg:    cfg,
		mailbox: mailbox.New(mailbox.WithDiscard(func(f *frame.VideoFrame) {
			f.Release()
		})),
		now: time.Now,
	}
}

// SetVideoDimensions announces the size of upcoming frames so textures can
// be allocated before the first one arrives. Safe from any goroutine.
func (p *Pipeline) SetVideoDimensions(width, height int) {
	p.dimsMu.Lock()
	p.pendingW, p.pendingH = width, height
	p.dimsMu.Unlock()

	slog.Debug("render: video dimensions announced", "width", width, "height", height)
}

// SetFrame hands f to the render thread, replacing (and releasing) any frame
// not drawn yet. Takes ownership of f. Safe from any goroutine.
func (p *Pipeline) SetFrame(f *frame.VideoFrame) {
	if f == nil {
		return
	}
	p.mailbox.Publish(f)
}

// SurfaceCreated prepares GPU resources for a new surface. Textures are
// re-created, and the last frame re-uploaded, on the next DrawFrame.
func (p *Pipeline) SurfaceCreated() error {
	if p.released.Load() {
		return errReleased
	}

	if err := p.device.Setup(); err != nil {
		return fmt.Errorf("render: surface setup: %w", err)
	}
	p.surface = true
	p.texW, p.texH = 0, 0

	slog.Info("render: surface created")
	return nil
}

// SurfaceChanged updates the viewport to the new drawable size.
func (p *Pipeline) SurfaceChanged(width, height int) {
	if !p.surface {
		return
	}
	p.device.Viewport(width, height)
	slog.Debug("render: surface changed", "width", width, "height", height)
}

// SurfaceLost forgets every GPU object. Drawing resumes after the next
// SurfaceCreated.
func (p *Pipeline) SurfaceLost() {
	if !p.surface {
		return
	}
	p.surface = false
	p.texW, p.texH = 0, 0
	p.device.Teardown()
	atomic.AddUint64(&p.surfaceLosses, 1)

	slog.Warn("render: surface lost")
}

// DrawFrame uploads the newest pending frame, if any, and draws. With
// nothing new the previous frame is drawn again. Never blocks on the
// decoder.
//
// Returns a *SurfaceLostError when there is no surface to draw on and
// ErrThrottled when the draw was skipped.
func (p *Pipeline) DrawFrame() error {
	if p.released.Load() {
		return errReleased
	}
	if !p.surface {
		return &SurfaceLostError{Op: "draw"}
	}

	now := p.now()
	if p.cfg.MinDrawInterval > 0 && !p.lastDraw.IsZero() && now.Sub(p.lastDraw) < p.cfg.MinDrawInterval {
		atomic.AddUint64(&p.throttled, 1)
		return ErrThrottled
	}
	p.lastDraw = now

	if err := p.draw(); err != nil {
		if errors.Is(err, ErrSurfaceLost) {
			p.SurfaceLost()
		}
		return err
	}

	atomic.AddUint64(&p.draws, 1)
	return nil
}

func (p *Pipeline) draw() error {
	if err := p.ensureTextures(); err != nil {
		return err
	}

	if f, ok := p.mailbox.ConsumeLatest(); ok {
		if err := p.upload(f); err != nil {
			f.Release()
			return err
		}
		p.current.Release()
		p.current = f
		atomic.AddUint64(&p.uploads, 1)
	} else if p.current != nil {
		atomic.AddUint64(&p.redraws, 1)
	}

	if err := p.device.Clear(p.cfg.ClearColor); err != nil {
		return err
	}
	if p.current == nil {
		return nil
	}
	return p.device.DrawQuad()
}

// ensureTextures allocates textures for announced dimensions and restores
// the last frame after a surface change.
func (p *Pipeline) ensureTextures() error {
	p.dimsMu.Lock()
	w, h := p.pendingW, p.pendingH
	p.dimsMu.Unlock()

	if p.current != nil && p.texW == 0 {
		// New surface: bring back what was on screen
		return p.upload(p.current)
	}
	if w > 0 && h > 0 && (w != p.texW || h != p.texH) && p.current == nil {
		return p.allocate(w, h)
	}
	return nil
}

// upload reallocates the texture set on a size change, then copies the
// three planes. After a failed upload the texture set holds no complete
// picture, so it is marked empty and the next draw uploads current again.
func (p *Pipeline) upload(f *frame.VideoFrame) error {
	if f.Width != p.texW || f.Height != p.texH {
		if err := p.allocate(f.Width, f.Height); err != nil {
			return err
		}
	}

	if err := p.uploadPlanes(f); err != nil {
		p.texW, p.texH = 0, 0
		return err
	}
	return nil
}

func (p *Pipeline) uploadPlanes(f *frame.VideoFrame) error {
	cw, ch := f.Width/2, f.Height/2
	if err := p.device.Upload(PlaneY, f.Width, f.Height, f.Y); err != nil {
		return fmt.Errorf("render: upload %s: %w", PlaneY, err)
	}
	if err := p.device.Upload(PlaneU, cw, ch, f.U); err != nil {
		return fmt.Errorf("render: upload %s: %w", PlaneU, err)
	}
	if err := p.device.Upload(PlaneV, cw, ch, f.V); err != nil {
		return fmt.Errorf("render: upload %s: %w", PlaneV, err)
	}
	return nil
}

func (p *Pipeline) allocate(width, height int) error {
	if err := p.device.AllocateTextures(width, height); err != nil {
		return fmt.Errorf("render: allocate %dx%d textures: %w", width, height, err)
	}

	slog.Info("render: textures allocated",
		"width", width,
		"height", height,
		"previous", fmt.Sprintf("%dx%d", p.texW, p.texH),
	)
	p.texW, p.texH = width, height
	atomic.AddUint64(&p.reallocations, 1)
	return nil
}

// Release drops pending and displayed frames and deletes GPU objects. Call
// from the render thread. Idempotent.
func (p *Pipeline) Release() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}

	p.mailbox.Close()
	p.current.Release()
	p.current = nil

	if p.surface {
		p.device.Teardown()
		p.surface = false
	}

	slog.Info("render: pipeline released",
		"draws", atomic.LoadUint64(&p.draws),
		"uploads", atomic.LoadUint64(&p.uploads),
	)
}

// Stats returns pipeline statistics. Safe from any goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Draws:         atomic.LoadUint64(&p.draws),
		Uploads:       atomic.LoadUint64(&p.uploads),
		Redraws:       atomic.LoadUint64(&p.redraws),
		Reallocations: atomic.LoadUint64(&p.reallocations),
		Throttled:     atomic.LoadUint64(&p.throttled),
		SurfaceLosses: atomic.LoadUint64(&p.surfaceLosses),
		FramesDropped: p.mailbox.Stats().Dropped,
	}
}

var errReleased = errors.New("render: pipeline released")
