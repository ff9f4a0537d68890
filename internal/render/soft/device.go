// Package soft is a CPU implementation of render.Device drawing into an
// image.RGBA. It backs headless playback, snapshots and tests.
package soft

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/HenryThomas9587/media-demo/internal/render"
)

// Device samples the plane textures with nearest-neighbour filtering and
// converts with render.ConvertPixel.
type Device struct {
	mu         sync.Mutex // Protects everything below; Snapshot runs off the render thread
	ready      bool
	lost       bool
	viewW      int
	viewH      int
	texW, texH int
	planes     [3][]byte
	fb         *image.RGBA

	draws   int
	uploads [3]int
}

// New creates a device. A zero viewport follows the texture size.
func New() *Device {
	return &Device{}
}

// Setup implements render.Device.
func (d *Device) Setup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ready = true
	d.lost = false
	return nil
}

// Viewport implements render.Device.
func (d *Device) Viewport(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.viewW, d.viewH = width, height
	d.fb = nil
}

// AllocateTextures implements render.Device.
func (d *Device) AllocateTextures(width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkLocked("allocate"); err != nil {
		return err
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("soft: invalid texture size %dx%d", width, height)
	}

	cw, ch := width/2, height/2
	d.texW, d.texH = width, height
	d.planes = [3][]byte{
		make([]byte, width*height),
		make([]byte, cw*ch),
		make([]byte, cw*ch),
	}
	if d.viewW == 0 {
		d.fb = nil
	}
	return nil
}

// Upload implements render.Device.
func (d *Device) Upload(plane render.Plane, width, height int, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkLocked("upload"); err != nil {
		return err
	}
	if plane < render.PlaneY || plane > render.PlaneV {
		return fmt.Errorf("soft: unknown plane %s", plane)
	}

	dst := d.planes[plane]
	if width*height != len(dst) {
		return fmt.Errorf("soft: %s upload %dx%d does not match texture (%d bytes)", plane, width, height, len(dst))
	}
	if len(pixels) < len(dst) {
		return fmt.Errorf("soft: %s upload: got %d bytes, need %d", plane, len(pixels), len(dst))
	}

	copy(dst, pixels)
	d.uploads[plane]++
	return nil
}

// Clear implements render.Device.
func (d *Device) Clear(c [4]float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkLocked("clear"); err != nil {
		return err
	}

	fb := d.framebufferLocked()
	if fb == nil {
		return nil
	}

	fill := color.RGBA{R: toByte(c[0]), G: toByte(c[1]), B: toByte(c[2]), A: toByte(c[3])}
	for i := 0; i < len(fb.Pix); i += 4 {
		fb.Pix[i], fb.Pix[i+1], fb.Pix[i+2], fb.Pix[i+3] = fill.R, fill.G, fill.B, fill.A
	}
	return nil
}

// DrawQuad implements render.Device.
func (d *Device) DrawQuad() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.checkLocked("draw"); err != nil {
		return err
	}
	if d.texW == 0 {
		return fmt.Errorf("soft: draw without textures")
	}

	fb := d.framebufferLocked()
	bounds := fb.Bounds()
	fw, fh := bounds.Dx(), bounds.Dy()
	cw, ch := d.texW/2, d.texH/2

	for y := 0; y < fh; y++ {
		sy := y * d.texH / fh
		cy := min(sy/2, ch-1)
		for x := 0; x < fw; x++ {
			sx := x * d.texW / fw
			cx := min(sx/2, cw-1)

			yv := d.planes[render.PlaneY][sy*d.texW+sx]
			uv, vv := byte(128), byte(128)
			if cw > 0 && ch > 0 {
				uv = d.planes[render.PlaneU][cy*cw+cx]
				vv = d.planes[render.PlaneV][cy*cw+cx]
			}

			r, g, b := render.ConvertPixel(yv, uv, vv)
			i := fb.PixOffset(x, y)
			fb.Pix[i], fb.Pix[i+1], fb.Pix[i+2], fb.Pix[i+3] = r, g, b, 255
		}
	}

	d.draws++
	return nil
}

// Teardown implements render.Device.
func (d *Device) Teardown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ready = false
	d.texW, d.texH = 0, 0
	d.planes = [3][]byte{}
}

// Lose simulates the host destroying the surface. Every call fails with a
// *render.SurfaceLostError until the next Setup.
func (d *Device) Lose() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
}

// Snapshot returns a copy of the framebuffer, or nil before the first draw.
func (d *Device) Snapshot() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fb == nil {
		return nil
	}
	out := image.NewRGBA(d.fb.Bounds())
	copy(out.Pix, d.fb.Pix)
	return out
}

// Stats reports how often each entry point did work.
func (d *Device) Stats() (draws int, uploads [3]int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws, d.uploads
}

func (d *Device) checkLocked(op string) error {
	if d.lost {
		return &render.SurfaceLostError{Op: op}
	}
	if !d.ready {
		return fmt.Errorf("soft: %s before setup", op)
	}
	return nil
}

// framebufferLocked sizes the framebuffer to the viewport, or to the
// textures when no viewport was set.
func (d *Device) framebufferLocked() *image.RGBA {
	if d.fb != nil {
		return d.fb
	}

	w, h := d.viewW, d.viewH
	if w == 0 || h == 0 {
		w, h = d.texW, d.texH
	}
	if w == 0 || h == 0 {
		return nil
	}

	d.fb = image.NewRGBA(image.Rect(0, 0, w, h))
	return d.fb
}

func toByte(v float32) byte {
	return byte(v*255 + 0.5)
}
