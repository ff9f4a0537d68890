package render

import (
	"errors"
	"fmt"
)

// Plane identifies one of the three I420 planes.
type Plane int

const (
	PlaneY Plane = iota
	PlaneU
	PlaneV
)

// String returns the plane name for logs
func (p Plane) String() string {
	switch p {
	case PlaneY:
		return "Y"
	case PlaneU:
		return "U"
	case PlaneV:
		return "V"
	default:
		return fmt.Sprintf("plane(%d)", int(p))
	}
}

// Device is the GPU side of the texture pipeline.
//
// Every method is called from the render thread. Any method may return a
// *SurfaceLostError, after which the pipeline stops drawing until the host
// reports a new surface.
type Device interface {
	// Setup compiles the shader program and uploads the quad for a new surface.
	Setup() error
	// Viewport sets the drawable size in pixels.
	Viewport(width, height int)
	// AllocateTextures (re)creates the plane textures: width x height for Y
	// and (width/2) x (height/2) for U and V.
	AllocateTextures(width, height int) error
	// Upload copies one tightly packed plane into its texture.
	Upload(plane Plane, width, height int, pixels []byte) error
	// Clear fills the drawable with an RGBA color.
	Clear(color [4]float32) error
	// DrawQuad runs the YUV shader over a full-screen quad.
	DrawQuad() error
	// Teardown deletes every GPU object. Safe after surface loss.
	Teardown()
}

// ErrThrottled is returned by DrawFrame when the draw was skipped for
// MinDrawInterval. Nothing was drawn, so the host must not present.
var ErrThrottled = errors.New("render: draw throttled")

// ErrSurfaceLost matches every *SurfaceLostError with errors.Is.
var ErrSurfaceLost = errors.New("render: surface lost")

// SurfaceLostError means the drawing surface (and every GPU object created
// on it) is gone. The pipeline re-creates its resources on the next
// SurfaceCreated.
type SurfaceLostError struct {
	// Op is the operation that found the surface missing
	Op string
	// Err is the underlying cause, if any
	Err error
}

func (e *SurfaceLostError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("render: surface lost during %s", e.Op)
	}
	return fmt.Sprintf("render: surface lost during %s: %v", e.Op, e.Err)
}

func (e *SurfaceLostError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSurfaceLost.
func (e *SurfaceLostError) Is(target error) bool {
	return target == ErrSurfaceLost
}
