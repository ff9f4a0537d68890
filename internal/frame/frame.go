// Package frame defines the decoded video frame handed from the decoder to
// the renderer, and the buffer pool its pixel storage comes from.
package frame

import (
	"errors"
	"fmt"
	"time"
)

// PixelFormat identifies the memory layout of a VideoFrame.
type PixelFormat int

const (
	// FormatI420 is 8-bit YUV420 planar: a full-resolution Y plane followed by
	// quarter-resolution U and V planes.
	FormatI420 PixelFormat = iota
)

// String returns the conventional fourcc-ish name of the format.
func (f PixelFormat) String() string {
	switch f {
	case FormatI420:
		return "I420"
	default:
		return "unknown"
	}
}

// ErrShortBuffer is returned when a source buffer is smaller than the I420
// layout of the requested dimensions.
var ErrShortBuffer = errors.New("frame: buffer shorter than I420 layout")

// PlaneSizes returns the byte size of the luma plane and of each chroma plane
// for an I420 image of the given dimensions.
//
// Chroma dimensions use truncating division; odd widths or heights lose the
// last chroma column/row.
func PlaneSizes(width, height int) (ySize, cSize int) {
	return width * height, (width / 2) * (height / 2)
}

// BufferSize returns the contiguous I420 size for width×height.
// For even dimensions this equals width*height*3/2.
func BufferSize(width, height int) int {
	y, c := PlaneSizes(width, height)
	return y + 2*c
}

// VideoFrame is one decoded picture.
//
// OWNERSHIP CONTRACT:
//   - Exactly one stage owns a frame at a time (decoder → mailbox → renderer).
//   - The owner MUST NOT mutate Y/U/V; the next owner MUST NOT retain the
//     frame after calling Release.
//   - Release returns the backing buffer to its Pool; the frame is unusable
//     afterwards.
//
// Y, U and V are views into a single contiguous buffer laid out as I420.
type VideoFrame struct {
	// Width of the luma plane in pixels
	Width int
	// Height of the luma plane in pixels
	Height int
	// Format is always FormatI420
	Format PixelFormat

	// Y is the luma plane (Width*Height bytes)
	Y []byte
	// U is the Cb plane ((Width/2)*(Height/2) bytes)
	U []byte
	// V is the Cr plane ((Width/2)*(Height/2) bytes)
	V []byte

	// Index is the monotonically increasing presentation index (0-based)
	Index uint64
	// PTS is the presentation timestamp derived from Index and frame rate
	PTS time.Duration
	// DecodedAt is the wall-clock time the frame was copied out of the decoder
	DecodedAt time.Time
	// TraceID identifies the frame in logs across goroutines
	TraceID string

	buf  []byte
	pool *Pool
}

// Size returns the total number of pixel bytes held by the frame.
func (f *VideoFrame) Size() int {
	return len(f.Y) + len(f.U) + len(f.V)
}

// Bytes returns the contiguous I420 storage (Y, then U, then V).
func (f *VideoFrame) Bytes() []byte {
	return f.buf
}

// String implements fmt.Stringer for log output.
func (f *VideoFrame) String() string {
	return fmt.Sprintf("frame#%d %dx%d %s pts=%s", f.Index, f.Width, f.Height, f.Format, f.PTS)
}

// Release hands the backing buffer back to the pool. Safe to call on nil and
// more than once; only the first call has an effect.
func (f *VideoFrame) Release() {
	if f == nil || f.buf == nil {
		return
	}
	if f.pool != nil {
		f.pool.put(f.buf)
	}
	f.buf = nil
	f.pool = nil
	f.Y, f.U, f.V = nil, nil, nil
}

// carve points the plane views at buf.
func (f *VideoFrame) carve(buf []byte) {
	ySize, cSize := PlaneSizes(f.Width, f.Height)
	f.buf = buf
	f.Y = buf[:ySize:ySize]
	f.U = buf[ySize : ySize+cSize : ySize+cSize]
	f.V = buf[ySize+cSize : ySize+2*cSize : ySize+2*cSize]
}
