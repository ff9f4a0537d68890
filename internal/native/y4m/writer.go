package y4m

import (
	"bufio"
	"fmt"
	"io"

	"github.com/HenryThomas9587/media-demo/internal/frame"
)

// Writer produces a 4:2:0 Y4M stream from I420 pictures with even
// dimensions.
type Writer struct {
	w      *bufio.Writer
	header Header
	frames int
}

// NewWriter writes the stream header for width×height at rateNum/rateDen fps.
func NewWriter(w io.Writer, width, height, rateNum, rateDen int) (*Writer, error) {
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("y4m: writer needs positive even dimensions, got %dx%d", width, height)
	}

	h := Header{
		Width:      width,
		Height:     height,
		RateNum:    rateNum,
		RateDen:    rateDen,
		Colorspace: C420jpeg,
		Params:     []string{"Ip", "A1:1"},
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\n", h); err != nil {
		return nil, fmt.Errorf("y4m: write header: %w", err)
	}
	return &Writer{w: bw, header: h}, nil
}

// WriteFrame appends one picture. buf must hold at least
// frame.BufferSize(width, height) bytes.
func (w *Writer) WriteFrame(buf []byte) error {
	size := frame.BufferSize(w.header.Width, w.header.Height)
	if len(buf) < size {
		return fmt.Errorf("%w: got %d bytes, need %d", frame.ErrShortBuffer, len(buf), size)
	}

	if _, err := w.w.WriteString(frameMagic + "\n"); err != nil {
		return fmt.Errorf("y4m: write frame %d: %w", w.frames, err)
	}
	if _, err := w.w.Write(buf[:size]); err != nil {
		return fmt.Errorf("y4m: write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of pictures written so far.
func (w *Writer) Frames() int {
	return w.frames
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
