// Package y4m is a pure-Go native backend for YUV4MPEG2 files.
//
// Y4M is the uncompressed interchange format produced by ffmpeg
// (-f yuv4mpegpipe), x264 and most test-sequence archives, so it is the
// backend used by tests and by the -testsrc mode of the player. It carries
// no presentation clock: frames come out as fast as they are pulled, and
// the caller is responsible for pacing.
package y4m

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/native"
)

// BackendName is the registry name of this backend.
const BackendName = "y4m"

// ErrBadFrame is returned when a frame marker or payload is malformed.
var ErrBadFrame = errors.New("y4m: malformed frame")

func init() {
	native.Register(BackendName, func() native.Decoder { return New() }, ".y4m")
}

// Decoder reads I420 pictures from a Y4M file.
//
// The raw and out buffers are allocated once in Init and rewritten on every
// DecodeNext call. StartDecoding and StopDecoding only flip a flag, so they
// never wait for a DecodeNext in progress.
type Decoder struct {
	mu       sync.Mutex // Protects everything below except started
	file     *os.File
	reader   *bufio.Reader
	header   Header
	raw      []byte // one stored picture
	out      []byte // repacked I420 (odd dimensions and mono only)
	released bool
	index    uint64

	started atomic.Bool
}

// New creates an uninitialized decoder.
func New() *Decoder {
	return &Decoder{}
}

// Init opens path and parses the stream header.
func (d *Decoder) Init(path string) (native.Probe, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return native.Probe{}, native.ErrReleased
	}
	if d.file != nil {
		return native.Probe{}, fmt.Errorf("y4m: already initialized")
	}

	f, err := os.Open(path)
	if err != nil {
		return native.Probe{}, classified(native.CategoryResource, "init", fmt.Errorf("y4m: open: %w", err))
	}

	r := bufio.NewReaderSize(f, 64*1024)
	h, err := parseHeader(r)
	if err != nil {
		f.Close()
		if errors.Is(err, ErrBadHeader) || errors.Is(err, ErrUnsupportedColorspace) {
			return native.Probe{}, classified(native.CategoryCodec, "init", err)
		}
		return native.Probe{}, classified(native.CategoryResource, "init", err)
	}

	d.file = f
	d.reader = r
	d.header = h
	d.raw = make([]byte, h.frameSize())
	if h.Colorspace == Cmono || h.Width%2 != 0 || h.Height%2 != 0 {
		d.out = make([]byte, frame.BufferSize(h.Width, h.Height))
	}

	slog.Debug("y4m: stream opened",
		"path", path,
		"width", h.Width,
		"height", h.Height,
		"fps", h.FrameRate(),
		"colorspace", string(h.Colorspace),
	)

	return native.Probe{
		Width:     h.Width,
		Height:    h.Height,
		FrameRate: h.FrameRate(),
		SelfPaced: false,
	}, nil
}

// Header returns the parsed stream header (zero before Init).
func (d *Decoder) Header() Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.header
}

// StartDecoding lets DecodeNext produce pictures.
func (d *Decoder) StartDecoding() {
	d.started.Store(true)
}

// StopDecoding makes DecodeNext idle until the next StartDecoding.
func (d *Decoder) StopDecoding() {
	d.started.Store(false)
}

// DecodeNext reads one picture and hands it to fn.
func (d *Decoder) DecodeNext(timeout time.Duration, fn native.FrameFunc) error {
	d.mu.Lock()

	if d.released {
		d.mu.Unlock()
		return native.ErrReleased
	}
	if d.file == nil {
		d.mu.Unlock()
		return native.ErrNotInitialized
	}
	if !d.started.Load() {
		d.mu.Unlock()
		time.Sleep(timeout)
		return native.ErrNoFrame
	}
	defer d.mu.Unlock()

	line, err := readLine(d.reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, ErrBadHeader) {
			return classified(native.CategoryCodec, "decode",
				fmt.Errorf("%w: bad frame marker after frame %d", ErrBadFrame, d.index))
		}
		return classified(native.CategoryResource, "decode", fmt.Errorf("y4m: read frame %d: %w", d.index, err))
	}
	if !bytes.HasPrefix(line, []byte(frameMagic)) {
		return classified(native.CategoryCodec, "decode",
			fmt.Errorf("%w: expected %s marker at frame %d", ErrBadFrame, frameMagic, d.index))
	}

	if _, err := io.ReadFull(d.reader, d.raw); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return classified(native.CategoryCodec, "decode",
				fmt.Errorf("%w: truncated payload at frame %d", ErrBadFrame, d.index))
		}
		return classified(native.CategoryResource, "decode", fmt.Errorf("y4m: read frame %d: %w", d.index, err))
	}
	d.index++

	if d.out == nil {
		fn(d.raw, d.header.Width, d.header.Height)
		return nil
	}
	d.repack()
	fn(d.out, d.header.Width, d.header.Height)
	return nil
}

// Release closes the file. Idempotent.
func (d *Decoder) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.released {
		return
	}
	d.released = true
	d.started.Store(false)
	if d.file != nil {
		d.file.Close()
	}
	d.reader = nil
	d.raw = nil
	d.out = nil
}

// repack converts the stored picture into the truncated-chroma I420 layout
// frame.VideoFrame uses. Mono streams get neutral chroma.
func (d *Decoder) repack() {
	w, h := d.header.Width, d.header.Height
	ySize, cSize := frame.PlaneSizes(w, h)

	copy(d.out[:ySize], d.raw[:ySize])

	if d.header.Colorspace == Cmono {
		chroma := d.out[ySize:]
		for i := range chroma {
			chroma[i] = 128
		}
		return
	}

	srcStride, dstStride := (w+1)/2, w/2
	srcPlane := d.header.chromaSize()
	for plane := 0; plane < 2; plane++ {
		src := d.raw[ySize+plane*srcPlane:]
		dst := d.out[ySize+plane*cSize:]
		for row := 0; row < h/2; row++ {
			copy(dst[row*dstStride:(row+1)*dstStride], src[row*srcStride:])
		}
	}
}

func classified(category native.Category, op string, err error) error {
	return &native.Error{Category: category, Op: op, Err: err}
}

var _ native.Decoder = (*Decoder)(nil)
