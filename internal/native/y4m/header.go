package y4m

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	streamMagic = "YUV4MPEG2"
	frameMagic  = "FRAME"

	// maxHeaderLen bounds header and frame-marker lines.
	maxHeaderLen = 1024
	// maxDimension rejects absurd W/H values before allocating.
	maxDimension = 16384
)

// ErrBadHeader is returned when the stream header cannot be parsed.
var ErrBadHeader = errors.New("y4m: malformed header")

// ErrUnsupportedColorspace is returned for chroma layouts other than 4:2:0
// and mono.
var ErrUnsupportedColorspace = errors.New("y4m: unsupported colorspace")

// Colorspace is the C tag of a stream header.
type Colorspace string

// Supported colorspaces. Every 4:2:0 siting variant has the same plane layout.
const (
	C420      Colorspace = "420"
	C420jpeg  Colorspace = "420jpeg"
	C420paldv Colorspace = "420paldv"
	C420mpeg2 Colorspace = "420mpeg2"
	Cmono     Colorspace = "mono"
)

// Header describes a YUV4MPEG2 stream.
type Header struct {
	Width      int
	Height     int
	RateNum    int
	RateDen    int
	Colorspace Colorspace
	// Params holds tags this package does not interpret (I, A, X...), verbatim.
	Params []string
}

// FrameRate returns the rate in frames per second, or 0 if unknown.
func (h Header) FrameRate() float64 {
	if h.RateNum <= 0 || h.RateDen <= 0 {
		return 0
	}
	return float64(h.RateNum) / float64(h.RateDen)
}

// chromaSize returns the byte size of one stored chroma plane. Odd dimensions
// round up, as in every y4m producer.
func (h Header) chromaSize() int {
	if h.Colorspace == Cmono {
		return 0
	}
	return ((h.Width + 1) / 2) * ((h.Height + 1) / 2)
}

// frameSize returns the size of one stored picture (after the FRAME line).
func (h Header) frameSize() int {
	return h.Width*h.Height + 2*h.chromaSize()
}

// String renders the header line without the trailing newline.
func (h Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s W%d H%d", streamMagic, h.Width, h.Height)
	if h.RateNum > 0 && h.RateDen > 0 {
		fmt.Fprintf(&b, " F%d:%d", h.RateNum, h.RateDen)
	}
	if h.Colorspace != "" {
		fmt.Fprintf(&b, " C%s", h.Colorspace)
	}
	for _, p := range h.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	return b.String()
}

// readLine reads one '\n'-terminated line of at most maxHeaderLen bytes.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxHeaderLen {
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrBadHeader, maxHeaderLen)
		}
		if err == nil {
			return bytes.TrimSuffix(line, []byte{'\n'}), nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
}

// parseHeader reads and validates the stream header line.
func parseHeader(r *bufio.Reader) (Header, error) {
	line, err := readLine(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: truncated stream header", ErrBadHeader)
		}
		return Header{}, err
	}

	fields := strings.Fields(string(line))
	if len(fields) == 0 || fields[0] != streamMagic {
		return Header{}, fmt.Errorf("%w: missing %s signature", ErrBadHeader, streamMagic)
	}

	h := Header{Colorspace: C420jpeg}
	for _, tag := range fields[1:] {
		value := tag[1:]
		switch tag[0] {
		case 'W':
			h.Width, err = strconv.Atoi(value)
		case 'H':
			h.Height, err = strconv.Atoi(value)
		case 'F':
			h.RateNum, h.RateDen, err = parseRatio(value)
		case 'C':
			h.Colorspace, err = parseColorspace(value)
		default:
			h.Params = append(h.Params, tag)
		}
		if err != nil {
			return Header{}, fmt.Errorf("%w: tag %q: %w", ErrBadHeader, tag, err)
		}
	}

	if h.Width <= 0 || h.Height <= 0 || h.Width > maxDimension || h.Height > maxDimension {
		return Header{}, fmt.Errorf("%w: invalid dimensions %dx%d", ErrBadHeader, h.Width, h.Height)
	}

	return h, nil
}

func parseRatio(s string) (int, int, error) {
	num, den, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected num:den")
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, 0, err
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, 0, err
	}
	return n, d, nil
}

func parseColorspace(s string) (Colorspace, error) {
	switch c := Colorspace(s); c {
	case C420, C420jpeg, C420paldv, C420mpeg2, Cmono:
		return c, nil
	default:
		return "", fmt.Errorf("%w: C%s", ErrUnsupportedColorspace, s)
	}
}
