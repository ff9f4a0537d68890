package gstreamer

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/HenryThomas9587/media-demo/internal/frame"
)

var (
	capsWidth     = regexp.MustCompile(`width=\(int\)(\d+)`)
	capsHeight    = regexp.MustCompile(`height=\(int\)(\d+)`)
	capsFramerate = regexp.MustCompile(`framerate=\(fraction\)(\d+)/(\d+)`)
)

// videoInfo is what the negotiated caps say about the raw stream.
type videoInfo struct {
	Width     int
	Height    int
	FrameRate float64 // 0 for variable or unknown rate
}

// parseCaps extracts width, height and framerate from a serialized caps
// string such as
//
//	video/x-raw, format=(string)I420, width=(int)640, height=(int)480, framerate=(fraction)30000/1001
func parseCaps(caps string) (videoInfo, error) {
	var info videoInfo

	m := capsWidth.FindStringSubmatch(caps)
	if m == nil {
		return info, fmt.Errorf("caps without width: %s", caps)
	}
	info.Width, _ = strconv.Atoi(m[1])

	m = capsHeight.FindStringSubmatch(caps)
	if m == nil {
		return info, fmt.Errorf("caps without height: %s", caps)
	}
	info.Height, _ = strconv.Atoi(m[1])

	if info.Width <= 0 || info.Height <= 0 {
		return info, fmt.Errorf("invalid dimensions %dx%d in caps", info.Width, info.Height)
	}

	// framerate=0/1 means variable rate.
	if m = capsFramerate.FindStringSubmatch(caps); m != nil {
		num, _ := strconv.Atoi(m[1])
		den, _ := strconv.Atoi(m[2])
		if num > 0 && den > 0 {
			info.FrameRate = float64(num) / float64(den)
		}
	}

	return info, nil
}

func roundUp2(n int) int { return (n + 1) &^ 1 }
func roundUp4(n int) int { return (n + 3) &^ 3 }

// planeLayout is GStreamer's default I420 memory layout for a width×height
// picture (no GstVideoMeta): rows padded to 4 bytes, chroma sized for the
// rounded-up half resolution.
type planeLayout struct {
	YStride int
	CStride int
	UOffset int
	VOffset int
	Size    int
}

func i420Layout(width, height int) planeLayout {
	yStride := roundUp4(width)
	cStride := roundUp4(roundUp2(width) / 2)
	ySize := yStride * roundUp2(height)
	cSize := cStride * (roundUp2(height) / 2)

	return planeLayout{
		YStride: yStride,
		CStride: cStride,
		UOffset: ySize,
		VOffset: ySize + cSize,
		Size:    ySize + 2*cSize,
	}
}

// tight reports whether the layout is already the contiguous
// frame.BufferSize layout, so no repack is needed.
func (l planeLayout) tight(width, height int) bool {
	return width%2 == 0 && height%2 == 0 &&
		l.YStride == width && l.CStride == width/2
}

// repackI420 copies a padded GStreamer I420 picture into dst using the
// contiguous layout of frame.VideoFrame. dst must hold
// frame.BufferSize(width, height) bytes.
func repackI420(dst, src []byte, width, height int, l planeLayout) error {
	if len(src) < l.Size {
		return fmt.Errorf("%w: buffer has %d bytes, layout needs %d", frame.ErrShortBuffer, len(src), l.Size)
	}

	ySize, cSize := frame.PlaneSizes(width, height)
	if len(dst) < ySize+2*cSize {
		return fmt.Errorf("%w: destination has %d bytes, need %d", frame.ErrShortBuffer, len(dst), ySize+2*cSize)
	}

	for row := 0; row < height; row++ {
		copy(dst[row*width:(row+1)*width], src[row*l.YStride:])
	}

	cw, ch := width/2, height/2
	for row := 0; row < ch; row++ {
		copy(dst[ySize+row*cw:ySize+(row+1)*cw], src[l.UOffset+row*l.CStride:])
		copy(dst[ySize+cSize+row*cw:ySize+cSize+(row+1)*cw], src[l.VOffset+row*l.CStride:])
	}

	return nil
}
