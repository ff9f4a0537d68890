package main

import (
	"fmt"
	"os"

	"github.com/HenryThomas9587/media-demo/internal/frame"
	"github.com/HenryThomas9587/media-demo/internal/native/y4m"
)

// testSourceFPS is the frame rate written into generated clips.
const testSourceFPS = 30

// colorBars holds the 75% SMPTE bars as BT.601 limited-range Y, U, V.
var colorBars = [...][3]byte{
	{180, 128, 128}, // white
	{162, 44, 142},  // yellow
	{131, 156, 44},  // cyan
	{112, 72, 58},   // green
	{84, 184, 198},  // magenta
	{65, 100, 212},  // red
	{35, 212, 114},  // blue
}

// writeTestSource writes a Y4M clip of color bars with a white block that
// moves one step per frame, so dropped or repeated frames are visible.
func writeTestSource(path string, width, height, frames int) error {
	if frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", frames)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	w, err := y4m.NewWriter(file, width, height, testSourceFPS, 1)
	if err != nil {
		return err
	}

	buf := make([]byte, frame.BufferSize(width, height))
	for i := 0; i < frames; i++ {
		fillTestFrame(buf, width, height, i)
		if err := w.WriteFrame(buf); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return file.Close()
}

// fillTestFrame paints picture n into an I420 buffer.
func fillTestFrame(buf []byte, width, height, n int) {
	ySize, cSize := frame.PlaneSizes(width, height)
	yPlane := buf[:ySize]
	uPlane := buf[ySize : ySize+cSize]
	vPlane := buf[ySize+cSize : ySize+2*cSize]
	cw := width / 2

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			bar := colorBars[x*len(colorBars)/width]
			yPlane[y*width+x] = bar[0]
			if x%2 == 0 && y%2 == 0 {
				uPlane[(y/2)*cw+x/2] = bar[1]
				vPlane[(y/2)*cw+x/2] = bar[2]
			}
		}
	}

	// Moving block in the lower quarter, aligned to the chroma grid
	block := max(2, (height/8)&^1)
	span := width - block
	if span <= 0 {
		return
	}
	bx := ((n * 2) % span) &^ 1
	by := (height - 2*block) &^ 1
	if by < 0 {
		by = 0
	}
	for y := by; y < by+block && y < height; y++ {
		for x := bx; x < bx+block; x++ {
			yPlane[y*width+x] = 235
			uPlane[(y/2)*cw+x/2] = 128
			vPlane[(y/2)*cw+x/2] = 128
		}
	}
}
