package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// jpegQuality is used for .jpg/.jpeg snapshots
const jpegQuality = 90

// saveSnapshot writes img as PNG or JPEG (by extension), optionally scaled to
// width, with caption stamped in the bottom-left corner.
func saveSnapshot(path string, img *image.RGBA, width int, caption string) error {
	out := scaleToWidth(img, width)
	stampCaption(out, caption)

	// Create output file
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	// Encode based on format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		if err := png.Encode(file, out); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(file, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", filepath.Ext(path))
	}

	return file.Close()
}

// scaleToWidth returns img resized to width keeping the aspect ratio, or img
// itself when width is 0 or already matches.
func scaleToWidth(img *image.RGBA, width int) *image.RGBA {
	b := img.Bounds()
	if width <= 0 || width == b.Dx() {
		return img
	}

	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// stampCaption draws text on a dark strip along the bottom edge.
func stampCaption(img *image.RGBA, text string) {
	if text == "" {
		return
	}

	face := basicfont.Face7x13
	b := img.Bounds()
	lineHeight := face.Metrics().Height.Ceil() + 4
	if b.Dy() < lineHeight {
		return
	}

	strip := image.Rect(b.Min.X, b.Max.Y-lineHeight, b.Max.X, b.Max.Y)
	draw.Draw(img, strip, image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(b.Min.X+4, b.Max.Y-4-face.Metrics().Descent.Ceil()),
	}
	d.DrawString(text)
}
