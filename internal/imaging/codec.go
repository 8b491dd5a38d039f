// Package imaging is the raster codec behind the capture pipeline: decoding
// screenshot bytes, cropping segments, composing stitched output and
// encoding it for disk.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"
)

// Supported output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// Decode parses screenshot bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

// Crop copies the given rectangle (in the image's own coordinate space) into
// a fresh image. The source is left untouched.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// ComposeVertically pastes the images top to bottom onto a canvas as wide as
// the first image and as tall as their summed heights. The canvas is filled
// opaque white first so frames carrying alpha never leave transparent gaps.
// All images must share the first image's width.
func ComposeVertically(images []image.Image) (image.Image, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to compose")
	}

	width := images[0].Bounds().Dx()
	height := 0
	for i, img := range images {
		if img.Bounds().Dx() != width {
			return nil, fmt.Errorf("image %d is %d pixels wide, want %d", i, img.Bounds().Dx(), width)
		}
		height += img.Bounds().Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	y := 0
	for _, img := range images {
		target := image.Rect(0, y, width, y+img.Bounds().Dy())
		draw.Draw(canvas, target, img, img.Bounds().Min, draw.Over)
		y += img.Bounds().Dy()
	}
	return canvas, nil
}

// Encode serializes an image in the requested format. JPEG sources carrying
// alpha are flattened onto an opaque white background first, the same way
// the PNG-to-JPEG path always worked.
func Encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png encoding failed: %w", err)
		}
	case FormatJPEG:
		if err := jpeg.Encode(&buf, flattenWhite(img), &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("jpeg encoding failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return buf.Bytes(), nil
}

// FormatFromPath maps an output filename to a format. Unknown extensions
// fall back to PNG; the second return value reports whether the extension
// was recognized.
func FormatFromPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, true
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	default:
		return FormatPNG, false
	}
}

// flattenWhite composites the image over an opaque white background.
func flattenWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Over)
	return out
}
