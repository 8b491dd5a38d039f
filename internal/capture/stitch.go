package capture

import (
	"fmt"
	"image"

	"github.com/pagecap/pagecap/internal/imaging"
)

// Stitch composes ordered frames into one image. All frames must share the
// first frame's width; the result's height is the sum of the frame heights.
// A single frame is returned as-is, with no canvas allocation.
func Stitch(frames []Frame) (image.Image, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(frames) == 1 {
		return frames[0].Image, nil
	}

	width := frames[0].Image.Bounds().Dx()
	images := make([]image.Image, 0, len(frames))
	for i, f := range frames {
		if f.Image.Bounds().Dx() != width {
			return nil, fmt.Errorf("%w: frame %d is %d pixels wide, want %d",
				ErrWidthMismatch, i, f.Image.Bounds().Dx(), width)
		}
		images = append(images, f.Image)
	}

	return imaging.ComposeVertically(images)
}
