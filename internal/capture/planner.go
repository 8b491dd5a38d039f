package capture

import "fmt"

// Segment is a single scroll-position capture unit: scroll to OffsetTop and
// keep Height pixels of page content from the frame captured there.
type Segment struct {
	OffsetTop int64
	Height    int64
}

// Plan produces the ordered scroll offsets to visit. Pure function: identical
// inputs yield an identical segment sequence.
//
// Full-page capture is range capture with the whole document as the range.
// A viewport-only request (no range, no full-page) is a single segment of
// exactly one viewport, untouched by document height, so the frame passes
// through uncropped.
//
// The emitted segments exactly tile [start, end): no gaps, no overlaps, and
// a final segment possibly shorter than the viewport.
func Plan(geom PageGeometry, req CaptureRequest) ([]Segment, error) {
	if !req.RangeMode() && !req.FullPage {
		return []Segment{{OffsetTop: 0, Height: geom.ViewportHeight}}, nil
	}

	start := max(0, req.StartHeight)
	end := geom.ClampedHeight
	if req.RangeMode() && *req.EndHeight < end {
		end = *req.EndHeight
	}
	if start >= end {
		return nil, fmt.Errorf("%w: start %d, end %d (clamped height %d)",
			ErrInvalidRange, start, end, geom.ClampedHeight)
	}

	if end-start <= geom.ViewportHeight {
		return []Segment{{OffsetTop: start, Height: end - start}}, nil
	}

	var segments []Segment
	for pos := start; pos < end; {
		height := min(geom.ViewportHeight, end-pos)
		segments = append(segments, Segment{OffsetTop: pos, Height: height})
		pos += height
	}
	return segments, nil
}
