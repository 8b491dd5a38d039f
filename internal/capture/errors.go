package capture

import (
	"errors"
	"fmt"
)

// ErrInvalidRange indicates the requested vertical range is empty or
// inverted once reconciled against the page geometry.
var ErrInvalidRange = errors.New("invalid capture range")

// ErrWidthMismatch indicates the frames handed to the stitcher do not share
// a common width.
var ErrWidthMismatch = errors.New("frame width mismatch")

// ErrNoFrames indicates the stitcher received an empty frame sequence.
var ErrNoFrames = errors.New("no frames to stitch")

// SegmentCaptureError reports which segment aborted the capture. Partial
// results are discarded; no output file is written.
type SegmentCaptureError struct {
	Index int
	Err   error
}

func (e *SegmentCaptureError) Error() string {
	return fmt.Sprintf("capture of segment %d failed: %v", e.Index, e.Err)
}

func (e *SegmentCaptureError) Unwrap() error { return e.Err }
