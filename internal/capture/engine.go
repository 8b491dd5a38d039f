package capture

import (
	"context"
	"image"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pagecap/pagecap/internal/browser"
	"github.com/pagecap/pagecap/internal/config"
	"github.com/pagecap/pagecap/internal/imaging"
	"github.com/pagecap/pagecap/internal/timing"
)

// Frame is one captured segment. Raw holds the untouched screenshot bytes
// and survives only when the frame needed no cropping, which lets the
// single-shot PNG path write the browser output verbatim.
type Frame struct {
	Image   image.Image
	Raw     []byte
	Cropped bool
}

// Engine drives segment traversal against a browser session.
type Engine struct {
	cfg    config.CaptureConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewEngine creates a capture engine. All waits come from the named settle
// durations in cfg, so tests run with zeroes.
func NewEngine(cfg config.CaptureConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("capture"),
		sleep:  timing.Sleep,
	}
}

// Capture visits every segment in order: scroll, settle, screenshot, crop to
// the segment's valid portion. The window is widened to targetWidth for the
// duration of the run and restored to the request viewport on every exit
// path. Any per-segment failure aborts the whole capture and discards the
// partial frames.
func (e *Engine) Capture(ctx context.Context, drv browser.Driver, geom PageGeometry, segments []Segment, targetWidth int64) ([]Frame, error) {
	if targetWidth != geom.ViewportWidth {
		if err := drv.SetWindowSize(ctx, targetWidth, geom.ViewportHeight); err != nil {
			return nil, &SegmentCaptureError{Index: 0, Err: err}
		}
		defer func() {
			// Restoration must survive mid-run failures; the session is
			// reused by the caller for teardown logging.
			if err := drv.SetWindowSize(context.WithoutCancel(ctx), geom.ViewportWidth, geom.ViewportHeight); err != nil {
				e.logger.Warn("Failed to restore window size", zap.Error(err))
			}
		}()
		if err := e.sleep(ctx, e.cfg.ResizeSettle); err != nil {
			return nil, &SegmentCaptureError{Index: 0, Err: err}
		}
	}

	frames := make([]Frame, 0, len(segments))
	for i, seg := range segments {
		frame, err := e.captureSegment(ctx, drv, geom, seg)
		if err != nil {
			return nil, &SegmentCaptureError{Index: i, Err: err}
		}
		e.logger.Debug("Captured segment",
			zap.Int("index", i),
			zap.Int64("offset_top", seg.OffsetTop),
			zap.Int64("height", seg.Height),
			zap.Bool("cropped", frame.Cropped))
		frames = append(frames, frame)
	}
	return frames, nil
}

func (e *Engine) captureSegment(ctx context.Context, drv browser.Driver, geom PageGeometry, seg Segment) (Frame, error) {
	if err := drv.ScrollTo(ctx, seg.OffsetTop); err != nil {
		return Frame{}, err
	}
	if err := e.sleep(ctx, e.cfg.ScrollSettle); err != nil {
		return Frame{}, err
	}

	raw, err := drv.Screenshot(ctx)
	if err != nil {
		return Frame{}, err
	}
	img, err := imaging.Decode(raw)
	if err != nil {
		return Frame{}, err
	}

	if seg.Height >= geom.ViewportHeight {
		return Frame{Image: img, Raw: raw}, nil
	}

	// The frame is in physical pixels while segments are in logical scroll
	// pixels; the proportional rule keeps the crop correct under any
	// device-pixel-ratio scaling.
	frameHeight := img.Bounds().Dy()
	cropPixels := int(math.Round(float64(frameHeight) * float64(seg.Height) / float64(geom.ViewportHeight)))
	cropped := imaging.Crop(img, image.Rect(0, 0, img.Bounds().Dx(), cropPixels))
	return Frame{Image: cropped, Cropped: true}, nil
}
