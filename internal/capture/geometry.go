package capture

import (
	"context"

	"go.uber.org/zap"

	"github.com/pagecap/pagecap/internal/browser"
	"github.com/pagecap/pagecap/internal/config"
)

// PageGeometry is the reconciled picture of the rendered page, computed once
// per capture and never mutated afterward.
type PageGeometry struct {
	ViewportWidth  int64
	ViewportHeight int64
	// Document dimensions as measured, before the hard caps.
	DocumentWidth  int64
	DocumentHeight int64
	// Dimensions after the hard caps.
	ClampedWidth  int64
	ClampedHeight int64
}

// Quirks-mode pages report wildly different numbers across the scroll,
// offset and client metrics; the maximum across all of them is the only
// measurement that holds up in practice.
const (
	widthScript = `Math.max(
		document.body.scrollWidth, document.documentElement.scrollWidth,
		document.body.offsetWidth, document.documentElement.offsetWidth,
		document.body.clientWidth, document.documentElement.clientWidth
	)`
	heightScript = `Math.max(
		document.body.scrollHeight, document.documentElement.scrollHeight,
		document.body.offsetHeight, document.documentElement.offsetHeight,
		document.body.clientHeight, document.documentElement.clientHeight
	)`
)

// ResolveGeometry measures the document and applies the hard caps. It always
// reports true page geometry; a requested range never reduces it, range
// reduction is the planner's job. Dimension-query failures degrade to the
// viewport size and are not fatal.
func ResolveGeometry(ctx context.Context, drv browser.Driver, req CaptureRequest, logger *zap.Logger) PageGeometry {
	geom := PageGeometry{
		ViewportWidth:  req.ViewportWidth,
		ViewportHeight: req.ViewportHeight,
	}

	var width, height float64
	werr := drv.EvaluateScript(ctx, widthScript, &width)
	herr := drv.EvaluateScript(ctx, heightScript, &height)
	if werr != nil || herr != nil {
		logger.Warn("Page dimension query failed, degrading to viewport size",
			zap.NamedError("width_err", werr), zap.NamedError("height_err", herr))
		geom.DocumentWidth = req.ViewportWidth
		geom.DocumentHeight = req.ViewportHeight
	} else {
		geom.DocumentWidth = int64(width)
		geom.DocumentHeight = int64(height)
	}

	geom.ClampedWidth = min(geom.DocumentWidth, config.MaxCaptureWidth)
	geom.ClampedHeight = min(geom.DocumentHeight, config.MaxCaptureHeight)

	logger.Debug("Resolved page geometry",
		zap.Int64("document_width", geom.DocumentWidth),
		zap.Int64("document_height", geom.DocumentHeight),
		zap.Int64("clamped_width", geom.ClampedWidth),
		zap.Int64("clamped_height", geom.ClampedHeight))

	return geom
}
