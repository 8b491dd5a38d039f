// Package runner wires the capture pipeline end to end: session bootstrap,
// optional authentication, readiness waits, geometry, planning, capture,
// stitching and the final write to disk.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pagecap/pagecap/internal/auth"
	"github.com/pagecap/pagecap/internal/browser"
	"github.com/pagecap/pagecap/internal/capture"
	"github.com/pagecap/pagecap/internal/config"
	"github.com/pagecap/pagecap/internal/imaging"
	"github.com/pagecap/pagecap/internal/timing"
)

// readyPollInterval paces the document.readyState poll.
const readyPollInterval = 250 * time.Millisecond

// loadingIndicatorScript reports whether the page still shows a loading
// placeholder. Dashboards keep painting long after readyState flips.
const loadingIndicatorScript = `document.querySelector(".loading, .spinner, [data-testid='loading']") === null`

// Runner executes one capture request against one browser session.
type Runner struct {
	cfg    *config.Config
	logger *zap.Logger

	newSession func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, width, height int64) (browser.Driver, error)
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a runner backed by real browser sessions.
func New(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger.Named("runner"),
		newSession: func(ctx context.Context, bc config.BrowserConfig, log *zap.Logger, width, height int64) (browser.Driver, error) {
			return browser.NewSession(ctx, bc, log, width, height)
		},
		sleep: timing.Sleep,
	}
}

// Run captures req and writes the image to outputPath. The file is written
// only after the full image is produced; no partial output ever lands on
// disk. Authentication failure alone does not abort the run: the capture
// falls through to the target URL unauthenticated, the image is still
// written, and ErrAllProvidersFailed comes back so the caller can reflect
// the failed login in its exit status.
func (r *Runner) Run(ctx context.Context, req capture.CaptureRequest, outputPath string) error {
	if err := req.Validate(); err != nil {
		return err
	}

	format := req.Format
	if format == "" {
		var recognized bool
		format, recognized = imaging.FormatFromPath(outputPath)
		if !recognized {
			r.logger.Warn("Unrecognized output extension, writing PNG", zap.String("path", outputPath))
		}
	}
	quality := req.Quality
	if quality <= 0 {
		quality = r.cfg.Capture.Quality
	}

	// The launch window is scaled by DPI and the page-side zoom applied after
	// load scales the document into the same pixel space. Geometry, planning
	// and cropping all run in that space, so a scroll step always moves
	// exactly one window height regardless of the zoom factor.
	launchWidth := int64(float64(req.ViewportWidth) * req.DPI)
	launchHeight := int64(float64(req.ViewportHeight) * req.DPI)
	req.ViewportWidth = launchWidth
	req.ViewportHeight = launchHeight
	drv, err := r.newSession(ctx, r.cfg.Browser, r.logger, launchWidth, launchHeight)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil {
			r.logger.Warn("Failed to close browser session", zap.Error(cerr))
		}
	}()

	authenticated := false
	var authErr error
	if req.HasCredentials() {
		authenticated, authErr = r.authenticate(ctx, drv, req)
		if authErr != nil && !errors.Is(authErr, auth.ErrAllProvidersFailed) {
			return authErr
		}
	}

	if err := drv.Navigate(ctx, req.URL); err != nil {
		return err
	}
	r.waitForLoad(ctx, drv)
	if authenticated {
		r.waitForQuiet(ctx, drv)
	}

	if req.DPI != 1 {
		if err := drv.EvaluateScript(ctx, fmt.Sprintf(`document.body.style.zoom = %v`, req.DPI), nil); err != nil {
			r.logger.Warn("Failed to apply zoom", zap.Float64("dpi", req.DPI), zap.Error(err))
		} else if err := r.sleep(ctx, r.cfg.Capture.ResizeSettle); err != nil {
			return err
		}
	}
	if req.Wait > 0 {
		r.logger.Info("Waiting before capture", zap.Duration("wait", req.Wait))
		if err := r.sleep(ctx, req.Wait); err != nil {
			return err
		}
	}

	// Long pages defer images and charts until they scroll into view; one
	// bottom-and-back pass forces them to load before geometry is measured.
	if req.FullPage || req.RangeMode() {
		if err := r.forceLazyContent(ctx, drv); err != nil {
			return err
		}
	}

	geom := capture.ResolveGeometry(ctx, drv, req, r.logger)
	segments, err := capture.Plan(geom, req)
	if err != nil {
		return err
	}

	targetWidth := geom.ViewportWidth
	if req.FullPage || req.RangeMode() {
		targetWidth = max(geom.ViewportWidth, geom.ClampedWidth)
	}

	engine := capture.NewEngine(r.cfg.Capture, r.logger)
	frames, err := engine.Capture(ctx, drv, geom, segments, targetWidth)
	if err != nil {
		return err
	}

	data, err := r.assemble(frames, format, quality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	r.logger.Info("Capture written",
		zap.String("path", outputPath),
		zap.String("format", format),
		zap.Int("bytes", len(data)),
		zap.Int("segments", len(segments)))
	return authErr
}

// authenticate runs the login flow. Provider exhaustion degrades to an
// unauthenticated capture; anything else is fatal.
func (r *Runner) authenticate(ctx context.Context, drv browser.Driver, req capture.CaptureRequest) (bool, error) {
	dispatcher := auth.NewDispatcher(r.cfg.Auth, r.logger)
	attempts, err := dispatcher.Authenticate(ctx, drv, req.URL, req.Username, req.Password, req.LoginMethod)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, auth.ErrAllProvidersFailed) {
		r.logger.Warn("Login failed with every provider, capturing unauthenticated",
			zap.Int("attempts", len(attempts)))
	}
	return false, err
}

// waitForLoad polls document.readyState, and jQuery's request counter on
// pages that carry it, up to the configured page-load timeout. Exceeding the
// timeout is a soft failure: logged, never fatal.
func (r *Runner) waitForLoad(ctx context.Context, drv browser.Driver) {
	deadline := time.Now().Add(r.cfg.Browser.PageLoadTimeout)
	for {
		var state string
		if err := drv.EvaluateScript(ctx, `document.readyState`, &state); err == nil && state == "complete" {
			var idle bool
			if err := drv.EvaluateScript(ctx, `window.jQuery ? jQuery.active === 0 : true`, &idle); err != nil || idle {
				return
			}
		}
		if !time.Now().Before(deadline) {
			r.logger.Warn("Page load timed out, capturing current state",
				zap.Duration("timeout", r.cfg.Browser.PageLoadTimeout))
			return
		}
		if err := r.sleep(ctx, readyPollInterval); err != nil {
			return
		}
	}
}

// waitForQuiet gives post-login dashboards time to finish rendering by
// polling for loading placeholders. Best effort only.
func (r *Runner) waitForQuiet(ctx context.Context, drv browser.Driver) {
	deadline := time.Now().Add(r.cfg.Auth.PostLoginWait)
	for {
		var quiet bool
		if err := drv.EvaluateScript(ctx, loadingIndicatorScript, &quiet); err == nil && quiet {
			return
		}
		if !time.Now().Before(deadline) {
			r.logger.Debug("Loading indicators still present after post-login wait")
			return
		}
		if err := r.sleep(ctx, readyPollInterval); err != nil {
			return
		}
	}
}

// forceLazyContent scrolls to the bottom and back so lazily loaded content
// exists before the document is measured.
func (r *Runner) forceLazyContent(ctx context.Context, drv browser.Driver) error {
	if err := drv.EvaluateScript(ctx, `window.scrollTo(0, document.body.scrollHeight)`, nil); err != nil {
		return err
	}
	if err := r.sleep(ctx, r.cfg.Capture.LazyLoadSettle); err != nil {
		return err
	}
	if err := drv.ScrollTo(ctx, 0); err != nil {
		return err
	}
	return r.sleep(ctx, r.cfg.Capture.ScrollSettle)
}

// assemble turns captured frames into encoded output bytes. A single
// uncropped PNG frame is passed through verbatim, byte for byte as the
// browser produced it.
func (r *Runner) assemble(frames []capture.Frame, format string, quality int) ([]byte, error) {
	if len(frames) == 1 && !frames[0].Cropped && frames[0].Raw != nil && format == imaging.FormatPNG {
		return frames[0].Raw, nil
	}
	stitched, err := capture.Stitch(frames)
	if err != nil {
		return nil, err
	}
	return imaging.Encode(stitched, format, quality)
}
