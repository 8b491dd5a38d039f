package capture

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CaptureRequest describes one capture run, assembled by the CLI layer.
type CaptureRequest struct {
	URL string

	ViewportWidth  int64
	ViewportHeight int64

	// StartHeight and EndHeight select a vertical sub-range of the page.
	// Range mode is active when EndHeight is set, and takes precedence over
	// FullPage.
	StartHeight int64
	EndHeight   *int64

	FullPage bool

	// Wait is the extra delay after page load, straight from --wait.
	Wait time.Duration

	// DPI scales the logical viewport before driver bootstrap.
	DPI float64

	Format  string
	Quality int

	Username    string
	Password    string
	LoginMethod string
}

// RangeMode reports whether a vertical sub-range was requested.
func (r *CaptureRequest) RangeMode() bool { return r.EndHeight != nil }

// HasCredentials reports whether authentication should be attempted.
func (r *CaptureRequest) HasCredentials() bool { return r.Username != "" && r.Password != "" }

// Validate rejects requests the pipeline cannot serve. Range consistency
// against the actual page geometry is the planner's job; this only checks
// what is knowable before a browser exists.
func (r *CaptureRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("target URL is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid target URL %q", r.URL)
	}
	if r.ViewportWidth <= 0 || r.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive, got %dx%d", r.ViewportWidth, r.ViewportHeight)
	}
	if r.StartHeight < 0 {
		return fmt.Errorf("start height must not be negative, got %d", r.StartHeight)
	}
	if r.EndHeight != nil {
		if *r.EndHeight < 0 {
			return fmt.Errorf("end height must not be negative, got %d", *r.EndHeight)
		}
		if r.StartHeight >= *r.EndHeight {
			return fmt.Errorf("%w: start %d must be below end %d", ErrInvalidRange, r.StartHeight, *r.EndHeight)
		}
	}
	// A viewport-only capture always shoots the top of the page; a lone
	// start height would be silently ignored there.
	if r.StartHeight > 0 && r.EndHeight == nil && !r.FullPage {
		return fmt.Errorf("start height %d requires an end height or full-page capture", r.StartHeight)
	}
	if r.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %v", r.DPI)
	}
	return nil
}

// NormalizeURL prefixes scheme-less URLs with https.
func NormalizeURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}
