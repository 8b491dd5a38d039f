package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pagecap/pagecap/internal/config"
)

// ErrSessionUnavailable indicates the browser process could not be started
// or stopped responding. Fatal to the whole run.
var ErrSessionUnavailable = errors.New("browser session unavailable")

// EnterKey is the keystroke sent to an input to trigger form submission
// when no explicit submit control exists.
const EnterKey = "\r"

// startupProbeTimeout bounds the about:blank liveness check at launch.
const startupProbeTimeout = 30 * time.Second

// Session owns one headless browser process and the single tab driving a
// capture run. It implements Driver.
type Session struct {
	id     string
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	sessCtx     context.Context
	sessCancel  context.CancelFunc

	closed bool
}

var _ Driver = (*Session)(nil)

// NewSession launches the browser with the given viewport and verifies it
// responds. The returned session must be closed by the caller on every exit
// path.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, width, height int64) (*Session, error) {
	id := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", id[:8]))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, buildAllocatorOptions(cfg, width, height)...)
	sessCtx, sessCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          id,
		logger:      log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sessCtx:     sessCtx,
		sessCancel:  sessCancel,
	}

	// Confirm the browser is alive before handing the session out.
	probeCtx, cancel := context.WithTimeout(sessCtx, startupProbeTimeout)
	defer cancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: browser failed to start: %v", ErrSessionUnavailable, err)
	}

	log.Info("Browser session started", zap.Int64("width", width), zap.Int64("height", height))
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Navigate loads a URL and waits for the document body to exist.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := chromedp.Run(s.sessCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigation to %q failed: %w", url, err)
	}
	return nil
}

// CurrentURL reports the URL of the active document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var loc string
	if err := chromedp.Run(s.sessCtx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("location query failed: %w", err)
	}
	return loc, nil
}

// EvaluateScript runs a JavaScript expression and unmarshals its result.
func (s *Session) EvaluateScript(ctx context.Context, src string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(s.sessCtx, chromedp.Evaluate(src, out)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// PageSource returns the serialized current document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var src string
	if err := s.EvaluateScript(ctx, `document.documentElement.outerHTML`, &src); err != nil {
		return "", err
	}
	return src, nil
}

// SetWindowSize overrides the logical viewport dimensions.
func (s *Session) SetWindowSize(ctx context.Context, width, height int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	action := chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetDeviceMetricsOverride(width, height, 1, false).Do(ctx)
	})
	if err := chromedp.Run(s.sessCtx, action); err != nil {
		return fmt.Errorf("window resize to %dx%d failed: %w", width, height, err)
	}
	return nil
}

// ScrollTo moves the vertical scroll position to y.
func (s *Session) ScrollTo(ctx context.Context, y int64) error {
	return s.EvaluateScript(ctx, fmt.Sprintf(`window.scrollTo(0, %d)`, y), nil)
}

// Screenshot captures the current viewport as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf []byte
	if err := chromedp.Run(s.sessCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// FindElements resolves a locator to the visible elements it matches. Each
// match is tagged with a stable data attribute so the returned handles stay
// addressable across later queries.
func (s *Session) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	token := "pagecap-" + uuid.New().String()[:8]
	script, err := loc.collectScript(token)
	if err != nil {
		return nil, err
	}

	var count int
	if err := s.EvaluateScript(ctx, script, &count); err != nil {
		return nil, fmt.Errorf("locator %s failed: %w", loc, err)
	}

	elements := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		elements = append(elements, &element{
			session:  s,
			selector: fmt.Sprintf(`[data-pagecap-ref=%q]`, fmt.Sprintf("%s-%d", token, i)),
		})
	}
	return elements, nil
}

// Close releases the browser process. Safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("Closing browser session")
	s.sessCancel()
	s.allocCancel()
	return nil
}

// element is a handle bound to the tagging selector FindElements assigned.
type element struct {
	session  *Session
	selector string
}

var _ Element = (*element)(nil)

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(e.session.sessCtx, chromedp.Click(e.selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click on %s failed: %w", e.selector, err)
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(e.session.sessCtx, chromedp.Clear(e.selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clear of %s failed: %w", e.selector, err)
	}
	return nil
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(e.session.sessCtx, chromedp.SendKeys(e.selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("typing into %s failed: %w", e.selector, err)
	}
	return nil
}
