package browser

import "context"

// Driver is the browser surface the capture pipeline and the authentication
// dispatcher consume. The chromedp Session is the production implementation;
// tests substitute fakes.
type Driver interface {
	// Navigate loads a URL and waits for the document body to exist.
	Navigate(ctx context.Context, url string) error
	// CurrentURL reports the URL of the active document.
	CurrentURL(ctx context.Context) (string, error)
	// EvaluateScript runs a JavaScript expression and unmarshals its result
	// into out. Pass nil to discard the result.
	EvaluateScript(ctx context.Context, src string, out any) error
	// PageSource returns the serialized current document.
	PageSource(ctx context.Context) (string, error)
	// SetWindowSize overrides the logical viewport dimensions.
	SetWindowSize(ctx context.Context, width, height int64) error
	// ScrollTo moves the vertical scroll position to y.
	ScrollTo(ctx context.Context, y int64) error
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// FindElements resolves a locator to the visible elements it matches.
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
	// Close releases the browser. Safe to call more than once.
	Close() error
}

// Element is a handle to a located DOM element.
type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
}
