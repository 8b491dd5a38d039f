package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/pagecap/pagecap/internal/browser"
)

// fakeDriver is an in-memory browser.Driver for pipeline tests.
type fakeDriver struct {
	docWidth  float64
	docHeight float64
	// Screenshot pixel dimensions; frames twice the viewport height model a
	// device-pixel-ratio of 2.
	frameWidth  int
	frameHeight int

	dimensionErr  error
	screenshotErr map[int]error // by zero-based call index

	scrolls     []int64
	resizes     [][2]int64
	screenshots int
	closed      bool
}

var _ browser.Driver = (*fakeDriver)(nil)

func (f *fakeDriver) Navigate(ctx context.Context, url string) error { return nil }

func (f *fakeDriver) CurrentURL(ctx context.Context) (string, error) {
	return "https://example.test/", nil
}

func (f *fakeDriver) EvaluateScript(ctx context.Context, src string, out any) error {
	switch {
	case strings.Contains(src, "scrollWidth"):
		if f.dimensionErr != nil {
			return f.dimensionErr
		}
		*(out.(*float64)) = f.docWidth
	case strings.Contains(src, "scrollHeight"):
		if f.dimensionErr != nil {
			return f.dimensionErr
		}
		*(out.(*float64)) = f.docHeight
	}
	return nil
}

func (f *fakeDriver) PageSource(ctx context.Context) (string, error) { return "", nil }

func (f *fakeDriver) SetWindowSize(ctx context.Context, width, height int64) error {
	f.resizes = append(f.resizes, [2]int64{width, height})
	return nil
}

func (f *fakeDriver) ScrollTo(ctx context.Context, y int64) error {
	f.scrolls = append(f.scrolls, y)
	return nil
}

func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	idx := f.screenshots
	f.screenshots++
	if err, ok := f.screenshotErr[idx]; ok {
		return nil, err
	}
	return encodePNG(solidImage(f.frameWidth, f.frameHeight, color.NRGBA{R: 10, G: 20, B: 30, A: 255})), nil
}

func (f *fakeDriver) FindElements(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	return nil, fmt.Errorf("not supported by fakeDriver")
}

func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

func solidImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func int64ptr(v int64) *int64 { return &v }

func mustPlan(t *testing.T, geom PageGeometry, req CaptureRequest) []Segment {
	t.Helper()
	segments, err := Plan(geom, req)
	if err != nil {
		t.Fatalf("Plan returned unexpected error: %v", err)
	}
	return segments
}
