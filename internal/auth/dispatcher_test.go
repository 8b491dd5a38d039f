package auth

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pagecap/pagecap/internal/browser"
	"github.com/pagecap/pagecap/internal/config"
)

type fakeElement struct {
	clicks  int
	clears  int
	keys    []string
	onClick func()
}

func (e *fakeElement) Click(ctx context.Context) error {
	e.clicks++
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Clear(ctx context.Context) error {
	e.clears++
	return nil
}

func (e *fakeElement) SendKeys(ctx context.Context, text string) error {
	e.keys = append(e.keys, text)
	return nil
}

// fakeLoginDriver serves canned pages and elements keyed by locator.
type fakeLoginDriver struct {
	navigations []string
	currentURL  string
	pageSource  string
	elements    map[string][]browser.Element
}

var _ browser.Driver = (*fakeLoginDriver)(nil)

func (f *fakeLoginDriver) Navigate(ctx context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	f.currentURL = url
	return nil
}

func (f *fakeLoginDriver) CurrentURL(ctx context.Context) (string, error) { return f.currentURL, nil }

func (f *fakeLoginDriver) EvaluateScript(ctx context.Context, src string, out any) error { return nil }

func (f *fakeLoginDriver) PageSource(ctx context.Context) (string, error) { return f.pageSource, nil }

func (f *fakeLoginDriver) SetWindowSize(ctx context.Context, width, height int64) error { return nil }

func (f *fakeLoginDriver) ScrollTo(ctx context.Context, y int64) error { return nil }

func (f *fakeLoginDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("not supported by fakeLoginDriver")
}

func (f *fakeLoginDriver) FindElements(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	return f.elements[loc.String()], nil
}

func (f *fakeLoginDriver) Close() error { return nil }

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AmbiguousPolicy: config.AmbiguousSuccess,
		FailurePhrases:  []string{"invalid", "incorrect", "unauthorized"},
	}
}

func newTestDispatcher(cfg config.AuthConfig) *Dispatcher {
	return NewDispatcher(cfg, zap.NewNop())
}

func grafanaLoginPage() string {
	return `<html><head><title>Grafana</title></head><body>
		<form><input placeholder='email or username'><input type='password'>
		<button type='submit'>Log in</button></form></body></html>`
}

func TestAuthenticateGrafanaSuccess(t *testing.T) {
	user := &fakeElement{}
	pass := &fakeElement{}
	drv := &fakeLoginDriver{pageSource: grafanaLoginPage()}
	submit := &fakeElement{onClick: func() {
		drv.currentURL = "https://grafana.test/?orgId=1"
		drv.pageSource = "<html><body>Welcome to Grafana</body></html>"
	}}
	drv.elements = map[string][]browser.Element{
		browser.CSS(`input[placeholder='email or username']`).String(): {user},
		browser.CSS(`input[placeholder='password']`).String():          {pass},
		browser.CSS(`button[type='submit']`).String():                  {submit},
	}

	attempts, err := newTestDispatcher(testAuthConfig()).
		Authenticate(context.Background(), drv, "https://grafana.test/d/abc", "admin", "hunter2", "")
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	assert.Equal(t, "grafana", attempts[0].Provider)
	assert.Equal(t, StatusSuccess, attempts[0].Status)

	assert.Equal(t, []string{"https://grafana.test/login"}, drv.navigations)
	assert.Equal(t, 1, user.clears)
	assert.Equal(t, []string{"admin"}, user.keys)
	assert.Equal(t, 1, pass.clears)
	assert.Equal(t, []string{"hunter2"}, pass.keys)
	assert.Equal(t, 1, submit.clicks)
}

func TestAuthenticateFieldsNotFoundAdvancesProvider(t *testing.T) {
	// Grafana is detected but no field resolves for any provider; every
	// attempt must end as fields-not-found without a submission.
	drv := &fakeLoginDriver{
		pageSource: grafanaLoginPage(),
		elements:   map[string][]browser.Element{},
	}

	attempts, err := newTestDispatcher(testAuthConfig()).
		Authenticate(context.Background(), drv, "https://grafana.test/", "admin", "hunter2", "")
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	require.Len(t, attempts, 2)

	assert.Equal(t, "grafana", attempts[0].Provider)
	assert.Equal(t, StatusFieldsNotFound, attempts[0].Status)
	assert.Equal(t, "generic", attempts[1].Provider)
	assert.Equal(t, StatusFieldsNotFound, attempts[1].Status)

	// One navigation per attempt: the initial login page plus one reload.
	assert.Len(t, drv.navigations, 2)
}

func TestAuthenticateFailurePhraseWinsOverURLChange(t *testing.T) {
	user := &fakeElement{}
	pass := &fakeElement{}
	drv := &fakeLoginDriver{pageSource: grafanaLoginPage()}
	submit := &fakeElement{onClick: func() {
		// The URL leaves the login path, but the page says otherwise.
		drv.currentURL = "https://grafana.test/home"
		drv.pageSource = "<html><body>invalid password</body></html>"
	}}
	drv.elements = map[string][]browser.Element{
		browser.CSS(`input[placeholder='email or username']`).String(): {user},
		browser.CSS(`input[placeholder='password']`).String():          {pass},
		browser.CSS(`button[type='submit']`).String():                  {submit},
	}

	attempts, err := newTestDispatcher(testAuthConfig()).
		Authenticate(context.Background(), drv, "https://grafana.test/", "admin", "wrong", "grafana")
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	require.Len(t, attempts, 1)
	assert.Equal(t, StatusFailed, attempts[0].Status)
	assert.Contains(t, attempts[0].Reason, "invalid")
}

func TestAuthenticateEnterKeyFallback(t *testing.T) {
	user := &fakeElement{}
	pass := &fakeElement{}
	drv := &fakeLoginDriver{
		pageSource: grafanaLoginPage(),
		elements: map[string][]browser.Element{
			browser.CSS(`input[placeholder='email or username']`).String(): {user},
			browser.CSS(`input[placeholder='password']`).String():          {pass},
		},
	}

	attempts, err := newTestDispatcher(testAuthConfig()).
		Authenticate(context.Background(), drv, "https://grafana.test/", "admin", "hunter2", "grafana")
	// The page never changes, so the outcome is ambiguous and the optimistic
	// policy reports success.
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, StatusSuccess, attempts[0].Status)

	// Password value first, then the synthetic submit keystroke.
	require.Len(t, pass.keys, 2)
	assert.Equal(t, browser.EnterKey, pass.keys[1])
}

func TestAuthenticateAmbiguousPolicyFail(t *testing.T) {
	user := &fakeElement{}
	pass := &fakeElement{}
	submit := &fakeElement{}
	drv := &fakeLoginDriver{
		pageSource: grafanaLoginPage(),
		elements: map[string][]browser.Element{
			browser.CSS(`input[placeholder='email or username']`).String(): {user},
			browser.CSS(`input[placeholder='password']`).String():          {pass},
			browser.CSS(`button[type='submit']`).String():                  {submit},
		},
	}

	cfg := testAuthConfig()
	cfg.AmbiguousPolicy = config.AmbiguousFail
	attempts, err := newTestDispatcher(cfg).
		Authenticate(context.Background(), drv, "https://grafana.test/", "admin", "hunter2", "grafana")
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	require.Len(t, attempts, 1)
	assert.Equal(t, StatusFailed, attempts[0].Status)
	assert.Contains(t, attempts[0].Reason, "policy")
}

func TestAuthenticateUnknownMethod(t *testing.T) {
	drv := &fakeLoginDriver{pageSource: grafanaLoginPage()}
	_, err := newTestDispatcher(testAuthConfig()).
		Authenticate(context.Background(), drv, "https://example.test/", "u", "p", "keycloak")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keycloak")
}

func TestResolveFirstSkipsMultipleMatches(t *testing.T) {
	// The first strategy matches two elements and must be skipped in favor of
	// the next one that matches exactly one.
	want := &fakeElement{}
	drv := &fakeLoginDriver{
		elements: map[string][]browser.Element{
			browser.CSS(`input[type='text']`).String():      {&fakeElement{}, &fakeElement{}},
			browser.CSS(`input[name='username']`).String(): {want},
		},
	}

	d := newTestDispatcher(testAuthConfig())
	el, loc, ok := d.resolveFirst(context.Background(), drv, []browser.Locator{
		browser.CSS(`input[type='text']`),
		browser.CSS(`input[name='username']`),
	})
	require.True(t, ok)
	assert.Same(t, want, el)
	assert.Equal(t, browser.CSS(`input[name='username']`), loc)
}

func TestLoginURL(t *testing.T) {
	got, err := LoginURL("https://grafana.test/d/abc123/overview?orgId=1")
	require.NoError(t, err)
	assert.Equal(t, "https://grafana.test/login", got)

	_, err = LoginURL("not a url")
	require.Error(t, err)
}
