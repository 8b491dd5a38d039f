package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pagecap/pagecap/internal/browser"
	"github.com/pagecap/pagecap/internal/config"
	"github.com/pagecap/pagecap/internal/timing"
)

// ErrAllProvidersFailed indicates every candidate provider attempt terminated
// without a success. Callers may still capture the target unauthenticated.
var ErrAllProvidersFailed = errors.New("all login providers failed")

// Status is the terminal classification of one provider attempt.
type Status string

const (
	StatusPending        Status = "pending"
	StatusFieldsNotFound Status = "fields_not_found"
	StatusSubmitted      Status = "submitted"
	StatusSuccess        Status = "success"
	StatusFailed         Status = "failed"
	StatusAmbiguous      Status = "ambiguous"
)

// Attempt records how one provider attempt ended.
type Attempt struct {
	Provider string
	Status   Status
	Reason   string
}

// locatorProbeInterval paces re-probes of a locator that has not yet
// resolved, within the configured locator timeout.
const locatorProbeInterval = 250 * time.Millisecond

// Dispatcher runs the login flow: detect candidate providers, try each in
// confidence order, stop at the first success.
type Dispatcher struct {
	cfg      config.AuthConfig
	registry *Registry
	logger   *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewDispatcher creates a dispatcher over the builtin provider registry.
func NewDispatcher(cfg config.AuthConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   logger.Named("auth"),
		sleep:    timing.Sleep,
		now:      time.Now,
	}
}

// LoginURL derives the conventional login path from the capture target.
func LoginURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("cannot derive login URL from %q", target)
	}
	return u.Scheme + "://" + u.Host + "/login", nil
}

// Authenticate navigates to the login page and works through the candidate
// providers until one succeeds. Every attempt made is returned alongside the
// result; ErrAllProvidersFailed means the chain was exhausted. Errors from
// navigation or the context abort immediately, they signal a dead session
// rather than a login-shaped problem.
func (d *Dispatcher) Authenticate(ctx context.Context, drv browser.Driver, targetURL, username, password, method string) ([]Attempt, error) {
	loginURL, err := LoginURL(targetURL)
	if err != nil {
		return nil, err
	}

	d.logger.Info("Starting login flow", zap.String("login_url", loginURL))
	if err := drv.Navigate(ctx, loginURL); err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}
	if err := d.sleep(ctx, d.cfg.LoginPageSettle); err != nil {
		return nil, err
	}

	candidates, err := d.candidates(ctx, drv, method)
	if err != nil {
		return nil, err
	}

	attempts := make([]Attempt, 0, len(candidates))
	for i, profile := range candidates {
		if i > 0 {
			// A failed submission may have navigated somewhere else; each
			// provider gets a fresh login page.
			if err := drv.Navigate(ctx, loginURL); err != nil {
				return attempts, fmt.Errorf("failed to reopen login page: %w", err)
			}
			if err := d.sleep(ctx, d.cfg.LoginPageSettle); err != nil {
				return attempts, err
			}
		}

		att := d.attempt(ctx, drv, profile, username, password)
		attempts = append(attempts, att)
		d.logger.Info("Login attempt finished",
			zap.String("provider", att.Provider),
			zap.String("status", string(att.Status)),
			zap.String("reason", att.Reason))

		if att.Status == StatusSuccess {
			return attempts, nil
		}
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
	}
	return attempts, ErrAllProvidersFailed
}

// candidates resolves the provider queue: an explicit method pins a single
// profile, otherwise the page source is sniffed.
func (d *Dispatcher) candidates(ctx context.Context, drv browser.Driver, method string) ([]Profile, error) {
	if method != "" {
		profile, ok := d.registry.Lookup(method)
		if !ok {
			return nil, fmt.Errorf("unknown login method %q", method)
		}
		return []Profile{profile}, nil
	}

	source, err := drv.PageSource(ctx)
	if err != nil {
		d.logger.Warn("Could not read login page source, using all providers", zap.Error(err))
		source = ""
	}
	candidates := Detect(source, d.registry)
	names := make([]string, 0, len(candidates))
	for _, p := range candidates {
		names = append(names, p.Name)
	}
	d.logger.Debug("Detected provider candidates", zap.Strings("providers", names))
	return candidates, nil
}

// attempt runs one provider through locate, fill, submit and verify.
func (d *Dispatcher) attempt(ctx context.Context, drv browser.Driver, profile Profile, username, password string) Attempt {
	att := Attempt{Provider: profile.Name, Status: StatusPending}

	user, userLoc, ok := d.resolveFirst(ctx, drv, profile.UsernameLocators)
	if !ok {
		att.Status = StatusFieldsNotFound
		att.Reason = "no username field matched"
		return att
	}
	pass, passLoc, ok := d.resolveFirst(ctx, drv, profile.PasswordLocators)
	if !ok {
		att.Status = StatusFieldsNotFound
		att.Reason = "no password field matched"
		return att
	}
	d.logger.Debug("Located credential fields",
		zap.String("provider", profile.Name),
		zap.Stringer("username_locator", userLoc),
		zap.Stringer("password_locator", passLoc))

	if err := fill(ctx, user, username); err != nil {
		att.Status = StatusFailed
		att.Reason = fmt.Sprintf("failed to fill username: %v", err)
		return att
	}
	if err := fill(ctx, pass, password); err != nil {
		att.Status = StatusFailed
		att.Reason = fmt.Sprintf("failed to fill password: %v", err)
		return att
	}

	if submit, submitLoc, ok := d.resolveFirst(ctx, drv, profile.SubmitLocators); ok {
		d.logger.Debug("Clicking submit control", zap.Stringer("locator", submitLoc))
		if err := submit.Click(ctx); err != nil {
			att.Status = StatusFailed
			att.Reason = fmt.Sprintf("failed to click submit control: %v", err)
			return att
		}
	} else {
		// No submit control anywhere; a return keystroke in the password
		// field submits most forms.
		d.logger.Debug("No submit control found, sending return key")
		if err := pass.SendKeys(ctx, browser.EnterKey); err != nil {
			att.Status = StatusFailed
			att.Reason = fmt.Sprintf("failed to send return key: %v", err)
			return att
		}
	}
	att.Status = StatusSubmitted

	if err := d.sleep(ctx, d.cfg.SubmitSettle); err != nil {
		att.Status = StatusFailed
		att.Reason = err.Error()
		return att
	}

	att.Status, att.Reason = d.verify(ctx, drv, profile)
	if att.Status == StatusAmbiguous {
		if config.AmbiguousPolicy(strings.ToLower(string(d.cfg.AmbiguousPolicy))) == config.AmbiguousFail {
			att.Status = StatusFailed
			att.Reason = "outcome unclear, treated as failure by policy"
		} else {
			d.logger.Warn("Login outcome unclear, proceeding as authenticated",
				zap.String("provider", profile.Name))
			att.Status = StatusSuccess
			att.Reason = "outcome unclear, treated as success by policy"
		}
	}
	return att
}

// verify classifies the post-submit page. Failure phrases always win, even
// when the URL moved off the login path.
func (d *Dispatcher) verify(ctx context.Context, drv browser.Driver, profile Profile) (Status, string) {
	currentURL, err := drv.CurrentURL(ctx)
	if err != nil {
		return StatusAmbiguous, fmt.Sprintf("current URL unavailable: %v", err)
	}
	source, err := drv.PageSource(ctx)
	if err != nil {
		return StatusAmbiguous, fmt.Sprintf("page source unavailable: %v", err)
	}
	lowered := strings.ToLower(source)

	for _, phrase := range profile.FailurePhrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return StatusFailed, fmt.Sprintf("failure phrase %q present", phrase)
		}
	}
	for _, phrase := range d.cfg.FailurePhrases {
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return StatusFailed, fmt.Sprintf("failure phrase %q present", phrase)
		}
	}

	if !strings.Contains(strings.ToLower(currentURL), "/login") {
		return StatusSuccess, "navigated away from login path"
	}
	for _, marker := range profile.SuccessMarkers {
		if strings.Contains(lowered, strings.ToLower(marker)) {
			return StatusSuccess, fmt.Sprintf("success marker %q present", marker)
		}
	}
	return StatusAmbiguous, "no success or failure signals detected"
}

// resolveFirst tries the locators in priority order and returns the first one
// resolving to exactly one visible element. Each locator is re-probed until
// the configured timeout elapses; zero matches and multiple matches both fail
// the strategy.
func (d *Dispatcher) resolveFirst(ctx context.Context, drv browser.Driver, locators []browser.Locator) (browser.Element, browser.Locator, bool) {
	for _, loc := range locators {
		deadline := d.now().Add(d.cfg.LocatorTimeout)
		for {
			elements, err := drv.FindElements(ctx, loc)
			if err == nil && len(elements) == 1 {
				return elements[0], loc, true
			}
			if err != nil {
				d.logger.Debug("Locator probe errored", zap.Stringer("locator", loc), zap.Error(err))
			}
			if !d.now().Before(deadline) {
				break
			}
			if err := d.sleep(ctx, locatorProbeInterval); err != nil {
				return nil, browser.Locator{}, false
			}
		}
	}
	return nil, browser.Locator{}, false
}

func fill(ctx context.Context, el browser.Element, text string) error {
	if err := el.Click(ctx); err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return err
	}
	return el.SendKeys(ctx, text)
}
