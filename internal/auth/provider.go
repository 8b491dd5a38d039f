// Package auth drives heuristic login against unknown login-page layouts: it
// detects the provider family, locates credential fields through ordered
// fallback strategies, submits, and classifies the outcome from page signals.
package auth

import (
	"strings"

	"github.com/pagecap/pagecap/internal/browser"
)

// Profile describes one login-page family: how to recognize it, where its
// credential fields live, and what its post-submit pages say on success or
// failure. Locator lists are in fixed priority order; resolution stops at the
// first strategy matching exactly one visible element.
type Profile struct {
	Name string

	// Markers are case-insensitive substrings of the login page source that
	// identify this provider during detection. An empty list marks a
	// catch-all profile that never wins detection on its own.
	Markers []string

	UsernameLocators []browser.Locator
	PasswordLocators []browser.Locator
	SubmitLocators   []browser.Locator

	// FailurePhrases and SuccessMarkers are case-insensitive substrings
	// checked against the post-submit page source. Failure always wins.
	FailurePhrases []string
	SuccessMarkers []string
}

// Registry holds the known provider profiles in detection-priority order.
type Registry struct {
	profiles []Profile
}

// NewRegistry builds a registry with the builtin profiles. The generic
// profile is always last so it only fires as the fallback.
func NewRegistry() *Registry {
	return &Registry{profiles: []Profile{grafanaProfile(), openshiftProfile(), genericProfile()}}
}

// Register appends a profile ahead of the catch-all generic entry.
func (r *Registry) Register(p Profile) {
	n := len(r.profiles)
	if n > 0 && len(r.profiles[n-1].Markers) == 0 {
		r.profiles = append(r.profiles[:n-1], p, r.profiles[n-1])
		return
	}
	r.profiles = append(r.profiles, p)
}

// Lookup returns the named profile, matching case-insensitively.
func (r *Registry) Lookup(name string) (Profile, bool) {
	for _, p := range r.profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// Profiles returns every registered profile in priority order.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

func grafanaProfile() Profile {
	return Profile{
		Name:    "grafana",
		Markers: []string{"grafana"},
		UsernameLocators: []browser.Locator{
			browser.CSS(`input[placeholder='email or username']`),
			browser.CSS(`input[aria-label='Username input field']`),
			browser.CSS(`input[name='user']`),
			browser.CSS(`input[name='username']`),
			browser.CSS(`input[type='text']`),
		},
		PasswordLocators: []browser.Locator{
			browser.CSS(`input[placeholder='password']`),
			browser.CSS(`input[type='password']`),
			browser.CSS(`input[name='password']`),
		},
		SubmitLocators: []browser.Locator{
			browser.CSS(`button[type='submit']`),
			browser.CSS(`button[aria-label='Login button']`),
			browser.CSS(`input[type='submit']`),
		},
		FailurePhrases: []string{"invalid username or password"},
		SuccessMarkers: []string{"welcome to grafana", "dashboard", "logout"},
	}
}

func openshiftProfile() Profile {
	return Profile{
		Name:    "openshift",
		Markers: []string{"openshift", "red hat"},
		UsernameLocators: []browser.Locator{
			browser.CSS(`#inputUsername`),
			browser.CSS(`input[name='username']`),
			browser.CSS(`input[type='text']`),
		},
		PasswordLocators: []browser.Locator{
			browser.CSS(`#inputPassword`),
			browser.CSS(`input[name='password']`),
			browser.CSS(`input[type='password']`),
		},
		SubmitLocators: []browser.Locator{
			browser.CSS(`button[type='submit']`),
			browser.Text("Log in"),
			browser.CSS(`input[type='submit']`),
		},
		FailurePhrases: []string{"login is invalid"},
		SuccessMarkers: []string{"console", "logout"},
	}
}

func genericProfile() Profile {
	return Profile{
		Name: "generic",
		UsernameLocators: []browser.Locator{
			browser.CSS(`input[name='username']`),
			browser.CSS(`input[name='user']`),
			browser.CSS(`input[name='email']`),
			browser.CSS(`input[type='email']`),
			browser.CSS(`input[type='text']`),
		},
		PasswordLocators: []browser.Locator{
			browser.CSS(`input[name='password']`),
			browser.CSS(`input[type='password']`),
		},
		SubmitLocators: []browser.Locator{
			browser.CSS(`button[type='submit']`),
			browser.CSS(`input[type='submit']`),
			browser.Text("Log in"),
			browser.Text("Sign in"),
		},
		SuccessMarkers: []string{"logout", "sign out", "dashboard"},
	}
}
