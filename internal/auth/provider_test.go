package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecap/pagecap/internal/browser"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()

	p, ok := r.Lookup("grafana")
	require.True(t, ok)
	assert.Equal(t, "grafana", p.Name)

	p, ok = r.Lookup("OpenShift")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, "openshift", p.Name)

	_, ok = r.Lookup("keycloak")
	assert.False(t, ok)
}

func TestRegistryRegisterKeepsGenericLast(t *testing.T) {
	r := NewRegistry()
	r.Register(Profile{
		Name:             "keycloak",
		Markers:          []string{"keycloak"},
		UsernameLocators: []browser.Locator{browser.CSS("#username")},
		PasswordLocators: []browser.Locator{browser.CSS("#password")},
		SubmitLocators:   []browser.Locator{browser.CSS("#kc-login")},
	})

	profiles := r.Profiles()
	names := profileNames(profiles)
	assert.Equal(t, []string{"grafana", "openshift", "keycloak", "generic"}, names)

	_, ok := r.Lookup("keycloak")
	assert.True(t, ok)
}

func TestBuiltinProfilesAreComplete(t *testing.T) {
	for _, p := range NewRegistry().Profiles() {
		assert.NotEmptyf(t, p.UsernameLocators, "profile %s", p.Name)
		assert.NotEmptyf(t, p.PasswordLocators, "profile %s", p.Name)
		assert.NotEmptyf(t, p.SubmitLocators, "profile %s", p.Name)
	}
}
