package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "pagecap", cfg.Logger.ServiceName)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.PageLoadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Capture.ScrollSettle)
	assert.Equal(t, 95, cfg.Capture.Quality)
	assert.Equal(t, AmbiguousSuccess, cfg.Auth.AmbiguousPolicy)
	assert.Contains(t, cfg.Auth.FailurePhrases, "invalid")
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestConfigValidation(t *testing.T) {
	t.Run("quality bounds", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Capture.Quality = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "capture.quality")

		cfg.Capture.Quality = 101
		assert.Error(t, cfg.Validate())
	})

	t.Run("page load timeout", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Browser.PageLoadTimeout = 0
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "browser.page_load_timeout")
	})

	t.Run("locator timeout", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Auth.LocatorTimeout = -time.Second
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "auth.locator_timeout")
	})

	t.Run("ambiguous policy", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Auth.AmbiguousPolicy = "maybe"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "auth.ambiguous_policy")

		cfg.Auth.AmbiguousPolicy = AmbiguousFail
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewConfigFromViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("capture.scroll_settle", "0s")
	v.Set("auth.ambiguous_policy", "fail")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Capture.ScrollSettle)
	assert.Equal(t, AmbiguousFail, cfg.Auth.AmbiguousPolicy)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("capture.quality", 400)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
