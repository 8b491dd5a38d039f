package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Hard caps on the rendered surface we are willing to capture. Chrome
// misbehaves well before these, so they are not configurable.
const (
	MaxCaptureWidth  = 7680
	MaxCaptureHeight = 20000
)

// AmbiguousPolicy decides how a login attempt that produced neither a
// success nor a failure signal is classified.
type AmbiguousPolicy string

const (
	// AmbiguousSuccess treats an unclear outcome as a success and logs a
	// warning. This mirrors the historical behavior of the tool.
	AmbiguousSuccess AmbiguousPolicy = "success"
	// AmbiguousFail treats an unclear outcome as a failed attempt, letting
	// the dispatcher move on to the next provider.
	AmbiguousFail AmbiguousPolicy = "fail"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Auth    AuthConfig    `mapstructure:"auth" yaml:"auth"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string   `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
	// PageLoadTimeout bounds the document.readyState poll. Exceeding it is
	// a soft timeout: logged, never fatal.
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
}

// CaptureConfig tunes the timing of the capture pipeline. Every wait the
// pipeline performs is a named duration here so tests can substitute zero.
type CaptureConfig struct {
	// ScrollSettle is the render stabilization delay after each scroll.
	ScrollSettle time.Duration `mapstructure:"scroll_settle" yaml:"scroll_settle"`
	// ResizeSettle is the delay after a window-size change.
	ResizeSettle time.Duration `mapstructure:"resize_settle" yaml:"resize_settle"`
	// LazyLoadSettle is the delay after the bottom-then-top scroll pass
	// that forces lazy content to load before geometry is measured.
	LazyLoadSettle time.Duration `mapstructure:"lazy_load_settle" yaml:"lazy_load_settle"`
	Quality        int           `mapstructure:"quality" yaml:"quality"`
}

// AuthConfig tunes the authentication dispatcher.
type AuthConfig struct {
	// LoginPageSettle is the wait after navigating to the login path.
	LoginPageSettle time.Duration `mapstructure:"login_page_settle" yaml:"login_page_settle"`
	// SubmitSettle is the wait between submitting credentials and reading
	// the outcome signals.
	SubmitSettle time.Duration `mapstructure:"submit_settle" yaml:"submit_settle"`
	// LocatorTimeout bounds each individual field-locator probe.
	LocatorTimeout time.Duration `mapstructure:"locator_timeout" yaml:"locator_timeout"`
	// PostLoginWait is the extra render wait after navigating to the
	// target URL as an authenticated user (dashboards keep painting long
	// after readyState flips).
	PostLoginWait   time.Duration   `mapstructure:"post_login_wait" yaml:"post_login_wait"`
	AmbiguousPolicy AmbiguousPolicy `mapstructure:"ambiguous_policy" yaml:"ambiguous_policy"`
	// FailurePhrases extends the per-provider failure signals. Matched
	// case-insensitively against the post-submit page source.
	FailurePhrases []string `mapstructure:"failure_phrases" yaml:"failure_phrases"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagecap")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36")
	v.SetDefault("browser.page_load_timeout", "30s")

	// -- Capture --
	v.SetDefault("capture.scroll_settle", "500ms")
	v.SetDefault("capture.resize_settle", "1s")
	v.SetDefault("capture.lazy_load_settle", "1s")
	v.SetDefault("capture.quality", 95)

	// -- Auth --
	v.SetDefault("auth.login_page_settle", "3s")
	v.SetDefault("auth.submit_settle", "5s")
	v.SetDefault("auth.locator_timeout", "5s")
	v.SetDefault("auth.post_login_wait", "5s")
	v.SetDefault("auth.ambiguous_policy", string(AmbiguousSuccess))
	v.SetDefault("auth.failure_phrases", []string{"invalid", "incorrect", "unauthorized"})
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Unreachable with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object
// and validates it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality must be between 1 and 100")
	}
	if c.Browser.PageLoadTimeout <= 0 {
		return fmt.Errorf("browser.page_load_timeout must be a positive duration")
	}
	if c.Auth.LocatorTimeout <= 0 {
		return fmt.Errorf("auth.locator_timeout must be a positive duration")
	}
	switch AmbiguousPolicy(strings.ToLower(string(c.Auth.AmbiguousPolicy))) {
	case AmbiguousSuccess, AmbiguousFail:
	default:
		return fmt.Errorf("auth.ambiguous_policy must be %q or %q", AmbiguousSuccess, AmbiguousFail)
	}
	return nil
}
