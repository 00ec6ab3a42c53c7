package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all agentdesk configuration. It is read once at startup.
type Config struct {
	// Agent service
	API APIConfig `yaml:"api"`

	// Report download side effect
	Download DownloadConfig `yaml:"download"`

	// Browser used when Download.Mode is "browser"
	Browser BrowserConfig `yaml:"browser"`

	// Transcript export
	Export ExportConfig `yaml:"export"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the remote agent service.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// Download modes.
const (
	DownloadModeFile    = "file"
	DownloadModeBrowser = "browser"
	DownloadModeNone    = "none"
)

// ValidDownloadModes lists the accepted values of download.mode.
var ValidDownloadModes = []string{DownloadModeFile, DownloadModeBrowser, DownloadModeNone}

// DownloadConfig configures how generated reports are fetched.
type DownloadConfig struct {
	Mode    string `yaml:"mode"` // file, browser, none
	Dir     string `yaml:"dir"`
	Timeout string `yaml:"timeout"`
}

// BrowserConfig configures the Chrome instance used for browser downloads.
type BrowserConfig struct {
	DebuggerURL       string `yaml:"debugger_url"`
	Bin               string `yaml:"bin"`
	Headless          bool   `yaml:"headless"`
	NavigationTimeout string `yaml:"navigation_timeout"`
}

// ExportConfig configures transcript export.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			Timeout: "30s",
		},
		Download: DownloadConfig{
			Mode:    DownloadModeFile,
			Dir:     "downloads",
			Timeout: "2m",
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: "30s",
		},
		Export: ExportConfig{
			Dir: "reports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the config location used when --config is not given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "agentdesk", "config.yaml")
	}
	return "agentdesk.yaml"
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// NEXT_PUBLIC_API_URL is what the web client reads; the native name wins.
	if u := os.Getenv("NEXT_PUBLIC_API_URL"); u != "" {
		c.API.BaseURL = u
	}
	if u := os.Getenv("AGENTDESK_API_URL"); u != "" {
		c.API.BaseURL = u
	}
	if d := os.Getenv("AGENTDESK_TIMEOUT"); d != "" {
		c.API.Timeout = d
	}
	if dir := os.Getenv("AGENTDESK_DOWNLOAD_DIR"); dir != "" {
		c.Download.Dir = dir
	}
	if mode := os.Getenv("AGENTDESK_DOWNLOAD_MODE"); mode != "" {
		c.Download.Mode = mode
	}
	if lvl := os.Getenv("AGENTDESK_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// GetAPITimeout returns the per-dispatch ceiling as a duration.
func (c *Config) GetAPITimeout() time.Duration {
	return parseDuration(c.API.Timeout, 30*time.Second)
}

// GetDownloadTimeout returns the report download ceiling as a duration.
func (c *Config) GetDownloadTimeout() time.Duration {
	return parseDuration(c.Download.Timeout, 2*time.Minute)
}

// GetNavigationTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url not configured (set AGENTDESK_API_URL)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api.base_url: %q", c.API.BaseURL)
	}

	if c.API.Timeout != "" {
		d, err := time.ParseDuration(c.API.Timeout)
		if err != nil {
			return fmt.Errorf("invalid api.timeout %q: %w", c.API.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("api.timeout must be positive, got %s", d)
		}
	}

	validMode := false
	for _, m := range ValidDownloadModes {
		if c.Download.Mode == m {
			validMode = true
			break
		}
	}
	if !validMode {
		return fmt.Errorf("invalid download.mode: %s (valid: %v)", c.Download.Mode, ValidDownloadModes)
	}
	if c.Download.Mode != DownloadModeNone && c.Download.Dir == "" {
		return fmt.Errorf("download.dir must be set when download.mode is %s", c.Download.Mode)
	}

	return nil
}
