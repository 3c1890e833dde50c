package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeBlue  = "blue"
	ThemeGreen = "green"

	DefaultAppName = "OpenAI Assistant Chatbot"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultLogDir  = "logs"
)

// Themes lists the selectable theme names in display order
var Themes = []string{ThemeLight, ThemeDark, ThemeBlue, ThemeGreen}

// Config holds application configuration
type Config struct {
	APIKey      string        `toml:"api_key" yaml:"api_key"`
	AssistantID string        `toml:"assistant_id" yaml:"assistant_id"`
	AppName     string        `toml:"app_name" yaml:"app_name"`
	BaseURL     string        `toml:"base_url" yaml:"base_url"`
	Theme       string        `toml:"theme" yaml:"theme"`
	Debug       bool          `toml:"debug" yaml:"debug"`
	LogDir      string        `toml:"log_dir" yaml:"log_dir"`
	RateLimit   float64       `toml:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = unlimited
	Polling     PollingConfig `toml:"polling" yaml:"polling"`
}

// PollingConfig bounds how a run is waited on
type PollingConfig struct {
	Interval       time.Duration `toml:"-" yaml:"-"`
	Timeout        time.Duration `toml:"-" yaml:"-"`
	RequestTimeout time.Duration `toml:"-" yaml:"-"`
	MaxAttempts    int           `toml:"max_attempts" yaml:"max_attempts"`

	// Raw string values for file decoding
	IntervalRaw       string `toml:"interval" yaml:"interval"`
	TimeoutRaw        string `toml:"timeout" yaml:"timeout"`
	RequestTimeoutRaw string `toml:"request_timeout" yaml:"request_timeout"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		AppName: DefaultAppName,
		BaseURL: DefaultBaseURL,
		Theme:   ThemeLight,
		LogDir:  DefaultLogDir,
		Polling: PollingConfig{
			Interval:       time.Second,
			MaxAttempts:    120,
			RequestTimeout: 60 * time.Second,
		},
	}
}

// DefaultPath returns ~/.assistantchat/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".assistantchat", "config.toml"), nil
}

// Load reads the file at path over the defaults. The format is chosen by
// extension: .yaml/.yml for YAML, anything else for TOML. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"polling.interval", c.Polling.IntervalRaw, &c.Polling.Interval},
		{"polling.timeout", c.Polling.TimeoutRaw, &c.Polling.Timeout},
		{"polling.request_timeout", c.Polling.RequestTimeoutRaw, &c.Polling.RequestTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = d
	}
	return nil
}

// ApplyEnv overrides fields from OPENAI_API_KEY, OPENAI_ASSISTANT_ID,
// OPENAI_BASE_URL and ASSISTANTCHAT_THEME when they are set
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENAI_ASSISTANT_ID"); v != "" {
		c.AssistantID = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("ASSISTANTCHAT_THEME"); v != "" {
		c.Theme = v
	}
}

// ValidTheme reports whether name is one of Themes
func ValidTheme(name string) bool {
	for _, t := range Themes {
		if t == name {
			return true
		}
	}
	return false
}

// Validate checks every field and reports all problems at once.
// Credentials are not required here; they may be supplied later at connect time.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AppName) == "" {
		errs = append(errs, errors.New("app_name must not be empty"))
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL))
	}
	if !ValidTheme(c.Theme) {
		errs = append(errs, fmt.Errorf("theme must be one of %s, got %q", strings.Join(Themes, "|"), c.Theme))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if c.Polling.Interval <= 0 {
		errs = append(errs, errors.New("polling.interval must be positive"))
	}
	if c.Polling.MaxAttempts < 0 {
		errs = append(errs, errors.New("polling.max_attempts must not be negative"))
	}
	if c.Polling.Timeout < 0 {
		errs = append(errs, errors.New("polling.timeout must not be negative"))
	}
	if c.Polling.RequestTimeout <= 0 {
		errs = append(errs, errors.New("polling.request_timeout must be positive"))
	}
	return errors.Join(errs...)
}
