package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the pagespec.yaml project configuration
type Config struct {
	BaseURL            string                       `yaml:"baseUrl,omitempty"`
	DefaultEnvironment string                       `yaml:"defaultEnvironment,omitempty"`
	Environments       map[string]map[string]string `yaml:"environments,omitempty"`
	Driver             string                       `yaml:"driver,omitempty"`     // http, rod or playwright
	Headless           *bool                        `yaml:"headless,omitempty"`   // browser drivers only
	BrowserBin         string                       `yaml:"browserBin,omitempty"` // rod only
	Timeout            string                       `yaml:"timeout,omitempty"`    // navigation timeout, e.g. 10s
	PollTimeout        string                       `yaml:"pollTimeout,omitempty"`
	PollInterval       string                       `yaml:"pollInterval,omitempty"`
	FollowRedirects    *bool                        `yaml:"followRedirects,omitempty"`
	MaxRedirects       int                          `yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool                        `yaml:"validateSSL,omitempty"`
	Proxy              string                       `yaml:"proxy,omitempty"`
	Headers            map[string]string            `yaml:"headers,omitempty"` // Default headers for page requests
	Reporter           string                       `yaml:"reporter,omitempty"`
	OutputFile         string                       `yaml:"outputFile,omitempty"`
	Bail               *bool                        `yaml:"bail,omitempty"`
	Verbose            *bool                        `yaml:"verbose,omitempty"`
	NoColor            *bool                        `yaml:"noColor,omitempty"`
	History            string                       `yaml:"history,omitempty"` // sqlite file, empty disables
	WaitFor            *WaitForConfig               `yaml:"waitFor,omitempty"`
	Notify             *NotifyConfig                `yaml:"notify,omitempty"`
	LogLevel           string                       `yaml:"logLevel,omitempty"`
	LogFormat          string                       `yaml:"logFormat,omitempty"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// WaitForConfig polls a URL until the site answers before any suite runs
type WaitForConfig struct {
	URL      string `yaml:"url"`
	Timeout  string `yaml:"timeout,omitempty"`
	Interval string `yaml:"interval,omitempty"`
}

// GetTimeout returns how long to wait for the URL to answer
func (w *WaitForConfig) GetTimeout() (time.Duration, error) {
	return parseDuration("waitFor.timeout", w.Timeout, DefaultWaitForTimeout)
}

// GetInterval returns the delay between readiness probes
func (w *WaitForConfig) GetInterval() (time.Duration, error) {
	return parseDuration("waitFor.interval", w.Interval, DefaultWaitForInterval)
}

// NotifyConfig configures run notifications
type NotifyConfig struct {
	Services     []string `yaml:"services,omitempty"` // slack, teams
	On           string   `yaml:"on,omitempty"`       // always, failure, success, recovery
	SlackWebhook string   `yaml:"slackWebhook,omitempty"`
	SlackChannel string   `yaml:"slackChannel,omitempty"`
	TeamsWebhook string   `yaml:"teamsWebhook,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetHeadless returns the headless setting, defaulting to true
func (c *Config) GetHeadless() bool {
	return getBool(c.Headless, true)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetTimeout returns the navigation timeout
func (c *Config) GetTimeout() (time.Duration, error) {
	return parseDuration("timeout", c.Timeout, DefaultTimeout)
}

// GetPollTimeout returns how long positive expectations wait on live pages
func (c *Config) GetPollTimeout() (time.Duration, error) {
	return parseDuration("pollTimeout", c.PollTimeout, DefaultPollTimeout)
}

// GetPollInterval returns the delay between DOM re-reads while polling
func (c *Config) GetPollInterval() (time.Duration, error) {
	return parseDuration("pollInterval", c.PollInterval, DefaultPollInterval)
}

func parseDuration(field, value string, defaultVal time.Duration) (time.Duration, error) {
	if value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w (use format like 10s, 1m, 500ms)", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", field, value)
	}
	return d, nil
}

// EnvironmentVariables returns the variables of the named environment.
func (c *Config) EnvironmentVariables(name string) map[string]string {
	if c.Environments == nil {
		return nil
	}
	return c.Environments[name]
}

// ResolveBaseURL returns the base URL for an environment. An environment's
// baseUrl variable takes precedence over the top-level baseUrl.
func (c *Config) ResolveBaseURL(envName string) string {
	if vars := c.EnvironmentVariables(envName); vars != nil {
		if u, ok := vars["baseUrl"]; ok && u != "" {
			return u
		}
	}
	return c.BaseURL
}

// Validate checks values that cannot be caught by YAML decoding.
func (c *Config) Validate() error {
	var errs []error
	switch c.Driver {
	case "", "http", "rod", "playwright":
	default:
		errs = append(errs, fmt.Errorf("unknown driver %q", c.Driver))
	}
	if _, err := c.GetTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GetPollTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.GetPollInterval(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("maxRedirects must not be negative"))
	}
	if c.WaitFor != nil {
		if c.WaitFor.URL == "" {
			errs = append(errs, fmt.Errorf("waitFor.url is required"))
		}
		if _, err := c.WaitFor.GetTimeout(); err != nil {
			errs = append(errs, err)
		}
		if _, err := c.WaitFor.GetInterval(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	"pagespec.yaml",
	"pagespec.yml",
	".pagespec.yaml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return DefaultConfig(), nil
	}
	return FindAndLoadConfig(cwd)
}

// FindAndLoadConfig searches dir and its parents for a config file.
func FindAndLoadConfig(dir string) (*Config, error) {
	for {
		for _, filename := range ConfigFilenames {
			configPath := filepath.Join(dir, filename)
			if _, err := os.Stat(configPath); err == nil {
				return loadConfigFromFile(configPath)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	config.Path = path

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return config, nil
}

// ResolvePath resolves p relative to the directory of the config file.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), p)
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.Driver != "" {
		result.Driver = other.Driver
	}
	if other.BrowserBin != "" {
		result.BrowserBin = other.BrowserBin
	}
	if other.Timeout != "" {
		result.Timeout = other.Timeout
	}
	if other.PollTimeout != "" {
		result.PollTimeout = other.PollTimeout
	}
	if other.PollInterval != "" {
		result.PollInterval = other.PollInterval
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Reporter != "" {
		result.Reporter = other.Reporter
	}
	if other.OutputFile != "" {
		result.OutputFile = other.OutputFile
	}
	if other.History != "" {
		result.History = other.History
	}
	if other.WaitFor != nil {
		result.WaitFor = other.WaitFor
	}
	if other.Notify != nil {
		result.Notify = other.Notify
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Headless != nil {
		result.Headless = other.Headless
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	// Merge headers
	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(c.Headers)+len(other.Headers))
		for k, v := range c.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	// Merge environments
	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]string, len(c.Environments)+len(other.Environments))
		for k, v := range c.Environments {
			envs[k] = v
		}
		for k, v := range other.Environments {
			envs[k] = v
		}
		result.Environments = envs
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
