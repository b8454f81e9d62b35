package config

import "time"

const (
	DefaultTimeout         = 10 * time.Second
	DefaultPollTimeout     = 4 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultWaitForTimeout  = 30 * time.Second
	DefaultWaitForInterval = 500 * time.Millisecond
	DefaultMaxRedirects    = 10
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultEnvironment: "dev",
		Driver:             "http",
		Headless:           BoolPtr(true),
		Timeout:            DefaultTimeout.String(),
		PollTimeout:        DefaultPollTimeout.String(),
		PollInterval:       DefaultPollInterval.String(),
		FollowRedirects:    BoolPtr(true),
		MaxRedirects:       DefaultMaxRedirects,
		ValidateSSL:        BoolPtr(true),
		Reporter:           "console",
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.BaseURL == "" &&
		c.DefaultEnvironment == defaults.DefaultEnvironment &&
		c.Driver == defaults.Driver &&
		c.GetHeadless() == defaults.GetHeadless() &&
		c.Timeout == defaults.Timeout &&
		c.PollTimeout == defaults.PollTimeout &&
		c.PollInterval == defaults.PollInterval &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == "" &&
		len(c.Headers) == 0 &&
		len(c.Environments) == 0 &&
		c.Reporter == defaults.Reporter &&
		c.GetBail() == defaults.GetBail() &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.History == "" &&
		c.WaitFor == nil &&
		c.Notify == nil
}
