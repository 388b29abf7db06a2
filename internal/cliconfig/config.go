package cliconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/scrubber/internal/domain"
)

// Provider names accepted by --provider.
const (
	ProviderGemini = "gemini"
	ProviderEcho   = "echo"
)

// Config holds CLI configuration for scrubber.
type Config struct {
	Input      string
	Output     string
	Checkpoint string

	StartTag string
	EndTag   string

	BatchSize int

	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	HTTPTimeout     time.Duration
	MaxOutputTokens int
	AcceptPercent   int

	MaxAttempts       int
	RetryBackoff      time.Duration
	RateLimitCooldown time.Duration
	MaxRateLimitWaits int
	BatchInterval     time.Duration
	MaxLossPercent    float64

	NATSURL    string
	NATSToken  string
	StatusAddr string
	Watch      bool
	LogLevel   string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Input:             "input.jsonl",
		Output:            "output.jsonl",
		Checkpoint:        "checkpoint.json",
		StartTag:          "<TO_GENERALIZE>",
		EndTag:            "</TO_GENERALIZE>",
		BatchSize:         50,
		Provider:          ProviderGemini,
		Model:             "gemini-2.5-flash-lite",
		HTTPTimeout:       120 * time.Second,
		MaxOutputTokens:   10000,
		AcceptPercent:     90,
		MaxAttempts:       2,
		RetryBackoff:      10 * time.Second,
		RateLimitCooldown: 65 * time.Second,
		BatchInterval:     5 * time.Second,
		MaxLossPercent:    5,
		LogLevel:          "info",
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), domain.ErrInvalidConfig)
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Input == "" {
		return invalid("input is required")
	}
	if c.Output == "" {
		return invalid("output is required")
	}
	if filepath.Clean(c.Input) == filepath.Clean(c.Output) {
		return invalid("output must differ from input")
	}
	if c.Checkpoint == "" {
		return invalid("checkpoint is required")
	}
	if c.StartTag == "" || c.EndTag == "" {
		return invalid("start and end tags are required")
	}
	if c.BatchSize < 1 {
		return invalid("batch size must be at least 1")
	}

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderGemini:
		if c.APIKey == "" {
			return invalid("api key is required for provider %q", c.Provider)
		}
	case ProviderEcho:
	default:
		return invalid("unknown provider %q", c.Provider)
	}

	// Ensure no trailing slash
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.AcceptPercent < 1 || c.AcceptPercent > 100 {
		return invalid("accept percent must be in 1..100")
	}
	if c.MaxAttempts < 1 {
		return invalid("max attempts must be at least 1")
	}
	if c.MaxRateLimitWaits < 0 {
		return invalid("max rate limit waits must not be negative")
	}
	if c.MaxLossPercent < 0 || c.MaxLossPercent > 100 {
		return invalid("max loss percent must be in 0..100")
	}
	if c.HTTPTimeout <= 0 {
		return invalid("http timeout must be positive")
	}
	if c.RetryBackoff < 0 || c.RateLimitCooldown < 0 || c.BatchInterval < 0 {
		return invalid("pauses must not be negative")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}

// Masked returns a copy safe for logging.
func (c Config) Masked() Config {
	if c.APIKey != "" {
		c.APIKey = "*****"
	}
	if c.NATSToken != "" {
		c.NATSToken = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings. Zero is accepted so
// that limits can be lifted from the environment.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f < 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
