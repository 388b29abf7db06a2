package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Input             string  `toml:"input"`
	Output            string  `toml:"output"`
	Checkpoint        string  `toml:"checkpoint"`
	StartTag          string  `toml:"start_tag"`
	EndTag            string  `toml:"end_tag"`
	BatchSize         int     `toml:"batch_size"`
	Provider          string  `toml:"provider"`
	Model             string  `toml:"model"`
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"`
	HTTPTimeout       string  `toml:"http_timeout"`
	MaxOutputTokens   int     `toml:"max_output_tokens"`
	AcceptPercent     int     `toml:"accept_percent"`
	MaxAttempts       int     `toml:"max_attempts"`
	RetryBackoff      string  `toml:"retry_backoff"`
	RateLimitCooldown string  `toml:"rate_limit_cooldown"`
	MaxRateLimitWaits int     `toml:"max_rate_limit_waits"`
	BatchInterval     string  `toml:"batch_interval"`
	MaxLossPercent    float64 `toml:"max_loss_percent"`
	NATSURL           string  `toml:"nats_url"`
	NATSToken         string  `toml:"nats_token"`
	StatusAddr        string  `toml:"status_addr"`
	Watch             *bool   `toml:"watch"`
	LogLevel          string  `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.scrubber/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".scrubber", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). Zero
// numbers in the file mean "not set".
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", fc.Input, &cfg.Input)
	s.setString("output", fc.Output, &cfg.Output)
	s.setString("checkpoint", fc.Checkpoint, &cfg.Checkpoint)
	s.setString("start-tag", fc.StartTag, &cfg.StartTag)
	s.setString("end-tag", fc.EndTag, &cfg.EndTag)
	s.setString("provider", fc.Provider, &cfg.Provider)
	s.setString("model", fc.Model, &cfg.Model)
	s.setString("api-key", fc.APIKey, &cfg.APIKey)
	s.setString("base-url", fc.BaseURL, &cfg.BaseURL)
	s.setString("nats-url", fc.NATSURL, &cfg.NATSURL)
	s.setString("nats-token", fc.NATSToken, &cfg.NATSToken)
	s.setString("status-addr", fc.StatusAddr, &cfg.StatusAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-backoff", fc.RetryBackoff, &cfg.RetryBackoff); err != nil {
		return err
	}
	if err := s.setDuration("rate-limit-cooldown", fc.RateLimitCooldown, &cfg.RateLimitCooldown); err != nil {
		return err
	}
	if err := s.setDuration("batch-interval", fc.BatchInterval, &cfg.BatchInterval); err != nil {
		return err
	}

	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("max-output-tokens", fc.MaxOutputTokens, &cfg.MaxOutputTokens)
	s.setInt("accept-percent", fc.AcceptPercent, &cfg.AcceptPercent)
	s.setInt("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)
	s.setInt("max-rate-limit-waits", fc.MaxRateLimitWaits, &cfg.MaxRateLimitWaits)
	s.setFloat("max-loss-percent", fc.MaxLossPercent, &cfg.MaxLossPercent)

	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
