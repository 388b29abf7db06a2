package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "SCRUBBER_"

// fallbackKeyVars are consulted, in order, when no API key is configured.
var fallbackKeyVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

func env(name string) string { return os.Getenv(EnvPrefix + name) }

// ApplyEnvConfig applies configuration from environment variables (SCRUBBER_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("input", env("INPUT"), &cfg.Input)
	s.setString("output", env("OUTPUT"), &cfg.Output)
	s.setString("checkpoint", env("CHECKPOINT"), &cfg.Checkpoint)
	s.setString("start-tag", env("START_TAG"), &cfg.StartTag)
	s.setString("end-tag", env("END_TAG"), &cfg.EndTag)
	s.setString("provider", env("PROVIDER"), &cfg.Provider)
	s.setString("model", env("MODEL"), &cfg.Model)
	s.setString("api-key", env("API_KEY"), &cfg.APIKey)
	s.setString("base-url", env("BASE_URL"), &cfg.BaseURL)
	s.setString("nats-url", env("NATS_URL"), &cfg.NATSURL)
	s.setString("nats-token", env("NATS_TOKEN"), &cfg.NATSToken)
	s.setString("status-addr", env("STATUS_ADDR"), &cfg.StatusAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", env("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-backoff", env("RETRY_BACKOFF"), &cfg.RetryBackoff); err != nil {
		return err
	}
	if err := s.setDuration("rate-limit-cooldown", env("RATE_LIMIT_COOLDOWN"), &cfg.RateLimitCooldown); err != nil {
		return err
	}
	if err := s.setDuration("batch-interval", env("BATCH_INTERVAL"), &cfg.BatchInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("batch-size", env("BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-output-tokens", env("MAX_OUTPUT_TOKENS"), &cfg.MaxOutputTokens); err != nil {
		return err
	}
	if err := s.setIntFromString("accept-percent", env("ACCEPT_PERCENT"), &cfg.AcceptPercent); err != nil {
		return err
	}
	if err := s.setIntFromString("max-attempts", env("MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("max-rate-limit-waits", env("MAX_RATE_LIMIT_WAITS"), &cfg.MaxRateLimitWaits); err != nil {
		return err
	}
	if err := s.setFloatFromString("max-loss-percent", env("MAX_LOSS_PERCENT"), &cfg.MaxLossPercent); err != nil {
		return err
	}

	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)

	if cfg.APIKey == "" {
		for _, name := range fallbackKeyVars {
			if v := os.Getenv(name); v != "" {
				s.setString("api-key", v, &cfg.APIKey)
				break
			}
		}
	}
	return nil
}
