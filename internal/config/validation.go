package config

import "fmt"

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the merged configuration and reports every violation.
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.MaxTurns < 1 {
		errs = append(errs, "engine.max_turns must be >= 1")
	}
	if c.Engine.MaxTokens < 1 {
		errs = append(errs, "engine.max_tokens must be >= 1")
	}

	if c.Provider.Model == "" {
		errs = append(errs, "provider.model must not be empty")
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, "provider.max_retries must be >= 0")
	}
	if c.Provider.RetryDelayMs < 1 {
		errs = append(errs, "provider.retry_delay_ms must be >= 1")
	}

	if c.Shell.DefaultTimeoutSec < 1 {
		errs = append(errs, "shell.default_timeout_sec must be >= 1")
	}
	if c.Shell.MaxOutputBytes < 1 {
		errs = append(errs, "shell.max_output_bytes must be >= 1")
	}

	if !logLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}
	return nil
}
