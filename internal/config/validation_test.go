package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDefaultsPass(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero max_turns", func(c *Config) { c.Engine.MaxTurns = 0 }, "max_turns"},
		{"zero max_tokens", func(c *Config) { c.Engine.MaxTokens = 0 }, "max_tokens"},
		{"empty model", func(c *Config) { c.Provider.Model = "" }, "model"},
		{"negative retries", func(c *Config) { c.Provider.MaxRetries = -1 }, "max_retries"},
		{"zero retry delay", func(c *Config) { c.Provider.RetryDelayMs = 0 }, "retry_delay_ms"},
		{"zero shell timeout", func(c *Config) { c.Shell.DefaultTimeoutSec = 0 }, "default_timeout_sec"},
		{"zero output cap", func(c *Config) { c.Shell.MaxOutputBytes = 0 }, "max_output_bytes"},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.MaxTurns = 0
	cfg.Provider.Model = ""
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	assert.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "max_turns")
	assert.Contains(t, msg, "model")
	assert.Contains(t, msg, "log.level")
}
