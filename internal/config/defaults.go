// Package config loads application configuration: defaults overlaid by an
// optional dotfile, then validated.
package config

// Config holds all application configuration. Values present in the config
// file override defaults, including explicit zero values; missing keys keep
// their defaults.
type Config struct {
	Engine   EngineConfig   `json:"engine"`
	Provider ProviderConfig `json:"provider"`
	Shell    ShellConfig    `json:"shell"`
	Log      LogConfig      `json:"log"`
}

type EngineConfig struct {
	// MaxTurns bounds tool-triggered model round-trips per user message.
	MaxTurns int `json:"max_turns"`
	// MaxTokens per model response.
	MaxTokens int `json:"max_tokens"`
}

type ProviderConfig struct {
	// Model is the model identifier sent with every request.
	Model string `json:"model"`
	// MaxRetries on transient model-call failures.
	MaxRetries int `json:"max_retries"`
	// RetryDelayMs is the backoff base in milliseconds.
	RetryDelayMs int `json:"retry_delay_ms"`
}

type ShellConfig struct {
	// DefaultTimeoutSec applies when a bash call specifies no timeout.
	DefaultTimeoutSec int `json:"default_timeout_sec"`
	// MaxOutputBytes caps the retained output per command.
	MaxOutputBytes int `json:"max_output_bytes"`
}

type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxTurns:  24,
			MaxTokens: 4096,
		},
		Provider: ProviderConfig{
			Model:        "claude-sonnet-4-20250514",
			MaxRetries:   3,
			RetryDelayMs: 1000,
		},
		Shell: ShellConfig{
			DefaultTimeoutSec: 120,
			MaxOutputBytes:    512 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
