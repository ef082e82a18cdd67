// Package config loads and validates the triage bot configuration from a
// YAML file with environment variable expansion and overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelConfig selects a provider-backed model.
type ModelConfig struct {
	Provider        string `yaml:"provider"` // "openai" or "anthropic"
	Name            string `yaml:"name"`
	APIKey          string `yaml:"api_key"`
	MaxOutputTokens int64  `yaml:"max_output_tokens"`
}

// ChatConfig configures the chat platform client.
type ChatConfig struct {
	BotToken string `yaml:"bot_token"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// SourceKind discriminates tool source transports.
type SourceKind string

const (
	// SourceKindLocal is a subprocess speaking the tool protocol over stdio.
	SourceKindLocal SourceKind = "local"
	// SourceKindRemote is an HTTP endpoint speaking the tool protocol.
	SourceKindRemote SourceKind = "remote"
)

// ToolSource describes one external tool source. Exactly one transport kind
// must be set: Command (plus Args/Env) for a local subprocess, or URL (plus
// Headers) for a remote endpoint.
type ToolSource struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	URL     string            `yaml:"url,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Kind reports the transport kind implied by the populated fields.
func (s ToolSource) Kind() SourceKind {
	if s.Command != "" {
		return SourceKindLocal
	}
	return SourceKindRemote
}

// Validate checks the exactly-one-transport invariant.
func (s ToolSource) Validate() error {
	if s.Command != "" && s.URL != "" {
		return fmt.Errorf("tool source %q: command and url are mutually exclusive", s.Name)
	}
	if s.Command == "" && s.URL == "" {
		return fmt.Errorf("tool source %q: one of command or url is required", s.Name)
	}
	return nil
}

// Config is the root configuration for the triage bot.
type Config struct {
	Log         LogConfig     `yaml:"log"`
	Model       ModelConfig   `yaml:"model"`
	HelperModel ModelConfig   `yaml:"helper_model"`
	Chat        ChatConfig    `yaml:"chat"`
	Store       StoreConfig   `yaml:"store"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tools       []ToolSource  `yaml:"tools"`
}

// DefaultConfig returns a baseline configuration suitable for local runs.
func DefaultConfig() *Config {
	return &Config{
		Log:         LogConfig{Level: "info", Format: "json"},
		Model:       ModelConfig{Provider: "openai", Name: "gpt-4o", MaxOutputTokens: 4096},
		// Helpers need server-side web search, which only the openai
		// adapter provides.
		HelperModel: ModelConfig{Provider: "openai", Name: "gpt-4o-mini", MaxOutputTokens: 4096},
		Store:       StoreConfig{Path: "triage-bot.db"},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads path (optional), expands ${VAR} references, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Expand environment variables in the config file
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv applies environment variable overrides for secrets so they do
// not need to appear in the config file at all.
func loadFromEnv(cfg *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if cfg.Model.Provider == "openai" && cfg.Model.APIKey == "" {
			cfg.Model.APIKey = apiKey
		}
		if cfg.HelperModel.Provider == "openai" && cfg.HelperModel.APIKey == "" {
			cfg.HelperModel.APIKey = apiKey
		}
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		if cfg.Model.Provider == "anthropic" && cfg.Model.APIKey == "" {
			cfg.Model.APIKey = apiKey
		}
		if cfg.HelperModel.Provider == "anthropic" && cfg.HelperModel.APIKey == "" {
			cfg.HelperModel.APIKey = apiKey
		}
	}
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" && cfg.Chat.BotToken == "" {
		cfg.Chat.BotToken = token
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model.Provider != "openai" && c.Model.Provider != "anthropic" {
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}
	if c.HelperModel.Provider != "openai" && c.HelperModel.Provider != "anthropic" {
		return fmt.Errorf("unknown helper model provider %q", c.HelperModel.Provider)
	}
	for _, src := range c.Tools {
		if err := src.Validate(); err != nil {
			return err
		}
	}
	return nil
}
