// Package config holds all greenprint configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all greenprint configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Generation pipeline configuration
	Pipeline PipelineConfig `yaml:"pipeline"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generation provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, openai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// PipelineConfig configures the four-stage generation pipeline.
type PipelineConfig struct {
	// MaxRetries is the number of regeneration attempts after the initial
	// attempt for a stage that fails validation.
	MaxRetries int `yaml:"max_retries"`

	// StageTimeout bounds a single stage's generation call.
	StageTimeout string `yaml:"stage_timeout"`

	// SessionTimeout bounds a full four-stage run.
	SessionTimeout string `yaml:"session_timeout"`

	// DatabasePath is the SQLite artifact store location.
	DatabasePath string `yaml:"database_path"`

	// OutputDirectory receives rendered playbooks.
	OutputDirectory string `yaml:"output_directory"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// SessionTTL is how long completed/failed sessions and their outputs
	// are retained before cleanup.
	SessionTTL string `yaml:"session_ttl"`
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "greenprint",
		Version: "1.0.0",

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "120s",
		},

		Pipeline: PipelineConfig{
			MaxRetries:      2,
			StageTimeout:    "2m",
			SessionTimeout:  "10m",
			DatabasePath:    "data/greenprint.db",
			OutputDirectory: "outputs",
		},

		Server: ServerConfig{
			Addr:       ":8000",
			SessionTTL: "4h",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults when
// the file does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides overrides config values from the environment.
func (c *Config) applyEnvOverrides() {
	switch c.LLM.Provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	default:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.LLM.APIKey = key
		}
	}

	if path := os.Getenv("GREENPRINT_DB"); path != "" {
		c.Pipeline.DatabasePath = path
	}
	if addr := os.Getenv("GREENPRINT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm provider is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api_key is required (set GEMINI_API_KEY or OPENAI_API_KEY)")
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("pipeline max_retries must be at least 1, got %d", c.Pipeline.MaxRetries)
	}
	if _, err := c.StageTimeout(); err != nil {
		return fmt.Errorf("invalid stage_timeout: %w", err)
	}
	if _, err := c.SessionTimeout(); err != nil {
		return fmt.Errorf("invalid session_timeout: %w", err)
	}
	if _, err := c.SessionTTL(); err != nil {
		return fmt.Errorf("invalid session_ttl: %w", err)
	}
	return nil
}

// ParsedTimeout returns the parsed LLM call timeout.
func (c LLMConfig) ParsedTimeout() (time.Duration, error) {
	return parseDuration(c.Timeout, 120*time.Second)
}

// StageTimeout returns the parsed per-stage timeout.
func (c *Config) StageTimeout() (time.Duration, error) {
	return parseDuration(c.Pipeline.StageTimeout, 2*time.Minute)
}

// SessionTimeout returns the parsed per-session timeout.
func (c *Config) SessionTimeout() (time.Duration, error) {
	return parseDuration(c.Pipeline.SessionTimeout, 10*time.Minute)
}

// SessionTTL returns the parsed session retention period.
func (c *Config) SessionTTL() (time.Duration, error) {
	return parseDuration(c.Server.SessionTTL, 4*time.Hour)
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}
