package config

import (
	"encoding/json"
	"fmt"
)

// DefaultSystemPrompt steers the layout agent when the caller does not
// provide its own system prompt.
const DefaultSystemPrompt = "You are Fiona's autonomous editorial design agent. " +
	"You can plan changes, call the provided layout tools, and stop once the spreads feel balanced. " +
	"Always describe your reasoning before taking actions."

// Config represents the main Folio configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Projects storage
	Projects ProjectsConfig `json:"projects" mapstructure:"projects"`

	// Agent configuration
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Snapshot rendering
	Snapshot SnapshotConfig `json:"snapshot" mapstructure:"snapshot"`

	// Housekeeping sweeps
	Housekeeping HousekeepingConfig `json:"housekeeping" mapstructure:"housekeeping"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// ProjectsConfig holds project storage configuration
type ProjectsConfig struct {
	Root string `json:"root" mapstructure:"root"`
}

// AgentConfig holds the layout agent configuration
type AgentConfig struct {
	Provider       string `json:"provider" mapstructure:"provider"` // openai, anthropic
	Model          string `json:"model" mapstructure:"model"`
	APIKey         string `json:"api_key" mapstructure:"api_key"`
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	SystemPrompt   string `json:"system_prompt" mapstructure:"system_prompt"`
	MaxTurns       int    `json:"max_turns" mapstructure:"max_turns"`
	EnableThinking bool   `json:"enable_thinking" mapstructure:"enable_thinking"`
	ThinkingBudget int    `json:"thinking_budget" mapstructure:"thinking_budget"`
	MaxTokens      int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// SnapshotConfig holds canvas snapshot configuration
type SnapshotConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled"`
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Width          int    `json:"width" mapstructure:"width"`
	Height         int    `json:"height" mapstructure:"height"`
}

// HousekeepingConfig holds maintenance sweep configuration
type HousekeepingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	Schedule    string `json:"schedule" mapstructure:"schedule"`
	MaxAgeHours int    `json:"max_age_hours" mapstructure:"max_age_hours"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5001,
		},
		Projects: ProjectsConfig{
			Root: "projects",
		},
		Agent: AgentConfig{
			Provider:       "openai",
			Model:          "qvq-plus",
			SystemPrompt:   DefaultSystemPrompt,
			MaxTurns:       12,
			EnableThinking: true,
			ThinkingBudget: 8192,
		},
		Snapshot: SnapshotConfig{
			Enabled:        false,
			TimeoutSeconds: 30,
			Width:          600,
			Height:         800,
		},
		Housekeeping: HousekeepingConfig{
			Enabled:     true,
			Schedule:    "0 * * * *",
			MaxAgeHours: 1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Projects.Root == "" {
		return fmt.Errorf("projects root is required")
	}

	if c.Agent.Provider != "openai" && c.Agent.Provider != "anthropic" {
		return fmt.Errorf("invalid agent provider %s (must be: openai, anthropic)", c.Agent.Provider)
	}
	if c.Agent.Model == "" {
		return fmt.Errorf("agent model is required")
	}
	if c.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent max_turns must be positive")
	}

	if c.Snapshot.Enabled && c.Snapshot.BaseURL == "" {
		return fmt.Errorf("snapshot base_url is required when snapshots are enabled")
	}

	if c.Housekeeping.Enabled && c.Housekeeping.MaxAgeHours <= 0 {
		return fmt.Errorf("housekeeping max_age_hours must be positive")
	}

	return nil
}
