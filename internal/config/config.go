package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the pilot server configuration
type Config struct {
	// Data directory for the journal and the default config file
	DataDir string `yaml:"data_dir"`

	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Agent    AgentConfig    `yaml:"agent"`
	Journal  JournalConfig  `yaml:"journal"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds websocket listener settings
type ServerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`                 // First port tried (PC_SERVER_PORT)
	PortAttempts      int    `yaml:"port_attempts"`        // Ports probed upward on bind conflict
	TaskRatePerMinute int    `yaml:"task_rate_per_minute"` // 0 = unlimited
	TaskBurst         int    `yaml:"task_burst"`
	TaskQueue         int    `yaml:"task_queue"` // Pending tasks per connection
}

// ProviderConfig selects the reasoning provider
type ProviderConfig struct {
	Type      string `yaml:"type"`               // "anthropic" or "openai"
	APIKey    string `yaml:"api_key"`            // Empty = fallback planner only
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	BaseURL   string `yaml:"base_url,omitempty"` // API endpoint override (proxies, gateways)
}

// AgentConfig holds agent loop limits and action pacing
type AgentConfig struct {
	MaxIterations     int           `yaml:"max_iterations"`
	DisplayWidth      int           `yaml:"display_width"`
	DisplayHeight     int           `yaml:"display_height"`
	FallbackDelay     time.Duration `yaml:"fallback_delay"`
	ClickSettle       time.Duration `yaml:"click_settle"`
	TypeSettle        time.Duration `yaml:"type_settle"`
	NavigateSettle    time.Duration `yaml:"navigate_settle"`
	ScreenshotTimeout time.Duration `yaml:"screenshot_timeout"`
}

// JournalConfig controls the sqlite record of finished tasks
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // Default: <data_dir>/pilot.db
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8765,
			PortAttempts:      5,
			TaskRatePerMinute: 30,
			TaskBurst:         5,
			TaskQueue:         8,
		},
		Provider: ProviderConfig{
			Type:      "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
		},
		Agent: AgentConfig{
			MaxIterations:     10,
			DisplayWidth:      1024,
			DisplayHeight:     768,
			FallbackDelay:     200 * time.Millisecond,
			ClickSettle:       time.Second,
			TypeSettle:        time.Second,
			NavigateSettle:    3 * time.Second,
			ScreenshotTimeout: 5 * time.Second,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultDataDir returns the platform-appropriate data directory.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".pilot"
	}
	return filepath.Join(dir, "pilot")
}

// Load loads config from <data_dir>/config.yaml if it exists, then applies the environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "config.yaml"))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	cfg.finish()
	return cfg, cfg.Validate()
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.finish()
	return cfg, cfg.Validate()
}

// finish expands ~ and ${VAR} references and applies environment overrides
func (c *Config) finish() {
	if strings.HasPrefix(c.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, c.DataDir[2:])
	}

	c.Provider.APIKey = os.ExpandEnv(c.Provider.APIKey)
	c.Provider.BaseURL = os.ExpandEnv(c.Provider.BaseURL)
	c.Journal.Path = os.ExpandEnv(c.Journal.Path)
	c.Logging.File = os.ExpandEnv(c.Logging.File)

	if v := os.Getenv("PC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("PILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	// The credential follows the provider type unless the file set one
	if c.Provider.APIKey == "" {
		switch c.Provider.Type {
		case "anthropic":
			c.Provider.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.PortAttempts <= 0 {
		errs = append(errs, fmt.Errorf("server.port_attempts must be positive"))
	}
	if c.Agent.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("agent.max_iterations must be positive"))
	}
	if c.Server.TaskQueue <= 0 {
		errs = append(errs, fmt.Errorf("server.task_queue must be positive"))
	}
	return errors.Join(errs...)
}

// HasCredential reports whether a reasoning provider can be built
func (c *Config) HasCredential() bool {
	return c.Provider.APIKey != ""
}

// JournalPath returns the sqlite path of the task journal
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.DataDir, "pilot.db")
}
