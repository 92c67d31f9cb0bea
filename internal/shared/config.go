package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Service   ServiceConfig   `toml:"service"`
	Progress  ProgressConfig  `toml:"progress"`
	Downloads DownloadsConfig `toml:"downloads"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ServiceConfig describes the remote processing service.
type ServiceConfig struct {
	BaseURL       string        `toml:"base_url"`
	ProcessedPath string        `toml:"processed_path"`
	APIToken      string        `toml:"api_token"`
	RateLimit     float64       `toml:"rate_limit"` // requests per second, 0 disables pacing
	Timeout       time.Duration `toml:"timeout"`
}

// ProgressConfig tunes the simulated processing indicator.
type ProgressConfig struct {
	TickInterval time.Duration `toml:"tick_interval"`
	Deadline     time.Duration `toml:"deadline"`
	MaxIncrement int           `toml:"max_increment"`
}

// DownloadsConfig contains local save settings.
type DownloadsConfig struct {
	Dir string `toml:"dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains log settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // used while the TUI owns the terminal
}

// LoadConfig reads a TOML file and overlays it on [DefaultConfig], so omitted keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks values the workflow cannot run without.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("%w: service.base_url is required", ErrInvalidConfig)
	}
	if c.Progress.TickInterval <= 0 || c.Progress.Deadline <= 0 {
		return fmt.Errorf("%w: progress intervals must be positive", ErrInvalidConfig)
	}
	if c.Progress.MaxIncrement < 1 {
		return fmt.Errorf("%w: progress.max_increment must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
