// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/tender-ingest/internal/logging"
	"github.com/jonathan/tender-ingest/internal/schemas"
)

// Defaults
const (
	DefaultWorkers      = 4
	DefaultParseWorkers = 8
	DefaultTaskTimeout  = 60 * time.Second
	DefaultSchedule     = "@every 30m"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Run scope
	CPVCode string `json:"cpv_code,omitempty" validate:"omitempty,numeric,len=8"`
	RootDir string `json:"root_dir,omitempty"`

	// Portal
	BaseURL       string `json:"base_url,omitempty" validate:"omitempty,url"`
	ControllerURL string `json:"controller_url,omitempty" validate:"omitempty,url"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty"`

	// Throughput
	Workers            int     `json:"workers,omitempty" validate:"gte=0,lte=64"`
	ParseWorkers       int     `json:"parse_workers,omitempty" validate:"gte=0,lte=64"`
	BatchSize          int     `json:"batch_size,omitempty" validate:"gte=0"`
	TaskTimeoutSeconds int     `json:"task_timeout_seconds,omitempty" validate:"gte=0"`
	RequestsPerSecond  float64 `json:"requests_per_second,omitempty" validate:"gte=0"`

	// Behavior
	Force       bool           `json:"force,omitempty"`
	Verbose     bool           `json:"verbose,omitempty"`
	MetricsAddr string         `json:"metrics_addr,omitempty"`
	Schedule    string         `json:"schedule,omitempty"`
	Log         logging.Config `json:"log,omitempty"`
}

// LoadConfig loads configuration from a JSON file and checks it against the
// configuration schema. Returns an error if the file cannot be read, parsed
// or fails the schema.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := schemas.ValidateConfig(data); err != nil {
		return nil, fmt.Errorf("config file %s does not match schema: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.RootDir != "" {
		info, err := os.Stat(c.RootDir)
		if err == nil && !info.IsDir() {
			return fmt.Errorf("config error: root_dir is not a directory: %s", c.RootDir)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.CPVCode == "" {
		result.CPVCode = defaults.CPVCode
	}
	if result.RootDir == "" {
		result.RootDir = defaults.RootDir
	}
	if result.BaseURL == "" {
		result.BaseURL = defaults.BaseURL
	}
	if result.ControllerURL == "" {
		result.ControllerURL = defaults.ControllerURL
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.MetricsAddr == "" {
		result.MetricsAddr = defaults.MetricsAddr
	}
	if result.Schedule == "" {
		result.Schedule = defaults.Schedule
	}
	if result.Log.Level == "" {
		result.Log.Level = defaults.Log.Level
	}
	if result.Log.Format == "" {
		result.Log.Format = defaults.Log.Format
	}

	// Numeric fields: use default if zero
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.ParseWorkers == 0 {
		result.ParseWorkers = defaults.ParseWorkers
	}
	if result.BatchSize == 0 {
		result.BatchSize = defaults.BatchSize
	}
	if result.TaskTimeoutSeconds == 0 {
		result.TaskTimeoutSeconds = defaults.TaskTimeoutSeconds
	}
	if result.RequestsPerSecond == 0 {
		result.RequestsPerSecond = defaults.RequestsPerSecond
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Defaults returns the built-in configuration, overlaid with the environment.
func Defaults() Config {
	env := FromEnv()
	cfg := Config{
		Workers:            DefaultWorkers,
		ParseWorkers:       DefaultParseWorkers,
		TaskTimeoutSeconds: int(DefaultTaskTimeout / time.Second),
		Schedule:           DefaultSchedule,
		Log:                logging.DefaultConfig(),
	}
	return env.MergeWithDefaults(cfg)
}

// TaskTimeout returns the per-download timeout.
func (c *Config) TaskTimeout() time.Duration {
	if c.TaskTimeoutSeconds <= 0 {
		return DefaultTaskTimeout
	}
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}
