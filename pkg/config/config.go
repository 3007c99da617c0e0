/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbnjay/memory"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/freyjabench/pkg/codec"
	"github.com/ssargent/freyjabench/pkg/storage"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the freyjabench configuration
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Binding  Binding  `yaml:"binding"`
	Logging  Logging  `yaml:"logging"`
	Workload Workload `yaml:"workload"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Storage selects and sizes the embedded engine
type Storage struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
	MapSize int64  `yaml:"map_size"`
	Sync    bool   `yaml:"sync"`
}

// Binding controls how records are keyed and decoded
type Binding struct {
	Separator   string `yaml:"separator"`
	FieldFilter string `yaml:"field_filter"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Workload describes a core workload run
type Workload struct {
	Table            string  `yaml:"table"`
	RecordCount      int     `yaml:"record_count"`
	OperationCount   int     `yaml:"operation_count"`
	FieldCount       int     `yaml:"field_count"`
	FieldLength      int     `yaml:"field_length"`
	ReadProportion   float64 `yaml:"read_proportion"`
	UpdateProportion float64 `yaml:"update_proportion"`
	InsertProportion float64 `yaml:"insert_proportion"`
	DeleteProportion float64 `yaml:"delete_proportion"`
	ScanProportion   float64 `yaml:"scan_proportion"`
	Threads          int     `yaml:"threads"`
	ReadAllFields    bool    `yaml:"read_all_fields"`
	OrderedInserts   bool    `yaml:"ordered_inserts"`
}

// Metrics configures the optional prometheus endpoint
type Metrics struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: Storage{
			Driver:  storage.DriverPebble,
			Path:    "/tmp/mydb",
			MapSize: storage.DefaultMaxSize,
			Sync:    false,
		},
		Binding: Binding{
			Separator:   "-",
			FieldFilter: codec.FilterExclude.String(),
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Workload: Workload{
			Table:            "usertable",
			RecordCount:      1000,
			OperationCount:   1000,
			FieldCount:       10,
			FieldLength:      100,
			ReadProportion:   0.5,
			UpdateProportion: 0.5,
			Threads:          4,
			ReadAllFields:    true,
		},
	}
}

// LoadConfig loads configuration from the specified path. Values missing
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration. Problems that would make a run fail
// are returned as an error; questionable but usable settings come back as
// warnings.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	if !contains(storage.Drivers(), c.Storage.Driver) {
		return nil, fmt.Errorf("%w: storage.driver %q (want one of %s)",
			ErrInvalidConfig, c.Storage.Driver, strings.Join(storage.Drivers(), ", "))
	}
	if c.Storage.Driver != storage.DriverMemory && c.Storage.Path == "" {
		return nil, fmt.Errorf("%w: storage.path is required", ErrInvalidConfig)
	}
	if c.Storage.MapSize <= 0 {
		return nil, fmt.Errorf("%w: storage.map_size must be positive", ErrInvalidConfig)
	}
	if total := memory.TotalMemory(); total > 0 && total <= math.MaxInt64 && c.Storage.MapSize > int64(total) {
		warnings = append(warnings, fmt.Sprintf("storage.map_size %d exceeds system memory %d", c.Storage.MapSize, total))
	}

	if len(c.Binding.Separator) != 1 || c.Binding.Separator == `\` {
		return nil, fmt.Errorf("%w: binding.separator must be a single byte other than backslash", ErrInvalidConfig)
	}
	if _, err := codec.ParseFilterMode(c.Binding.FieldFilter); err != nil {
		return nil, fmt.Errorf("%w: binding.field_filter: %v", ErrInvalidConfig, err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("%w: logging.level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return nil, fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}

	w := c.Workload
	if w.Table == "" {
		return nil, fmt.Errorf("%w: workload.table is required", ErrInvalidConfig)
	}
	if w.RecordCount < 0 || w.OperationCount < 0 {
		return nil, fmt.Errorf("%w: workload counts must not be negative", ErrInvalidConfig)
	}
	if w.FieldCount <= 0 || w.FieldLength < 0 {
		return nil, fmt.Errorf("%w: workload.field_count must be positive", ErrInvalidConfig)
	}
	if w.Threads <= 0 {
		return nil, fmt.Errorf("%w: workload.threads must be positive", ErrInvalidConfig)
	}
	proportions := []float64{w.ReadProportion, w.UpdateProportion, w.InsertProportion, w.DeleteProportion, w.ScanProportion}
	var sum float64
	for _, p := range proportions {
		if p < 0 {
			return nil, fmt.Errorf("%w: workload proportions must not be negative", ErrInvalidConfig)
		}
		sum += p
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: workload proportions sum to zero", ErrInvalidConfig)
	}
	if w.ScanProportion > 0 {
		warnings = append(warnings, "workload.scan_proportion > 0: scans always report NOT_IMPLEMENTED")
	}

	return warnings, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./freyjabench.yaml"
	}

	return filepath.Join(homeDir, ".config", "freyjabench", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
