package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "pebble", config.Storage.Driver)
	assert.Equal(t, "/tmp/mydb", config.Storage.Path)
	assert.Equal(t, int64(512*1024*1024), config.Storage.MapSize)
	assert.Equal(t, "-", config.Binding.Separator)
	assert.Equal(t, "exclude", config.Binding.FieldFilter)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "usertable", config.Workload.Table)
	assert.Empty(t, config.Metrics.Addr)

	_, err := config.Validate()
	assert.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Run("load existing config", func(t *testing.T) {
		tmpDir, err := os.MkdirTemp("", "freyjabench_config_test")
		require.NoError(t, err)
		defer os.RemoveAll(tmpDir)

		configPath := filepath.Join(tmpDir, "config.yaml")
		expectedConfig := DefaultConfig()
		expectedConfig.Storage.Driver = "log"
		expectedConfig.Storage.Path = "/custom/data"
		expectedConfig.Binding.FieldFilter = "project"
		expectedConfig.Logging.Level = "debug"
		expectedConfig.Workload.Threads = 16

		err = SaveConfig(expectedConfig, configPath)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, expectedConfig, loadedConfig)
	})

	t.Run("partial file keeps defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "partial.yaml")
		err := os.WriteFile(configPath, []byte("storage:\n  driver: sqlite\n"), 0644)
		require.NoError(t, err)

		loadedConfig, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", loadedConfig.Storage.Driver)
		assert.Equal(t, "/tmp/mydb", loadedConfig.Storage.Path)
		assert.Equal(t, 1000, loadedConfig.Workload.RecordCount)
	})

	t.Run("load non-existent config", func(t *testing.T) {
		_, err := LoadConfig("/non/existent/config.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "config file does not exist")
	})

	t.Run("load invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := DefaultConfig()

	err := SaveConfig(config, configPath)
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loadedConfig, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, config, loadedConfig)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "lmdb" }},
		{"missing path", func(c *Config) { c.Storage.Path = "" }},
		{"zero map size", func(c *Config) { c.Storage.MapSize = 0 }},
		{"long separator", func(c *Config) { c.Binding.Separator = "::" }},
		{"backslash separator", func(c *Config) { c.Binding.Separator = `\` }},
		{"unknown filter", func(c *Config) { c.Binding.FieldFilter = "include" }},
		{"unknown level", func(c *Config) { c.Logging.Level = "trace" }},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }},
		{"no table", func(c *Config) { c.Workload.Table = "" }},
		{"no threads", func(c *Config) { c.Workload.Threads = 0 }},
		{"no fields", func(c *Config) { c.Workload.FieldCount = 0 }},
		{"negative proportion", func(c *Config) { c.Workload.ReadProportion = -1 }},
		{"zero proportions", func(c *Config) {
			c.Workload.ReadProportion = 0
			c.Workload.UpdateProportion = 0
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)

			_, err := config.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}

	t.Run("memory driver needs no path", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.Driver = "memory"
		config.Storage.Path = ""

		_, err := config.Validate()
		assert.NoError(t, err)
	})

	t.Run("scan proportion warns", func(t *testing.T) {
		config := DefaultConfig()
		config.Workload.ScanProportion = 0.1

		warnings, err := config.Validate()
		require.NoError(t, err)
		assert.NotEmpty(t, warnings)
	})

	t.Run("huge map size warns", func(t *testing.T) {
		config := DefaultConfig()
		config.Storage.MapSize = 1 << 62

		warnings, err := config.Validate()
		require.NoError(t, err)
		assert.NotEmpty(t, warnings)
	})
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	assert.NotEmpty(t, path)
	assert.Contains(t, path, "freyjabench")
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()

	existingPath := filepath.Join(tmpDir, "exists.yaml")
	nonExistentPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	err := os.WriteFile(existingPath, []byte("test"), 0644)
	require.NoError(t, err)

	assert.True(t, ConfigExists(existingPath))
	assert.False(t, ConfigExists(nonExistentPath))
}

func TestConfigYAMLMarshalling(t *testing.T) {
	config := DefaultConfig()
	config.Metrics.Addr = ":9100"

	data, err := yaml.Marshal(config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "map_size: 536870912")
	assert.Contains(t, string(data), "field_filter: exclude")

	var unmarshalled Config
	err = yaml.Unmarshal(data, &unmarshalled)
	require.NoError(t, err)

	assert.Equal(t, config, &unmarshalled)
}

func TestSaveConfigErrorHandling(t *testing.T) {
	config := DefaultConfig()

	// A regular file where a directory is expected
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := SaveConfig(config, filepath.Join(blocker, "sub", "config.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create config directory")
}
