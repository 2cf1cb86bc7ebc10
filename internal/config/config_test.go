package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a temporary config file
func createTempConfigFile(t *testing.T, content string) string {
	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "test_config.toml")
	err := os.WriteFile(filePath, []byte(content), 0600)
	require.NoError(t, err, "Failed to write temp config file")
	return filePath
}

// chdirTemp runs the test from an empty directory so a stray ./rankwatch.toml
// cannot leak into default lookups.
func chdirTemp(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		chdirTemp(t)

		cfg, err := LoadConfig("")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, time.Minute, cfg.TickInterval)
		assert.Equal(t, 24*time.Hour, cfg.SweepInterval)
		assert.Equal(t, 7*24*time.Hour, cfg.RetentionHorizon)
		assert.Equal(t, 3, cfg.MaxPages)
		assert.Equal(t, 10, cfg.SnapshotItems)
		assert.Equal(t, 1, cfg.Concurrency)
		assert.Equal(t, "file", cfg.StoreType)
		assert.Equal(t, "rankwatch-data.json", cfg.StorePath)
		assert.Equal(t, "mock", cfg.ProviderType)
		assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
		assert.Equal(t, 0.0, cfg.ProviderRate)
		assert.True(t, cfg.CircuitBreakerEnabled)
		assert.Equal(t, 3, cfg.CircuitBreakerThreshold)
		assert.Equal(t, 5*time.Minute, cfg.CircuitBreakerResetInterval)
		assert.True(t, cfg.OutageCheckEnabled)
		assert.True(t, cfg.APIEnabled)
		assert.Equal(t, ":8080", cfg.APIAddr)
		assert.Equal(t, "INFO", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("Load From File", func(t *testing.T) {
		content := `
		tick_interval = "30s"
		sweep_interval = "12h"
		retention_horizon = "72h"
		concurrency = 4
		store_type = "sql"
		store_driver = "sqlite"
		store_dsn = "file:rankwatch.db"
		provider_rate = 0.5
		provider_burst = 2
		log_level = "DEBUG"
		log_format = "json"
		`
		cfg, err := LoadConfig(createTempConfigFile(t, content))
		require.NoError(t, err)

		assert.Equal(t, 30*time.Second, cfg.TickInterval)
		assert.Equal(t, 12*time.Hour, cfg.SweepInterval)
		assert.Equal(t, 72*time.Hour, cfg.RetentionHorizon)
		assert.Equal(t, 4, cfg.Concurrency)
		assert.Equal(t, "sql", cfg.StoreType)
		assert.Equal(t, "sqlite", cfg.StoreDriver)
		assert.Equal(t, "file:rankwatch.db", cfg.StoreDSN)
		assert.Equal(t, 0.5, cfg.ProviderRate)
		assert.Equal(t, 2, cfg.ProviderBurst)
		assert.Equal(t, "DEBUG", cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("Env Var Overrides File", func(t *testing.T) {
		configFile := createTempConfigFile(t, `tick_interval = "5m"`+"\n"+`concurrency = 2`)
		t.Setenv("RANKWATCH_TICK_INTERVAL", "10s")
		t.Setenv("RANKWATCH_API_ENABLED", "false")

		cfg, err := LoadConfig(configFile)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, cfg.TickInterval)
		assert.Equal(t, 2, cfg.Concurrency)
		assert.False(t, cfg.APIEnabled)
	})

	t.Run("Missing Explicit File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("Validation Errors", func(t *testing.T) {
		testCases := []struct {
			name          string
			content       string
			expectedError string
		}{
			{"negative tick interval", `tick_interval = "-1m"`, "tick_interval must be a positive duration"},
			{"zero sweep interval", `sweep_interval = "0s"`, "sweep_interval must be a positive duration"},
			{"zero retention", `retention_horizon = "0s"`, "retention_horizon must be a positive duration"},
			{"zero max pages", `max_pages = 0`, "max_pages must be at least 1"},
			{"zero snapshot items", `snapshot_items = 0`, "snapshot_items must be at least 1"},
			{"zero concurrency", `concurrency = 0`, "concurrency must be at least 1"},
			{"invalid store type", `store_type = "redis"`, "invalid store_type \"redis\": must be 'file' or 'sql'"},
			{"empty store path", `store_path = ""`, "store_path must be set when store_type is 'file'"},
			{"invalid store driver", `store_type = "sql"` + "\n" + `store_driver = "mysql"` + "\n" + `store_dsn = "x"`, "invalid store_driver \"mysql\""},
			{"sql store missing dsn", `store_type = "sql"`, "store_dsn must be set when store_type is 'sql'"},
			{"invalid provider type", `provider_type = "google"`, "invalid provider_type \"google\": must be 'mock'"},
			{"zero provider timeout", `provider_timeout = "0s"`, "provider_timeout must be a positive duration"},
			{"negative provider rate", `provider_rate = -1.0`, "provider_rate cannot be negative"},
			{"zero provider burst", `provider_burst = 0`, "provider_burst must be at least 1"},
			{"circuit breaker invalid threshold", `circuit_breaker_threshold = 0`, "circuit_breaker_threshold must be at least 1"},
			{"circuit breaker invalid interval", `circuit_breaker_reset_interval = "-1s"`, "circuit_breaker_reset_interval must be a positive duration"},
			{"empty api addr", `api_addr = ""`, "api_addr must be set when api_enabled is true"},
			{"invalid log level", `log_level = "TRACE"`, "invalid log_level \"TRACE\": must be one of DEBUG, INFO, WARN, ERROR"},
			{"invalid log format", `log_format = "yaml"`, "invalid log_format \"yaml\": must be 'text' or 'json'"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := LoadConfig(createTempConfigFile(t, tc.content))
				require.Error(t, err, "Expected LoadConfig to return an error")
				assert.True(t, strings.Contains(err.Error(), tc.expectedError), "Expected error containing '%s', got: %v", tc.expectedError, err)
			})
		}
	})

	t.Run("Breaker Settings Ignored When Disabled", func(t *testing.T) {
		content := `circuit_breaker_enabled = false` + "\n" + `circuit_breaker_threshold = 0`
		_, err := LoadConfig(createTempConfigFile(t, content))
		assert.NoError(t, err)
	})
}
