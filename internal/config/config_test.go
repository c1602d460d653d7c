package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "thesisharness", cfg.Server.Name)
	assert.Equal(t, "development", cfg.Server.Environment)

	assert.Equal(t, 4096, cfg.Oracle.MaxOutputTokens)
	assert.Equal(t, 3, cfg.Oracle.MaxRetries)

	assert.Equal(t, 8000, cfg.Harness.MaxTokens)
	assert.Equal(t, 3, cfg.Harness.MaxBranches)
	assert.True(t, cfg.Features.PriorLibrary)

	assert.Equal(t, 16, cfg.Performance.MaxConcurrentSessions)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestHarnessConfig_Convert(t *testing.T) {
	cfg := Default()
	sc := cfg.Harness.Convert()

	assert.Equal(t, cfg.Harness.MaxTokens, sc.MaxTokens)
	assert.Equal(t, cfg.Harness.MaxBranches, sc.MaxBranches)
	assert.Equal(t, cfg.Harness.BranchConfidenceThreshold, sc.BranchConfidenceThreshold)
	assert.Equal(t, cfg.Harness.ReExpansionThreshold, sc.ReExpansionThreshold)
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "thesisharness", cfg.Server.Name)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)

	os.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	os.Setenv("TH_SERVER_NAME", "test-server")
	os.Setenv("TH_SERVER_ENVIRONMENT", "production")
	os.Setenv("TH_HARNESS_MAX_BRANCHES", "5")
	os.Setenv("TH_FEATURES_PARALLEL_BRANCHES", "true")
	os.Setenv("TH_LOGGING_LEVEL", "debug")
	defer clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test-key", cfg.Oracle.APIKey)
	assert.Equal(t, "test-server", cfg.Server.Name)
	assert.Equal(t, "production", cfg.Server.Environment)
	assert.Equal(t, 5, cfg.Harness.MaxBranches)
	assert.True(t, cfg.Features.ParallelBranches)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"server": {
			"name": "file-server",
			"version": "2.0.0",
			"environment": "staging"
		},
		"harness": {
			"max_tokens": 4000,
			"max_branches": 2
		},
		"features": {
			"parallel_branches": true
		},
		"logging": {
			"level": "warn",
			"format": "json"
		}
	}`

	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0644))

	clearEnv(t)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "file-server", cfg.Server.Name)
	assert.Equal(t, "2.0.0", cfg.Server.Version)
	assert.Equal(t, "staging", cfg.Server.Environment)
	assert.Equal(t, 4000, cfg.Harness.MaxTokens)
	assert.Equal(t, 2, cfg.Harness.MaxBranches)
	assert.True(t, cfg.Features.ParallelBranches)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"server": {
			"name": "file-server",
			"environment": "staging"
		}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0644))

	clearEnv(t)
	os.Setenv("TH_SERVER_NAME", "env-server")
	defer clearEnv(t)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "env-server", cfg.Server.Name)
	assert.Equal(t, "staging", cfg.Server.Environment)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"empty server name", func(c *Config) { c.Server.Name = "" }, "server.name cannot be empty"},
		{"invalid environment", func(c *Config) { c.Server.Environment = "invalid" }, "server.environment must be one of"},
		{"invalid max output tokens", func(c *Config) { c.Oracle.MaxOutputTokens = 0 }, "oracle.max_output_tokens must be >= 1"},
		{"negative retries", func(c *Config) { c.Oracle.MaxRetries = -1 }, "oracle.max_retries cannot be negative"},
		{"invalid max branches", func(c *Config) { c.Harness.MaxBranches = 0 }, "harness.max_branches must be >= 1"},
		{"invalid branch threshold", func(c *Config) { c.Harness.BranchConfidenceThreshold = 1.5 }, "harness.branch_confidence_threshold"},
		{"invalid concurrent sessions", func(c *Config) { c.Performance.MaxConcurrentSessions = 0 }, "performance.max_concurrent_sessions must be >= 1"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level must be one of"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format must be 'text' or 'json'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsFeatureEnabled(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.IsFeatureEnabled("priors"))
	assert.True(t, cfg.IsFeatureEnabled("prior_library"))
	assert.False(t, cfg.IsFeatureEnabled("probes"))
	assert.False(t, cfg.IsFeatureEnabled("unknown"))

	cfg.Features.ProbesEnabled = true
	assert.True(t, cfg.IsFeatureEnabled("probes_enabled"))
}

func TestParseBool(t *testing.T) {
	tests := map[string]bool{
		"true": true, "TRUE": true, "1": true, "yes": true, "on": true, "enabled": true,
		"false": false, "0": false, "no": false, "off": false, "": false, "invalid": false,
	}
	for input, want := range tests {
		assert.Equal(t, want, parseBool(input), input)
	}
}

func TestToJSON_OmitsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Oracle.APIKey = "sk-should-not-appear"

	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-should-not-appear")
	assert.Contains(t, string(data), "server")
}

func TestSaveToFile(t *testing.T) {
	cfg := Default()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved-config.json")

	require.NoError(t, cfg.SaveToFile(configPath))

	loaded, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Server.Name, loaded.Server.Name)
}

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"ANTHROPIC_API_KEY",
		"TH_SERVER_NAME", "TH_SERVER_ENVIRONMENT", "TH_SERVER_ADDR",
		"TH_ORACLE_MODEL", "TH_ORACLE_MAX_OUTPUT_TOKENS", "TH_ORACLE_MAX_RETRIES", "TH_ORACLE_RATE_LIMIT_PER_MIN",
		"TH_HARNESS_MAX_TOKENS", "TH_HARNESS_MAX_BRANCHES",
		"TH_FEATURES_PARALLEL_BRANCHES", "TH_FEATURES_PROBES_ENABLED", "TH_FEATURES_PRIOR_LIBRARY", "TH_FEATURES_SEMANTIC_SEARCH",
		"TH_PERFORMANCE_MAX_CONCURRENT_SESSIONS", "TH_PERFORMANCE_CACHE_SIZE",
		"TH_LOGGING_LEVEL", "TH_LOGGING_FORMAT",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}
