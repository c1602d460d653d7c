// Package config provides configuration management for the thesis harness.
//
// Configuration can be loaded from multiple sources (in order of precedence):
// 1. Environment variables (highest priority)
// 2. Configuration file (JSON)
// 3. Default values (lowest priority)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"thesisharness/internal/scratchpad"
)

// Config represents the complete process configuration.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Oracle      OracleConfig      `json:"oracle"`
	Harness     HarnessConfig     `json:"harness"`
	Features    FeatureFlags      `json:"features"`
	Performance PerformanceConfig `json:"performance"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig contains process-level identification.
type ServerConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Addr        string `json:"addr"`

	// SessionDBPath, when non-empty, switches the session store from
	// in-memory-only (store.New) to SQLite-backed (store.NewSQLite) (§3's
	// persisted state is the Scratchpad's JSON form either way).
	SessionDBPath string `json:"session_db_path"`
}

// OracleConfig configures the LLM transport.
type OracleConfig struct {
	// APIKey is read from the environment, never persisted back to a config file.
	APIKey string `json:"-"`

	Model           string `json:"model"`
	MaxOutputTokens int    `json:"max_output_tokens"`
	MaxRetries      int    `json:"max_retries"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
}

// HarnessConfig mirrors scratchpad.Config: the named constants the spec
// requires to live on one configuration record rather than scattered
// through code. Convert produces the scratchpad.Config the cycle
// controller actually consumes.
type HarnessConfig struct {
	MaxTokens                 int     `json:"max_tokens"`
	Tier1RecentItems          int     `json:"tier1_recent_items"`
	Tier2RecentItems          int     `json:"tier2_recent_items"`
	BranchConfidenceThreshold float64 `json:"branch_confidence_threshold"`
	MaxBranches               int     `json:"max_branches"`
	MinCyclesBeforeBranch     int     `json:"min_cycles_before_branch"`
	SaturationDelta           float64 `json:"saturation_delta"`
	DiminishingReturnsRatio   float64 `json:"diminishing_returns_ratio"`
	HighConfidenceThreshold   float64 `json:"high_confidence_threshold"`
	OpenQuestionsCeiling      int     `json:"open_questions_ceiling"`
	ReExpansionThreshold      int     `json:"re_expansion_threshold"`
}

// Convert produces the scratchpad.Config the rest of the engine consumes.
func (h HarnessConfig) Convert() scratchpad.Config {
	return scratchpad.Config{
		MaxTokens:                 h.MaxTokens,
		Tier1RecentItems:          h.Tier1RecentItems,
		Tier2RecentItems:          h.Tier2RecentItems,
		BranchConfidenceThreshold: h.BranchConfidenceThreshold,
		MaxBranches:               h.MaxBranches,
		MinCyclesBeforeBranch:     h.MinCyclesBeforeBranch,
		SaturationDelta:           h.SaturationDelta,
		DiminishingReturnsRatio:   h.DiminishingReturnsRatio,
		HighConfidenceThreshold:   h.HighConfidenceThreshold,
		OpenQuestionsCeiling:      h.OpenQuestionsCeiling,
		ReExpansionThreshold:      h.ReExpansionThreshold,
	}
}

// FeatureFlags controls which optional capabilities are enabled.
type FeatureFlags struct {
	ParallelBranches bool `json:"parallel_branches"`
	ProbesEnabled    bool `json:"probes_enabled"`
	PriorLibrary     bool `json:"prior_library"`
	SemanticSearch   bool `json:"semantic_search"`
}

// PerformanceConfig contains performance tuning options.
type PerformanceConfig struct {
	MaxConcurrentSessions int `json:"max_concurrent_sessions"`
	CacheSize             int `json:"cache_size"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "thesisharness",
			Version:     "0.1.0",
			Environment: "development",
			Addr:        ":8080",
		},
		Oracle: OracleConfig{
			Model:           "claude-sonnet-4-5",
			MaxOutputTokens: 4096,
			MaxRetries:      3,
			RateLimitPerMin: 50,
		},
		Harness: HarnessConfig{
			MaxTokens:                 8000,
			Tier1RecentItems:          5,
			Tier2RecentItems:          10,
			BranchConfidenceThreshold: 0.4,
			MaxBranches:               3,
			MinCyclesBeforeBranch:     2,
			SaturationDelta:           0.05,
			DiminishingReturnsRatio:   0.5,
			HighConfidenceThreshold:   0.75,
			OpenQuestionsCeiling:      2,
			ReExpansionThreshold:      3,
		},
		Features: FeatureFlags{
			ParallelBranches: false,
			ProbesEnabled:    false,
			PriorLibrary:     true,
			SemanticSearch:   false,
		},
		Performance: PerformanceConfig{
			MaxConcurrentSessions: 16,
			CacheSize:             1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file, then overlays
// environment variables on top.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromEnv loads configuration from environment variables. Variables
// follow the pattern TH_<SECTION>_<KEY>, e.g. TH_SERVER_ADDR,
// TH_ORACLE_MODEL. The oracle API key is read from ANTHROPIC_API_KEY,
// matching the retrieval pack's own Anthropic client convention.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}

	if v := os.Getenv("TH_SERVER_NAME"); v != "" {
		c.Server.Name = v
	}
	if v := os.Getenv("TH_SERVER_ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}
	if v := os.Getenv("TH_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TH_SERVER_SESSION_DB_PATH"); v != "" {
		c.Server.SessionDBPath = v
	}

	if v := os.Getenv("TH_ORACLE_MODEL"); v != "" {
		c.Oracle.Model = v
	}
	if v := os.Getenv("TH_ORACLE_MAX_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Oracle.MaxOutputTokens = n
		}
	}
	if v := os.Getenv("TH_ORACLE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Oracle.MaxRetries = n
		}
	}
	if v := os.Getenv("TH_ORACLE_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Oracle.RateLimitPerMin = n
		}
	}

	if v := os.Getenv("TH_HARNESS_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Harness.MaxTokens = n
		}
	}
	if v := os.Getenv("TH_HARNESS_MAX_BRANCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Harness.MaxBranches = n
		}
	}

	if v := os.Getenv("TH_FEATURES_PARALLEL_BRANCHES"); v != "" {
		c.Features.ParallelBranches = parseBool(v)
	}
	if v := os.Getenv("TH_FEATURES_PROBES_ENABLED"); v != "" {
		c.Features.ProbesEnabled = parseBool(v)
	}
	if v := os.Getenv("TH_FEATURES_PRIOR_LIBRARY"); v != "" {
		c.Features.PriorLibrary = parseBool(v)
	}
	if v := os.Getenv("TH_FEATURES_SEMANTIC_SEARCH"); v != "" {
		c.Features.SemanticSearch = parseBool(v)
	}

	if v := os.Getenv("TH_PERFORMANCE_MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.MaxConcurrentSessions = n
		}
	}
	if v := os.Getenv("TH_PERFORMANCE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.CacheSize = n
		}
	}

	if v := os.Getenv("TH_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TH_LOGGING_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name cannot be empty")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "staging" && c.Server.Environment != "production" {
		return fmt.Errorf("server.environment must be one of: development, staging, production")
	}

	if c.Oracle.MaxOutputTokens < 1 {
		return fmt.Errorf("oracle.max_output_tokens must be >= 1")
	}
	if c.Oracle.MaxRetries < 0 {
		return fmt.Errorf("oracle.max_retries cannot be negative")
	}
	if c.Oracle.RateLimitPerMin < 1 {
		return fmt.Errorf("oracle.rate_limit_per_min must be >= 1")
	}

	if c.Harness.MaxTokens < 1 {
		return fmt.Errorf("harness.max_tokens must be >= 1")
	}
	if c.Harness.MaxBranches < 1 {
		return fmt.Errorf("harness.max_branches must be >= 1")
	}
	if c.Harness.BranchConfidenceThreshold < 0 || c.Harness.BranchConfidenceThreshold > 1 {
		return fmt.Errorf("harness.branch_confidence_threshold must be in [0,1]")
	}
	if c.Harness.HighConfidenceThreshold < 0 || c.Harness.HighConfidenceThreshold > 1 {
		return fmt.Errorf("harness.high_confidence_threshold must be in [0,1]")
	}

	if c.Performance.MaxConcurrentSessions < 1 {
		return fmt.Errorf("performance.max_concurrent_sessions must be >= 1")
	}
	if c.Performance.CacheSize < 0 {
		return fmt.Errorf("performance.cache_size cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}

	return nil
}

// IsFeatureEnabled checks if a specific feature is enabled by name.
func (c *Config) IsFeatureEnabled(feature string) bool {
	switch strings.ToLower(feature) {
	case "parallel", "parallel_branches":
		return c.Features.ParallelBranches
	case "probes", "probes_enabled":
		return c.Features.ProbesEnabled
	case "priors", "prior_library":
		return c.Features.PriorLibrary
	case "semantic", "semantic_search":
		return c.Features.SemanticSearch
	default:
		return false
	}
}

// parseBool parses a boolean from string (handles various formats).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "enabled"
}

// ToJSON serializes the configuration to JSON. The oracle API key is
// tagged json:"-" so it never round-trips to disk.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
