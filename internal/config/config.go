package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the simsearch API configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Provider   ProviderConfig   `yaml:"provider"`
	Moderation ModerationConfig `yaml:"moderation"`
	Lexical    LexicalConfig    `yaml:"lexical"`
	Search     SearchConfig     `yaml:"search"`
	Cache      CacheConfig      `yaml:"cache"`
	Auth       AuthConfig       `yaml:"auth"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// ProviderConfig holds the OpenAI-compatible provider settings shared by
// embedding, moderation, and generation clients.
type ProviderConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	GenerationModel     string `yaml:"generation_model"`
	BatchSize           int    `yaml:"batch_size"`
	BatchDelayMs        int    `yaml:"batch_delay_ms"`
	RetryMaxAttempts    int    `yaml:"retry_max_attempts"`
	RetryBaseDelayMs    int    `yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs     int    `yaml:"retry_max_delay_ms"`
}

// ModerationConfig holds moderation gate settings.
type ModerationConfig struct {
	// FailOpen lets content through when the moderation provider is down.
	// Default false: a provider outage rejects submissions.
	FailOpen bool `yaml:"fail_open"`
}

// LexicalConfig holds generative fallback matcher settings.
type LexicalConfig struct {
	// LegacyTextMode makes the model return text fragments that are fuzzy
	// reconciled to candidates, instead of the canonical ID-returning prompt.
	LegacyTextMode bool `yaml:"legacy_text_mode"`
	MaxCandidates  int  `yaml:"max_candidates"`
}

// SearchConfig holds vector index settings.
type SearchConfig struct {
	Limit           int `yaml:"limit"`
	OverfetchFactor int `yaml:"overfetch_factor"`
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// CacheConfig holds response cache TTL tiers, in minutes.
type CacheConfig struct {
	QuestionTTLMin     int `yaml:"question_ttl_min"`
	StatementsTTLMin   int `yaml:"statements_ttl_min"`
	RawResultsTTLMin   int `yaml:"raw_results_ttl_min"`
	FullResponseTTLMin int `yaml:"full_response_ttl_min"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Provider.EmbeddingModel == "" {
		c.Provider.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Provider.EmbeddingDimensions <= 0 {
		c.Provider.EmbeddingDimensions = 1536
	}
	if c.Provider.GenerationModel == "" {
		c.Provider.GenerationModel = "gpt-4o-mini"
	}
	if c.Provider.BatchSize <= 0 {
		c.Provider.BatchSize = 20
	}
	if c.Provider.BatchDelayMs <= 0 {
		c.Provider.BatchDelayMs = 200
	}
	if c.Provider.RetryMaxAttempts <= 0 {
		c.Provider.RetryMaxAttempts = 4
	}
	if c.Provider.RetryBaseDelayMs <= 0 {
		c.Provider.RetryBaseDelayMs = 1000
	}
	if c.Provider.RetryMaxDelayMs <= 0 {
		c.Provider.RetryMaxDelayMs = 10000
	}
	if c.Lexical.MaxCandidates <= 0 {
		c.Lexical.MaxCandidates = 100
	}
	if c.Search.Limit <= 0 {
		c.Search.Limit = 5
	}
	if c.Search.OverfetchFactor <= 0 {
		c.Search.OverfetchFactor = 3
	}
	if c.Search.HNSWM <= 0 {
		c.Search.HNSWM = 32
	}
	if c.Search.HNSWEFConstruct <= 0 {
		c.Search.HNSWEFConstruct = 400
	}
	if c.Cache.QuestionTTLMin <= 0 {
		c.Cache.QuestionTTLMin = 5
	}
	if c.Cache.StatementsTTLMin <= 0 {
		c.Cache.StatementsTTLMin = 3
	}
	if c.Cache.RawResultsTTLMin <= 0 {
		c.Cache.RawResultsTTLMin = 30
	}
	if c.Cache.FullResponseTTLMin <= 0 {
		c.Cache.FullResponseTTLMin = 2
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "simsearch:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if c.Search.OverfetchFactor < 1 {
		return fmt.Errorf("search.overfetch_factor must be at least 1, got %d", c.Search.OverfetchFactor)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
