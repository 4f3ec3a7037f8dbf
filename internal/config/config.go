package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/assessdex/internal/domain"
	"github.com/kailas-cloud/assessdex/internal/domain/chunk"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverSQLite = "sqlite"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

// Config holds the assessdex configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Search    SearchConfig    `yaml:"search"`
	Insights  InsightsConfig  `yaml:"insights"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Rebuild   RebuildConfig   `yaml:"rebuild"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json or console (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
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

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey, sqlite (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	SQLitePath       string   `yaml:"sqlite_path"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider and decorator chain settings.
type EmbeddingConfig struct {
	Provider            string          `yaml:"provider"` // openai, local
	APIKey              string          `yaml:"api_key"`
	BaseURL             string          `yaml:"base_url"`
	Model               string          `yaml:"model"`
	Dimensions          int             `yaml:"dimensions"`
	DocumentInstruction string          `yaml:"document_instruction"`
	QueryInstruction    string          `yaml:"query_instruction"`
	TimeoutSec          int             `yaml:"timeout_sec"`
	BatchSize           int             `yaml:"batch_size"`
	Concurrency         int             `yaml:"concurrency"`
	RateLimit           RateLimitConfig `yaml:"rate_limit"`
	Budget              BudgetConfig    `yaml:"budget"`
	Cache               CacheConfig     `yaml:"cache"`
}

// RateLimitConfig bounds provider request rate. Zero rps means unlimited.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"rps"`
	Burst             int     `yaml:"burst"`
	BackoffSec        int     `yaml:"backoff_sec"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	LRUSize    int  `yaml:"lru_size"`
	LRUTTLSec  int  `yaml:"lru_ttl_sec"`
	Persistent bool `yaml:"persistent"`
	StoreTTLH  int  `yaml:"store_ttl_hours"` // 0 = forever
}

// ChunkingConfig holds text splitting settings.
type ChunkingConfig struct {
	MaxChunkSize   int `yaml:"max_chunk_size"`
	Overlap        int `yaml:"overlap"`
	BoundaryWindow int `yaml:"boundary_window"`
}

// SearchConfig holds search presentation settings.
type SearchConfig struct {
	PreviewLength int `yaml:"preview_length"`
}

// InsightsConfig holds cross-assessment pattern mining settings.
type InsightsConfig struct {
	// Threshold is a pointer so an explicit 0 survives defaulting.
	Threshold       *float64 `yaml:"threshold"`
	PerChunkTopK    int      `yaml:"per_chunk_top_k"`
	BandWidth       float64  `yaml:"band_width"`
	DefaultMax      int      `yaml:"default_max"`
	MaxSourceChunks int      `yaml:"max_source_chunks"`
}

// IngestConfig holds upload limits.
type IngestConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// RebuildConfig holds embedding rebuild settings. An empty schedule disables the job.
type RebuildConfig struct {
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
}

// Load reads configuration from a YAML file by environment name (local, dev, test, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Driver == DriverSQLite && c.Database.SQLitePath == "" {
		c.Database.SQLitePath = filepath.Join("data", "assessdex.db")
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.KeyPrefix
	}

	c.applyEmbeddingDefaults()

	if c.Chunking.MaxChunkSize <= 0 {
		c.Chunking.MaxChunkSize = chunk.DefaultMaxChunkSize
	}
	if c.Chunking.Overlap <= 0 {
		c.Chunking.Overlap = chunk.DefaultOverlapSize
	}
	if c.Chunking.BoundaryWindow <= 0 {
		c.Chunking.BoundaryWindow = chunk.DefaultBoundaryWindow
	}
	if c.Search.PreviewLength <= 0 {
		c.Search.PreviewLength = 500
	}

	if c.Insights.Threshold == nil {
		t := 0.8
		c.Insights.Threshold = &t
	}
	if c.Insights.PerChunkTopK <= 0 {
		c.Insights.PerChunkTopK = 5
	}
	if c.Insights.BandWidth <= 0 {
		c.Insights.BandWidth = 0.05
	}
	if c.Insights.DefaultMax <= 0 {
		c.Insights.DefaultMax = 3
	}
	if c.Insights.MaxSourceChunks <= 0 {
		c.Insights.MaxSourceChunks = 50
	}

	if c.Ingest.MaxUploadBytes <= 0 {
		c.Ingest.MaxUploadBytes = 10 << 20
	}
	if c.Rebuild.Concurrency <= 0 {
		c.Rebuild.Concurrency = 4
	}
}

func (c *Config) applyEmbeddingDefaults() {
	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = ProviderLocal
	}
	if e.Model == "" && e.Provider == ProviderOpenAI {
		e.Model = "text-embedding-3-small"
	}
	if e.Dimensions <= 0 {
		if e.Provider == ProviderOpenAI {
			e.Dimensions = 1536
		} else {
			e.Dimensions = 384
		}
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 30
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 100
	}
	if e.Concurrency <= 0 {
		e.Concurrency = 4
	}
	if e.RateLimit.Burst <= 0 {
		e.RateLimit.Burst = 1
	}
	if e.RateLimit.BackoffSec <= 0 {
		e.RateLimit.BackoffSec = 5
	}
	if e.Budget.Action == "" {
		e.Budget.Action = "warn"
	}
	if e.Cache.LRUSize == 0 {
		e.Cache.LRUSize = 10000
	}
	if e.Cache.LRUTTLSec <= 0 {
		e.Cache.LRUTTLSec = 3600
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverMemory, DriverSQLite:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be one of memory, redis, valkey, sqlite, got %q", c.Database.Driver)
	}

	switch c.Embedding.Provider {
	case ProviderLocal:
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("embedding.provider must be \"openai\" or \"local\", got %q", c.Embedding.Provider)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}
	if c.Embedding.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.rate_limit.rps must not be negative")
	}

	if c.Chunking.Overlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.max_chunk_size (%d)",
			c.Chunking.Overlap, c.Chunking.MaxChunkSize)
	}
	if t := c.Insights.Threshold; t != nil && (*t < -1 || *t > 1) {
		return fmt.Errorf("insights.threshold must be between -1 and 1, got %v", *t)
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"console\", got %q", c.Logging.Format)
	}

	if c.Rebuild.Schedule != "" {
		if _, err := cron.ParseStandard(c.Rebuild.Schedule); err != nil {
			return fmt.Errorf("rebuild.schedule %q: %w", c.Rebuild.Schedule, err)
		}
	}
	return nil
}

// EmbeddingTimeout returns the per-call embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
