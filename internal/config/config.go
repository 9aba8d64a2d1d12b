package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// Backend names for storage and task state.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	TasksRedis      = "redis"
)

// Config is the root application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Redis    RedisConfig    `yaml:"redis"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Cache    CacheConfig    `yaml:"cache"`
	Worker   WorkerConfig   `yaml:"worker"`
	AI       AIConfig       `yaml:"ai"`
	External ExternalConfig `yaml:"external"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
}

// StorageConfig selects the document store
type StorageConfig struct {
	// Backend is memory, sqlite or postgres
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
	// PostgresSchema holds the docqa tables; created on startup when missing
	PostgresSchema string `yaml:"postgres_schema"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
}

// TasksConfig selects where task progress lives and how long it is kept
type TasksConfig struct {
	// Backend is memory, redis or postgres
	Backend         string        `yaml:"backend"`
	MaxAge          time.Duration `yaml:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig holds the optional Redis connection
type RedisConfig struct {
	URL string `yaml:"url"`
}

// UploadsConfig configures where uploads are staged
type UploadsConfig struct {
	Dir               string   `yaml:"dir"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// ChunkingConfig configures the chunker
type ChunkingConfig struct {
	Size        int  `yaml:"size"`
	Overlap     int  `yaml:"overlap"`
	Deduplicate bool `yaml:"deduplicate"`
}

// CacheConfig configures the embedding and search caches
type CacheConfig struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// WorkerConfig configures the background ingestion pool
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
}

// AIConfig configures the capability provider
type AIConfig struct {
	// Backend is local, remote or auto
	Backend           string        `yaml:"backend"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	EmbeddingModel    string        `yaml:"embedding_model"`
	ChatModel         string        `yaml:"chat_model"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	SummaryWords      int           `yaml:"summary_words"`
}

// ExternalConfig configures the second answer source and its judge
type ExternalConfig struct {
	Enabled           bool          `yaml:"enabled"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Models            []string      `yaml:"models"`
	JudgeEnabled      bool          `yaml:"judge_enabled"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			MaxUploadMB: 50,
		},
		Log: LogConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			Backend:        StorageMemory,
			SQLitePath:     "docqa.db",
			PostgresSchema: "public",
			MaxOpenConns:   25,
			MaxIdleConns:   5,
		},
		Tasks: TasksConfig{
			Backend:         StorageMemory,
			MaxAge:          24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		Uploads:  UploadsConfig{Dir: "uploads"},
		Chunking: ChunkingConfig{Size: 800, Overlap: 120},
		Cache:    CacheConfig{MaxSize: 1000, TTL: time.Hour},
		Worker:   WorkerConfig{Concurrency: 2, QueueSize: 64},
		AI: AIConfig{
			Backend:        domain.BackendLocal,
			BaseURL:        "https://api.openai.com/v1",
			EmbeddingModel: "text-embedding-3-small",
			ChatModel:      "gpt-4o-mini",
			Timeout:        30 * time.Second,
			SummaryWords:   150,
		},
		External: ExternalConfig{
			BaseURL:      "https://api.groq.com/openai/v1",
			Models:       []string{"llama-3.1-8b-instant", "llama-3.3-70b-versatile"},
			JudgeEnabled: true,
			Timeout:      30 * time.Second,
		},
	}
}

// Load reads an optional .env file, then the YAML file at path (which may
// be empty or missing), then applies environment overrides and defaults.
func Load(path string) (*Config, error) {
	// .env is optional; existing environment variables win
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.MaxUploadMB = getEnvInt("MAX_UPLOAD_MB", c.Server.MaxUploadMB)
	c.Server.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.PostgresURL = getEnv("DATABASE_URL", c.Storage.PostgresURL)
	c.Storage.PostgresSchema = getEnv("DB_SCHEMA", c.Storage.PostgresSchema)
	c.Storage.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Storage.MaxOpenConns)
	c.Storage.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Storage.MaxIdleConns)

	c.Tasks.Backend = getEnv("TASK_BACKEND", c.Tasks.Backend)
	c.Tasks.MaxAge = time.Duration(getEnvInt("TASK_MAX_AGE_HOURS", int(c.Tasks.MaxAge/time.Hour))) * time.Hour
	c.Tasks.CleanupInterval = getEnvDuration("TASK_CLEANUP_INTERVAL", c.Tasks.CleanupInterval)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)

	c.Uploads.Dir = getEnv("UPLOAD_DIR", c.Uploads.Dir)
	c.Uploads.AllowedExtensions = getEnvList("ALLOWED_EXTENSIONS", c.Uploads.AllowedExtensions)

	c.Chunking.Size = getEnvInt("CHUNK_SIZE", c.Chunking.Size)
	c.Chunking.Overlap = getEnvInt("CHUNK_OVERLAP", c.Chunking.Overlap)

	c.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", c.Cache.MaxSize)
	c.Cache.TTL = time.Duration(getEnvInt("CACHE_TTL_SECONDS", int(c.Cache.TTL/time.Second))) * time.Second

	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)

	c.AI.Backend = getEnv("AI_BACKEND", c.AI.Backend)
	c.AI.BaseURL = getEnv("OPENAI_BASE_URL", c.AI.BaseURL)
	c.AI.APIKey = getEnv("OPENAI_API_KEY", c.AI.APIKey)
	c.AI.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.AI.EmbeddingModel)
	c.AI.ChatModel = getEnv("CHAT_MODEL", c.AI.ChatModel)

	c.External.Enabled = getEnvBool("USE_DUAL_ANSWERS", c.External.Enabled)
	c.External.BaseURL = getEnv("EXTERNAL_BASE_URL", c.External.BaseURL)
	c.External.APIKey = getEnv("EXTERNAL_API_KEY", getEnv("GROQ_API_KEY", c.External.APIKey))
	c.External.Models = getEnvList("EXTERNAL_MODELS", c.External.Models)
	c.External.JudgeEnabled = getEnvBool("JUDGE_ENABLED", c.External.JudgeEnabled)
}

// applyDefaults fills values a YAML file may have zeroed
func (c *Config) applyDefaults() {
	def := Default()
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if c.Tasks.Backend == "" {
		c.Tasks.Backend = def.Tasks.Backend
	}
	if c.Tasks.MaxAge <= 0 {
		c.Tasks.MaxAge = def.Tasks.MaxAge
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = def.Uploads.Dir
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = def.Chunking.Size
	}
	if c.Cache.MaxSize <= 0 {
		c.Cache.MaxSize = def.Cache.MaxSize
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = def.Worker.Concurrency
	}
	if c.AI.Backend == "" {
		c.AI.Backend = def.AI.Backend
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = def.AI.Timeout
	}
	if c.AI.SummaryWords <= 0 {
		c.AI.SummaryWords = def.AI.SummaryWords
	}
	if c.External.Timeout <= 0 {
		c.External.Timeout = def.External.Timeout
	}
}

// Validate rejects impossible combinations
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for sqlite"))
		}
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Tasks.Backend {
	case StorageMemory:
	case TasksRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for redis task backend"))
		}
	case StoragePostgres:
		if c.Storage.PostgresURL == "" {
			errs = append(errs, errors.New("storage.postgres_url is required for postgres task backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown task backend %q", c.Tasks.Backend))
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap %d must be in [0, %d)", c.Chunking.Overlap, c.Chunking.Size))
	}

	switch c.AI.Backend {
	case domain.BackendLocal, domain.BackendRemote, domain.BackendAuto:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", domain.ErrInvalidProvider, c.AI.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// ExternalActive reports whether the second answer source should be built
func (c *Config) ExternalActive() bool {
	return c.External.Enabled && c.External.APIKey != "" && len(c.External.Models) > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
