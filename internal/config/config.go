package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DispatchInProcess = "inprocess"
	DispatchRedis     = "redis"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	BaseURL        string        `yaml:"base_url"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// job creations per client per minute; 0 disables (needs redis)
	JobRateLimit int `yaml:"job_rate_limit"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // memory|postgres
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Queue     string        `yaml:"queue"`
	LedgerTTL time.Duration `yaml:"ledger_ttl"`
	LockTTL   time.Duration `yaml:"lock_ttl"`
}

type DispatchConfig struct {
	Mode      string `yaml:"mode"` // inprocess|redis
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
}

type AIConfig struct {
	OpenAIKey       string              `yaml:"openai_key"`
	OpenAIBaseURL   string              `yaml:"openai_base_url"`
	AnthropicKey    string              `yaml:"anthropic_key"`
	AnthropicURL    string              `yaml:"anthropic_url"`
	GeminiKey       string              `yaml:"gemini_key"`
	GeminiURL       string              `yaml:"gemini_url"`
	Temperature     float64             `yaml:"temperature"`
	MaxTokens       int                 `yaml:"max_tokens"`
	Timeout         time.Duration       `yaml:"timeout"`
	ConcurrentLimit int                 `yaml:"concurrent_limit"` // max concurrent AI calls
	Models          map[string][]string `yaml:"models"`           // provider -> advertised models
}

type AgentsConfig struct {
	OutputDir         string `yaml:"output_dir"`
	KnowledgeBasePath string `yaml:"knowledge_base_path"`
}

type StreamConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Heartbeat    time.Duration `yaml:"heartbeat"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	AI       AIConfig       `yaml:"ai"`
	Agents   AgentsConfig   `yaml:"agents"`
	Stream   StreamConfig   `yaml:"stream"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), the YAML file at path (if present) and
// environment overrides, then applies defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
			// run on defaults + env
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.AI.OpenAIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.AI.AnthropicKey, "ANTHROPIC_API_KEY")
	setFromEnv(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Dispatch.Mode, "DISPATCH_MODE")
	setFromEnv(&cfg.Storage.Driver, "STORAGE_DRIVER")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		}
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.Queue == "" {
		cfg.Redis.Queue = "agent_jobs"
	}
	if cfg.Redis.LedgerTTL <= 0 {
		cfg.Redis.LedgerTTL = 24 * time.Hour
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 30 * time.Minute
	}
	cfg.Dispatch.Mode = strings.ToLower(strings.TrimSpace(cfg.Dispatch.Mode))
	if cfg.Dispatch.Mode == "" {
		cfg.Dispatch.Mode = DispatchInProcess
	}
	if cfg.Dispatch.Workers <= 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.QueueSize <= 0 {
		cfg.Dispatch.QueueSize = cfg.Dispatch.Workers * 4
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.1
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 4096
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 120 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if len(cfg.AI.Models) == 0 {
		cfg.AI.Models = map[string][]string{
			"openai": {"gpt-4o-mini", "gpt-4.1", "gpt-5.1"},
			"claude": {"claude-3-5-sonnet-latest", "claude-3-5-haiku-latest"},
			"gemini": {"gemini-2.0-flash"},
		}
	}
	if cfg.Agents.OutputDir == "" {
		cfg.Agents.OutputDir = "generated"
	}
	if cfg.Agents.KnowledgeBasePath == "" {
		cfg.Agents.KnowledgeBasePath = "data/ts_rag_kb.txt"
	}
	if cfg.Stream.PollInterval <= 0 {
		cfg.Stream.PollInterval = 500 * time.Millisecond
	}
	if cfg.Stream.Heartbeat <= 0 {
		cfg.Stream.Heartbeat = 15 * time.Second
	}
}

// Validate checks cross-section constraints.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.URL == "" {
			return errors.New("database.url is required for storage.driver=postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Dispatch.Mode {
	case DispatchInProcess:
	case DispatchRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for dispatch.mode=redis")
		}
		// the consumer process must reach the same stores
		if c.Storage.Driver != StoragePostgres {
			return errors.New("dispatch.mode=redis requires storage.driver=postgres")
		}
	default:
		return fmt.Errorf("unknown dispatch.mode %q", c.Dispatch.Mode)
	}

	if c.Server.JobRateLimit > 0 && c.Redis.URL == "" {
		return errors.New("server.job_rate_limit requires redis.url")
	}
	return nil
}
