package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // query-embedding cache TTL
}

type EmbeddingsConfig struct {
	OpenAIKey       string        `yaml:"openai_key"`
	BaseURL         string        `yaml:"base_url"` // optional override, e.g. a proxy
	Model           string        `yaml:"model"`
	Dimension       int           `yaml:"dimension"`
	MaxBatch        int           `yaml:"max_batch"` // provider-imposed texts per call
	MaxRetries      int           `yaml:"max_retries"`
	RetryBase       time.Duration `yaml:"retry_base"`
	RetryMax        time.Duration `yaml:"retry_max"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent provider calls
}

type QueueConfig struct {
	Workers       int           `yaml:"workers"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	RetryLimit    int           `yaml:"retry_limit"`
	RetryBase     time.Duration `yaml:"retry_base"`
	ActiveTTL     time.Duration `yaml:"active_ttl"` // active jobs older than this are expired
	SweepInterval time.Duration `yaml:"sweep_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type ParserConfig struct {
	Pdftotext string `yaml:"pdftotext"`
	Pdftoppm  string `yaml:"pdftoppm"`
	Tesseract string `yaml:"tesseract"`
	OCRDPI    int    `yaml:"ocr_dpi"`
	MaxPages  int    `yaml:"max_pages"`
	MinTokens int    `yaml:"min_tokens"` // chunk target lower bound
	MaxTokens int    `yaml:"max_tokens"` // chunk hard upper bound
	Encoding  string `yaml:"encoding"`   // tiktoken encoding name
}

type SearchConfig struct {
	DefaultTopK int           `yaml:"default_top_k"`
	MaxTopK     int           `yaml:"max_top_k"`
	RateLimit   int           `yaml:"rate_limit"` // requests per window per caller
	RateWindow  time.Duration `yaml:"rate_window"`
}

type StorageConfig struct {
	Root string `yaml:"root"` // local file store root
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Queue      QueueConfig      `yaml:"queue"`
	Parser     ParserConfig     `yaml:"parser"`
	Search     SearchConfig     `yaml:"search"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, applies defaults and environment overrides.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Runtime.Dev = dev

	// Secrets may come from the environment instead of the file.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Embeddings.OpenAIKey = v
	}

	cfg.applyDefaults()

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required (or DATABASE_URL)")
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 15 * time.Minute
	}

	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "text-embedding-3-large"
	}
	if c.Embeddings.Dimension <= 0 {
		c.Embeddings.Dimension = 3072
	}
	if c.Embeddings.MaxBatch <= 0 {
		c.Embeddings.MaxBatch = 100
	}
	if c.Embeddings.MaxRetries <= 0 {
		c.Embeddings.MaxRetries = 3
	}
	if c.Embeddings.RetryBase <= 0 {
		c.Embeddings.RetryBase = 4 * time.Second
	}
	if c.Embeddings.RetryMax <= 0 {
		c.Embeddings.RetryMax = 60 * time.Second
	}
	if c.Embeddings.ConcurrentLimit <= 0 {
		c.Embeddings.ConcurrentLimit = 4
	}

	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = 500 * time.Millisecond
	}
	if c.Queue.RetryLimit <= 0 {
		c.Queue.RetryLimit = 3
	}
	if c.Queue.RetryBase <= 0 {
		c.Queue.RetryBase = time.Second
	}
	if c.Queue.ActiveTTL <= 0 {
		c.Queue.ActiveTTL = 10 * time.Minute
	}
	if c.Queue.SweepInterval <= 0 {
		c.Queue.SweepInterval = time.Minute
	}
	if c.Queue.ShutdownGrace <= 0 {
		c.Queue.ShutdownGrace = 30 * time.Second
	}

	if c.Parser.Pdftotext == "" {
		c.Parser.Pdftotext = "pdftotext"
	}
	if c.Parser.Pdftoppm == "" {
		c.Parser.Pdftoppm = "pdftoppm"
	}
	if c.Parser.Tesseract == "" {
		c.Parser.Tesseract = "tesseract"
	}
	if c.Parser.OCRDPI <= 0 {
		c.Parser.OCRDPI = 300
	}
	if c.Parser.MaxPages <= 0 {
		c.Parser.MaxPages = 200
	}
	if c.Parser.MinTokens <= 0 {
		c.Parser.MinTokens = 512
	}
	if c.Parser.MaxTokens <= 0 {
		c.Parser.MaxTokens = 1024
	}
	if c.Parser.Encoding == "" {
		c.Parser.Encoding = "cl100k_base"
	}

	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 10
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 100
	}
	if c.Search.RateLimit <= 0 {
		c.Search.RateLimit = 30
	}
	if c.Search.RateWindow <= 0 {
		c.Search.RateWindow = time.Minute
	}

	if c.Storage.Root == "" {
		c.Storage.Root = "./data/files"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}
