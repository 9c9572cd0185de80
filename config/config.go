// Package config loads service configuration from an optional YAML file and
// environment variables. Environment variables override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/culldron/ai"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded value is out of range or
// cannot be parsed.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete service configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Feed      FeedConfig      `yaml:"feed"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig selects the store.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// EmbeddingConfig configures the embedding service client.
type EmbeddingConfig struct {
	Host        string        `yaml:"host"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	CacheDir    string        `yaml:"cache_dir"` // Empty disables the cache
}

// IngestionConfig tunes the pipeline.
type IngestionConfig struct {
	MatchThreshold      float64 `yaml:"match_threshold"`
	RedundancyThreshold float64 `yaml:"redundancy_threshold"`
	MaxThesisSentences  int     `yaml:"max_thesis_sentences"`
}

// SchedulerConfig configures periodic ingestion. An empty feed list or a
// zero interval disables it.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Feeds    []string      `yaml:"feeds"`
	PoolSize int           `yaml:"pool_size"`
}

// FeedConfig configures the feed reader.
type FeedConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	UserAgent     string        `yaml:"user_agent"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Database: DatabaseConfig{
			URL:      "sqlite://culldron.db",
			MaxConns: 4,
		},
		Embedding: EmbeddingConfig{
			Host:        aiDefaults.EmbeddingHost,
			Model:       aiDefaults.EmbeddingModel,
			APIKey:      aiDefaults.APIKey,
			MaxAttempts: aiDefaults.MaxAttempts,
			RetryDelay:  aiDefaults.RetryDelay,
		},
		Ingestion: IngestionConfig{
			MatchThreshold:      0.60,
			RedundancyThreshold: 0.60,
			MaxThesisSentences:  2,
		},
		Scheduler: SchedulerConfig{
			Interval: 3600 * time.Second,
			PoolSize: 1,
		},
		Feed: FeedConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "culldron/1.0",
			RatePerSecond: 2,
			Burst:         4,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("DATABASE_URL", &c.Database.URL)
	str("EMBEDDING_HOST", &c.Embedding.Host)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	str("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	str("EMBEDDING_CACHE_DIR", &c.Embedding.CacheDir)
	str("HTTP_ADDR", &c.Server.Addr)

	if v, ok := lookup("THEME_MATCH_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: THEME_MATCH_THRESHOLD: %v", ErrInvalidConfig, err)
		}
		c.Ingestion.MatchThreshold = f
	}

	if v, ok := lookup("INGEST_INTERVAL_SECONDS"); ok && strings.TrimSpace(v) != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: INGEST_INTERVAL_SECONDS: %v", ErrInvalidConfig, err)
		}
		c.Scheduler.Interval = time.Duration(secs) * time.Second
	}

	if v, ok := lookup("FEED_URLS"); ok {
		c.Scheduler.Feeds = SplitList(v)
	}
	return nil
}

// SplitList splits a comma-separated list, trimming items and dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate checks ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Database.URL) != "", "database.url is required")
	check(c.Ingestion.MatchThreshold >= 0 && c.Ingestion.MatchThreshold <= 1,
		"ingestion.match_threshold must be between 0 and 1, got %v", c.Ingestion.MatchThreshold)
	check(c.Ingestion.RedundancyThreshold >= 0 && c.Ingestion.RedundancyThreshold <= 1,
		"ingestion.redundancy_threshold must be between 0 and 1, got %v", c.Ingestion.RedundancyThreshold)
	check(c.Ingestion.MaxThesisSentences >= 1,
		"ingestion.max_thesis_sentences must be at least 1, got %d", c.Ingestion.MaxThesisSentences)
	check(c.Scheduler.Interval >= 0, "scheduler.interval must not be negative")
	check(c.Scheduler.PoolSize >= 1, "scheduler.pool_size must be at least 1")
	check(c.Feed.Timeout > 0, "feed.timeout must be positive")
	check(c.Feed.RatePerSecond >= 0, "feed.rate_per_second must not be negative")
	check(c.Server.Addr != "", "server.addr is required")

	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// AIConfig returns the embedding client configuration.
func (c *Config) AIConfig() *ai.Config {
	cfg := ai.NewConfig(
		ai.WithHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithRetry(c.Embedding.MaxAttempts, c.Embedding.RetryDelay),
	)
	cfg.Normalize()
	return cfg
}

// SchedulerEnabled reports whether periodic ingestion should run.
func (c *Config) SchedulerEnabled() bool {
	return len(c.Scheduler.Feeds) > 0 && c.Scheduler.Interval > 0
}
