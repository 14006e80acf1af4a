// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Index, Search, Construction, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Index        IndexConfig        `yaml:"index"`
	Search       SearchConfig       `yaml:"search"`
	Construction ConstructionConfig `yaml:"construction"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// IndexConfig locates the index files and tunes the on-disk layout.
type IndexConfig struct {
	DataDir         string `yaml:"dataDir"`
	TmpDir          string `yaml:"tmpDir"`
	JournalDir      string `yaml:"journalDir"`
	SearchSetDir    string `yaml:"searchSetDir"`
	MemorySortLimit int    `yaml:"memorySortLimit"`
	WordsBlockBits  int    `yaml:"wordsBlockBits"`
	DocsBlockBits   int    `yaml:"docsBlockBits"`
}

// SearchConfig controls query execution limits and budgets.
type SearchConfig struct {
	TimeBudget          time.Duration `yaml:"timeBudget"`
	DefaultLimit        int           `yaml:"defaultLimit"`
	MaxResults          int           `yaml:"maxResults"`
	FetchSizeMultiplier int           `yaml:"fetchSizeMultiplier"`
	BufferSize          int           `yaml:"bufferSize"`
}

// ConstructionConfig controls how often and how hard the index is rebuilt.
type ConstructionConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Parallelism     int           `yaml:"parallelism"`
	RetryAttempts   int           `yaml:"retryAttempts"`
	RetryDelay      time.Duration `yaml:"retryDelay"`
	JournalPageSize int           `yaml:"journalPageSize"`
	LockTimeout     time.Duration `yaml:"lockTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	JournalEntries string `yaml:"journalEntries"`
	IndexComplete  string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the index cannot run with.
func (c *Config) Validate() error {
	if c.Index.DataDir == "" {
		return fmt.Errorf("index.dataDir must be set")
	}
	if c.Index.WordsBlockBits < 2 || c.Index.WordsBlockBits > 16 {
		return fmt.Errorf("index.wordsBlockBits out of range: %d", c.Index.WordsBlockBits)
	}
	if c.Index.DocsBlockBits < 2 || c.Index.DocsBlockBits > 16 {
		return fmt.Errorf("index.docsBlockBits out of range: %d", c.Index.DocsBlockBits)
	}
	if c.Search.TimeBudget <= 0 {
		return fmt.Errorf("search.timeBudget must be positive")
	}
	if c.Construction.Interval <= 0 {
		return fmt.Errorf("construction.interval must be positive")
	}
	if c.Construction.JournalPageSize <= 0 {
		return fmt.Errorf("construction.journalPageSize must be positive")
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) below defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			DataDir:         "data/index",
			TmpDir:          "data/tmp",
			JournalDir:      "data/journal",
			SearchSetDir:    "data/search-sets",
			MemorySortLimit: 1 << 24,
			WordsBlockBits:  8,
			DocsBlockBits:   7,
		},
		Search: SearchConfig{
			TimeBudget:          150 * time.Millisecond,
			DefaultLimit:        100,
			MaxResults:          1000,
			FetchSizeMultiplier: 4,
			BufferSize:          512,
		},
		Construction: ConstructionConfig{
			Interval:        30 * time.Minute,
			Parallelism:     4,
			RetryAttempts:   3,
			RetryDelay:      5 * time.Second,
			JournalPageSize: 100_000,
			LockTimeout:     10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "edgeindex",
			User:            "edgeindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "edge-index",
			Topics: KafkaTopics{
				JournalEntries: "index.journal",
				IndexComplete:  "index.complete",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads EI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EI_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("EI_INDEX_TMP_DIR"); v != "" {
		cfg.Index.TmpDir = v
	}
	if v := os.Getenv("EI_INDEX_JOURNAL_DIR"); v != "" {
		cfg.Index.JournalDir = v
	}
	if v := os.Getenv("EI_INDEX_MEMORY_SORT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.MemorySortLimit = n
		}
	}
	if v := os.Getenv("EI_SEARCH_TIME_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.TimeBudget = d
		}
	}
	if v := os.Getenv("EI_CONSTRUCTION_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Construction.Interval = d
		}
	}
	if v := os.Getenv("EI_CONSTRUCTION_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Construction.Parallelism = n
		}
	}
	if v := os.Getenv("EI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("EI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("EI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("EI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("EI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("EI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("EI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("EI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
